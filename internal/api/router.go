package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/sourcedesk/internal/api/handler"
	"github.com/timmy/sourcedesk/internal/api/middleware"
	"github.com/timmy/sourcedesk/internal/config"
	"github.com/timmy/sourcedesk/internal/logger"
	"github.com/timmy/sourcedesk/internal/service"
)

// Services are the backends the routes dispatch to. Chat and Research may
// be nil when their providers are not configured.
type Services struct {
	Sources  *service.SourceService
	Contents *service.ContentService
	Chat     *service.ChatService
	Research *service.ResearchService
	Stats    *service.StatsService
	Passes   map[string]*service.ReconcilePass
	DB       handler.Pinger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svc *Services, cfg *config.ServerConfig, log *logger.Logger) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	if cfg.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = cfg.MaxUploadBytes
	}

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler(svc.DB)
	sourceHandler := handler.NewSourceHandler(svc.Sources, cfg.MaxUploadBytes)
	contentHandler := handler.NewContentHandler(svc.Contents)
	chatHandler := handler.NewChatHandler(svc.Chat, svc.Research)
	statsHandler := handler.NewStatsHandler(svc.Stats)
	adminHandler := handler.NewAdminHandler(svc.Passes)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Sources
		v1.POST("/sources", sourceHandler.AddSource)
		v1.POST("/sources/upload", sourceHandler.UploadSource)
		v1.POST("/sources/resume", sourceHandler.Resume)
		v1.GET("/sources", sourceHandler.ListSources)
		v1.GET("/sources/:id", sourceHandler.GetSource)
		v1.POST("/sources/:id/check", sourceHandler.CheckStatus)
		v1.GET("/sources/:id/questions", chatHandler.SuggestQuestions)
		v1.DELETE("/sources/:id", sourceHandler.DeleteSource)

		// Generated content
		v1.POST("/contents/text", contentHandler.GenerateText)
		v1.POST("/contents/image", contentHandler.GenerateImage)
		v1.POST("/contents/resume", contentHandler.Resume)
		v1.GET("/contents", contentHandler.ListContents)
		v1.GET("/contents/:id", contentHandler.GetContent)
		v1.POST("/contents/:id/check", contentHandler.CheckStatus)
		v1.PATCH("/contents/:id/compliance", contentHandler.MoveCompliance)
		v1.DELETE("/contents/:id", contentHandler.DeleteContent)

		// Chat and research
		v1.POST("/chat", chatHandler.Ask)
		v1.GET("/research/papers", chatHandler.SearchPapers)

		// Stats
		v1.GET("/stats", statsHandler.GetStats)

		// Admin
		v1.GET("/admin/reconcile", adminHandler.GetReconcileStatus)
		v1.POST("/admin/reconcile", adminHandler.TriggerReconcile)
	}

	return r
}
