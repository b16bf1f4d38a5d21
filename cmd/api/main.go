package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/sourcedesk/internal/api"
	"github.com/timmy/sourcedesk/internal/app"
	"github.com/timmy/sourcedesk/internal/config"
	"github.com/timmy/sourcedesk/internal/logger"
	"github.com/timmy/sourcedesk/internal/service"
)

func main() {
	// Initialize logger from environment; config-file level/format override below
	appLogger := logger.New(logger.LoadFromEnv("sourcedesk-api"))
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	if os.Getenv("LOG_LEVEL") == "" && os.Getenv("LOG_FORMAT") == "" {
		logCfg := logger.LoadFromEnv("sourcedesk-api")
		logCfg.Level = cfg.Log.Level
		logCfg.Format = cfg.Log.Format
		appLogger = logger.New(logCfg)
		logger.SetDefaultLogger(appLogger)
	}

	ctx := appLogger.WithContext(context.Background())

	a, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer a.Close()

	// Start polling and pick up everything that was processing before restart
	a.StartPolling(&cfg.Polling)
	for name, resume := range map[string]func(context.Context) (int, error){
		"sources":  a.SourceService.ResumePolling,
		"contents": a.ContentService.ResumePolling,
	} {
		if _, err := resume(ctx); err != nil {
			appLogger.WithError(err).WithField("kind", name).Error("Failed to resume polling")
		}
	}

	var sweeper *service.Sweeper
	if cfg.Polling.SweepSchedule != "" {
		sweeper, err = service.NewSweeper(cfg.Polling.SweepSchedule, a.SourceService, a.ContentService)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to schedule resume sweep")
		}
		sweeper.Start()
	}

	router := api.SetupRouter(&api.Services{
		Sources:  a.SourceService,
		Contents: a.ContentService,
		Chat:     a.ChatService,
		Research: a.Research,
		Stats:    service.NewStatsService(a.Sources, a.Contents, a.SourcePolls, a.ContentPolls, a.Reconciler),
		Passes: map[string]*service.ReconcilePass{
			"sources":  service.NewReconcilePass(a.SourceService.Tracker(), a.Sources, 4),
			"contents": service.NewReconcilePass(a.ContentService.Tracker(), a.Contents, 4),
		},
		DB: a.DB,
	}, &cfg.Server, appLogger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	if sweeper != nil {
		sweeper.Stop()
	}
	a.StopPolling()

	appLogger.Info("Server exited")
}
