package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/sourcedesk/internal/diaflow"
	"github.com/timmy/sourcedesk/internal/service"
)

// ChatHandler handles chat, question suggestion and paper search.
// chat and research may be nil when their backends are not configured.
type ChatHandler struct {
	chat     *service.ChatService
	research *service.ResearchService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat *service.ChatService, research *service.ResearchService) *ChatHandler {
	return &ChatHandler{chat: chat, research: research}
}

// Ask handles POST /api/v1/chat.
func (h *ChatHandler) Ask(c *gin.Context) {
	if h.chat == nil {
		respondError(c, &diaflow.ConfigurationError{Field: "gemini.api_key"}, nil)
		return
	}

	var req service.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	resp, err := h.chat.Ask(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SuggestQuestions handles GET /api/v1/sources/:id/questions.
func (h *ChatHandler) SuggestQuestions(c *gin.Context) {
	if h.chat == nil {
		respondError(c, &diaflow.ConfigurationError{Field: "gemini.api_key"}, nil)
		return
	}

	questions, err := h.chat.SuggestQuestions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"questions": questions,
		"total":     len(questions),
	})
}

// SearchPapers handles GET /api/v1/research/papers?q=...&limit=...
func (h *ChatHandler) SearchPapers(c *gin.Context) {
	if h.research == nil {
		respondError(c, &diaflow.ConfigurationError{Field: "research.base_url"}, nil)
		return
	}

	query := c.Query("q")
	if query == "" {
		badRequest(c, "Query parameter 'q' is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	papers, err := h.research.SearchPapers(c.Request.Context(), query, limit)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"papers": papers,
		"total":  len(papers),
	})
}
