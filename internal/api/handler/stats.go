package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/sourcedesk/internal/service"
)

// StatsHandler serves pipeline counters.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// GetStats handles GET /api/v1/stats.
func (h *StatsHandler) GetStats(c *gin.Context) {
	stats, err := h.stats.Get(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, stats)
}
