package handler

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/sourcedesk/internal/logger"
	"github.com/timmy/sourcedesk/internal/service"
)

// AdminHandler handles operator actions.
type AdminHandler struct {
	passes map[string]*service.ReconcilePass

	// Reconcile run state
	mu            sync.RWMutex
	isRunning     bool
	currentStats  *service.PassStats
	lastRunTime   time.Time
	lastRunStatus string
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - passes: reconcile passes keyed by entity kind ("sources", "contents").
//
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(passes map[string]*service.ReconcilePass) *AdminHandler {
	return &AdminHandler{passes: passes}
}

// ReconcileRequest represents the reconcile API request.
type ReconcileRequest struct {
	Kind string   `json:"kind" binding:"required"`
	IDs  []string `json:"ids"`
}

// ReconcileResponse represents the reconcile API response.
type ReconcileResponse struct {
	Message string             `json:"message"`
	Stats   *service.PassStats `json:"stats,omitempty"`
}

// ReconcileStatusResponse represents the last reconcile run.
type ReconcileStatusResponse struct {
	IsRunning     bool               `json:"is_running"`
	LastRunTime   string             `json:"last_run_time,omitempty"`
	LastRunStatus string             `json:"last_run_status,omitempty"`
	CurrentStats  *service.PassStats `json:"current_stats,omitempty"`
	Kinds         []string           `json:"kinds"`
}

// TriggerReconcile handles POST /api/v1/admin/reconcile.
// It checks every processing entity of one kind once, outside the schedulers.
func (h *AdminHandler) TriggerReconcile(c *gin.Context) {
	ctx := c.Request.Context()

	var req ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.CtxWarn(ctx, "Invalid reconcile request: client_ip=%s, error=%v", c.ClientIP(), err)
		badRequest(c, err.Error())
		return
	}

	pass, ok := h.passes[req.Kind]
	if !ok {
		badRequest(c, "Unknown kind: "+req.Kind)
		return
	}

	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		logger.CtxWarn(ctx, "Reconcile request rejected: already running, kind=%s", req.Kind)
		c.JSON(http.StatusConflict, errorResponse{Error: "Reconcile is already running", Code: "conflict"})
		return
	}
	h.isRunning = true
	h.currentStats = nil
	h.mu.Unlock()

	logger.CtxInfo(ctx, "Starting reconcile pass: kind=%s, ids=%d", req.Kind, len(req.IDs))

	// Detach from the request so a client disconnect does not abort the pass
	runCtx, cancel := context.WithTimeout(logger.FromContext(ctx).WithContext(context.Background()), 10*time.Minute)
	defer cancel()
	stats, err := pass.Run(runCtx, req.IDs...)

	h.mu.Lock()
	h.isRunning = false
	h.currentStats = stats
	h.lastRunTime = time.Now()
	if err != nil {
		h.lastRunStatus = "failed: " + err.Error()
	} else {
		h.lastRunStatus = "success"
	}
	h.mu.Unlock()

	if err != nil {
		respondError(c, err, nil)
		return
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: stats.EndTime.Sub(stats.StartTime).Milliseconds(),
		logger.FieldCount:      stats.Checked,
	}).Info(ctx, "Reconcile pass finished: kind=%s, completed=%d, failed=%d, pending=%d, errors=%d",
		req.Kind, stats.Completed, stats.Failed, stats.Pending, stats.Errors)

	c.JSON(http.StatusOK, ReconcileResponse{
		Message: "Reconcile completed",
		Stats:   stats,
	})
}

// GetReconcileStatus handles GET /api/v1/admin/reconcile.
func (h *AdminHandler) GetReconcileStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	kinds := make([]string, 0, len(h.passes))
	for k := range h.passes {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	resp := ReconcileStatusResponse{
		IsRunning:     h.isRunning,
		LastRunStatus: h.lastRunStatus,
		CurrentStats:  h.currentStats,
		Kinds:         kinds,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}
