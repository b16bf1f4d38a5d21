package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/sourcedesk/internal/domain"
	"github.com/timmy/sourcedesk/internal/repository"
	"github.com/timmy/sourcedesk/internal/service"
)

// ContentHandler handles generated content endpoints.
type ContentHandler struct {
	contents *service.ContentService
}

// NewContentHandler creates a new content handler.
func NewContentHandler(contents *service.ContentService) *ContentHandler {
	return &ContentHandler{contents: contents}
}

// ComplianceRequest moves an item on the compliance board.
type ComplianceRequest struct {
	Status domain.ComplianceStatus `json:"status" binding:"required"`
}

type generateFunc func(ctx context.Context, req *service.GenerateRequest) (*domain.GeneratedContent, error)

// GenerateText handles POST /api/v1/contents/text.
func (h *ContentHandler) GenerateText(c *gin.Context) {
	h.generate(c, h.contents.GenerateText)
}

// GenerateImage handles POST /api/v1/contents/image.
func (h *ContentHandler) GenerateImage(c *gin.Context) {
	h.generate(c, h.contents.GenerateImage)
}

func (h *ContentHandler) generate(c *gin.Context, run generateFunc) {
	var req service.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	item, err := run(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, entityOrNil(item))
		return
	}

	c.JSON(http.StatusCreated, item)
}

// ListContents handles GET /api/v1/contents.
// Filters: source_id, type, status, compliance.
func (h *ContentHandler) ListContents(c *gin.Context) {
	limit, offset := pagination(c)
	filter := repository.ContentFilter{
		SourceID:   c.Query("source_id"),
		Type:       domain.ContentType(c.Query("type")),
		Status:     domain.ProcessingStatus(c.Query("status")),
		Compliance: domain.ComplianceStatus(c.Query("compliance")),
		Limit:      limit,
		Offset:     offset,
	}

	items, err := h.contents.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contents": items,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetContent handles GET /api/v1/contents/:id.
func (h *ContentHandler) GetContent(c *gin.Context) {
	item, err := h.contents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, item)
}

// CheckStatus handles POST /api/v1/contents/:id/check.
func (h *ContentHandler) CheckStatus(c *gin.Context) {
	item, err := h.contents.CheckStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, item)
}

// MoveCompliance handles PATCH /api/v1/contents/:id/compliance.
func (h *ContentHandler) MoveCompliance(c *gin.Context) {
	var req ComplianceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	item, err := h.contents.MoveCompliance(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteContent handles DELETE /api/v1/contents/:id.
func (h *ContentHandler) DeleteContent(c *gin.Context) {
	if err := h.contents.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// Resume handles POST /api/v1/contents/resume.
func (h *ContentHandler) Resume(c *gin.Context) {
	started, err := h.contents.ResumePolling(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"started": started})
}
