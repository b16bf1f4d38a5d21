package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/sourcedesk/internal/domain"
	"github.com/timmy/sourcedesk/internal/repository"
	"github.com/timmy/sourcedesk/internal/service"
)

// SourceHandler handles source endpoints.
type SourceHandler struct {
	sources        *service.SourceService
	maxUploadBytes int64
}

// NewSourceHandler creates a new source handler.
// Parameters:
//   - sources: source service instance.
//   - maxUploadBytes: largest accepted upload; <= 0 disables the limit.
//
// Returns:
//   - *SourceHandler: initialized handler.
func NewSourceHandler(sources *service.SourceService, maxUploadBytes int64) *SourceHandler {
	return &SourceHandler{sources: sources, maxUploadBytes: maxUploadBytes}
}

// AddSource handles POST /api/v1/sources.
func (h *SourceHandler) AddSource(c *gin.Context) {
	var req service.AddSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	src, err := h.sources.AddSource(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, entityOrNil(src))
		return
	}

	c.JSON(http.StatusCreated, src)
}

// UploadSource handles POST /api/v1/sources/upload (multipart field "file").
func (h *SourceHandler) UploadSource(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if h.maxUploadBytes > 0 && header.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{
			Error: fmt.Sprintf("file exceeds %d bytes", h.maxUploadBytes),
			Code:  "too_large",
		})
		return
	}

	file, err := header.Open()
	if err != nil {
		badRequest(c, "unreadable upload: "+err.Error())
		return
	}
	defer file.Close()

	src, err := h.sources.UploadSource(c.Request.Context(), header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		respondError(c, err, entityOrNil(src))
		return
	}

	c.JSON(http.StatusCreated, src)
}

// ListSources handles GET /api/v1/sources.
func (h *SourceHandler) ListSources(c *gin.Context) {
	limit, offset := pagination(c)
	filter := repository.SourceFilter{
		Status:   domain.ProcessingStatus(c.Query("status")),
		LinkType: domain.LinkType(c.Query("type")),
		Limit:    limit,
		Offset:   offset,
	}

	sources, err := h.sources.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetSource handles GET /api/v1/sources/:id.
func (h *SourceHandler) GetSource(c *gin.Context) {
	src, err := h.sources.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, src)
}

// CheckStatus handles POST /api/v1/sources/:id/check.
func (h *SourceHandler) CheckStatus(c *gin.Context) {
	src, err := h.sources.CheckStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, src)
}

// DeleteSource handles DELETE /api/v1/sources/:id.
func (h *SourceHandler) DeleteSource(c *gin.Context) {
	if err := h.sources.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// Resume handles POST /api/v1/sources/resume.
func (h *SourceHandler) Resume(c *gin.Context) {
	started, err := h.sources.ResumePolling(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"started": started})
}

// entityOrNil avoids serializing a typed nil pointer as "entity": null.
func entityOrNil[T any](v *T) any {
	if v == nil {
		return nil
	}
	return v
}
