package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/sourcedesk/internal/api/middleware"
	"github.com/timmy/sourcedesk/internal/diaflow"
	"github.com/timmy/sourcedesk/internal/domain"
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	// Entity carries the record a failed submission left behind.
	Entity any `json:"entity,omitempty"`
}

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) (int, string) {
	var cfgErr *diaflow.ConfigurationError
	var subErr *diaflow.SubmissionFailedError
	var checkErr *diaflow.StatusCheckFailedError

	switch {
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable, "configuration_error"
	case errors.As(err, &subErr):
		return http.StatusBadGateway, "submission_failed"
	case errors.As(err, &checkErr):
		return http.StatusBadGateway, "status_check_failed"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// respondError writes err with its mapped status. entity, when non-nil, is
// included so clients can show a record that was persisted as failed.
func respondError(c *gin.Context, err error, entity any) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		middleware.GetLogger(c).WithError(err).Warn("Request error")
	}
	c.JSON(status, errorResponse{Error: err.Error(), Code: code, Entity: entity})
}

// badRequest reports a binding or parameter problem.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: msg, Code: "invalid_input"})
}
