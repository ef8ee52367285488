package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	eventdomain "github.com/lumenlabs/lumen/internal/event/domain"
	"github.com/lumenlabs/lumen/internal/observability/logger"
	"go.uber.org/zap"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not_found")
	ErrRateLimited  = errors.New("rate_limited")
)

// validationError carries a machine-readable reason for a 400 response.
type validationError struct {
	Field   string
	Code    string
	Message string
}

func (e *validationError) Error() string { return e.Code }

func newValidationError(field, code, message string) error {
	return &validationError{Field: field, Code: code, Message: message}
}

func invalidRequestError() error {
	return newValidationError("body", "invalid_request", "request body could not be parsed")
}

// AbortWithError maps domain errors onto the wire taxonomy. Every failure
// is structured JSON; no failure crashes the process or bleeds into
// concurrent requests.
func AbortWithError(c *gin.Context, err error) {
	var invalid *validationError
	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, eventdomain.ErrUnauthorized):
		abort(c, http.StatusUnauthorized, "unauthorized", "missing or invalid API key")
	case errors.Is(err, eventdomain.ErrProjectMismatch):
		abort(c, http.StatusBadRequest, "project_mismatch", "API key is not bound to a project")
	case errors.Is(err, eventdomain.ErrQuotaExceeded):
		abort(c, http.StatusTooManyRequests, "quota_exceeded", "event quota reached for the current billing period")
	case errors.Is(err, ErrRateLimited):
		abort(c, http.StatusTooManyRequests, "rate_limited", "too many requests")
	case errors.Is(err, eventdomain.ErrInvalidEventType):
		abort(c, http.StatusBadRequest, "invalid_event_type", "event type is required")
	case errors.Is(err, eventdomain.ErrInvalidTraceID):
		abort(c, http.StatusBadRequest, "invalid_trace_id", "trace id is malformed")
	case errors.As(err, &invalid):
		abort(c, http.StatusBadRequest, invalid.Code, invalid.Message)
	case errors.Is(err, ErrNotFound):
		abort(c, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, eventdomain.ErrStorageFailure):
		logger.FromContext(c.Request.Context()).Error("storage failure", zap.Error(err))
		abort(c, http.StatusInternalServerError, "storage_failure", "event could not be stored; safe to retry")
	default:
		logger.FromContext(c.Request.Context()).Error("unhandled error", zap.Error(err))
		abort(c, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
