package respond

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hiring-backend/internal/pipeline"
	"hiring-backend/internal/shared/telemetry"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// StatusFor maps a pipeline error onto its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, pipeline.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrConflict),
		errors.Is(err, pipeline.ErrInvalidTransition),
		errors.Is(err, pipeline.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrExternalService):
		return http.StatusBadGateway
	case errors.Is(err, pipeline.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromError writes the envelope for a pipeline error. Internal errors hide
// their message from the caller.
func FromError(c *gin.Context, err error) {
	status := StatusFor(err)
	code := pipeline.Classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Unexpected server error"
		telemetry.Error("http.internal_error", map[string]any{
			"request_id": c.GetString("requestId"),
			"error":      err.Error(),
		})
	}
	Error(c, status, code, message, nil)
}
