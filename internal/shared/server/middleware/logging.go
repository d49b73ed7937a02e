package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"hiring-backend/internal/shared/telemetry"
)

// Context keys handlers set so the request log can correlate pipeline records.
const (
	JobIDKey            = "jobId"
	ApplicationIDKey    = "applicationId"
	SessionIDKey        = "sessionId"
	StatusTransitionKey = "statusTransition"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"user_id":     UserIDFromContext(c),
			"client_ip":   c.ClientIP(),
		}
		for _, key := range []string{JobIDKey, ApplicationIDKey, SessionIDKey, StatusTransitionKey} {
			if v := c.GetString(key); v != "" {
				fields[snake(key)] = v
			}
		}
		telemetry.Info("request.complete", fields)
	}
}

func snake(key string) string {
	switch key {
	case JobIDKey:
		return "job_id"
	case ApplicationIDKey:
		return "application_id"
	case SessionIDKey:
		return "session_id"
	case StatusTransitionKey:
		return "status_transition"
	}
	return key
}
