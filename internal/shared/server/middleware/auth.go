package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hiring-backend/internal/pipeline"
	"hiring-backend/internal/shared/server/respond"
)

const (
	userIDKey = "userId"

	// UserIDHeader carries the caller identity resolved by the upstream
	// session layer.
	UserIDHeader = "X-User-Id"
	// InternalTokenHeader authenticates service-to-service calls.
	InternalTokenHeader = "X-Internal-Token"
)

// Auth requires a caller identity and stores it in context.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// InternalToken guards endpoints called by other backend services. An empty
// token disables the route entirely.
func InternalToken(token string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(token))
	return func(c *gin.Context) {
		if len(expected) == 0 {
			respond.Error(c, http.StatusForbidden, pipeline.ErrorCodeForbidden, "internal endpoint disabled", nil)
			return
		}
		got := []byte(strings.TrimSpace(c.GetHeader(InternalTokenHeader)))
		if subtle.ConstantTimeCompare(got, expected) != 1 {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "invalid internal token", nil)
			return
		}
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
