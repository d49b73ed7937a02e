package interviews

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hiring-backend/internal/pipeline"
	"hiring-backend/internal/shared/server/middleware"
	"hiring-backend/internal/shared/server/respond"
)

// SessionStartRule limits session starts per caller.
var SessionStartRule = middleware.RateLimitRule{Rate: 0.2, Burst: 5}

// Handler exposes the session orchestrator over HTTP.
type Handler struct {
	Orchestrator *Orchestrator
	Limiter      *middleware.RateLimiter
}

// NewHandler constructs a Handler.
func NewHandler(o *Orchestrator, limiter *middleware.RateLimiter) *Handler {
	return &Handler{Orchestrator: o, Limiter: limiter}
}

// RegisterRoutes attaches session routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/interview-sessions", middleware.RateLimit("session_start", SessionStartRule, h.Limiter), h.start)
}

type startRequest struct {
	ApplicationID   string            `json:"applicationId"`
	SessionMetadata map[string]string `json:"sessionMetadata"`
}

// StartResponse is returned once the session is recorded.
type StartResponse struct {
	SessionID     string          `json:"sessionId"`
	ApplicationID string          `json:"applicationId"`
	Status        pipeline.Status `json:"status"`
	Version       int64           `json:"version"`
}

func (h *Handler) start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ApplicationID == "" {
		respond.Error(c, http.StatusBadRequest, pipeline.ErrorCodeValidation, "applicationId is required", nil)
		return
	}
	c.Set(middleware.ApplicationIDKey, req.ApplicationID)

	res, err := h.Orchestrator.StartSession(c.Request.Context(), StartInput{
		ApplicationID: req.ApplicationID,
		ActorID:       middleware.UserIDFromContext(c),
		Metadata:      req.SessionMetadata,
	})
	if err != nil {
		respond.FromError(c, err)
		return
	}
	c.Set(middleware.SessionIDKey, res.SessionID)
	respond.Created(c, StartResponse{
		SessionID:     res.SessionID,
		ApplicationID: res.Application.ID,
		Status:        res.Application.Status,
		Version:       res.Application.Version,
	})
}
