package scoring

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hiring-backend/internal/pipeline"
	"hiring-backend/internal/shared/server/middleware"
	"hiring-backend/internal/shared/server/respond"
)

// Handler exposes internal scoring endpoints.
type Handler struct {
	Agg   *Aggregator
	Token string
}

// NewHandler constructs a Handler guarded by the internal API token.
func NewHandler(agg *Aggregator, token string) *Handler {
	return &Handler{Agg: agg, Token: token}
}

// RegisterRoutes attaches scoring routes. They authenticate with
// X-Internal-Token rather than a user identity.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	internal := rg.Group("/", middleware.InternalToken(h.Token))
	internal.POST("/applications/:id/resume-score", h.recordResume)
}

type resumeScoreRequest struct {
	Score *float64 `json:"score"`
}

// ResultResponse reports the aggregation outcome.
type ResultResponse struct {
	ApplicationID    string          `json:"applicationId"`
	Outcome          Outcome         `json:"outcome"`
	Status           pipeline.Status `json:"status"`
	ResumeMatchScore *float64        `json:"resumeMatchScore,omitempty"`
	FinalScore       *float64        `json:"finalScore,omitempty"`
	Version          int64           `json:"version"`
}

func (h *Handler) recordResume(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ApplicationIDKey, id)
	var req resumeScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Score == nil {
		respond.Error(c, http.StatusBadRequest, pipeline.ErrorCodeValidation, "score is required", nil)
		return
	}
	res, err := h.Agg.RecordResumeScore(c.Request.Context(), id, *req.Score)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	app := res.Application
	respond.OK(c, ResultResponse{
		ApplicationID:    app.ID,
		Outcome:          res.Outcome,
		Status:           app.Status,
		ResumeMatchScore: app.ResumeMatchScore,
		FinalScore:       app.FinalScore,
		Version:          app.Version,
	})
}
