package applications

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hiring-backend/internal/pipeline"
	"hiring-backend/internal/shared/server/middleware"
	"hiring-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches application routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/jobs/:id/applications", h.apply)
	rg.GET("/jobs/:id/applications", h.listForJob)
	rg.GET("/me/applications", h.listMine)
	rg.GET("/applications/:id", h.get)
	for _, action := range Actions() {
		rg.POST("/applications/:id/"+string(action), h.transition(action))
	}
}

// Response is the outward-facing representation of an application.
type Response struct {
	ApplicationID           string          `json:"applicationId"`
	JobID                   string          `json:"jobId"`
	CandidateID             string          `json:"candidateId"`
	Status                  pipeline.Status `json:"status"`
	SessionID               string          `json:"sessionId,omitempty"`
	VoiceInterviewCompleted bool            `json:"voiceInterviewCompleted"`
	VoiceInterviewScore     *float64        `json:"voiceInterviewScore,omitempty"`
	ResumeMatchScore        *float64        `json:"resumeMatchScore,omitempty"`
	FinalScore              *float64        `json:"finalScore,omitempty"`
	TranscriptSummary       string          `json:"transcriptSummary,omitempty"`
	InterviewOutcome        string          `json:"interviewOutcome,omitempty"`
	InterviewFailures       int             `json:"interviewFailures"`
	InterviewRetryable      bool            `json:"interviewRetryable"`
	InterviewStartedAt      *time.Time      `json:"interviewStartedAt,omitempty"`
	InterviewCompletedAt    *time.Time      `json:"interviewCompletedAt,omitempty"`
	CreatedAt               time.Time       `json:"createdAt"`
	UpdatedAt               time.Time       `json:"updatedAt"`
	Version                 int64           `json:"version"`
}

// ToResponse renders an application for API callers.
func ToResponse(app Application) Response {
	return Response{
		ApplicationID:           app.ID,
		JobID:                   app.JobID,
		CandidateID:             app.CandidateID,
		Status:                  app.Status,
		SessionID:               app.SessionID,
		VoiceInterviewCompleted: app.VoiceInterviewCompleted,
		VoiceInterviewScore:     app.VoiceInterviewScore,
		ResumeMatchScore:        app.ResumeMatchScore,
		FinalScore:              app.FinalScore,
		TranscriptSummary:       app.TranscriptSummary,
		InterviewOutcome:        app.InterviewOutcome,
		InterviewFailures:       app.InterviewFailures,
		InterviewRetryable:      app.InterviewRetryable,
		InterviewStartedAt:      app.InterviewStartedAt,
		InterviewCompletedAt:    app.InterviewCompletedAt,
		CreatedAt:               app.CreatedAt,
		UpdatedAt:               app.UpdatedAt,
		Version:                 app.Version,
	}
}

type transitionRequest struct {
	Version int64 `json:"version"`
}

func (h *Handler) apply(c *gin.Context) {
	jobID := c.Param("id")
	c.Set(middleware.JobIDKey, jobID)
	app, err := h.Svc.Apply(c.Request.Context(), middleware.UserIDFromContext(c), jobID)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	c.Set(middleware.ApplicationIDKey, app.ID)
	respond.Created(c, ToResponse(app))
}

func (h *Handler) listForJob(c *gin.Context) {
	jobID := c.Param("id")
	c.Set(middleware.JobIDKey, jobID)
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	list, err := h.Svc.ListForJob(c.Request.Context(), middleware.UserIDFromContext(c), jobID, filter)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, toResponses(list))
}

func (h *Handler) listMine(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	list, err := h.Svc.ListForCandidate(c.Request.Context(), middleware.UserIDFromContext(c), filter)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, toResponses(list))
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ApplicationIDKey, id)
	app, _, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, ToResponse(app))
}

func (h *Handler) transition(action Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		c.Set(middleware.ApplicationIDKey, id)
		var req transitionRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Version <= 0 {
			respond.Error(c, http.StatusBadRequest, pipeline.ErrorCodeValidation, "version is required", nil)
			return
		}
		app, from, err := h.Svc.Transition(c.Request.Context(), middleware.UserIDFromContext(c), id, action, req.Version)
		if err != nil {
			respond.FromError(c, err)
			return
		}
		c.Set(middleware.StatusTransitionKey, pipeline.Label(from, app.Status))
		respond.OK(c, ToResponse(app))
	}
}

func parseFilter(c *gin.Context) (ListFilter, bool) {
	var filter ListFilter
	if raw := c.Query("status"); raw != "" {
		status, err := pipeline.ParseStatus(raw)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, pipeline.ErrorCodeValidation, "unknown status", nil)
			return ListFilter{}, false
		}
		filter.Statuses = []pipeline.Status{status}
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil {
		filter.Offset = v
	}
	return filter, true
}

func toResponses(list []Application) []Response {
	resp := make([]Response, 0, len(list))
	for _, app := range list {
		resp = append(resp, ToResponse(app))
	}
	return resp
}
