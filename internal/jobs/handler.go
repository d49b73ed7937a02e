package jobs

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

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

// RegisterRoutes attaches job routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/jobs", h.create)
	rg.GET("/jobs", h.list)
	rg.GET("/jobs/:id", h.get)
	rg.POST("/jobs/:id/open", h.open)
	rg.POST("/jobs/:id/close", h.close)
}

type createRequest struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Questions   []string      `json:"questions"`
	Weights     *ScoreWeights `json:"weights"`
}

// Response is the outward-facing representation of a job.
type Response struct {
	JobID               string        `json:"jobId"`
	HostID              string        `json:"hostId"`
	Title               string        `json:"title"`
	Description         string        `json:"description"`
	Questions           []string      `json:"questions"`
	Status              Status        `json:"status"`
	Weights             *ScoreWeights `json:"weights,omitempty"`
	CompletedInterviews int64         `json:"completedInterviews"`
	CreatedAt           time.Time     `json:"createdAt"`
}

// ToResponse renders a job for API callers.
func ToResponse(job Job) Response {
	return Response{
		JobID:               job.ID,
		HostID:              job.HostID,
		Title:               job.Title,
		Description:         job.Description,
		Questions:           job.Questions,
		Status:              job.Status,
		Weights:             job.Weights,
		CompletedInterviews: job.CompletedInterviews,
		CreatedAt:           job.CreatedAt,
	}
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	job, err := h.Svc.Create(c.Request.Context(), middleware.UserIDFromContext(c), CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Questions:   req.Questions,
		Weights:     req.Weights,
	})
	if err != nil {
		respond.FromError(c, err)
		return
	}
	c.Set(middleware.JobIDKey, job.ID)
	respond.Created(c, ToResponse(job))
}

func (h *Handler) list(c *gin.Context) {
	filter := ListFilter{Status: Status(c.Query("status"))}
	if c.Query("mine") == "true" {
		filter.HostID = middleware.UserIDFromContext(c)
	} else if filter.Status == "" {
		filter.Status = StatusOpen
	}
	if filter.Status != "" && filter.Status != StatusOpen && filter.HostID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "only open jobs are listed publicly", nil)
		return
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil {
		filter.Offset = v
	}

	list, err := h.Svc.List(c.Request.Context(), filter)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	resp := make([]Response, 0, len(list))
	for _, job := range list {
		resp = append(resp, ToResponse(job))
	}
	respond.OK(c, resp)
}

func (h *Handler) get(c *gin.Context) {
	job, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	if job.Status == StatusDraft && job.HostID != middleware.UserIDFromContext(c) {
		respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		return
	}
	respond.OK(c, ToResponse(job))
}

func (h *Handler) open(c *gin.Context) {
	h.transition(c, h.Svc.Open)
}

func (h *Handler) close(c *gin.Context) {
	h.transition(c, h.Svc.Close)
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, hostID, jobID string) (Job, error)) {
	jobID := c.Param("id")
	c.Set(middleware.JobIDKey, jobID)
	job, err := fn(c.Request.Context(), middleware.UserIDFromContext(c), jobID)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, ToResponse(job))
}
