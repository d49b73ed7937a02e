package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hiring-backend/internal/pipeline"
)

const (
	maxTitleLen    = 200
	maxQuestions   = 30
	maxQuestionLen = 1000
	maxDescription = 20000
)

// CreateInput is the host-supplied part of a new job.
type CreateInput struct {
	Title       string
	Description string
	Questions   []string
	Weights     *ScoreWeights
}

// Service contains business logic for the job catalog.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo, Now: func() time.Time { return time.Now().UTC() }}
}

// Create stores a draft job owned by hostID.
func (s *Service) Create(ctx context.Context, hostID string, in CreateInput) (Job, error) {
	hostID = strings.TrimSpace(hostID)
	if hostID == "" {
		return Job{}, fmt.Errorf("%w: host id required", pipeline.ErrValidation)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > maxTitleLen {
		return Job{}, fmt.Errorf("%w: title must be 1-%d characters", pipeline.ErrValidation, maxTitleLen)
	}
	if len(in.Description) > maxDescription {
		return Job{}, fmt.Errorf("%w: description too long", pipeline.ErrValidation)
	}
	questions := make([]string, 0, len(in.Questions))
	for _, q := range in.Questions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if len(q) > maxQuestionLen {
			return Job{}, fmt.Errorf("%w: question too long", pipeline.ErrValidation)
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 || len(questions) > maxQuestions {
		return Job{}, fmt.Errorf("%w: between 1 and %d interview questions required", pipeline.ErrValidation, maxQuestions)
	}
	if in.Weights != nil {
		if err := ValidateWeights(*in.Weights); err != nil {
			return Job{}, err
		}
	}

	now := s.now()
	job := Job{
		ID:          uuid.NewString(),
		HostID:      hostID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Questions:   questions,
		Status:      StatusDraft,
		Weights:     in.Weights,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Repo.Create(ctx, job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// ValidateWeights rejects negative weights and an all-zero blend.
func ValidateWeights(w ScoreWeights) error {
	if w.Interview < 0 || w.Resume < 0 || w.Interview+w.Resume <= 0 {
		return fmt.Errorf("%w: weights must be non-negative with a positive sum", pipeline.ErrValidation)
	}
	return nil
}

// Open publishes a draft job.
func (s *Service) Open(ctx context.Context, hostID, jobID string) (Job, error) {
	return s.move(ctx, hostID, jobID, StatusDraft, StatusOpen)
}

// Close stops an open job from accepting applications and interviews.
func (s *Service) Close(ctx context.Context, hostID, jobID string) (Job, error) {
	return s.move(ctx, hostID, jobID, StatusOpen, StatusClosed)
}

func (s *Service) move(ctx context.Context, hostID, jobID string, from, to Status) (Job, error) {
	job, err := s.GetOwned(ctx, hostID, jobID)
	if err != nil {
		return Job{}, err
	}
	if job.Status != from {
		return Job{}, fmt.Errorf("%w: job is %s, expected %s", pipeline.ErrInvalidTransition, job.Status, from)
	}
	return s.Repo.UpdateStatus(ctx, jobID, from, to)
}

// Get returns a job by ID.
func (s *Service) Get(ctx context.Context, jobID string) (Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return Job{}, fmt.Errorf("%w: job id required", pipeline.ErrValidation)
	}
	return s.Repo.GetByID(ctx, jobID)
}

// GetOwned returns a job only when hostID owns it.
func (s *Service) GetOwned(ctx context.Context, hostID, jobID string) (Job, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if job.HostID != hostID {
		return Job{}, fmt.Errorf("%w: job %s is not owned by caller", pipeline.ErrForbidden, jobID)
	}
	return job, nil
}

// List returns jobs matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Job, error) {
	return s.Repo.List(ctx, filter)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
