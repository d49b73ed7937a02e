package applications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hiring-backend/internal/jobs"
	"hiring-backend/internal/pipeline"
	"hiring-backend/internal/shared/metrics"
	"hiring-backend/internal/shared/reqctx"
	"hiring-backend/internal/shared/telemetry"
)

// InterviewScheduler kicks off the first interview session for a new
// application, either inline or through the work queue.
type InterviewScheduler interface {
	ScheduleInterview(ctx context.Context, applicationID string) error
}

// Action is a host or candidate workflow move.
type Action string

const (
	ActionInvite    Action = "invite"
	ActionShortlist Action = "shortlist"
	ActionOffer     Action = "offer"
	ActionHire      Action = "hire"
	ActionReject    Action = "reject"
	ActionDecline   Action = "decline"
)

var actionTargets = map[Action]pipeline.Status{
	ActionInvite:    pipeline.StatusInterviewInvited,
	ActionShortlist: pipeline.StatusShortlisted,
	ActionOffer:     pipeline.StatusOffered,
	ActionHire:      pipeline.StatusHired,
	ActionReject:    pipeline.StatusRejected,
	ActionDecline:   pipeline.StatusDeclined,
}

// Actions lists the workflow moves exposed over HTTP.
func Actions() []Action {
	return []Action{ActionInvite, ActionShortlist, ActionOffer, ActionHire, ActionReject, ActionDecline}
}

// Role is the caller's relationship to an application.
type Role string

const (
	RoleHost      Role = "host"
	RoleCandidate Role = "candidate"
)

// Service contains the application store's business logic.
type Service struct {
	Repo      Repo
	Jobs      jobs.Repo
	Scheduler InterviewScheduler
	Now       func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo, jobRepo jobs.Repo) *Service {
	return &Service{Repo: repo, Jobs: jobRepo, Now: func() time.Time { return time.Now().UTC() }}
}

// Apply creates the candidate's application to an open job.
func (s *Service) Apply(ctx context.Context, candidateID, jobID string) (Application, error) {
	candidateID = strings.TrimSpace(candidateID)
	if candidateID == "" || strings.TrimSpace(jobID) == "" {
		return Application{}, fmt.Errorf("%w: candidate and job are required", pipeline.ErrValidation)
	}
	job, err := s.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return Application{}, err
	}
	if job.Status != jobs.StatusOpen {
		return Application{}, fmt.Errorf("%w: job %s is not accepting applications", pipeline.ErrValidation, jobID)
	}
	if job.HostID == candidateID {
		return Application{}, fmt.Errorf("%w: hosts cannot apply to their own job", pipeline.ErrValidation)
	}

	now := s.now()
	app := Application{
		ID:          uuid.NewString(),
		JobID:       jobID,
		CandidateID: candidateID,
		Status:      pipeline.StatusApplied,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	if err := s.Repo.Create(ctx, app); err != nil {
		return Application{}, err
	}
	metrics.ApplicationsCreated.Inc()
	telemetry.Info("application.created", map[string]any{
		"application_id": app.ID,
		"job_id":         jobID,
		"request_id":     reqctx.RequestID(ctx),
	})

	if s.Scheduler != nil {
		if err := s.Scheduler.ScheduleInterview(ctx, app.ID); err != nil {
			// The candidate can still start the interview explicitly.
			telemetry.Warn("application.schedule_failed", map[string]any{
				"application_id": app.ID,
				"request_id":     reqctx.RequestID(ctx),
				"error":          err,
			})
		}
	}
	return app, nil
}

// Authorize returns the caller's role on app: the job's host or the applying
// candidate. Anyone else gets pipeline.ErrForbidden.
func (s *Service) Authorize(ctx context.Context, actorID string, app Application) (Role, jobs.Job, error) {
	job, err := s.Jobs.GetByID(ctx, app.JobID)
	if err != nil {
		return "", jobs.Job{}, err
	}
	switch {
	case actorID != "" && job.HostID == actorID:
		return RoleHost, job, nil
	case actorID != "" && app.CandidateID == actorID:
		return RoleCandidate, job, nil
	default:
		return "", jobs.Job{}, fmt.Errorf("%w: application %s", pipeline.ErrForbidden, app.ID)
	}
}

// Get returns an application visible to actorID.
func (s *Service) Get(ctx context.Context, actorID, applicationID string) (Application, Role, error) {
	app, err := s.Repo.GetByID(ctx, applicationID)
	if err != nil {
		return Application{}, "", err
	}
	role, _, err := s.Authorize(ctx, actorID, app)
	if err != nil {
		return Application{}, "", err
	}
	return app, role, nil
}

// ListForJob returns a job's applications to its host.
func (s *Service) ListForJob(ctx context.Context, hostID, jobID string, filter ListFilter) ([]Application, error) {
	job, err := s.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.HostID != hostID {
		return nil, fmt.Errorf("%w: job %s is not owned by caller", pipeline.ErrForbidden, jobID)
	}
	filter.JobID = jobID
	filter.CandidateID = ""
	return s.Repo.List(ctx, filter)
}

// ListForCandidate returns the candidate's own applications.
func (s *Service) ListForCandidate(ctx context.Context, candidateID string, filter ListFilter) ([]Application, error) {
	if candidateID == "" {
		return nil, fmt.Errorf("%w: candidate id required", pipeline.ErrValidation)
	}
	filter.CandidateID = candidateID
	return s.Repo.List(ctx, filter)
}

// Transition performs a version-guarded workflow move and returns the stored
// application with the status it moved from. Only the host may invite,
// shortlist, offer, hire or reject; either party may decline. Repeating a move
// the application already made at the supplied version writes nothing and
// succeeds, so a writer that lost a race can re-read and retry.
func (s *Service) Transition(ctx context.Context, actorID, applicationID string, action Action, expectedVersion int64) (Application, pipeline.Status, error) {
	target, ok := actionTargets[action]
	if !ok {
		return Application{}, "", fmt.Errorf("%w: unknown action %q", pipeline.ErrValidation, action)
	}
	if expectedVersion <= 0 {
		return Application{}, "", fmt.Errorf("%w: version is required", pipeline.ErrValidation)
	}
	app, err := s.Repo.GetByID(ctx, applicationID)
	if err != nil {
		return Application{}, "", err
	}
	role, _, err := s.Authorize(ctx, actorID, app)
	if err != nil {
		return Application{}, "", err
	}
	if role != RoleHost && action != ActionDecline {
		return Application{}, "", fmt.Errorf("%w: only the host can %s", pipeline.ErrForbidden, action)
	}
	if app.Status == target && app.Version == expectedVersion {
		return app, app.Status, nil
	}

	status, _, err := pipeline.Transition(app.Status, target, app.Version, expectedVersion)
	if err != nil {
		if errors.Is(err, pipeline.ErrConflict) {
			metrics.VersionConflicts.WithLabelValues(string(action)).Inc()
		}
		return Application{}, "", err
	}
	next := app
	next.Status = status
	if status.IsSideTerminal() {
		next.InterviewRetryable = false
	}
	stored, err := s.Repo.Commit(ctx, Mutation{Next: next, ExpectedVersion: expectedVersion})
	if err != nil {
		if errors.Is(err, pipeline.ErrConflict) {
			metrics.VersionConflicts.WithLabelValues(string(action)).Inc()
		}
		return Application{}, "", err
	}
	metrics.Transitions.WithLabelValues(string(app.Status), string(status)).Inc()
	telemetry.Info("application.transition", map[string]any{
		"application_id":    stored.ID,
		"status_transition": pipeline.Label(app.Status, status),
		"version":           stored.Version,
		"actor_role":        string(role),
		"request_id":        reqctx.RequestID(ctx),
	})
	return stored, app.Status, nil
}

// ExpireStale moves applications whose interview never started before cutoff
// to expired. Records that change concurrently are skipped and picked up by
// the next sweep.
func (s *Service) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	const page = 100
	expired, skipped := 0, 0
	for {
		batch, err := s.Repo.List(ctx, ListFilter{
			Statuses:      []pipeline.Status{pipeline.StatusApplied, pipeline.StatusInterviewInvited},
			CreatedBefore: cutoff,
			Limit:         page,
			Offset:        skipped,
		})
		if err != nil {
			return expired, err
		}
		for _, app := range batch {
			next := app
			next.Status = pipeline.StatusExpired
			_, err := s.Repo.Commit(ctx, Mutation{Next: next, ExpectedVersion: app.Version})
			switch {
			case err == nil:
				expired++
				metrics.Transitions.WithLabelValues(string(app.Status), string(pipeline.StatusExpired)).Inc()
			case errors.Is(err, pipeline.ErrConflict), errors.Is(err, pipeline.ErrNotFound):
				skipped++
			default:
				return expired, err
			}
		}
		if len(batch) < page {
			break
		}
	}
	if expired > 0 {
		telemetry.Info("application.expired", map[string]any{"count": expired, "cutoff": cutoff})
	}
	return expired, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
