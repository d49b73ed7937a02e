package interviews

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hiring-backend/internal/applications"
	"hiring-backend/internal/jobs"
	"hiring-backend/internal/pipeline"
	"hiring-backend/internal/shared/metrics"
	"hiring-backend/internal/shared/reqctx"
	"hiring-backend/internal/shared/telemetry"
)

const (
	defaultPersistenceTimeout = 5 * time.Second
	maxCommitAttempts         = 3
)

// Orchestrator starts provider sessions and records them on applications.
type Orchestrator struct {
	Apps               applications.Repo
	Jobs               jobs.Repo
	Provider           Provider
	CallbackURL        string
	PersistenceTimeout time.Duration
	Now                func() time.Time
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(apps applications.Repo, jobRepo jobs.Repo, provider Provider) *Orchestrator {
	return &Orchestrator{
		Apps:               apps,
		Jobs:               jobRepo,
		Provider:           provider,
		PersistenceTimeout: defaultPersistenceTimeout,
		Now:                func() time.Time { return time.Now().UTC() },
	}
}

// StartInput identifies the application and, for HTTP callers, the actor.
// An empty ActorID means a trusted internal caller such as the worker.
type StartInput struct {
	ApplicationID string
	ActorID       string
	Metadata      map[string]string
}

// StartResult is the committed outcome of StartSession.
type StartResult struct {
	SessionID   string
	Application applications.Application
}

// StartSession allocates a provider session and moves the application to
// interview_in_progress. Nothing is written unless the provider returns a
// session handle.
func (o *Orchestrator) StartSession(ctx context.Context, in StartInput) (StartResult, error) {
	app, job, err := o.load(ctx, in)
	if err != nil {
		return StartResult{}, err
	}
	if err := eligible(app); err != nil {
		metrics.SessionsStarted.WithLabelValues("rejected").Inc()
		return StartResult{}, err
	}

	handle, err := o.Provider.StartSession(ctx, SessionRequest{
		ApplicationID: app.ID,
		JobID:         job.ID,
		JobTitle:      job.Title,
		CandidateID:   app.CandidateID,
		Questions:     job.Questions,
		Metadata:      in.Metadata,
		CallbackURL:   o.CallbackURL,
	})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		metrics.SessionsStarted.WithLabelValues("provider_error").Inc()
		if !errors.Is(err, pipeline.ErrExternalService) {
			err = fmt.Errorf("%w: %w", pipeline.ErrExternalService, err)
		}
		telemetry.Warn("interview.provider_failed", map[string]any{
			"application_id": app.ID,
			"request_id":     reqctx.RequestID(ctx),
			"error":          err,
		})
		return StartResult{}, err
	}

	// The session exists at the provider now; losing the write to caller
	// cancellation would orphan it.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.persistenceTimeout())
	defer cancel()

	stored, err := o.commit(writeCtx, app, handle.SessionID)
	if err != nil {
		metrics.SessionsStarted.WithLabelValues("commit_failed").Inc()
		telemetry.Error("interview.session_orphaned", map[string]any{
			"application_id": app.ID,
			"session_id":     handle.SessionID,
			"request_id":     reqctx.RequestID(ctx),
			"error":          err,
		})
		return StartResult{}, err
	}
	metrics.SessionsStarted.WithLabelValues("started").Inc()
	metrics.Transitions.WithLabelValues(string(app.Status), string(stored.Status)).Inc()
	telemetry.Info("interview.session_started", map[string]any{
		"application_id":    stored.ID,
		"session_id":        handle.SessionID,
		"status_transition": pipeline.Label(app.Status, stored.Status),
		"version":           stored.Version,
		"request_id":        reqctx.RequestID(ctx),
	})
	return StartResult{SessionID: handle.SessionID, Application: stored}, nil
}

func (o *Orchestrator) load(ctx context.Context, in StartInput) (applications.Application, jobs.Job, error) {
	if in.ApplicationID == "" {
		return applications.Application{}, jobs.Job{}, fmt.Errorf("%w: applicationId is required", pipeline.ErrValidation)
	}
	app, err := o.Apps.GetByID(ctx, in.ApplicationID)
	if err != nil {
		return applications.Application{}, jobs.Job{}, err
	}
	job, err := o.Jobs.GetByID(ctx, app.JobID)
	if err != nil {
		return applications.Application{}, jobs.Job{}, err
	}
	if in.ActorID != "" && in.ActorID != app.CandidateID && in.ActorID != job.HostID {
		return applications.Application{}, jobs.Job{}, fmt.Errorf("%w: application %s", pipeline.ErrForbidden, app.ID)
	}
	if job.Status != jobs.StatusOpen {
		return applications.Application{}, jobs.Job{}, fmt.Errorf("%w: job %s is not open", pipeline.ErrValidation, job.ID)
	}
	return app, job, nil
}

// eligible accepts applied (invite and start in one write), interview_invited,
// and an in-progress interview whose last session failed or was cancelled.
func eligible(app applications.Application) error {
	switch {
	case app.Status == pipeline.StatusApplied:
		if pipeline.CanTransition(pipeline.StatusApplied, pipeline.StatusInterviewInvited) &&
			pipeline.CanTransition(pipeline.StatusInterviewInvited, pipeline.StatusInterviewInProgress) {
			return nil
		}
	case app.Status == pipeline.StatusInterviewInvited:
		if pipeline.CanTransition(app.Status, pipeline.StatusInterviewInProgress) {
			return nil
		}
	case app.Status == pipeline.StatusInterviewInProgress && app.InterviewRetryable:
		return nil
	case app.Status == pipeline.StatusInterviewInProgress:
		return fmt.Errorf("%w: session %s is still in flight", pipeline.ErrInvalidTransition, app.SessionID)
	}
	return fmt.Errorf("%w: cannot start an interview from %s", pipeline.ErrInvalidTransition, app.Status)
}

func (o *Orchestrator) commit(ctx context.Context, app applications.Application, sessionID string) (applications.Application, error) {
	var lastErr error
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		if attempt > 0 {
			fresh, err := o.Apps.GetByID(ctx, app.ID)
			if err != nil {
				return applications.Application{}, err
			}
			if err := eligible(fresh); err != nil {
				return applications.Application{}, fmt.Errorf("%w: application changed during session start", pipeline.ErrConflict)
			}
			app = fresh
		}
		now := o.now()
		next := app
		next.Status = pipeline.StatusInterviewInProgress
		next.SessionID = sessionID
		next.InterviewStartedAt = &now
		next.InterviewRetryable = false
		next.InterviewOutcome = ""

		stored, err := o.Apps.Commit(ctx, applications.Mutation{
			Next:            next,
			ExpectedVersion: app.Version,
			NewSession:      true,
		})
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, pipeline.ErrConflict) {
			return applications.Application{}, err
		}
		metrics.VersionConflicts.WithLabelValues("start_session").Inc()
		lastErr = err
	}
	return applications.Application{}, lastErr
}

func (o *Orchestrator) persistenceTimeout() time.Duration {
	if o.PersistenceTimeout > 0 {
		return o.PersistenceTimeout
	}
	return defaultPersistenceTimeout
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}
