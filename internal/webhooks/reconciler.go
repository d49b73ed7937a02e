package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hiring-backend/internal/applications"
	"hiring-backend/internal/pipeline"
	"hiring-backend/internal/scoring"
	"hiring-backend/internal/shared/metrics"
	"hiring-backend/internal/shared/reqctx"
	"hiring-backend/internal/shared/telemetry"
)

const (
	defaultMaxFailures        = 3
	defaultConflictRetries    = 5
	defaultPersistenceRetries = 3
	defaultBackoff            = 100 * time.Millisecond
)

// Outcome is what reconciling one event did.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// Result reports the outcome and the application the event resolved to.
type Result struct {
	Outcome       Outcome
	ApplicationID string
}

// FinalScorer runs score aggregation after a completed interview.
type FinalScorer interface {
	ComputeFinalScore(ctx context.Context, applicationID string) (scoring.Result, error)
}

// Reconciler applies provider events to applications exactly once.
type Reconciler struct {
	Apps               applications.Repo
	Ledger             Ledger
	Scorer             FinalScorer
	MaxFailures        int
	ConflictRetries    int
	PersistenceRetries int
	Backoff            time.Duration
	Now                func() time.Time
	Sleep              func(context.Context, time.Duration) error
}

// NewReconciler constructs a Reconciler with default retry budgets.
func NewReconciler(apps applications.Repo, ledger Ledger, scorer FinalScorer, maxFailures int) *Reconciler {
	return &Reconciler{
		Apps:               apps,
		Ledger:             ledger,
		Scorer:             scorer,
		MaxFailures:        maxFailures,
		ConflictRetries:    defaultConflictRetries,
		PersistenceRetries: defaultPersistenceRetries,
		Backoff:            defaultBackoff,
		Now:                func() time.Time { return time.Now().UTC() },
		Sleep:              sleepCtx,
	}
}

// Handle reconciles ev. Replays and events that no longer apply resolve
// without error; only validation, unknown sessions and exhausted transient
// failures are returned.
func (r *Reconciler) Handle(ctx context.Context, ev Event) (Result, error) {
	key := applications.EventKey{SessionID: ev.Session(), EventType: ev.Type()}
	fields := map[string]any{
		"session_id": key.SessionID,
		"event_type": key.EventType,
		"request_id": reqctx.RequestID(ctx),
	}

	if r.Ledger != nil {
		seen, err := r.Ledger.Seen(ctx, key)
		if err != nil {
			telemetry.Warn("webhook.ledger_unavailable", withErr(fields, err))
		} else if seen {
			r.observe(key, OutcomeDuplicate)
			return r.settle(ctx, ev, Result{Outcome: OutcomeDuplicate}), nil
		}
	}

	res, err := r.applyWithRetry(ctx, ev, key)
	if err != nil {
		if errors.Is(err, pipeline.ErrNotFound) {
			telemetry.Error("webhook.unresolved_session", withErr(fields, err))
		} else {
			telemetry.Error("webhook.reconcile_failed", withErr(fields, err))
		}
		metrics.WebhookEvents.WithLabelValues(key.EventType, pipeline.Classify(err)).Inc()
		return Result{}, err
	}
	r.observe(key, res.Outcome)

	if r.Ledger != nil {
		if err := r.Ledger.Mark(ctx, key); err != nil {
			telemetry.Warn("webhook.ledger_unavailable", withErr(fields, err))
		}
	}
	fields["application_id"] = res.ApplicationID
	fields["outcome"] = string(res.Outcome)
	telemetry.Info("webhook.reconciled", fields)
	return r.settle(ctx, ev, res), nil
}

// settle runs final score aggregation after a call.completed event. Replays
// of the event retry aggregation while the application still waits in
// interview_completed without a final score.
func (r *Reconciler) settle(ctx context.Context, ev Event, res Result) Result {
	if _, ok := ev.(EventCompleted); !ok || r.Scorer == nil {
		return res
	}
	fields := map[string]any{
		"session_id": ev.Session(),
		"request_id": reqctx.RequestID(ctx),
	}
	if res.Outcome != OutcomeApplied {
		var app applications.Application
		var err error
		if res.ApplicationID != "" {
			app, err = r.Apps.GetByID(ctx, res.ApplicationID)
		} else {
			app, err = r.Apps.GetBySessionID(ctx, ev.Session())
		}
		if err != nil {
			telemetry.Warn("webhook.aggregate_failed", withErr(fields, err))
			return res
		}
		res.ApplicationID = app.ID
		if !awaitingScore(app) {
			return res
		}
	}
	fields["application_id"] = res.ApplicationID
	if _, err := r.Scorer.ComputeFinalScore(ctx, res.ApplicationID); err != nil {
		telemetry.Warn("webhook.aggregate_failed", withErr(fields, err))
	}
	return res
}

func awaitingScore(app applications.Application) bool {
	return app.VoiceInterviewCompleted &&
		app.Status == pipeline.StatusInterviewCompleted &&
		app.FinalScore == nil
}

func (r *Reconciler) applyWithRetry(ctx context.Context, ev Event, key applications.EventKey) (Result, error) {
	attempts := r.PersistenceRetries
	if attempts <= 0 {
		attempts = 1
	}
	backoff := r.Backoff
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, backoff); err != nil {
				return Result{}, fmt.Errorf("%w: %v", pipeline.ErrPersistence, lastErr)
			}
			backoff *= 2
		}
		res, err := r.apply(ctx, ev, key)
		if err == nil || !errors.Is(err, pipeline.ErrPersistence) {
			return res, err
		}
		lastErr = err
	}
	return Result{}, lastErr
}

func (r *Reconciler) apply(ctx context.Context, ev Event, key applications.EventKey) (Result, error) {
	retries := r.ConflictRetries
	if retries <= 0 {
		retries = defaultConflictRetries
	}
	for attempt := 0; attempt < retries; attempt++ {
		app, err := r.Apps.GetBySessionID(ctx, key.SessionID)
		if err != nil {
			return Result{}, err
		}
		seen, err := r.Apps.HasEvent(ctx, key)
		if err != nil {
			return Result{}, err
		}
		if seen {
			return Result{Outcome: OutcomeDuplicate, ApplicationID: app.ID}, nil
		}

		next, noop, err := r.plan(ev, app)
		if err != nil {
			return Result{}, err
		}
		if noop != "" {
			if err := r.Apps.RecordEvent(ctx, app.ID, key); err != nil && !errors.Is(err, pipeline.ErrDuplicateEvent) {
				return Result{}, err
			}
			return Result{Outcome: noop, ApplicationID: app.ID}, nil
		}

		_, completed := ev.(EventCompleted)
		_, err = r.Apps.Commit(ctx, applications.Mutation{
			Next:            next,
			ExpectedVersion: app.Version,
			Event:           &key,
			CountInterview:  completed,
		})
		switch {
		case err == nil:
			if next.Status != app.Status {
				metrics.Transitions.WithLabelValues(string(app.Status), string(next.Status)).Inc()
			}
			return Result{Outcome: OutcomeApplied, ApplicationID: app.ID}, nil
		case errors.Is(err, pipeline.ErrDuplicateEvent):
			return Result{Outcome: OutcomeDuplicate, ApplicationID: app.ID}, nil
		case errors.Is(err, pipeline.ErrConflict):
			metrics.VersionConflicts.WithLabelValues("webhook").Inc()
			continue
		default:
			return Result{}, err
		}
	}
	// A busy application is transient for the provider, so this surfaces as a
	// persistence failure and the provider redelivers.
	return Result{}, fmt.Errorf("%w: session %s kept changing during reconciliation", pipeline.ErrPersistence, key.SessionID)
}

// plan returns the next application state for ev, or a non-empty no-op
// outcome when the event no longer applies.
func (r *Reconciler) plan(ev Event, app applications.Application) (applications.Application, Outcome, error) {
	switch e := ev.(type) {
	case EventCompleted:
		if app.VoiceInterviewCompleted || app.Status.AtLeast(pipeline.StatusInterviewCompleted) || app.Status.IsTerminal() {
			return app, OutcomeDuplicate, nil
		}
		if app.SessionID != e.SessionID {
			return app, OutcomeIgnored, nil
		}
		status, _, err := pipeline.Transition(app.Status, pipeline.StatusInterviewCompleted, app.Version, app.Version)
		if err != nil {
			return app, "", err
		}
		now := r.now()
		score := e.Score
		next := app
		next.Status = status
		next.VoiceInterviewCompleted = true
		next.VoiceInterviewScore = &score
		next.TranscriptSummary = e.TranscriptSummary
		next.InterviewOutcome = e.Outcome
		next.InterviewCompletedAt = &now
		next.InterviewRetryable = false
		return next, "", nil

	case EventFailed:
		if !r.current(app, e.SessionID) {
			return app, OutcomeIgnored, nil
		}
		if app.InterviewRetryable {
			return app, OutcomeDuplicate, nil
		}
		next := app
		next.InterviewFailures++
		next.InterviewOutcome = e.Outcome
		if next.InterviewFailures >= r.maxFailures() {
			status, _, err := pipeline.Transition(app.Status, pipeline.StatusExpired, app.Version, app.Version)
			if err != nil {
				return app, "", err
			}
			next.Status = status
			next.InterviewRetryable = false
		} else {
			next.InterviewRetryable = true
		}
		return next, "", nil

	case EventCancelled:
		if !r.current(app, e.SessionID) {
			return app, OutcomeIgnored, nil
		}
		if app.InterviewRetryable {
			return app, OutcomeDuplicate, nil
		}
		next := app
		next.InterviewOutcome = e.Outcome
		next.InterviewRetryable = true
		return next, "", nil

	default:
		return app, "", fmt.Errorf("%w: unsupported event %T", pipeline.ErrValidation, ev)
	}
}

// current reports whether sessionID is the live session of an in-progress
// interview. Events for superseded sessions do not touch the application.
// Once a session ended as retryable, later terminal events for it are
// duplicates, so one call spends at most one unit of the failure budget.
func (r *Reconciler) current(app applications.Application, sessionID string) bool {
	return app.Status == pipeline.StatusInterviewInProgress &&
		app.SessionID == sessionID &&
		!app.VoiceInterviewCompleted
}

func (r *Reconciler) observe(key applications.EventKey, outcome Outcome) {
	metrics.WebhookEvents.WithLabelValues(key.EventType, string(outcome)).Inc()
}

func (r *Reconciler) maxFailures() int {
	if r.MaxFailures > 0 {
		return r.MaxFailures
	}
	return defaultMaxFailures
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

func (r *Reconciler) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func withErr(fields map[string]any, err error) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err
	return out
}
