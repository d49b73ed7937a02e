package scoring

import (
	"context"
	"errors"
	"fmt"

	"hiring-backend/internal/applications"
	"hiring-backend/internal/jobs"
	"hiring-backend/internal/pipeline"
	"hiring-backend/internal/shared/metrics"
	"hiring-backend/internal/shared/reqctx"
	"hiring-backend/internal/shared/telemetry"
)

const defaultMaxAttempts = 5

// Outcome describes what an aggregation attempt did.
type Outcome string

const (
	OutcomeScored        Outcome = "scored"
	OutcomeDeferred      Outcome = "deferred"
	OutcomeAlreadyScored Outcome = "already_scored"
	OutcomeSkipped       Outcome = "skipped"
)

// Result is the application as left by the aggregator.
type Result struct {
	Outcome     Outcome
	Application applications.Application
}

// Aggregator computes final scores under the application version guard.
type Aggregator struct {
	Apps        applications.Repo
	Jobs        jobs.Repo
	Default     WeightedBlend
	MaxAttempts int
}

// NewAggregator constructs an Aggregator.
func NewAggregator(apps applications.Repo, jobRepo jobs.Repo, fallback WeightedBlend) *Aggregator {
	return &Aggregator{Apps: apps, Jobs: jobRepo, Default: fallback, MaxAttempts: defaultMaxAttempts}
}

// ComputeFinalScore moves an interview_completed application to scored once
// every required signal is present. Missing signals defer without error.
func (a *Aggregator) ComputeFinalScore(ctx context.Context, applicationID string) (Result, error) {
	for attempt := 0; attempt < a.maxAttempts(); attempt++ {
		app, err := a.Apps.GetByID(ctx, applicationID)
		if err != nil {
			return Result{}, err
		}
		switch {
		case app.FinalScore != nil:
			return a.done(ctx, OutcomeAlreadyScored, app), nil
		case app.Status != pipeline.StatusInterviewCompleted:
			return a.done(ctx, OutcomeSkipped, app), nil
		}

		job, err := a.Jobs.GetByID(ctx, app.JobID)
		if err != nil {
			return Result{}, err
		}
		score, ok := PolicyFor(a.Default, job).Blend(Inputs{
			InterviewScore: app.VoiceInterviewScore,
			ResumeScore:    app.ResumeMatchScore,
		})
		if !ok {
			return a.done(ctx, OutcomeDeferred, app), nil
		}

		status, _, err := pipeline.Transition(app.Status, pipeline.StatusScored, app.Version, app.Version)
		if err != nil {
			return Result{}, err
		}
		next := app
		next.Status = status
		next.FinalScore = &score
		stored, err := a.Apps.Commit(ctx, applications.Mutation{Next: next, ExpectedVersion: app.Version})
		if errors.Is(err, pipeline.ErrConflict) {
			metrics.VersionConflicts.WithLabelValues("aggregate_score").Inc()
			continue
		}
		if err != nil {
			return Result{}, err
		}
		metrics.Transitions.WithLabelValues(string(app.Status), string(status)).Inc()
		return a.done(ctx, OutcomeScored, stored), nil
	}
	return Result{}, fmt.Errorf("%w: application %s kept changing during aggregation", pipeline.ErrConflict, applicationID)
}

// RecordResumeScore stores the resume match signal and re-runs aggregation.
// A recorded score is never overwritten; repeating the same value is a no-op.
func (a *Aggregator) RecordResumeScore(ctx context.Context, applicationID string, score float64) (Result, error) {
	if score < 0 || score > 100 {
		return Result{}, fmt.Errorf("%w: score must be between 0 and 100", pipeline.ErrValidation)
	}
	for attempt := 0; attempt < a.maxAttempts(); attempt++ {
		app, err := a.Apps.GetByID(ctx, applicationID)
		if err != nil {
			return Result{}, err
		}
		if app.ResumeMatchScore != nil {
			if *app.ResumeMatchScore != score {
				return Result{}, fmt.Errorf("%w: resume score already recorded for %s", pipeline.ErrDuplicate, applicationID)
			}
			return a.ComputeFinalScore(ctx, applicationID)
		}
		if app.Status.IsTerminal() {
			return Result{}, fmt.Errorf("%w: application %s is %s", pipeline.ErrInvalidTransition, applicationID, app.Status)
		}
		next := app
		next.ResumeMatchScore = &score
		_, err = a.Apps.Commit(ctx, applications.Mutation{Next: next, ExpectedVersion: app.Version})
		if errors.Is(err, pipeline.ErrConflict) {
			metrics.VersionConflicts.WithLabelValues("resume_score").Inc()
			continue
		}
		if err != nil {
			return Result{}, err
		}
		telemetry.Info("scoring.resume_recorded", map[string]any{
			"application_id": applicationID,
			"request_id":     reqctx.RequestID(ctx),
		})
		return a.ComputeFinalScore(ctx, applicationID)
	}
	return Result{}, fmt.Errorf("%w: application %s kept changing while recording resume score", pipeline.ErrConflict, applicationID)
}

func (a *Aggregator) done(ctx context.Context, outcome Outcome, app applications.Application) Result {
	metrics.Aggregations.WithLabelValues(string(outcome)).Inc()
	fields := map[string]any{
		"application_id": app.ID,
		"outcome":        string(outcome),
		"version":        app.Version,
		"request_id":     reqctx.RequestID(ctx),
	}
	if app.FinalScore != nil {
		fields["final_score"] = *app.FinalScore
	}
	telemetry.Info("scoring.aggregate", fields)
	return Result{Outcome: outcome, Application: app}
}

func (a *Aggregator) maxAttempts() int {
	if a.MaxAttempts > 0 {
		return a.MaxAttempts
	}
	return defaultMaxAttempts
}
