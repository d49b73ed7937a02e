package bootstrap

import (
	"context"
	"time"

	"hiring-backend/internal/interviews"
	"hiring-backend/internal/queue"
	"hiring-backend/internal/scoring"
	"hiring-backend/internal/shared/reqctx"
	"hiring-backend/internal/shared/telemetry"
)

// queueScheduler hands new applications to the worker.
type queueScheduler struct {
	queue queue.Client
	now   func() time.Time
}

func (s queueScheduler) ScheduleInterview(ctx context.Context, applicationID string) error {
	return s.queue.Send(ctx, queue.NewMessage(queue.KindStartSession, applicationID, reqctx.RequestID(ctx), clock(s.now)))
}

// inlineScheduler starts the session in the background of the API process.
// Failures leave the application in applied for the candidate to retry.
type inlineScheduler struct {
	starter interface {
		StartSession(ctx context.Context, in interviews.StartInput) (interviews.StartResult, error)
	}
}

func (s inlineScheduler) ScheduleInterview(ctx context.Context, applicationID string) error {
	bg := reqctx.Background(ctx)
	go func() {
		if _, err := s.starter.StartSession(bg, interviews.StartInput{ApplicationID: applicationID}); err != nil {
			telemetry.Warn("interview.schedule_failed", map[string]any{
				"application_id": applicationID,
				"request_id":     reqctx.RequestID(bg),
				"error":          err.Error(),
			})
		}
	}()
	return nil
}

// queueScorer defers aggregation to the worker, running it inline when the
// queue rejects the message.
type queueScorer struct {
	queue    queue.Client
	fallback interface {
		ComputeFinalScore(ctx context.Context, applicationID string) (scoring.Result, error)
	}
	now func() time.Time
}

func (s queueScorer) ComputeFinalScore(ctx context.Context, applicationID string) (scoring.Result, error) {
	msg := queue.NewMessage(queue.KindAggregateScore, applicationID, reqctx.RequestID(ctx), clock(s.now))
	if err := s.queue.Send(ctx, msg); err != nil {
		telemetry.Warn("scoring.enqueue_failed", map[string]any{
			"application_id": applicationID,
			"error":          err.Error(),
		})
		return s.fallback.ComputeFinalScore(ctx, applicationID)
	}
	return scoring.Result{Outcome: scoring.OutcomeDeferred}, nil
}

func clock(now func() time.Time) time.Time {
	if now != nil {
		return now()
	}
	return time.Now().UTC()
}
