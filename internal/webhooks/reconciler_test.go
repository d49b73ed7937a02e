package webhooks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"hiring-backend/internal/applications"
	"hiring-backend/internal/jobs"
	"hiring-backend/internal/pipeline"
	"hiring-backend/internal/scoring"
	"hiring-backend/internal/shared/telemetry"
)

type env struct {
	rec    *Reconciler
	apps   *applications.MemoryRepo
	jobs   *jobs.MemoryRepo
	ledger *MemoryLedger
}

// newEnv seeds job-1 and app-1 with a live session S1.
func newEnv(t *testing.T, weights *jobs.ScoreWeights) env {
	t.Helper()
	ctx := context.Background()
	jobRepo := jobs.NewMemoryRepo()
	require.NoError(t, jobRepo.Create(ctx, jobs.Job{ID: "job-1", HostID: "host-1", Title: "SRE", Questions: []string{"q"}, Status: jobs.StatusOpen, Weights: weights}))
	appRepo := applications.NewMemoryRepo(jobRepo)
	app := applications.Application{
		ID: "app-1", JobID: "job-1", CandidateID: "cand-1",
		Status: pipeline.StatusApplied, Version: 1, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, appRepo.Create(ctx, app))
	started := time.Now().UTC()
	app.Status = pipeline.StatusInterviewInProgress
	app.SessionID = "S1"
	app.InterviewStartedAt = &started
	_, err := appRepo.Commit(ctx, applications.Mutation{Next: app, ExpectedVersion: 1, NewSession: true})
	require.NoError(t, err)

	ledger := NewMemoryLedger(time.Hour)
	agg := scoring.NewAggregator(appRepo, jobRepo, scoring.WeightedBlend{InterviewWeight: 0.7, ResumeWeight: 0.3})
	rec := NewReconciler(appRepo, ledger, agg, 3)
	rec.Sleep = func(context.Context, time.Duration) error { return nil }
	return env{rec: rec, apps: appRepo, jobs: jobRepo, ledger: ledger}
}

func (e env) app(t *testing.T) applications.Application {
	t.Helper()
	app, err := e.apps.GetByID(context.Background(), "app-1")
	require.NoError(t, err)
	return app
}

func (e env) completedInterviews(t *testing.T) int64 {
	t.Helper()
	job, err := e.jobs.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	return job.CompletedInterviews
}

func TestCompletionEventAppliesOnce(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	ev := EventCompleted{SessionID: "S1", Score: 82, TranscriptSummary: "good"}

	res, err := e.rec.Handle(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, "app-1", res.ApplicationID)

	after := e.app(t)
	assert.True(t, after.VoiceInterviewCompleted)
	require.NotNil(t, after.VoiceInterviewScore)
	assert.InDelta(t, 82, *after.VoiceInterviewScore, 0.001)
	assert.Equal(t, pipeline.StatusInterviewCompleted, after.Status, "resume score missing, aggregation defers")
	assert.Nil(t, after.FinalScore)
	require.NotNil(t, after.InterviewCompletedAt)
	assert.Equal(t, int64(1), e.completedInterviews(t))

	for i := 0; i < 4; i++ {
		res, err := e.rec.Handle(ctx, ev)
		require.NoError(t, err)
		assert.Equal(t, OutcomeDuplicate, res.Outcome)
	}
	assert.Equal(t, after, e.app(t))
	assert.Equal(t, int64(1), e.completedInterviews(t))
}

func TestCompletionReplayWithoutCacheHitsDurableLedger(t *testing.T) {
	e := newEnv(t, nil)
	e.rec.Ledger = nil
	ctx := context.Background()
	ev := EventCompleted{SessionID: "S1", Score: 70}

	_, err := e.rec.Handle(ctx, ev)
	require.NoError(t, err)
	res, err := e.rec.Handle(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Equal(t, int64(1), e.completedInterviews(t))
}

func TestCompletionTriggersAggregation(t *testing.T) {
	e := newEnv(t, &jobs.ScoreWeights{Interview: 1, Resume: 0})

	_, err := e.rec.Handle(context.Background(), EventCompleted{SessionID: "S1", Score: 82})
	require.NoError(t, err)

	after := e.app(t)
	assert.Equal(t, pipeline.StatusScored, after.Status)
	require.NotNil(t, after.FinalScore)
	assert.InDelta(t, 82, *after.FinalScore, 0.001)
}

func TestLateCompletionIsDuplicate(t *testing.T) {
	e := newEnv(t, nil)
	e.rec.Ledger = nil
	ctx := context.Background()

	score := 90.0
	app := e.app(t)
	next := app
	next.Status = pipeline.StatusInterviewCompleted
	next.VoiceInterviewCompleted = true
	next.VoiceInterviewScore = &score
	_, err := e.apps.Commit(ctx, applications.Mutation{Next: next, ExpectedVersion: app.Version})
	require.NoError(t, err)
	before := e.app(t)

	res, err := e.rec.Handle(ctx, EventCompleted{SessionID: "S1", Score: 10})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Equal(t, before, e.app(t))
	assert.Zero(t, e.completedInterviews(t))
}

func TestFailureBudget(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	res, err := e.rec.Handle(ctx, EventFailed{SessionID: "S1", Outcome: "no_answer"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	app := e.app(t)
	assert.Equal(t, 1, app.InterviewFailures)
	assert.True(t, app.InterviewRetryable)
	assert.Equal(t, pipeline.StatusInterviewInProgress, app.Status)
	assert.Nil(t, app.VoiceInterviewScore)

	for i, session := range []string{"S2", "S3"} {
		next := app
		next.SessionID = session
		next.InterviewRetryable = false
		app, err = e.apps.Commit(ctx, applications.Mutation{Next: next, ExpectedVersion: app.Version, NewSession: true})
		require.NoError(t, err)

		_, err = e.rec.Handle(ctx, EventFailed{SessionID: session})
		require.NoError(t, err)
		app = e.app(t)
		assert.Equal(t, i+2, app.InterviewFailures)
	}
	assert.Equal(t, pipeline.StatusExpired, app.Status)
	assert.False(t, app.InterviewRetryable)
	assert.Nil(t, app.FinalScore)
}

func TestCancelledKeepsFailureBudget(t *testing.T) {
	e := newEnv(t, nil)
	res, err := e.rec.Handle(context.Background(), EventCancelled{SessionID: "S1", Outcome: "candidate_hung_up"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)

	app := e.app(t)
	assert.True(t, app.InterviewRetryable)
	assert.Zero(t, app.InterviewFailures)
	assert.Equal(t, "candidate_hung_up", app.InterviewOutcome)
}

func TestSupersededSessionEventsAreIgnored(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	app := e.app(t)
	next := app
	next.SessionID = "S2"
	_, err := e.apps.Commit(ctx, applications.Mutation{Next: next, ExpectedVersion: app.Version, NewSession: true})
	require.NoError(t, err)
	before := e.app(t)

	res, err := e.rec.Handle(ctx, EventFailed{SessionID: "S1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)

	res, err = e.rec.Handle(ctx, EventCompleted{SessionID: "S1", Score: 50})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Equal(t, before, e.app(t))
}

func TestUnknownSessionIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := telemetry.SetLogger(zap.New(core))
	t.Cleanup(func() { telemetry.SetLogger(prev) })

	e := newEnv(t, nil)
	_, err := e.rec.Handle(context.Background(), EventCompleted{SessionID: "ghost", Score: 1})
	assert.ErrorIs(t, err, pipeline.ErrNotFound)

	entries := logs.FilterMessage("webhook.unresolved_session").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ghost", entries[0].ContextMap()["session_id"])
}

func TestConcurrentDeliveriesApplyOnce(t *testing.T) {
	e := newEnv(t, nil)
	e.rec.Ledger = nil
	ev := EventCompleted{SessionID: "S1", Score: 82}

	const deliveries = 10
	var wg sync.WaitGroup
	var applied, duplicates int64
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.rec.Handle(context.Background(), ev)
			if !assert.NoError(t, err) {
				return
			}
			switch res.Outcome {
			case OutcomeApplied:
				atomic.AddInt64(&applied, 1)
			case OutcomeDuplicate:
				atomic.AddInt64(&duplicates, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), applied)
	assert.Equal(t, int64(deliveries-1), duplicates)
	assert.Equal(t, int64(1), e.completedInterviews(t))
}

type flakyRepo struct {
	applications.Repo
	failures int32
}

func (f *flakyRepo) Commit(ctx context.Context, m applications.Mutation) (applications.Application, error) {
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return applications.Application{}, fmt.Errorf("%w: connection reset", pipeline.ErrPersistence)
	}
	return f.Repo.Commit(ctx, m)
}

func TestPersistenceErrorsAreRetried(t *testing.T) {
	e := newEnv(t, nil)
	e.rec.Apps = &flakyRepo{Repo: e.apps, failures: 2}

	res, err := e.rec.Handle(context.Background(), EventCompleted{SessionID: "S1", Score: 82})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, int64(1), e.completedInterviews(t))
}

func TestPersistenceErrorsSurfaceAfterBudget(t *testing.T) {
	e := newEnv(t, nil)
	e.rec.Apps = &flakyRepo{Repo: e.apps, failures: 10}

	_, err := e.rec.Handle(context.Background(), EventCompleted{SessionID: "S1", Score: 82})
	assert.ErrorIs(t, err, pipeline.ErrPersistence)

	seen, err := e.ledger.Seen(context.Background(), applications.EventKey{SessionID: "S1", EventType: TypeCompleted})
	require.NoError(t, err)
	assert.False(t, seen, "failed deliveries are not marked")
	assert.False(t, e.app(t).VoiceInterviewCompleted)
}

type busyRepo struct {
	applications.Repo
	commits int32
}

func (b *busyRepo) Commit(context.Context, applications.Mutation) (applications.Application, error) {
	atomic.AddInt32(&b.commits, 1)
	return applications.Application{}, fmt.Errorf("%w: stored version moved", pipeline.ErrConflict)
}

func TestExhaustedConflictsAreTransient(t *testing.T) {
	e := newEnv(t, nil)
	busy := &busyRepo{Repo: e.apps}
	e.rec.Apps = busy

	_, err := e.rec.Handle(context.Background(), EventCompleted{SessionID: "S1", Score: 82})
	assert.ErrorIs(t, err, pipeline.ErrPersistence)
	assert.NotErrorIs(t, err, pipeline.ErrConflict)
	assert.Equal(t, int32(defaultConflictRetries*defaultPersistenceRetries), atomic.LoadInt32(&busy.commits))
	assert.False(t, e.app(t).VoiceInterviewCompleted)
}

// flakyScorer fails its first calls and then delegates.
type flakyScorer struct {
	next     FinalScorer
	failures int32
	calls    int32
}

func (f *flakyScorer) ComputeFinalScore(ctx context.Context, id string) (scoring.Result, error) {
	atomic.AddInt32(&f.calls, 1)
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return scoring.Result{}, fmt.Errorf("%w: connection reset", pipeline.ErrPersistence)
	}
	return f.next.ComputeFinalScore(ctx, id)
}

func TestCompletionReplayRetriesFailedAggregation(t *testing.T) {
	e := newEnv(t, &jobs.ScoreWeights{Interview: 1, Resume: 0})
	scorer := &flakyScorer{next: e.rec.Scorer, failures: 1}
	e.rec.Scorer = scorer
	ctx := context.Background()
	ev := EventCompleted{SessionID: "S1", Score: 82}

	res, err := e.rec.Handle(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, pipeline.StatusInterviewCompleted, e.app(t).Status)
	assert.Nil(t, e.app(t).FinalScore)

	res, err = e.rec.Handle(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Equal(t, "app-1", res.ApplicationID)

	after := e.app(t)
	assert.Equal(t, pipeline.StatusScored, after.Status)
	require.NotNil(t, after.FinalScore)
	assert.InDelta(t, 82, *after.FinalScore, 0.001)

	res, err = e.rec.Handle(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Equal(t, int32(2), atomic.LoadInt32(&scorer.calls), "a scored application is not aggregated again")
	assert.Equal(t, after, e.app(t))
}

func TestCompletionReplayWithoutCacheRetriesAggregation(t *testing.T) {
	e := newEnv(t, &jobs.ScoreWeights{Interview: 1, Resume: 0})
	e.rec.Ledger = nil
	e.rec.Scorer = &flakyScorer{next: e.rec.Scorer, failures: 1}
	ctx := context.Background()
	ev := EventCompleted{SessionID: "S1", Score: 64}

	_, err := e.rec.Handle(ctx, ev)
	require.NoError(t, err)
	res, err := e.rec.Handle(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Equal(t, pipeline.StatusScored, e.app(t).Status)
	assert.Equal(t, int64(1), e.completedInterviews(t))
}

func TestOneFailurePerSession(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	res, err := e.rec.Handle(ctx, EventFailed{SessionID: "S1", EventType: TypeFailed, Outcome: "no_answer"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)

	res, err = e.rec.Handle(ctx, EventFailed{SessionID: "S1", EventType: TypeDropped, Outcome: "dropped"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)

	res, err = e.rec.Handle(ctx, EventCancelled{SessionID: "S1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)

	app := e.app(t)
	assert.Equal(t, 1, app.InterviewFailures)
	assert.Equal(t, "no_answer", app.InterviewOutcome)
	assert.True(t, app.InterviewRetryable)
}

type stalledRepo struct {
	applications.Repo
}

func (stalledRepo) GetBySessionID(ctx context.Context, sessionID string) (applications.Application, error) {
	<-ctx.Done()
	return applications.Application{}, ctx.Err()
}

func TestStalledStoreFailsWithinDeadline(t *testing.T) {
	e := newEnv(t, nil)
	e.rec.Apps = applications.Bounded(stalledRepo{Repo: e.apps}, 20*time.Millisecond)

	start := time.Now()
	_, err := e.rec.Handle(context.Background(), EventCompleted{SessionID: "S1", Score: 82})
	assert.ErrorIs(t, err, pipeline.ErrPersistence)
	assert.Less(t, time.Since(start), 2*time.Second)
}
