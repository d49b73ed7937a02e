package applications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hiring-backend/internal/jobs"
	"hiring-backend/internal/pipeline"
)

func seedApp(t *testing.T, repo Repo, id, jobID, candidateID string, created time.Time) Application {
	t.Helper()
	app := Application{
		ID:          id,
		JobID:       jobID,
		CandidateID: candidateID,
		Status:      pipeline.StatusApplied,
		CreatedAt:   created,
		UpdatedAt:   created,
		Version:     1,
	}
	require.NoError(t, repo.Create(context.Background(), app))
	return app
}

func TestMemoryRepoRejectsDuplicatePair(t *testing.T) {
	repo := NewMemoryRepo(nil)
	now := time.Now().UTC()
	seedApp(t, repo, "app-1", "job-1", "cand-1", now)

	err := repo.Create(context.Background(), Application{ID: "app-2", JobID: "job-1", CandidateID: "cand-1", Status: pipeline.StatusApplied, Version: 1})
	assert.ErrorIs(t, err, pipeline.ErrDuplicate)

	seedApp(t, repo, "app-3", "job-2", "cand-1", now)
}

func TestMemoryRepoCommitVersionGuard(t *testing.T) {
	repo := NewMemoryRepo(nil)
	ctx := context.Background()
	app := seedApp(t, repo, "app-1", "job-1", "cand-1", time.Now().UTC())

	next := app
	next.Status = pipeline.StatusInterviewInvited
	stored, err := repo.Commit(ctx, Mutation{Next: next, ExpectedVersion: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)

	_, err = repo.Commit(ctx, Mutation{Next: next, ExpectedVersion: 1})
	assert.ErrorIs(t, err, pipeline.ErrConflict)

	_, err = repo.Commit(ctx, Mutation{Next: Application{ID: "missing", Status: pipeline.StatusApplied}, ExpectedVersion: 1})
	assert.ErrorIs(t, err, pipeline.ErrNotFound)
}

func TestMemoryRepoCommitRejectsBrokenInvariants(t *testing.T) {
	repo := NewMemoryRepo(nil)
	app := seedApp(t, repo, "app-1", "job-1", "cand-1", time.Now().UTC())

	score := 80.0
	next := app
	next.FinalScore = &score
	_, err := repo.Commit(context.Background(), Mutation{Next: next, ExpectedVersion: 1})
	assert.ErrorIs(t, err, pipeline.ErrValidation)

	stored, err := repo.GetByID(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

func TestMemoryRepoSessionsAndEvents(t *testing.T) {
	jobRepo := jobs.NewMemoryRepo()
	ctx := context.Background()
	require.NoError(t, jobRepo.Create(ctx, jobs.Job{ID: "job-1", HostID: "host-1", Title: "SRE", Questions: []string{"q"}, Status: jobs.StatusOpen}))
	repo := NewMemoryRepo(jobRepo)
	app := seedApp(t, repo, "app-1", "job-1", "cand-1", time.Now().UTC())

	next := app
	next.Status = pipeline.StatusInterviewInProgress
	next.SessionID = "sess-1"
	stored, err := repo.Commit(ctx, Mutation{Next: next, ExpectedVersion: 1, NewSession: true})
	require.NoError(t, err)

	bySession, err := repo.GetBySessionID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "app-1", bySession.ID)

	_, err = repo.Commit(ctx, Mutation{Next: stored, ExpectedVersion: stored.Version, NewSession: true})
	assert.ErrorIs(t, err, pipeline.ErrDuplicate, "session ids are registered once")

	score := 75.0
	done := stored
	done.Status = pipeline.StatusInterviewCompleted
	done.VoiceInterviewCompleted = true
	done.VoiceInterviewScore = &score
	key := EventKey{SessionID: "sess-1", EventType: "interview.completed"}
	_, err = repo.Commit(ctx, Mutation{Next: done, ExpectedVersion: stored.Version, Event: &key, CountInterview: true})
	require.NoError(t, err)

	seen, err := repo.HasEvent(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)

	_, err = repo.Commit(ctx, Mutation{Next: done, ExpectedVersion: stored.Version + 1, Event: &key, CountInterview: true})
	assert.ErrorIs(t, err, pipeline.ErrDuplicateEvent)

	job, err := jobRepo.GetByID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), job.CompletedInterviews, "replays do not count twice")

	assert.ErrorIs(t, repo.RecordEvent(ctx, "app-1", key), pipeline.ErrDuplicateEvent)
}

func TestMemoryRepoListFilters(t *testing.T) {
	repo := NewMemoryRepo(nil)
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	seedApp(t, repo, "app-1", "job-1", "cand-1", base)
	seedApp(t, repo, "app-2", "job-1", "cand-2", base.Add(time.Hour))
	seedApp(t, repo, "app-3", "job-2", "cand-1", base.Add(2*time.Hour))

	list, err := repo.List(context.Background(), ListFilter{JobID: "job-1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "app-2", list[0].ID, "newest first")

	list, err = repo.List(context.Background(), ListFilter{CandidateID: "cand-1", CreatedBefore: base.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "app-1", list[0].ID)

	list, err = repo.List(context.Background(), ListFilter{Statuses: []pipeline.Status{pipeline.StatusHired}})
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = repo.List(context.Background(), ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "app-2", list[0].ID)
}

func TestMemoryRepoHonorsCancelledContext(t *testing.T) {
	repo := NewMemoryRepo(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := repo.GetByID(ctx, "app-1")
	assert.ErrorIs(t, err, context.Canceled)
}
