package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hiring-backend/internal/pipeline"
)

var jobRowColumns = []string{"id", "host_id", "title", "description", "questions", "status", "interview_weight", "resume_weight", "completed_interviews", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return &PGRepo{DB: sqlDB}, mock
}

func TestPGRepoCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := Job{
		ID:        "job-1",
		HostID:    "host-1",
		Title:     "Backend Engineer",
		Questions: []string{"Tell me about a hard bug."},
		Status:    StatusDraft,
		Weights:   &ScoreWeights{Interview: 0.6, Resume: 0.4},
		CreatedAt: now,
	}

	mock.ExpectExec("INSERT INTO jobs").
		WithArgs("job-1", "host-1", "Backend Engineer", "", sqlmock.AnyArg(), "draft", 0.6, 0.4, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM jobs WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(jobRowColumns))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, pipeline.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoGetByIDDecodesRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM jobs WHERE id = \\$1").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows(jobRowColumns).
			AddRow("job-1", "host-1", "SRE", "desc", []byte(`["q1","q2"]`), "open", nil, nil, int64(4), now, now))

	job, err := repo.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, job.Status)
	assert.Equal(t, []string{"q1", "q2"}, job.Questions)
	assert.Nil(t, job.Weights)
	assert.Equal(t, int64(4), job.CompletedInterviews)
}

func TestPGRepoListBuildsFilter(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM jobs WHERE host_id = \\$1 AND status = \\$2 ORDER BY created_at DESC, id LIMIT \\$3 OFFSET \\$4").
		WithArgs("host-1", "open", 10, 5).
		WillReturnRows(sqlmock.NewRows(jobRowColumns))

	list, err := repo.List(context.Background(), ListFilter{HostID: "host-1", Status: StatusOpen, Limit: 10, Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoUpdateStatusConflict(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery("UPDATE jobs").
		WithArgs("open", sqlmock.AnyArg(), "job-1", "draft").
		WillReturnRows(sqlmock.NewRows(jobRowColumns))
	mock.ExpectQuery("SELECT (.+) FROM jobs WHERE id = \\$1").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows(jobRowColumns).
			AddRow("job-1", "host-1", "SRE", "", []byte(`["q"]`), "closed", nil, nil, int64(0), now, now))

	_, err := repo.UpdateStatus(context.Background(), "job-1", StatusDraft, StatusOpen)
	assert.ErrorIs(t, err, pipeline.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementCompletedInterviewsMissingJob(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE jobs SET completed_interviews = completed_interviews \\+ 1").
		WithArgs("job-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.IncrementCompletedInterviews(context.Background(), "job-9")
	assert.ErrorIs(t, err, pipeline.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
