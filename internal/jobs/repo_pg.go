package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hiring-backend/internal/pipeline"
	"hiring-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const jobColumns = `id, host_id, title, description, questions, status, interview_weight, resume_weight, completed_interviews, created_at, updated_at`

// Create inserts a new job.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO jobs (
    id,
    host_id,
    title,
    description,
    questions,
    status,
    interview_weight,
    resume_weight,
    completed_interviews,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $9)`

	questions, err := json.Marshal(job.Questions)
	if err != nil {
		return fmt.Errorf("%w: encode questions: %v", pipeline.ErrValidation, err)
	}
	var interviewWeight, resumeWeight sql.NullFloat64
	if job.Weights != nil {
		interviewWeight = sql.NullFloat64{Float64: job.Weights.Interview, Valid: true}
		resumeWeight = sql.NullFloat64{Float64: job.Weights.Resume, Valid: true}
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		job.ID,
		job.HostID,
		job.Title,
		job.Description,
		questions,
		string(job.Status),
		interviewWeight,
		resumeWeight,
		job.CreatedAt,
	)
	return db.MapError(err, "insert job")
}

// GetByID fetches a job by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	job, err := scanJob(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, fmt.Errorf("%w: job %s", pipeline.ErrNotFound, id)
		}
		return Job{}, db.MapError(err, "select job")
	}
	return job, nil
}

// List returns jobs newest first.
func (r *PGRepo) List(ctx context.Context, filter ListFilter) ([]Job, error) {
	filter = filter.Normalize()

	var where db.Where
	if filter.HostID != "" {
		where.Eq("host_id", filter.HostID)
	}
	if filter.Status != "" {
		where.Eq("status", string(filter.Status))
	}
	query := where.Page(`SELECT `+jobColumns+` FROM jobs`+where.SQL()+` ORDER BY created_at DESC, id`, filter.Limit, filter.Offset)

	rows, err := r.DB.QueryContext(ctx, query, where.Args()...)
	if err != nil {
		return nil, db.MapError(err, "list jobs")
	}
	defer rows.Close()

	out := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, db.MapError(err, "scan job")
		}
		out = append(out, job)
	}
	return out, db.MapError(rows.Err(), "list jobs")
}

// UpdateStatus performs a compare-and-set on the job status.
func (r *PGRepo) UpdateStatus(ctx context.Context, id string, from, to Status) (Job, error) {
	query := `
UPDATE jobs
SET status = $1, updated_at = $2
WHERE id = $3 AND status = $4
RETURNING ` + jobColumns

	job, err := scanJob(r.DB.QueryRowContext(ctx, query, string(to), time.Now().UTC(), id, string(from)))
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Job{}, db.MapError(err, "update job status")
	}
	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return Job{}, getErr
	}
	return Job{}, fmt.Errorf("%w: job %s is %s", pipeline.ErrConflict, id, current.Status)
}

// IncrementCompletedInterviews bumps the completed-interview counter.
func (r *PGRepo) IncrementCompletedInterviews(ctx context.Context, id string) error {
	return IncrementCompletedInterviews(ctx, r.DB, id)
}

// IncrementCompletedInterviews runs the counter update on ex so callers can
// place it inside their own transaction.
func IncrementCompletedInterviews(ctx context.Context, ex Execer, id string) error {
	const query = `UPDATE jobs SET completed_interviews = completed_interviews + 1 WHERE id = $1`
	res, err := ex.ExecContext(ctx, query, id)
	if err != nil {
		return db.MapError(err, "increment completed interviews")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: job %s", pipeline.ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var job Job
	var status string
	var questions []byte
	var interviewWeight, resumeWeight sql.NullFloat64
	if err := row.Scan(
		&job.ID,
		&job.HostID,
		&job.Title,
		&job.Description,
		&questions,
		&status,
		&interviewWeight,
		&resumeWeight,
		&job.CompletedInterviews,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return Job{}, err
	}
	job.Status = Status(status)
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &job.Questions); err != nil {
			return Job{}, fmt.Errorf("decode questions: %w", err)
		}
	}
	if interviewWeight.Valid && resumeWeight.Valid {
		job.Weights = &ScoreWeights{Interview: interviewWeight.Float64, Resume: resumeWeight.Float64}
	}
	return job, nil
}

var _ Repo = (*PGRepo)(nil)
