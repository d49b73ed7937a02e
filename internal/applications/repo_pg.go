package applications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hiring-backend/internal/jobs"
	"hiring-backend/internal/pipeline"
	"hiring-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB  *sql.DB
	Now func() time.Time
}

const appColumns = `a.id, a.job_id, a.candidate_id, a.status, a.session_id, a.voice_interview_completed,
    a.voice_interview_score, a.resume_match_score, a.final_score, a.transcript_summary, a.interview_outcome,
    a.interview_failures, a.interview_retryable, a.interview_started_at, a.interview_completed_at,
    a.created_at, a.updated_at, a.version`

// Create inserts a new application.
func (r *PGRepo) Create(ctx context.Context, app Application) error {
	if err := app.CheckInvariants(); err != nil {
		return err
	}
	const query = `
INSERT INTO applications (
    id,
    job_id,
    candidate_id,
    status,
    version,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $6)`

	_, err := r.DB.ExecContext(ctx, query,
		app.ID,
		app.JobID,
		app.CandidateID,
		string(app.Status),
		app.Version,
		app.CreatedAt,
	)
	return db.MapError(err, "insert application")
}

// GetByID fetches an application by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Application, error) {
	query := `SELECT ` + appColumns + ` FROM applications a WHERE a.id = $1`
	app, err := scanApplication(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Application{}, fmt.Errorf("%w: application %s", pipeline.ErrNotFound, id)
		}
		return Application{}, db.MapError(err, "select application")
	}
	return app, nil
}

// GetBySessionID resolves a session through the session index.
func (r *PGRepo) GetBySessionID(ctx context.Context, sessionID string) (Application, error) {
	query := `SELECT ` + appColumns + `
FROM interview_sessions s
JOIN applications a ON a.id = s.application_id
WHERE s.session_id = $1`
	app, err := scanApplication(r.DB.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Application{}, fmt.Errorf("%w: session %s", pipeline.ErrNotFound, sessionID)
		}
		return Application{}, db.MapError(err, "select application by session")
	}
	return app, nil
}

// List returns applications newest first.
func (r *PGRepo) List(ctx context.Context, filter ListFilter) ([]Application, error) {
	filter = filter.Normalize()

	var where db.Where
	if filter.JobID != "" {
		where.Eq("a.job_id", filter.JobID)
	}
	if filter.CandidateID != "" {
		where.Eq("a.candidate_id", filter.CandidateID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		where.In("a.status", statuses)
	}
	if !filter.CreatedBefore.IsZero() {
		where.Lt("a.created_at", filter.CreatedBefore)
	}
	query := where.Page(`SELECT `+appColumns+` FROM applications a`+where.SQL()+` ORDER BY a.created_at DESC, a.id`, filter.Limit, filter.Offset)

	rows, err := r.DB.QueryContext(ctx, query, where.Args()...)
	if err != nil {
		return nil, db.MapError(err, "list applications")
	}
	defer rows.Close()

	out := []Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, db.MapError(err, "scan application")
		}
		out = append(out, app)
	}
	return out, db.MapError(rows.Err(), "list applications")
}

// Commit applies m in one transaction: ledger insert, version-guarded update,
// session registration, then the job counter bump.
func (r *PGRepo) Commit(ctx context.Context, m Mutation) (Application, error) {
	if err := m.Next.CheckInvariants(); err != nil {
		return Application{}, err
	}
	now := r.now()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Application{}, db.MapError(err, "begin commit")
	}
	defer func() { _ = tx.Rollback() }()

	next := m.Next
	if m.Event != nil {
		if err := insertEvent(ctx, tx, next.ID, *m.Event, now); err != nil {
			return Application{}, err
		}
	}

	const update = `
UPDATE applications
SET status = $1,
    session_id = $2,
    voice_interview_completed = $3,
    voice_interview_score = $4,
    resume_match_score = $5,
    final_score = $6,
    transcript_summary = $7,
    interview_outcome = $8,
    interview_failures = $9,
    interview_retryable = $10,
    interview_started_at = $11,
    interview_completed_at = $12,
    updated_at = $13,
    version = version + 1
WHERE id = $14 AND version = $15
RETURNING job_id, candidate_id, created_at, version`

	err = tx.QueryRowContext(ctx, update,
		string(next.Status),
		nullString(next.SessionID),
		next.VoiceInterviewCompleted,
		nullFloat(next.VoiceInterviewScore),
		nullFloat(next.ResumeMatchScore),
		nullFloat(next.FinalScore),
		next.TranscriptSummary,
		next.InterviewOutcome,
		next.InterviewFailures,
		next.InterviewRetryable,
		nullTime(next.InterviewStartedAt),
		nullTime(next.InterviewCompletedAt),
		now,
		next.ID,
		m.ExpectedVersion,
	).Scan(&next.JobID, &next.CandidateID, &next.CreatedAt, &next.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return Application{}, r.explainMiss(ctx, tx, next.ID, m.ExpectedVersion)
	}
	if err != nil {
		return Application{}, db.MapError(err, "update application")
	}
	next.UpdatedAt = now

	if m.NewSession {
		const insertSession = `INSERT INTO interview_sessions (session_id, application_id, created_at) VALUES ($1, $2, $3)`
		if _, err := tx.ExecContext(ctx, insertSession, next.SessionID, next.ID, now); err != nil {
			return Application{}, db.MapError(err, "insert interview session")
		}
	}
	if m.CountInterview {
		if err := jobs.IncrementCompletedInterviews(ctx, tx, next.JobID); err != nil {
			return Application{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Application{}, db.MapError(err, "commit application")
	}
	return next, nil
}

func (r *PGRepo) explainMiss(ctx context.Context, tx *sql.Tx, id string, expected int64) error {
	var stored int64
	err := tx.QueryRowContext(ctx, `SELECT version FROM applications WHERE id = $1`, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: application %s", pipeline.ErrNotFound, id)
	}
	if err != nil {
		return db.MapError(err, "select application version")
	}
	return fmt.Errorf("%w: application %s stored version %d, expected %d", pipeline.ErrConflict, id, stored, expected)
}

// RecordEvent writes a ledger entry on its own.
func (r *PGRepo) RecordEvent(ctx context.Context, applicationID string, key EventKey) error {
	return insertEvent(ctx, r.DB, applicationID, key, r.now())
}

// HasEvent reports whether key was already recorded.
func (r *PGRepo) HasEvent(ctx context.Context, key EventKey) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM interview_events WHERE session_id = $1 AND event_type = $2)`
	var exists bool
	if err := r.DB.QueryRowContext(ctx, query, key.SessionID, key.EventType).Scan(&exists); err != nil {
		return false, db.MapError(err, "select interview event")
	}
	return exists, nil
}

func insertEvent(ctx context.Context, ex jobs.Execer, applicationID string, key EventKey, now time.Time) error {
	const query = `
INSERT INTO interview_events (session_id, event_type, application_id, received_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (session_id, event_type) DO NOTHING`
	res, err := ex.ExecContext(ctx, query, key.SessionID, key.EventType, applicationID, now)
	if err != nil {
		return db.MapError(err, "insert interview event")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s/%s", pipeline.ErrDuplicateEvent, key.SessionID, key.EventType)
	}
	return nil
}

func (r *PGRepo) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (Application, error) {
	var app Application
	var status string
	var sessionID sql.NullString
	var voiceScore, resumeScore, finalScore sql.NullFloat64
	var startedAt, completedAt sql.NullTime
	if err := row.Scan(
		&app.ID,
		&app.JobID,
		&app.CandidateID,
		&status,
		&sessionID,
		&app.VoiceInterviewCompleted,
		&voiceScore,
		&resumeScore,
		&finalScore,
		&app.TranscriptSummary,
		&app.InterviewOutcome,
		&app.InterviewFailures,
		&app.InterviewRetryable,
		&startedAt,
		&completedAt,
		&app.CreatedAt,
		&app.UpdatedAt,
		&app.Version,
	); err != nil {
		return Application{}, err
	}
	app.Status = pipeline.Status(status)
	if sessionID.Valid {
		app.SessionID = sessionID.String
	}
	if voiceScore.Valid {
		app.VoiceInterviewScore = &voiceScore.Float64
	}
	if resumeScore.Valid {
		app.ResumeMatchScore = &resumeScore.Float64
	}
	if finalScore.Valid {
		app.FinalScore = &finalScore.Float64
	}
	if startedAt.Valid {
		app.InterviewStartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		app.InterviewCompletedAt = &completedAt.Time
	}
	return app, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

var _ Repo = (*PGRepo)(nil)
