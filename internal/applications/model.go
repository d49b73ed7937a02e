package applications

import (
	"fmt"
	"time"

	"hiring-backend/internal/pipeline"
)

// Application is one candidate's progress through one job's pipeline.
type Application struct {
	ID          string
	JobID       string
	CandidateID string
	Status      pipeline.Status
	// SessionID is the current interview session; earlier sessions stay
	// resolvable through the session index.
	SessionID               string
	VoiceInterviewCompleted bool
	VoiceInterviewScore     *float64
	ResumeMatchScore        *float64
	FinalScore              *float64
	TranscriptSummary       string
	InterviewOutcome        string
	InterviewFailures       int
	// InterviewRetryable marks an in-progress interview whose last session
	// failed or was cancelled, so a fresh session may be started.
	InterviewRetryable   bool
	InterviewStartedAt   *time.Time
	InterviewCompletedAt *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Version              int64
}

// CheckInvariants rejects states no writer may persist.
func (a Application) CheckInvariants() error {
	if !a.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", pipeline.ErrValidation, a.Status)
	}
	if a.FinalScore != nil && !a.VoiceInterviewCompleted {
		return fmt.Errorf("%w: final score without completed interview", pipeline.ErrValidation)
	}
	if a.VoiceInterviewScore != nil && !a.VoiceInterviewCompleted {
		return fmt.Errorf("%w: interview score without completed interview", pipeline.ErrValidation)
	}
	return nil
}

// EventKey identifies one provider event for deduplication.
type EventKey struct {
	SessionID string
	EventType string
}

// Mutation is a single atomic read-modify-write of an application.
type Mutation struct {
	// Next is the full desired state. Its Version and UpdatedAt are assigned
	// by the store.
	Next Application
	// ExpectedVersion must equal the stored version or the write is rejected
	// with pipeline.ErrConflict.
	ExpectedVersion int64
	// NewSession registers Next.SessionID in the session index.
	NewSession bool
	// Event, when set, is recorded in the idempotency ledger in the same
	// write; a replay fails with pipeline.ErrDuplicateEvent.
	Event *EventKey
	// CountInterview increments the owning job's completed-interview counter.
	CountInterview bool
}

// ListFilter selects applications. Zero values mean "any".
type ListFilter struct {
	// JobID restricts results to one job.
	JobID string
	// CandidateID restricts results to one candidate.
	CandidateID string
	// Statuses restricts results to any of the given statuses.
	Statuses []pipeline.Status
	// CreatedBefore keeps only applications created strictly before it.
	CreatedBefore time.Time
	// Limit caps the page size; normalized to 1..100, default 20.
	Limit int
	// Offset skips that many rows of the newest-first ordering.
	Offset int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Normalize clamps paging values.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func (f ListFilter) matches(a Application) bool {
	if f.JobID != "" && a.JobID != f.JobID {
		return false
	}
	if f.CandidateID != "" && a.CandidateID != f.CandidateID {
		return false
	}
	if !f.CreatedBefore.IsZero() && !a.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if a.Status == s {
			return true
		}
	}
	return false
}
