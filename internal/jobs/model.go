package jobs

import "time"

// Status is the publication state of a job.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// ScoreWeights overrides the default final-score blend for one job.
type ScoreWeights struct {
	Interview float64 `json:"interview"`
	Resume    float64 `json:"resume"`
}

// Job is a position a host publishes and candidates apply to.
type Job struct {
	ID          string
	HostID      string
	Title       string
	Description string
	Questions   []string
	Status      Status
	Weights     *ScoreWeights
	// CompletedInterviews only grows; the webhook reconciler bumps it in
	// the same write that completes an interview.
	CompletedInterviews int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ListFilter selects jobs. Zero values mean "any".
type ListFilter struct {
	// HostID restricts results to jobs owned by one host.
	HostID string
	// Status restricts results to one publication state.
	Status Status
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
