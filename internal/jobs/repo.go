package jobs

import "context"

// Repo defines persistence operations for jobs.
type Repo interface {
	Create(ctx context.Context, job Job) error
	GetByID(ctx context.Context, id string) (Job, error)
	List(ctx context.Context, filter ListFilter) ([]Job, error)
	// UpdateStatus moves a job from one status to another; it fails with
	// pipeline.ErrConflict if the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to Status) (Job, error)
	IncrementCompletedInterviews(ctx context.Context, id string) error
}
