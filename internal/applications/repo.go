package applications

import "context"

// Repo defines persistence operations for applications.
type Repo interface {
	// Create stores a new application; a second one for the same job and
	// candidate fails with pipeline.ErrDuplicate.
	Create(ctx context.Context, app Application) error
	GetByID(ctx context.Context, id string) (Application, error)
	// GetBySessionID resolves any session ever started for an application.
	GetBySessionID(ctx context.Context, sessionID string) (Application, error)
	List(ctx context.Context, filter ListFilter) ([]Application, error)
	// Commit applies m atomically and returns the stored application.
	Commit(ctx context.Context, m Mutation) (Application, error)
	// RecordEvent writes an idempotency ledger entry without touching the
	// application; a replay fails with pipeline.ErrDuplicateEvent.
	RecordEvent(ctx context.Context, applicationID string, key EventKey) error
	HasEvent(ctx context.Context, key EventKey) (bool, error)
}
