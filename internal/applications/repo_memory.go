package applications

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"hiring-backend/internal/pipeline"
)

// JobCounter is the slice of the job catalog the store needs to bump the
// completed-interview counter.
type JobCounter interface {
	IncrementCompletedInterviews(ctx context.Context, jobID string) error
}

// MemoryRepo is an in-memory implementation of Repo. One mutex makes every
// Commit atomic, including the job counter bump.
type MemoryRepo struct {
	mu       sync.RWMutex
	apps     map[string]Application
	byPair   map[string]string
	sessions map[string]string
	events   map[EventKey]string
	jobs     JobCounter
	now      func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo. jobs may be nil when no caller sets
// Mutation.CountInterview.
func NewMemoryRepo(jobs JobCounter) *MemoryRepo {
	return &MemoryRepo{
		apps:     make(map[string]Application),
		byPair:   make(map[string]string),
		sessions: make(map[string]string),
		events:   make(map[EventKey]string),
		jobs:     jobs,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func pairKey(jobID, candidateID string) string {
	return jobID + "\x00" + candidateID
}

// Create stores a new application.
func (r *MemoryRepo) Create(ctx context.Context, app Application) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := app.CheckInvariants(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey(app.JobID, app.CandidateID)
	if _, ok := r.byPair[key]; ok {
		return fmt.Errorf("%w: application for job %s and candidate %s", pipeline.ErrDuplicate, app.JobID, app.CandidateID)
	}
	if _, ok := r.apps[app.ID]; ok {
		return fmt.Errorf("%w: application %s", pipeline.ErrDuplicate, app.ID)
	}
	r.apps[app.ID] = clone(app)
	r.byPair[key] = app.ID
	return nil
}

// GetByID returns an application by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Application, error) {
	if err := ctx.Err(); err != nil {
		return Application{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.apps[id]
	if !ok {
		return Application{}, fmt.Errorf("%w: application %s", pipeline.ErrNotFound, id)
	}
	return clone(app), nil
}

// GetBySessionID resolves a session to its application.
func (r *MemoryRepo) GetBySessionID(ctx context.Context, sessionID string) (Application, error) {
	if err := ctx.Err(); err != nil {
		return Application{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.sessions[sessionID]
	if !ok {
		return Application{}, fmt.Errorf("%w: session %s", pipeline.ErrNotFound, sessionID)
	}
	return clone(r.apps[id]), nil
}

// List returns applications newest first.
func (r *MemoryRepo) List(ctx context.Context, filter ListFilter) ([]Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter = filter.Normalize()

	r.mu.RLock()
	out := make([]Application, 0)
	for _, app := range r.apps {
		if filter.matches(app) {
			out = append(out, clone(app))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Offset >= len(out) {
		return []Application{}, nil
	}
	end := len(out)
	if filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return out[filter.Offset:end], nil
}

// Commit applies m atomically.
func (r *MemoryRepo) Commit(ctx context.Context, m Mutation) (Application, error) {
	if err := ctx.Err(); err != nil {
		return Application{}, err
	}
	if err := m.Next.CheckInvariants(); err != nil {
		return Application{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := m.Next.ID
	if m.Event != nil {
		if _, seen := r.events[*m.Event]; seen {
			return Application{}, fmt.Errorf("%w: %s/%s", pipeline.ErrDuplicateEvent, m.Event.SessionID, m.Event.EventType)
		}
	}
	current, ok := r.apps[id]
	if !ok {
		return Application{}, fmt.Errorf("%w: application %s", pipeline.ErrNotFound, id)
	}
	if current.Version != m.ExpectedVersion {
		return Application{}, fmt.Errorf("%w: application %s stored version %d, expected %d", pipeline.ErrConflict, id, current.Version, m.ExpectedVersion)
	}
	if m.NewSession {
		if owner, taken := r.sessions[m.Next.SessionID]; taken || m.Next.SessionID == "" {
			return Application{}, fmt.Errorf("%w: session %q already registered to %s", pipeline.ErrDuplicate, m.Next.SessionID, owner)
		}
	}
	if m.CountInterview {
		if r.jobs == nil {
			return Application{}, fmt.Errorf("%w: no job counter configured", pipeline.ErrPersistence)
		}
		if err := r.jobs.IncrementCompletedInterviews(ctx, current.JobID); err != nil {
			return Application{}, err
		}
	}

	next := clone(m.Next)
	next.JobID = current.JobID
	next.CandidateID = current.CandidateID
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version + 1
	next.UpdatedAt = r.now()
	r.apps[id] = next
	if m.NewSession {
		r.sessions[next.SessionID] = id
	}
	if m.Event != nil {
		r.events[*m.Event] = id
	}
	return clone(next), nil
}

// RecordEvent writes a ledger entry on its own.
func (r *MemoryRepo) RecordEvent(ctx context.Context, applicationID string, key EventKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.events[key]; seen {
		return fmt.Errorf("%w: %s/%s", pipeline.ErrDuplicateEvent, key.SessionID, key.EventType)
	}
	r.events[key] = applicationID
	return nil
}

// HasEvent reports whether key was already recorded.
func (r *MemoryRepo) HasEvent(ctx context.Context, key EventKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, seen := r.events[key]
	return seen, nil
}

func clone(app Application) Application {
	app.VoiceInterviewScore = cloneFloat(app.VoiceInterviewScore)
	app.ResumeMatchScore = cloneFloat(app.ResumeMatchScore)
	app.FinalScore = cloneFloat(app.FinalScore)
	app.InterviewStartedAt = cloneTime(app.InterviewStartedAt)
	app.InterviewCompletedAt = cloneTime(app.InterviewCompletedAt)
	return app
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

var _ Repo = (*MemoryRepo)(nil)
