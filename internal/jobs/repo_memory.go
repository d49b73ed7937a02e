package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"hiring-backend/internal/pipeline"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Job
	now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string]Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new job.
func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[job.ID]; ok {
		return fmt.Errorf("%w: job %s", pipeline.ErrDuplicate, job.ID)
	}
	r.data[job.ID] = clone(job)
	return nil
}

// GetByID returns a job by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.data[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: job %s", pipeline.ErrNotFound, id)
	}
	return clone(job), nil
}

// List returns jobs newest first.
func (r *MemoryRepo) List(ctx context.Context, filter ListFilter) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter = filter.Normalize()

	r.mu.RLock()
	out := make([]Job, 0, len(r.data))
	for _, job := range r.data {
		if filter.HostID != "" && job.HostID != filter.HostID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		out = append(out, clone(job))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Offset >= len(out) {
		return []Job{}, nil
	}
	end := len(out)
	if filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return out[filter.Offset:end], nil
}

// UpdateStatus performs a compare-and-set on the job status.
func (r *MemoryRepo) UpdateStatus(ctx context.Context, id string, from, to Status) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.data[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: job %s", pipeline.ErrNotFound, id)
	}
	if job.Status != from {
		return Job{}, fmt.Errorf("%w: job %s is %s", pipeline.ErrConflict, id, job.Status)
	}
	job.Status = to
	job.UpdatedAt = r.now()
	r.data[id] = job
	return clone(job), nil
}

// IncrementCompletedInterviews bumps the completed-interview counter.
func (r *MemoryRepo) IncrementCompletedInterviews(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.data[id]
	if !ok {
		return fmt.Errorf("%w: job %s", pipeline.ErrNotFound, id)
	}
	job.CompletedInterviews++
	r.data[id] = job
	return nil
}

func clone(job Job) Job {
	if job.Questions != nil {
		job.Questions = append([]string(nil), job.Questions...)
	}
	if job.Weights != nil {
		w := *job.Weights
		job.Weights = &w
	}
	return job
}

var _ Repo = (*MemoryRepo)(nil)
