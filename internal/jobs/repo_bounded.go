package jobs

import (
	"context"
	"time"

	"hiring-backend/internal/pipeline"
)

// Bounded wraps repo so each call runs under timeout. A non-positive timeout
// returns repo as is.
func Bounded(repo Repo, timeout time.Duration) Repo {
	if timeout <= 0 {
		return repo
	}
	return &boundedRepo{next: repo, timeout: timeout}
}

type boundedRepo struct {
	next    Repo
	timeout time.Duration
}

func (b *boundedRepo) Create(ctx context.Context, job Job) error {
	return pipeline.Bounded(ctx, b.timeout, func(ctx context.Context) error {
		return b.next.Create(ctx, job)
	})
}

func (b *boundedRepo) GetByID(ctx context.Context, id string) (job Job, err error) {
	err = pipeline.Bounded(ctx, b.timeout, func(ctx context.Context) error {
		job, err = b.next.GetByID(ctx, id)
		return err
	})
	return job, err
}

func (b *boundedRepo) List(ctx context.Context, filter ListFilter) (list []Job, err error) {
	err = pipeline.Bounded(ctx, b.timeout, func(ctx context.Context) error {
		list, err = b.next.List(ctx, filter)
		return err
	})
	return list, err
}

func (b *boundedRepo) UpdateStatus(ctx context.Context, id string, from, to Status) (job Job, err error) {
	err = pipeline.Bounded(ctx, b.timeout, func(ctx context.Context) error {
		job, err = b.next.UpdateStatus(ctx, id, from, to)
		return err
	})
	return job, err
}

func (b *boundedRepo) IncrementCompletedInterviews(ctx context.Context, id string) error {
	return pipeline.Bounded(ctx, b.timeout, func(ctx context.Context) error {
		return b.next.IncrementCompletedInterviews(ctx, id)
	})
}
