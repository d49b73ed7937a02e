package applications

import (
	"context"
	"time"

	"hiring-backend/internal/pipeline"
)

// Bounded wraps repo so every call runs under a persistence deadline of
// timeout; a non-positive timeout returns repo as is.
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

func (b *boundedRepo) Create(ctx context.Context, app Application) error {
	return pipeline.Bounded(ctx, b.timeout, func(ctx context.Context) error {
		return b.next.Create(ctx, app)
	})
}

func (b *boundedRepo) GetByID(ctx context.Context, id string) (app Application, err error) {
	err = pipeline.Bounded(ctx, b.timeout, func(ctx context.Context) error {
		app, err = b.next.GetByID(ctx, id)
		return err
	})
	return app, err
}

func (b *boundedRepo) GetBySessionID(ctx context.Context, sessionID string) (app Application, err error) {
	err = pipeline.Bounded(ctx, b.timeout, func(ctx context.Context) error {
		app, err = b.next.GetBySessionID(ctx, sessionID)
		return err
	})
	return app, err
}

func (b *boundedRepo) List(ctx context.Context, filter ListFilter) (apps []Application, err error) {
	err = pipeline.Bounded(ctx, b.timeout, func(ctx context.Context) error {
		apps, err = b.next.List(ctx, filter)
		return err
	})
	return apps, err
}

func (b *boundedRepo) Commit(ctx context.Context, m Mutation) (app Application, err error) {
	err = pipeline.Bounded(ctx, b.timeout, func(ctx context.Context) error {
		app, err = b.next.Commit(ctx, m)
		return err
	})
	return app, err
}

func (b *boundedRepo) RecordEvent(ctx context.Context, applicationID string, key EventKey) error {
	return pipeline.Bounded(ctx, b.timeout, func(ctx context.Context) error {
		return b.next.RecordEvent(ctx, applicationID, key)
	})
}

func (b *boundedRepo) HasEvent(ctx context.Context, key EventKey) (seen bool, err error) {
	err = pipeline.Bounded(ctx, b.timeout, func(ctx context.Context) error {
		seen, err = b.next.HasEvent(ctx, key)
		return err
	})
	return seen, err
}
