package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Handle wraps the Redis client with an explicit lifecycle.
type Handle struct {
	Client *redis.Client
}

// Open parses a redis:// URL, connects and pings.
func Open(ctx context.Context, rawURL string) (*Handle, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is empty")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 3 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 3 * time.Second
	}
	h := &Handle{Client: redis.NewClient(opts)}
	if err := h.Ping(ctx); err != nil {
		_ = h.Close()
		return nil, err
	}
	return h, nil
}

// Ping tests the Redis connection.
func (h *Handle) Ping(ctx context.Context) error {
	if h == nil || h.Client == nil {
		return fmt.Errorf("redis not configured")
	}
	if err := h.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (h *Handle) Close() error {
	if h == nil || h.Client == nil {
		return nil
	}
	return h.Client.Close()
}
