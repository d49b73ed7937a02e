package webhooks

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"hiring-backend/internal/applications"
)

// Ledger is a fast-path cache of events already reconciled. The durable
// record is the application store's event table; a miss here is never
// trusted on its own.
type Ledger interface {
	Seen(ctx context.Context, key applications.EventKey) (bool, error)
	Mark(ctx context.Context, key applications.EventKey) error
}

// MemoryLedger keeps marks in process memory for a bounded time. Mark sweeps
// expired entries at most every half ttl.
type MemoryLedger struct {
	mu        sync.Mutex
	ttl       time.Duration
	marks     map[applications.EventKey]time.Time
	nextSweep time.Time
	now       func() time.Time
}

// NewMemoryLedger constructs a MemoryLedger.
func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	return &MemoryLedger{
		ttl:   ttl,
		marks: make(map[applications.EventKey]time.Time),
		now:   time.Now,
	}
}

// Seen implements Ledger.
func (l *MemoryLedger) Seen(ctx context.Context, key applications.EventKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	expires, ok := l.marks[key]
	if !ok {
		return false, nil
	}
	if l.ttl > 0 && !l.now().Before(expires) {
		delete(l.marks, key)
		return false, nil
	}
	return true, nil
}

// Mark implements Ledger.
func (l *MemoryLedger) Mark(ctx context.Context, key applications.EventKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if l.ttl > 0 && !now.Before(l.nextSweep) {
		for k, expires := range l.marks {
			if !now.Before(expires) {
				delete(l.marks, k)
			}
		}
		l.nextSweep = now.Add(l.ttl / 2)
	}
	l.marks[key] = now.Add(l.ttl)
	return nil
}

// RedisLedger shares marks across API replicas.
type RedisLedger struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

// NewRedisLedger constructs a RedisLedger.
func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{Client: client, TTL: ttl, Prefix: "webhook:event:"}
}

func (l *RedisLedger) key(k applications.EventKey) string {
	return l.Prefix + k.SessionID + ":" + k.EventType
}

// Seen implements Ledger.
func (l *RedisLedger) Seen(ctx context.Context, key applications.EventKey) (bool, error) {
	n, err := l.Client.Exists(ctx, l.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark implements Ledger. SET NX keeps the first mark's expiry.
func (l *RedisLedger) Mark(ctx context.Context, key applications.EventKey) error {
	return l.Client.SetNX(ctx, l.key(key), time.Now().UTC().Format(time.RFC3339), l.TTL).Err()
}

var (
	_ Ledger = (*MemoryLedger)(nil)
	_ Ledger = (*RedisLedger)(nil)
)
