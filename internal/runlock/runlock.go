package runlock

import (
	"context"
	"sync"
	"time"

	"oracle/internal/adapters/redis"
)

// Locker guards report generation: at most one run per report type at a
// time. Acquire returns false when the lock is already held; the caller
// skips, it never queues.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Local is an in-process locker for single-instance deployments and tests
type Local struct {
	mu    sync.Mutex
	held  map[string]time.Time // key -> expiry
	clock func() time.Time
}

// NewLocal creates an in-process locker
func NewLocal() *Local {
	return &Local{held: make(map[string]time.Time), clock: time.Now}
}

// Acquire implements Locker. An expired lock is treated as free: a crashed
// run must not wedge its report type forever.
func (l *Local) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expiry, ok := l.held[key]; ok && expiry.After(now) {
		return false, nil
	}
	l.held[key] = now.Add(ttl)
	return true, nil
}

// Release implements Locker
func (l *Local) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// Redis is a distributed locker backed by SET NX, for deployments running
// more than one instance against the same store
type Redis struct {
	client *redis.Client
}

// NewRedis creates a redis-backed locker
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Acquire implements Locker
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.AcquireLock(ctx, key, ttl)
}

// Release implements Locker
func (r *Redis) Release(ctx context.Context, key string) error {
	return r.client.ReleaseLock(ctx, key)
}
