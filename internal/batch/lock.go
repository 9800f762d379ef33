package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SweepLock serializes sweep runs across processes. Losing the lock is safe:
// sweeps are idempotent under the processed flag, the lock only avoids wasted
// duplicate passes.
type SweepLock interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

const sweepLockKey = "chatbatch:sweep:lock"

// compare-and-delete so an expired holder cannot release a successor's lock
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisSweepLock is a best-effort SETNX lock with a TTL.
type RedisSweepLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

func NewRedisSweepLock(client *redis.Client, ttl time.Duration) *RedisSweepLock {
	if client == nil {
		panic("batch: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisSweepLock{
		client: client,
		key:    sweepLockKey,
		ttl:    ttl,
		token:  uuid.NewString(),
	}
}

// TryLock attempts to take the lock without blocking.
func (l *RedisSweepLock) TryLock(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("batch: acquire sweep lock: %w", err)
	}
	return ok, nil
}

// Unlock releases the lock if this instance still holds it.
func (l *RedisSweepLock) Unlock(ctx context.Context) error {
	if err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("batch: release sweep lock: %w", err)
	}
	return nil
}
