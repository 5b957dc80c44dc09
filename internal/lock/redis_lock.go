// Package lock provides the per-(worker, check-type) advisory lock the
// orchestrator holds while a verification is in flight.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	lockPrefix = "verification:lock:"
	// lockTTL caps how long a crashed initiate can hold a key
	lockTTL = 2 * time.Minute
)

// RedisLocker implements single-flight locking with Redis SETNX
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker creates a locker on an existing Redis client
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire takes the lock for key, returning false when another caller
// already holds it
func (l *RedisLocker) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockPrefix+key, time.Now().Format(time.RFC3339), lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// Release frees the lock for key
func (l *RedisLocker) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, lockPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}
