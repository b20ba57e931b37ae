// Package lock provides a Redis-backed mutual exclusion lock.
//
// Lock:   SET key value NX PX ttl
// Unlock: a Lua script deletes the key only if it still holds our value, so
// a holder whose lease expired cannot release the next holder's lock.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var ErrLockFailed = errors.New("failed to acquire distributed lock")

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // identifies the holder
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

func (l *DistributedLock) Key() string {
	return l.key
}

// TryLock makes a single non-blocking attempt.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock retries TryLock every retryInterval, at most maxRetries times.
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return fmt.Errorf("%w: %s", ErrLockFailed, l.key)
}

// Unlock releases the lock if this holder still owns it.
func (l *DistributedLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}

// NewAssignLock serialises code (re)assignment per employee across
// instances. The value is random so each caller only releases its own lease.
func NewAssignLock(client *redis.Client, employeeID string) *DistributedLock {
	key := fmt.Sprintf("gomonate:lock:assign:%s", employeeID)
	return NewDistributedLock(client, key, uuid.NewString(), 30*time.Second)
}
