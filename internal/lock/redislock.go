// Package lock provides short-lived Redis mutexes. Checkout uses one per
// user so a double-submitted request fails fast instead of racing the first
// transaction to the inventory rows.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when the lock is owned by another caller.
var ErrHeld = errors.New("lock: already held")

// Locker acquires named locks with a fixed TTL. The TTL bounds how long a
// crashed holder can block others.
type Locker struct {
	R   *redis.Client
	TTL time.Duration
}

// Acquire takes the named lock or returns ErrHeld without waiting. The
// returned release func removes the lock only if this caller still owns it,
// so releasing after TTL expiry cannot delete a successor's lock.
func (l Locker) Acquire(ctx context.Context, key string) (func(), error) {
	if l.R == nil {
		return nil, errors.New("lock: redis client not configured")
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	token := uuid.NewString()
	ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}
	release := func() {
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`
		_ = l.R.Eval(context.Background(), script, []string{key}, token).Err()
	}
	return release, nil
}
