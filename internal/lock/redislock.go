package lock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned by TryLock when another holder owns the key.
var ErrNotAcquired = errors.New("lock: already held")

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`

// Locker provides Redis-backed per-key mutual exclusion across replicas.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
	// Prefix namespaces every key, e.g. "lock:".
	Prefix string
}

// SessionKey builds the lock key guarding one session's resource.
func SessionKey(sessionID, resource string) string {
	return resource + ":" + sessionID
}

func (l Locker) key(key string) string {
	prefix := l.Prefix
	if prefix == "" {
		prefix = "lock:"
	}
	return prefix + key
}

// WithLock executes fn while holding a lock for the provided key, waiting for
// the current holder if needed. The lock is released even if fn returns an
// error. When the lock cannot be acquired before ctx is done ctx.Err() is returned.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	full := l.key(key)
	token := uuid.NewString()
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}

	for {
		ok, err := l.R.SetNX(ctx, full, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			defer l.release(context.Background(), full, token)
			return fn(ctx)
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryLock makes a single acquisition attempt. On success the returned func
// releases the lock; otherwise ErrNotAcquired is returned.
func (l Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.R == nil {
		return nil, errors.New("lock: redis client not configured")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	full := l.key(key)
	token := uuid.NewString()
	ok, err := l.R.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return func() { l.release(context.Background(), full, token) }, nil
}

func (l Locker) release(ctx context.Context, key, token string) {
	if err := l.R.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = l.R.Del(ctx, key).Err()
		}
	}
}
