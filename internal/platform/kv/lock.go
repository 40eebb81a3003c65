package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const userLockKeyPrefix = "judge:lock:user:"

// ErrLockHeld is returned when another judging flow of the same user owns the lock.
var ErrLockHeld = errors.New("lock is held by another request")

// Only the holder of the token may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// UserLocker serialises judging flows per user across server instances.
type UserLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewUserLocker(rdb *redis.Client, ttl time.Duration) *UserLocker {
	return &UserLocker{rdb: rdb, ttl: ttl}
}

// Acquire takes the per-user lock. The returned release func is safe to call once the
// lock has expired; it then leaves the key of a newer holder untouched.
func (l *UserLocker) Acquire(ctx context.Context, userID string) (func(context.Context) error, error) {
	key := userLockKeyPrefix + userID
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func(ctx context.Context) error {
		deleted, err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Int64()
		if err != nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		if deleted != 1 {
			return fmt.Errorf("release lock %s: lock expired before release", key)
		}
		return nil
	}
	return release, nil
}
