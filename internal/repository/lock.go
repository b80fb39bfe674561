package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-arena/internal/pkg"
)

const (
	lockKeyPrefix = "lock:match:"

	lockRetryDelay = 25 * time.Millisecond
)

var ErrLockNotHeld = errors.New("lock is not held")

// deletes the lock only if it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes writers of one match across processes.
// The lock expires after ttl so a crashed holder can't block the match forever.
type RedisLocker struct {
	logger *slog.Logger
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(logger *slog.Logger, client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		logger: logger.With("component", "lock"),
		client: client,
		ttl:    ttl,
	}
}

// Lock blocks until the lock for key is acquired or ctx is done. The returned func releases it.
func (that *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := lockKeyPrefix + key
	token := pkg.GenerateNewSessionID()

	for {
		acquired, err := that.client.SetNX(ctx, lockKey, token, that.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}

		if acquired {
			return func() {
				// the caller's context may already be gone
				if err := that.release(context.WithoutCancel(ctx), lockKey, token); err != nil {
					// ErrLockNotHeld means the ttl ran out while the holder was still writing
					that.logger.Warn("failed to release lock", "key", key, "ttl", that.ttl, "error", err)
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, ctx.Err())
		case <-time.After(lockRetryDelay):
		}
	}
}

func (that *RedisLocker) release(ctx context.Context, lockKey, token string) error {
	released, err := releaseScript.Run(ctx, that.client, []string{lockKey}, token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	if released == 0 {
		return ErrLockNotHeld
	}

	return nil
}
