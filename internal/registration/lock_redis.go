package registration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/regbot/core/logger"
)

const (
	lockKeyPrefix     = "reg_lock:"
	defaultLockTTL    = 30 * time.Second
	lockRetryInterval = 25 * time.Millisecond
)

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

var luaExtend = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

// RedisLocker shares the per-user section between bot replicas. The lease expires
// after ttl so a crashed holder cannot block a user forever; a live holder renews it
// every ttl/3 until unlock.
type RedisLocker struct {
	cli *redis.Client
	ttl time.Duration
}

// NewRedisLocker builds a RedisLocker; ttl <= 0 selects the default lease.
func NewRedisLocker(cli *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{cli: cli, ttl: ttl}
}

func lockKey(userID int64) string {
	return fmt.Sprintf("%s%d", lockKeyPrefix, userID)
}

func (l *RedisLocker) Lock(ctx context.Context, userID int64) (func(), error) {
	key := lockKey(userID)
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.cli.SetNX(ctx, key, token, l.ttl).Result()
		if err == nil && ok {
			break
		}
		if err != nil && ctx.Err() == nil {
			logger.Redis.Warn("lock attempt failed",
				slog.String("event", "lock.acquire"),
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: user %d: %w", ErrLockTimeout, userID, ctx.Err())
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.renew(key, token, userID, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// The caller's ctx may already be cancelled; release on a fresh one.
			relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := luaUnlock.Run(relCtx, l.cli, []string{key}, token).Err(); err != nil {
				logger.Redis.Warn("lock release failed",
					slog.String("event", "lock.release"),
					slog.Int64("user_id", userID),
					slog.String("err", err.Error()),
				)
			}
		})
	}, nil
}

// renew extends the lease while token still owns key. It stops on close(stop) or
// once the lease is found lost.
func (l *RedisLocker) renew(key, token string, userID int64, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
		n, err := luaExtend.Run(ctx, l.cli, []string{key}, token, l.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			logger.Redis.Warn("lock renew failed",
				slog.String("event", "lock.renew"),
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
		case n == 0:
			logger.Redis.Error("lock lease lost",
				slog.String("event", "lock.renew"),
				slog.Int64("user_id", userID),
			)
			return
		}
	}
}
