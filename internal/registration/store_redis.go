package registration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/regbot/core/logger"
)

const (
	sessionKeyPrefix = "reg_session:"
	maxTxRetries     = 5
)

// RedisStore keeps sessions as JSON values so several bot replicas can share them.
// With a non-zero ttl every write refreshes the key expiry, giving idle expiry for free.
type RedisStore struct {
	cli *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore builds a RedisStore; ttl == 0 keeps sessions until they are deleted.
func NewRedisStore(cli *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{cli: cli, ttl: ttl, now: time.Now}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("%s%d", sessionKeyPrefix, userID)
}

func (s *RedisStore) Exists(ctx context.Context, userID int64) (bool, error) {
	n, err := s.cli.Exists(ctx, sessionKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Create(ctx context.Context, userID int64) (Session, error) {
	sess := newSession(userID, s.now())
	data, err := json.Marshal(sess)
	if err != nil {
		return Session{}, err
	}
	ok, err := s.cli.SetNX(ctx, sessionKey(userID), data, s.ttl).Result()
	if err != nil {
		return Session{}, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return Session{}, ErrAlreadyInProgress
	}
	return sess, nil
}

func (s *RedisStore) Get(ctx context.Context, userID int64) (Session, error) {
	return s.read(ctx, s.cli, sessionKey(userID))
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) read(ctx context.Context, g getter, key string) (Session, error) {
	data, err := g.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("redis get: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session %s: %w", key, err)
	}
	return sess, nil
}

// Mutate uses optimistic locking (WATCH/MULTI) so concurrent writers never interleave.
func (s *RedisStore) Mutate(ctx context.Context, userID int64, updates ...Update) (Session, error) {
	key := sessionKey(userID)
	var result Session
	txf := func(tx *redis.Tx) error {
		sess, err := s.read(ctx, tx, key)
		if err != nil {
			return err
		}
		next, err := apply(sess, s.now(), updates)
		if err != nil {
			result = sess
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for attempt := 1; attempt <= maxTxRetries; attempt++ {
		err := s.cli.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			logger.Redis.Debug("session mutate conflict",
				slog.String("event", "session.mutate.retry"),
				slog.Int64("user_id", userID),
				slog.Int("attempt", attempt),
			)
			continue
		}
		return result, err
	}
	return Session{}, fmt.Errorf("redis mutate user %d: %w", userID, redis.TxFailedErr)
}

func (s *RedisStore) Delete(ctx context.Context, userID int64) error {
	if err := s.cli.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n := 0
	iter := s.cli.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return n, nil
}
