package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix  = "verification:v1:"
	redisMaxRetries = 4
	// redisMinRetention keeps an expired record readable long enough for a late
	// check to report ErrExpired instead of ErrNotFound, even with Retention 0.
	redisMinRetention = time.Minute
)

// RedisStore keeps pending codes in Redis so they survive restarts and are shared
// across instances. Keys carry a TTL of code TTL plus Retention, which bounds memory
// without any sweeper. Retention below one minute is raised to one minute.
type RedisStore struct {
	client *redis.Client
	opts   Options
}

// NewRedisStore builds a Redis-backed store.
func NewRedisStore(client *redis.Client, opts Options) *RedisStore {
	return &RedisStore{client: client, opts: opts.withDefaults()}
}

func (s *RedisStore) keyRetention() time.Duration {
	if s.opts.Retention < redisMinRetention {
		return redisMinRetention
	}
	return s.opts.Retention
}

func (s *RedisStore) key(identity string) string {
	return redisKeyPrefix + NormalizeIdentity(identity)
}

// Issue overwrites any pending entry for identity with a fresh code.
func (s *RedisStore) Issue(ctx context.Context, identity string) (string, error) {
	code, err := s.opts.Generate()
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(Pending{
		Code:      code,
		ExpiresAt: s.opts.Clock.Now().Add(s.opts.TTL),
	})
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, s.key(identity), payload, s.opts.TTL+s.keyRetention()).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return code, nil
}

// Check validates code inside a WATCH transaction so a concurrent Issue for the
// same identity aborts and retries the check instead of being overwritten.
func (s *RedisStore) Check(ctx context.Context, identity, code string) error {
	key := s.key(identity)

	for i := 0; i < redisMaxRetries; i++ {
		var outcome error
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				outcome = ErrNotFound
				return nil
			}
			if err != nil {
				return err
			}

			var p Pending
			if err := json.Unmarshal(data, &p); err != nil {
				return fmt.Errorf("decode pending verification: %w", err)
			}

			remove, verdict := p.evaluate(s.opts.Clock.Now(), code, s.opts.MaxAttempts)
			var updated []byte
			if !remove {
				if updated, err = json.Marshal(p); err != nil {
					return err
				}
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if remove {
					pipe.Del(ctx, key)
				} else {
					pipe.Set(ctx, key, updated, redis.KeepTTL)
				}
				return nil
			})
			if err != nil {
				return err
			}
			outcome = verdict
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return outcome
	}
	return fmt.Errorf("%w: contention on %s", ErrUnavailable, key)
}
