package signup

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marocdeals/marocdeals_api/internal/verification"
)

const grantKeyPrefix = "signup:grant:v1:"

// Grants records successful verifications outside the process, so the instance
// handling signup need not be the one that checked the code.
type Grants interface {
	Grant(ctx context.Context, identity string, ttl time.Duration) error
	Granted(ctx context.Context, identity string) (bool, error)
	Revoke(ctx context.Context, identity string) error
}

// RedisGrants keeps one expiring key per verified identity.
type RedisGrants struct {
	client *redis.Client
}

// NewRedisGrants builds a Redis-backed grant store.
func NewRedisGrants(client *redis.Client) *RedisGrants {
	return &RedisGrants{client: client}
}

func grantKey(identity string) string {
	return grantKeyPrefix + verification.NormalizeIdentity(identity)
}

// Grant records identity as verified for ttl.
func (g *RedisGrants) Grant(ctx context.Context, identity string, ttl time.Duration) error {
	return g.client.Set(ctx, grantKey(identity), "1", ttl).Err()
}

// Granted reports whether a live grant exists for identity.
func (g *RedisGrants) Granted(ctx context.Context, identity string) (bool, error) {
	err := g.client.Get(ctx, grantKey(identity)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Revoke drops the grant for identity, if any.
func (g *RedisGrants) Revoke(ctx context.Context, identity string) error {
	return g.client.Del(ctx, grantKey(identity)).Err()
}
