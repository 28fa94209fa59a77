package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/marocdeals/marocdeals_api/internal/httpx"
)

const visitorIdleTimeout = 3 * time.Minute

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	// Cache enables a shared fixed-window counter. Without it a per-process token
	// bucket is used.
	Cache     *redis.Client
	// Scope namespaces counters, e.g. "login" or "verification".
	Scope     string
	PerMinute int
	// Fields are JSON body fields tried in order for the limit key; the client IP
	// is used when none is present.
	Fields    []string
}

// RateLimit limits requests per identity (or IP) and per minute.
func RateLimit(cfg RateLimitConfig) fiber.Handler {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 5
	}
	local := newLocalLimiter(cfg.PerMinute)

	return func(c *fiber.Ctx) error {
		key := cfg.Scope + ":" + limitKey(c, cfg.Fields)

		if cfg.Cache != nil {
			cnt, err := incrWindow(c.UserContext(), cfg.Cache, "rl:"+key)
			if err == nil {
				if cnt > int64(cfg.PerMinute) {
					return tooManyRequests()
				}
				return c.Next()
			}
			// fall through to the local limiter when redis is unreachable
		}

		if !local.allow(key, time.Now()) {
			return tooManyRequests()
		}
		return c.Next()
	}
}

// incrWindow bumps the counter and, in the same transaction, starts its window if
// none is running. A counter can therefore never be left without a TTL.
func incrWindow(ctx context.Context, cache *redis.Client, key string) (int64, error) {
	var incr *redis.IntCmd
	_, err := cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, time.Minute)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func tooManyRequests() error {
	return httpx.NewError(http.StatusTooManyRequests, "rate_limited", "too many requests, try again later")
}

func limitKey(c *fiber.Ctx, fields []string) string {
	if len(fields) > 0 {
		var body map[string]any
		if err := json.Unmarshal(c.Body(), &body); err == nil {
			for _, f := range fields {
				if v, ok := body[f].(string); ok {
					if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
						return v
					}
				}
			}
		}
	}
	return c.IP()
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type localLimiter struct {
	mu        sync.Mutex
	perMinute int
	visitors  map[string]*visitor
	lastSweep time.Time
}

func newLocalLimiter(perMinute int) *localLimiter {
	return &localLimiter{perMinute: perMinute, visitors: make(map[string]*visitor)}
}

func (l *localLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > time.Minute {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > visitorIdleTimeout {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}
