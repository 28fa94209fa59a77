package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/marocdeals/marocdeals_api/internal/httpx"
	"github.com/marocdeals/marocdeals_api/internal/logging"
)

func limitedApp(cache *redis.Client) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(logging.Discard())})
	app.Post("/login", RateLimit(RateLimitConfig{Cache: cache, Scope: "login", PerMinute: 2, Fields: []string{"email"}}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func loginAs(t *testing.T, app *fiber.App, email string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(`{"email":"`+email+`"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestRateLimitWithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()
	app := limitedApp(cache)

	for i := 0; i < 2; i++ {
		if got := loginAs(t, app, "a@x.com"); got != fiber.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i+1, got)
		}
	}
	if got := loginAs(t, app, "A@x.com"); got != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", got)
	}
	if got := loginAs(t, app, "b@x.com"); got != fiber.StatusOK {
		t.Fatalf("other identities are unaffected, got %d", got)
	}

	mr.FastForward(time.Minute + time.Second)
	if got := loginAs(t, app, "a@x.com"); got != fiber.StatusOK {
		t.Fatalf("window should reset, got %d", got)
	}
}

func TestRateLimitLocalFallback(t *testing.T) {
	app := limitedApp(nil)

	for i := 0; i < 2; i++ {
		if got := loginAs(t, app, "a@x.com"); got != fiber.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i+1, got)
		}
	}
	if got := loginAs(t, app, "a@x.com"); got != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", got)
	}
}

func TestLocalLimiterForgetsIdleVisitors(t *testing.T) {
	l := newLocalLimiter(1)
	now := time.Now()
	l.allow("a", now)
	l.allow("b", now.Add(5*time.Minute))
	if _, ok := l.visitors["a"]; ok {
		t.Fatalf("idle visitor should be dropped")
	}
	if _, ok := l.visitors["b"]; !ok {
		t.Fatalf("active visitor should remain")
	}
}

func TestRateLimitRepairsCounterWithoutTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()
	app := limitedApp(cache)

	// a counter left behind without an expiry
	key := "rl:login:a@x.com"
	mr.Set(key, "10")

	if got := loginAs(t, app, "a@x.com"); got != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", got)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected the window to be restarted, ttl %s", ttl)
	}
	mr.FastForward(time.Minute + time.Second)
	if got := loginAs(t, app, "a@x.com"); got != fiber.StatusOK {
		t.Fatalf("identity must not stay locked out, got %d", got)
	}
}

func TestRateLimitKeepsRunningWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()
	app := limitedApp(cache)

	loginAs(t, app, "a@x.com")
	mr.FastForward(40 * time.Second)
	loginAs(t, app, "a@x.com")
	if ttl := mr.TTL("rl:login:a@x.com"); ttl > 20*time.Second {
		t.Fatalf("second hit must not extend the window, ttl %s", ttl)
	}
}
