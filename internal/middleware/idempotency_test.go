package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/marocdeals/marocdeals_api/internal/httpx"
	"github.com/marocdeals/marocdeals_api/internal/logging"
)

func setupIdempotentApp(t *testing.T) (*fiber.App, *atomic.Int32) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})

	var calls atomic.Int32
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(logging.Discard())})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/api/auth/signup", func(c *fiber.Ctx) error {
		n := calls.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": n})
	})
	app.Post("/fails", func(c *fiber.Ctx) error {
		calls.Add(1)
		return httpx.NewError(fiber.StatusBadRequest, "nope", "nope")
	})
	return app, &calls
}

func post(t *testing.T, app *fiber.App, path, key string) (int, string) {
	t.Helper()
	return postBody(t, app, path, key, "{}")
}

func postBody(t *testing.T, app *fiber.App, path, key, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(respBody)
}

func TestIdempotencyPassesThroughWithoutHeader(t *testing.T) {
	app, calls := setupIdempotentApp(t)

	post(t, app, "/api/auth/signup", "")
	post(t, app, "/api/auth/signup", "")
	if calls.Load() != 2 {
		t.Fatalf("expected handler invoked twice, got %d", calls.Load())
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, calls := setupIdempotentApp(t)

	status, first := post(t, app, "/api/auth/signup", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
	}
	status, second := post(t, app, "/api/auth/signup", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status)
	}
	if first != second {
		t.Fatalf("expected cached payload %s got %s", first, second)
	}
	if calls.Load() != 1 {
		t.Fatalf("handler must run once, ran %d times", calls.Load())
	}
}

func TestIdempotencyReleasesKeyOnFailure(t *testing.T) {
	app, calls := setupIdempotentApp(t)

	status, _ := post(t, app, "/fails", "retry-me")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 got %d", status)
	}
	post(t, app, "/fails", "retry-me")
	if calls.Load() != 2 {
		t.Fatalf("failed requests must not be replayed, handler ran %d times", calls.Load())
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	app, calls := setupIdempotentApp(t)

	if status, _ := postBody(t, app, "/api/auth/signup", "k", `{"email":"a@x.com"}`); status != fiber.StatusCreated {
		t.Fatalf("expected 201 got %d", status)
	}
	status, body := postBody(t, app, "/api/auth/signup", "k", `{"email":"b@x.com"}`)
	if status != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", status)
	}
	if strings.Contains(body, `"call"`) {
		t.Fatalf("stored response must not leak, got %s", body)
	}
	if calls.Load() != 1 {
		t.Fatalf("handler must not run for a reused key, ran %d times", calls.Load())
	}
}
