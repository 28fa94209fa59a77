package routes

import (
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisTestApp(t *testing.T, codes ...string) *testApp {
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
	return newTestApp(t, cache, codes...)
}

func keyed(key string) map[string]string {
	return map[string]string{"Idempotency-Key": key}
}

func TestCodeCheckIsNeverReplayed(t *testing.T) {
	ta := newRedisTestApp(t, "111111")

	ta.request(t, "a@x.com")
	ta.request(t, "b@x.com")
	status, _ := ta.send(t, fiber.MethodPost, "/verification/check", fiber.Map{"identity": "a@x.com", "code": "111111"}, keyed("k1"))
	if status != fiber.StatusOK {
		t.Fatalf("correct code: expected 200 got %d", status)
	}

	status, body := ta.send(t, fiber.MethodPost, "/verification/check", fiber.Map{"identity": "b@x.com", "code": "000000"}, keyed("k1"))
	if status != fiber.StatusBadRequest || body["reason"] != "code_mismatch" {
		t.Fatalf("wrong code under a reused key must be checked, got %d %v", status, body)
	}
	if got := ta.svc.Flow.State("b@x.com").String(); got != "awaiting_verification" {
		t.Fatalf("unexpected state for b: %s", got)
	}
}

func TestLoginIsNeverReplayed(t *testing.T) {
	ta := newRedisTestApp(t, "111111")

	ta.request(t, "c@x.com")
	ta.check(t, "c@x.com", "111111")
	if status, _ := ta.do(t, fiber.MethodPost, "/api/auth/signup", fiber.Map{"username": "c", "email": "c@x.com", "password": "s3cret!"}, ""); status != fiber.StatusCreated {
		t.Fatalf("signup: expected 201 got %d", status)
	}

	status, _ := ta.send(t, fiber.MethodPost, "/api/auth/login", fiber.Map{"email": "c@x.com", "password": "s3cret!"}, keyed("login-1"))
	if status != fiber.StatusOK {
		t.Fatalf("login: expected 200 got %d", status)
	}
	status, body := ta.send(t, fiber.MethodPost, "/api/auth/login", fiber.Map{"email": "attacker@x.com", "password": "whatever"}, keyed("login-1"))
	if status != fiber.StatusUnauthorized || body["token"] != nil {
		t.Fatalf("bad credentials under a reused key must fail, got %d %v", status, body)
	}
}

func TestSignupReplayIsBoundToBody(t *testing.T) {
	ta := newRedisTestApp(t, "111111")
	signup := fiber.Map{"username": "c", "email": "c@x.com", "password": "s3cret!"}

	ta.request(t, "c@x.com")
	ta.check(t, "c@x.com", "111111")
	status, first := ta.send(t, fiber.MethodPost, "/api/auth/signup", signup, keyed("signup-1"))
	if status != fiber.StatusCreated {
		t.Fatalf("signup: expected 201 got %d %v", status, first)
	}

	status, again := ta.send(t, fiber.MethodPost, "/api/auth/signup", signup, keyed("signup-1"))
	if status != fiber.StatusCreated || again["token"] != first["token"] {
		t.Fatalf("identical retry should replay, got %d %v", status, again)
	}

	other := fiber.Map{"username": "x", "email": "x@x.com", "password": "s3cret!"}
	status, body := ta.send(t, fiber.MethodPost, "/api/auth/signup", other, keyed("signup-1"))
	if status != fiber.StatusUnprocessableEntity || body["reason"] != "idempotency_key_reused" || body["token"] != nil {
		t.Fatalf("different body under the same key must be rejected, got %d %v", status, body)
	}
}
