package config

import (
	"testing"
	"time"
)

func TestLoadDefaultsInDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Verification.CodeTTL != 10*time.Minute {
		t.Fatalf("expected 10m code ttl, got %s", cfg.Verification.CodeTTL)
	}
	if cfg.Verification.MaxAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", cfg.Verification.MaxAttempts)
	}
	if cfg.JWTSecret == "" {
		t.Fatalf("expected development jwt secret fallback")
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("PORT", ":9090")
	t.Setenv("VERIFICATION_CODE_TTL", "2m")
	t.Setenv("VERIFICATION_MAX_ATTEMPTS", "5")
	t.Setenv("VERIFICATION_SWEEP_INTERVAL", "0s")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("SMTP_USERNAME", "noreply@marocdeals.ma")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Verification.CodeTTL != 2*time.Minute {
		t.Fatalf("expected 2m, got %s", cfg.Verification.CodeTTL)
	}
	if cfg.Verification.MaxAttempts != 5 {
		t.Fatalf("expected 5, got %d", cfg.Verification.MaxAttempts)
	}
	if cfg.Verification.SweepInterval != 0 {
		t.Fatalf("expected sweeper disabled, got %s", cfg.Verification.SweepInterval)
	}
	if cfg.ShutdownPeriod != 3*time.Second {
		t.Fatalf("expected 3s shutdown, got %s", cfg.ShutdownPeriod)
	}
	if cfg.SMTP.From != "noreply@marocdeals.ma" {
		t.Fatalf("expected from to default to username, got %q", cfg.SMTP.From)
	}
	if cfg.Address() != ":9090" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"bad duration":  {"VERIFICATION_CODE_TTL": "ten minutes"},
		"zero attempts": {"VERIFICATION_MAX_ATTEMPTS": "0"},
		"bad int":       {"SMTP_PORT": "smtp"},
		"missing db in production": {
			"APP_ENV":      "production",
			"DATABASE_URL": "",
			"REDIS_URL":    "redis://localhost:6379/0",
			"JWT_SECRET":   "s3cret",
		},
		"missing secret in production": {
			"APP_ENV":      "production",
			"DATABASE_URL": "postgres://localhost/marocdeals",
			"REDIS_URL":    "redis://localhost:6379/0",
			"JWT_SECRET":   "",
		},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("APP_ENV", "development")
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
