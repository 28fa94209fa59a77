package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "MarocDeals"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultAccessTokenTTL  = time.Hour
	defaultCodeTTL         = 10 * time.Minute
	defaultMaxAttempts     = 3
	defaultSweepInterval   = 5 * time.Minute
	defaultRetention       = 10 * time.Minute
	defaultGrantTTL        = 15 * time.Minute
	defaultSMTPPort        = 587
	defaultRateLimitPerMin = 5
	devJWTSecret           = "dev-secret-change-me"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	accessTTLEnvVar        = "ACCESS_TOKEN_TTL"
	codeTTLEnvVar          = "VERIFICATION_CODE_TTL"
	maxAttemptsEnvVar      = "VERIFICATION_MAX_ATTEMPTS"
	sweepIntervalEnvVar    = "VERIFICATION_SWEEP_INTERVAL"
	retentionEnvVar        = "VERIFICATION_RETENTION"
	grantTTLEnvVar         = "SIGNUP_GRANT_TTL"
	smtpPortEnvVar         = "SMTP_PORT"
	rateLimitPerMinEnvVar  = "RATE_LIMIT_PER_MINUTE"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	Env            string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	JWTSecret      string
	AccessTokenTTL time.Duration
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	RateLimit      int

	Verification VerificationConfig
	SMTP         SMTPConfig
}

// VerificationConfig tunes the code store and the signup flow.
type VerificationConfig struct {
	CodeTTL       time.Duration
	MaxAttempts   int
	SweepInterval time.Duration // zero disables the sweeper
	// Retention keeps expired codes around so late checks report code_expired.
	// The Redis store never keeps them for less than a minute.
	Retention     time.Duration
	GrantTTL      time.Duration
}

// SMTPConfig holds outgoing mail settings. An empty Host selects the log notifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Load reads configuration values from the environment and populates a Config instance.
// A .env file in the working directory is honoured when present.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		Env:            getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AccessTokenTTL: defaultAccessTokenTTL,
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		RateLimit:      defaultRateLimitPerMin,
		Verification: VerificationConfig{
			CodeTTL:       defaultCodeTTL,
			MaxAttempts:   defaultMaxAttempts,
			SweepInterval: defaultSweepInterval,
			Retention:     defaultRetention,
			GrantTTL:      defaultGrantTTL,
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     defaultSMTPPort,
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if err := durationEnv(shutdownDurationEnvVar, &cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{idemTTLDurEnvVar, &cfg.IdempotencyTTL},
		{accessTTLEnvVar, &cfg.AccessTokenTTL},
		{codeTTLEnvVar, &cfg.Verification.CodeTTL},
		{sweepIntervalEnvVar, &cfg.Verification.SweepInterval},
		{retentionEnvVar, &cfg.Verification.Retention},
		{grantTTLEnvVar, &cfg.Verification.GrantTTL},
	}
	for _, d := range durations {
		if err := durationEnv(d.key, d.dst); err != nil {
			return Config{}, err
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{maxAttemptsEnvVar, &cfg.Verification.MaxAttempts},
		{smtpPortEnvVar, &cfg.SMTP.Port},
		{rateLimitPerMinEnvVar, &cfg.RateLimit},
	}
	for _, i := range ints {
		if err := intEnv(i.key, i.dst); err != nil {
			return Config{}, err
		}
	}

	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Verification.CodeTTL <= 0 {
		return fmt.Errorf("%s must be positive", codeTTLEnvVar)
	}
	if c.Verification.MaxAttempts <= 0 {
		return fmt.Errorf("%s must be positive", maxAttemptsEnvVar)
	}
	if c.Verification.SweepInterval < 0 {
		return fmt.Errorf("%s must not be negative", sweepIntervalEnvVar)
	}

	if c.IsDev() {
		if c.JWTSecret == "" {
			c.JWTSecret = devJWTSecret
		}
		return nil
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.Env)
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", c.Env)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set when APP_ENV=%s", c.Env)
	}
	return nil
}

// IsDev reports whether the service runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func intEnv(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}
