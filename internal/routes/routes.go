package routes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/marocdeals/marocdeals_api/internal/account"
	"github.com/marocdeals/marocdeals_api/internal/auth"
	"github.com/marocdeals/marocdeals_api/internal/config"
	"github.com/marocdeals/marocdeals_api/internal/metrics"
	"github.com/marocdeals/marocdeals_api/internal/middleware"
	"github.com/marocdeals/marocdeals_api/internal/notification"
	"github.com/marocdeals/marocdeals_api/internal/signup"
	"github.com/marocdeals/marocdeals_api/internal/verification"
)

const schemaTimeout = 10 * time.Second

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Optional overrides, mostly for tests.
	Notifier notification.Notifier
	Clock    verification.Clock
	Generate verification.Generator
	HashCost int
}

// Services are the long-lived components built by Setup.
type Services struct {
	Store    verification.Store
	Flow     *signup.Flow
	Accounts *account.Service
	Tokens   *auth.Service
}

// Sweepers returns the components that need periodic reclamation, keyed by name.
// A Redis backed store expires keys itself and is not listed.
func (s *Services) Sweepers() map[string]verification.Sweeper {
	out := map[string]verification.Sweeper{"signup_flow": s.Flow}
	if mem, ok := s.Store.(*verification.MemoryStore); ok {
		out["verification_store"] = mem
	}
	return out
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Services, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	svc, err := buildServices(d)
	if err != nil {
		return nil, err
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Metrics != nil {
		app.Use(d.Metrics.Middleware())
		app.Get("/metrics", d.Metrics.Handler())
	}
	RegisterHealthRoutes(app, d)

	signupHandler := signup.NewHandler(svc.Flow, svc.Tokens)
	authHandler := auth.NewHandler(svc.Accounts, svc.Tokens, d.Logger)

	codeLimiter := middleware.RateLimit(middleware.RateLimitConfig{
		Cache:     d.Cache,
		Scope:     "verification",
		PerMinute: d.Cfg.RateLimit,
		Fields:    []string{"identity", "email"},
	})
	loginLimiter := middleware.RateLimit(middleware.RateLimitConfig{
		Cache:     d.Cache,
		Scope:     "login",
		PerMinute: d.Cfg.RateLimit,
		Fields:    []string{"email"},
	})

	// Replay is limited to account creation. Code checks and logins must always
	// reach their handlers.
	idempotent := func(c *fiber.Ctx) error { return c.Next() }
	if d.Cache != nil {
		idempotent = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}

	RegisterVerificationRoutes(app, signupHandler, codeLimiter)

	api := app.Group("/api")
	RegisterAuthRoutes(api, signupHandler, authHandler, AuthLimits{
		Code:       codeLimiter,
		Login:      loginLimiter,
		Idempotent: idempotent,
	})

	protected := api.Group("", middleware.JWTAuth(svc.Tokens))
	protected.Get("/me", authHandler.Me)

	return svc, nil
}

func buildServices(d Deps) (*Services, error) {
	var repo account.Repository
	if d.DB != nil {
		pg := account.NewPostgresRepository(d.DB)
		ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
		defer cancel()
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure account schema: %w", err)
		}
		repo = pg
	} else {
		repo = account.NewMemoryRepository()
	}
	accounts := account.NewService(repo)
	if d.HashCost > 0 {
		accounts = accounts.WithHashCost(d.HashCost)
	}

	vcfg := d.Cfg.Verification
	storeOpts := verification.Options{
		TTL:         vcfg.CodeTTL,
		MaxAttempts: vcfg.MaxAttempts,
		Retention:   vcfg.Retention,
		Clock:       d.Clock,
		Generate:    d.Generate,
	}
	var store verification.Store
	if d.Cache != nil {
		store = verification.NewRedisStore(d.Cache, storeOpts)
	} else {
		store = verification.NewMemoryStore(storeOpts)
	}

	notifier := d.Notifier
	if notifier == nil {
		if smtp := d.Cfg.SMTP; smtp.Host != "" {
			notifier = notification.NewSMTPNotifier(smtp.Host, smtp.Port, smtp.Username, smtp.Password, smtp.From)
		} else {
			d.Logger.Warn("SMTP_HOST not set, verification codes are written to the log")
			notifier = notification.NewLoggerNotifier(d.Logger)
		}
	}

	flowOpts := signup.Options{
		CodeTTL:  vcfg.CodeTTL,
		GrantTTL: vcfg.GrantTTL,
		Clock:    d.Clock,
		Logger:   d.Logger,
	}
	if d.Metrics != nil {
		flowOpts.Recorder = d.Metrics
	}
	if d.Cache != nil {
		flowOpts.Grants = signup.NewRedisGrants(d.Cache)
	}

	return &Services{
		Store:    store,
		Flow:     signup.NewFlow(store, notifier, accounts, flowOpts),
		Accounts: accounts,
		Tokens:   auth.NewService(d.Cfg.JWTSecret, d.Cfg.AccessTokenTTL),
	}, nil
}
