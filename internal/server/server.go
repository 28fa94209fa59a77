package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/marocdeals/marocdeals_api/internal/config"
	"github.com/marocdeals/marocdeals_api/internal/httpx"
	"github.com/marocdeals/marocdeals_api/internal/metrics"
	"github.com/marocdeals/marocdeals_api/internal/routes"
	"github.com/marocdeals/marocdeals_api/internal/verification"
)

// Server wraps the Fiber application and its background workers.
type Server struct {
	app    *fiber.App
	cfg    config.Config
	svc    *routes.Services
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// db and cache may be nil in development; in-memory backends are used instead.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             64 * 1024,
		DisableStartupMessage: !cfg.IsDev(),
		ErrorHandler:          httpx.ErrorHandler(logger),
	})

	svc, err := routes.Setup(app, routes.Deps{
		Cfg:     cfg,
		DB:      db,
		Cache:   cache,
		Logger:  logger,
		Metrics: metrics.New(),
	})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, svc: svc, logger: logger}, nil
}

// App exposes the underlying Fiber app, e.g. for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// StartBackground launches the sweepers. They stop on Shutdown or when ctx ends.
func (s *Server) StartBackground(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	for name, sw := range s.svc.Sweepers() {
		s.wg.Add(1)
		go func(name string, sw verification.Sweeper) {
			defer s.wg.Done()
			verification.RunSweeper(ctx, s.cfg.Verification.SweepInterval, name, sw, s.logger)
		}(name, sw)
	}
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops the background workers and gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	err := s.app.ShutdownWithContext(ctx)
	s.wg.Wait()
	return err
}
