package verification

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper reclaims stale entries and reports how many it removed.
type Sweeper interface {
	Sweep() int
}

// RunSweeper calls s.Sweep every interval until ctx is cancelled. A non-positive
// interval returns immediately, leaving expired entries to be dropped only when
// they are next checked.
func RunSweeper(ctx context.Context, interval time.Duration, name string, s Sweeper, logger *slog.Logger) {
	if interval <= 0 {
		logger.Warn("sweeper disabled, expired entries are only reclaimed on check", slog.String("sweeper", name))
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Info("sweeper reclaimed expired entries", slog.String("sweeper", name), slog.Int("removed", n))
			}
		}
	}
}
