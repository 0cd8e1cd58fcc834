package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// AbandonedMarker flags episodes stuck in processing since before a cutoff.
type AbandonedMarker interface {
	MarkAbandonedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper periodically fails episodes whose worker died mid-run. Without it
// a crashed worker leaves rows in processing forever and clients poll a job
// that will never finish.
type Sweeper struct {
	store    AbandonedMarker
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
}

func NewSweeper(store AbandonedMarker, interval, maxAge time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{store: store, interval: interval, maxAge: maxAge, logger: logger}
}

// Run sweeps until the context is cancelled. One sweep fires immediately so
// a restarted worker reclaims orphans without waiting a full interval.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.maxAge)
	n, err := s.store.MarkAbandonedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("abandoned episode sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Warn("marked abandoned episodes as failed", "count", n, "older_than", s.maxAge)
	}
}
