package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/insightdash/internal/domain"
	"github.com/aryan0dhankhar/insightdash/internal/observability/metrics"
)

// Sweeper drops expired entries from a local cache
type Sweeper interface {
	Sweep() int
}

// CleanupWorker periodically removes expired sessions and publishes the active session count
type CleanupWorker struct {
	sessions domain.SessionRepository
	cache    Sweeper
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewCleanupWorker creates a new cleanup worker. cache may be nil.
func NewCleanupWorker(
	sessions domain.SessionRepository,
	cache Sweeper,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupWorker{
		sessions: sessions,
		cache:    cache,
		logger:   logger.With(slog.String("component", "cleanup_worker")),
		interval: interval,
		now:      time.Now,
	}
}

// Start runs a sweep immediately and then on every tick until ctx is cancelled
func (w *CleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("cleanup worker started", slog.Duration("interval", w.interval))
	w.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep performs one cleanup pass
func (w *CleanupWorker) Sweep(ctx context.Context) {
	now := w.now()

	removed, err := w.sessions.DeleteExpired(ctx, now)
	if err != nil {
		w.logger.Error("failed to delete expired sessions", slog.String("error", err.Error()))
	} else if removed > 0 {
		metrics.ObserveSessionsSwept(removed)
		w.logger.Info("expired sessions removed", slog.Int64("count", removed))
	}

	active, err := w.sessions.CountActive(ctx, now)
	if err != nil {
		w.logger.Error("failed to count active sessions", slog.String("error", err.Error()))
	} else {
		metrics.SetActiveSessions(active)
	}

	if w.cache != nil {
		if n := w.cache.Sweep(); n > 0 {
			w.logger.Debug("expired cache entries removed", slog.Int("count", n))
		}
	}
}
