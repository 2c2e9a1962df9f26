package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tenroll/internal/config"
	"github.com/tenroll/internal/postgres"
	"github.com/tenroll/internal/redis"
)

// CacheRefresher periodically rebuilds the Redis leaderboard cache from
// PostgreSQL, recovering the realtime view after restarts or cache loss.
type CacheRefresher struct {
	cache   *redis.LeaderboardCache
	repo    *postgres.Repository
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewCacheRefresher creates a new cache refresher
func NewCacheRefresher(
	cache *redis.LeaderboardCache,
	repo *postgres.Repository,
	cfg *config.SyncConfig,
	logger *slog.Logger,
) *CacheRefresher {
	return &CacheRefresher{
		cache:  cache,
		repo:   repo,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background refresh loop
func (w *CacheRefresher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("cache refresher started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background refresh loop
func (w *CacheRefresher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("cache refresher stopped")
	return nil
}

// run is the main worker loop
func (w *CacheRefresher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.RefreshOnce(ctx); err != nil {
				w.logger.Error("cache refresh failed", "error", err)
			}
		}
	}
}

// RefreshOnce rebuilds the cache from the database once. Also called at
// startup for recovery before the loop takes over.
func (w *CacheRefresher) RefreshOnce(ctx context.Context) error {
	startTime := time.Now()

	games, err := w.repo.TopCompleted(ctx, w.config.BatchSize)
	if err != nil {
		return err
	}

	if err := w.cache.Rebuild(ctx, games); err != nil {
		return err
	}

	w.logger.Info("leaderboard cache refreshed",
		"games", len(games),
		"duration", time.Since(startTime),
	)
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *CacheRefresher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
