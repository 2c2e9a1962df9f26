// Package ratelimit implements fixed-window request limiting behind a
// pluggable counter store, so the HTTP layer can run against an in-process
// map or a shared Redis without the game core knowing either exists.
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Store counts requests per key within a fixed window. Incr increments the
// key's counter, starting a new window when none is active, and returns the
// count within the current window and the window's expiry.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// Result describes one limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter applies fixed-window budgets against a Store.
type Limiter struct {
	store  Store
	logger *slog.Logger
}

// NewLimiter creates a limiter over the given store.
func NewLimiter(store Store, logger *slog.Logger) *Limiter {
	return &Limiter{store: store, logger: logger}
}

// Allow checks key against a budget of maxRequests per window. A store
// failure fails open: limiting protects the service, it must not take the
// service down with it.
func (l *Limiter) Allow(ctx context.Context, key string, maxRequests int, window time.Duration) Result {
	count, resetAt, err := l.store.Incr(ctx, key, window)
	if err != nil {
		l.logger.Warn("rate limit store unavailable, allowing request", "key", key, "error", err)
		return Result{Allowed: true, Limit: maxRequests, Remaining: maxRequests - 1, ResetAt: time.Now().Add(window)}
	}

	remaining := maxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	if count > int64(maxRequests) {
		retryAfter := time.Until(resetAt)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Result{
			Allowed:    false,
			Limit:      maxRequests,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfter,
		}
	}

	return Result{
		Allowed:   true,
		Limit:     maxRequests,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
