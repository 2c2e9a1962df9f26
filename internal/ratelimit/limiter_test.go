package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLimiterEnforcesBudget(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	limiter := NewLimiter(store, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res := limiter.Allow(ctx, "ip:1", 3, time.Minute)
		if !res.Allowed {
			t.Fatalf("request %d denied within budget", i+1)
		}
		if res.Remaining != 3-(i+1) {
			t.Errorf("request %d remaining = %d, want %d", i+1, res.Remaining, 3-(i+1))
		}
	}

	res := limiter.Allow(ctx, "ip:1", 3, time.Minute)
	if res.Allowed {
		t.Error("4th request allowed over budget")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", res.RetryAfter)
	}

	// Separate keys have separate budgets.
	if res := limiter.Allow(ctx, "ip:2", 3, time.Minute); !res.Allowed {
		t.Error("different key denied")
	}
}

func TestMemoryStoreWindowReset(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	count, _, err := store.Incr(ctx, "k", 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if count, _, _ = store.Incr(ctx, "k", 10*time.Millisecond); count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	time.Sleep(20 * time.Millisecond)
	if count, _, _ = store.Incr(ctx, "k", 10*time.Millisecond); count != 1 {
		t.Errorf("count after window expiry = %d, want 1", count)
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	defer store.Close()
	ctx := context.Background()

	if _, _, err := store.Incr(ctx, "stale", 5*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	store.mu.Lock()
	_, present := store.entries["stale"]
	store.mu.Unlock()
	if present {
		t.Error("expired entry survived the sweep")
	}
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, context.DeadlineExceeded
}

func TestLimiterFailsOpen(t *testing.T) {
	limiter := NewLimiter(failingStore{}, testLogger())
	if res := limiter.Allow(context.Background(), "k", 1, time.Minute); !res.Allowed {
		t.Error("limiter denied request on store failure, want fail-open")
	}
}
