package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process counter store. Expired windows are removed by
// a background sweep so an abusive key set cannot grow the map forever.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	stopCh  chan struct{}
	once    sync.Once
}

type memoryEntry struct {
	count   int64
	resetAt time.Time
}

// NewMemoryStore creates a memory store sweeping expired windows every
// sweepInterval.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		stopCh:  make(chan struct{}),
	}
	go s.sweep(sweepInterval)
	return s
}

// Incr implements Store.
func (s *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || now.After(entry.resetAt) {
		entry = &memoryEntry{resetAt: now.Add(window)}
		s.entries[key] = entry
	}
	entry.count++
	return entry.count, entry.resetAt, nil
}

// Close stops the background sweep.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stopCh) })
}

func (s *MemoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, entry := range s.entries {
				if now.After(entry.resetAt) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
