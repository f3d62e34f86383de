package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local fixed-window counter map. It exists to keep
// local development working without the distributed backend and must not be
// selected in production: counters are per-process and entries are only
// reclaimed by window rollover.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

type memoryWindow struct {
	count int64
	reset time.Time
}

// NewMemoryStore builds an empty in-process counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

// IncrWithTTL increments the key's counter within its current fixed window,
// starting a new window when the previous one elapsed.
func (m *MemoryStore) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	window, ok := m.windows[key]
	if !ok || !now.Before(window.reset) {
		window = &memoryWindow{reset: now.Add(ttl)}
		m.windows[key] = window
	}
	window.count++
	return window.count, nil
}
