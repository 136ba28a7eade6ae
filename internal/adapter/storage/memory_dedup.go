package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/gift-market/internal/port"
)

// MemoryDedup is the single-process stand-in for RedisAdapter.
type MemoryDedup struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]time.Time
}

func NewMemoryDedup(ttl time.Duration) *MemoryDedup {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	return &MemoryDedup{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
}

func (m *MemoryDedup) Reserve(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expires, ok := m.entries[key]; ok && now.Before(expires) {
		return false, nil
	}

	m.entries[key] = now.Add(m.ttl)
	m.sweep(now)
	return true, nil
}

func (m *MemoryDedup) Release(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// sweep drops expired keys once the map grows; caller holds mu.
func (m *MemoryDedup) sweep(now time.Time) {
	if len(m.entries) < 1024 {
		return
	}
	for k, expires := range m.entries {
		if !now.Before(expires) {
			delete(m.entries, k)
		}
	}
}

var _ port.DedupRepository = (*MemoryDedup)(nil)
