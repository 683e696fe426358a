package cache

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process Backend. Entries live as long as the process.
type Memory struct {
	cache  *gocache.Cache
	closed atomic.Bool
}

// NewMemory creates a Memory backend. Expired entries are invisible immediately and are
// purged every cleanupInterval; a cleanupInterval of zero or less disables the background
// purge. A positive cleanupInterval starts a janitor goroutine that Close does not stop; it
// exits only once the Memory is garbage collected.
func NewMemory(cleanupInterval time.Duration) *Memory {
	return &Memory{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Get implements Backend.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.closed.Load() {
		return nil, false, ErrClosed
	}
	value, found := m.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	data, ok := value.([]byte)
	if !ok {
		m.cache.Delete(key)
		return nil, false, nil
	}
	return data, true, nil
}

// Set implements Backend.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.cache.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Delete implements Backend.
func (m *Memory) Delete(_ context.Context, key string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.cache.Delete(key)
	return nil
}

// Len returns the number of stored entries, expired ones included until purged.
func (m *Memory) Len() int {
	return m.cache.ItemCount()
}

// Close drops every entry. Further calls fail with ErrClosed. The janitor started by a
// positive cleanupInterval keeps running until the Memory is garbage collected.
func (m *Memory) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.cache.Flush()
	return nil
}
