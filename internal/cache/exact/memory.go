package exact

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the in-process exact-match backend.
type MemoryCache struct {
	cache *gocache.Cache

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// NewMemoryCache creates an in-memory exact cache. defaultTTL bounds how
// long a stale answer can be served after its semantic entry changes.
func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &MemoryCache{
		cache: gocache.New(defaultTTL, defaultTTL*2),
	}
}

// Get retrieves the entry for a key.
func (m *MemoryCache) Get(_ context.Context, key string) (*Entry, error) {
	val, found := m.cache.Get(key)
	if !found {
		m.misses.Add(1)
		return nil, nil
	}
	entry, ok := val.(*Entry)
	if !ok {
		m.misses.Add(1)
		return nil, nil
	}
	m.hits.Add(1)
	return entry, nil
}

// Set stores an entry under a key.
func (m *MemoryCache) Set(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.cache.Set(key, entry, ttl)
	m.sets.Add(1)
	return nil
}

// Delete removes a key.
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

// Ping always succeeds for the in-process backend.
func (m *MemoryCache) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (m *MemoryCache) Close() error {
	m.cache.Flush()
	return nil
}

// Stats returns hit and miss counters.
func (m *MemoryCache) Stats() Stats {
	hits := m.hits.Load()
	misses := m.misses.Load()
	return Stats{
		Hits:    hits,
		Misses:  misses,
		Sets:    m.sets.Load(),
		HitRate: hitRate(hits, misses),
	}
}
