package exact

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DualCache layers a local memory cache (L1) over Redis (L2). Reads hit
// L1 first and backfill it from L2; writes go to both. An L2 outage
// degrades to L1-only operation instead of failing requests.
type DualCache struct {
	l1     *MemoryCache
	l2     *RedisCache
	l1TTL  time.Duration
	logger *slog.Logger
}

// NewDualCache creates a layered exact cache. l1TTL is typically much
// shorter than the Redis TTL so instances converge quickly after updates.
func NewDualCache(l1 *MemoryCache, l2 *RedisCache, l1TTL time.Duration, logger *slog.Logger) *DualCache {
	if logger == nil {
		logger = slog.Default()
	}
	if l1TTL <= 0 {
		l1TTL = time.Minute
	}
	return &DualCache{l1: l1, l2: l2, l1TTL: l1TTL, logger: logger}
}

// Get reads through L1 into L2, backfilling L1 on an L2 hit.
func (d *DualCache) Get(ctx context.Context, key string) (*Entry, error) {
	entry, err := d.l1.Get(ctx, key)
	if err == nil && entry != nil {
		return entry, nil
	}

	entry, err = d.l2.Get(ctx, key)
	if err != nil {
		d.logger.Warn("exact cache l2 read failed", "error", err)
		return nil, nil
	}
	if entry == nil {
		return nil, nil
	}

	if err := d.l1.Set(ctx, key, entry, d.l1TTL); err != nil {
		d.logger.Warn("exact cache l1 backfill failed", "error", err)
	}
	return entry, nil
}

// Set writes to both layers.
func (d *DualCache) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	if err := d.l1.Set(ctx, key, entry, d.l1TTL); err != nil {
		return err
	}
	if err := d.l2.Set(ctx, key, entry, ttl); err != nil {
		d.logger.Warn("exact cache l2 write failed", "error", err)
	}
	return nil
}

// Delete removes the key from both layers.
func (d *DualCache) Delete(ctx context.Context, key string) error {
	err1 := d.l1.Delete(ctx, key)
	err2 := d.l2.Delete(ctx, key)
	return errors.Join(err1, err2)
}

// Ping checks the shared layer; L1 is always healthy.
func (d *DualCache) Ping(ctx context.Context) error {
	return d.l2.Ping(ctx)
}

// Close releases both layers.
func (d *DualCache) Close() error {
	return errors.Join(d.l1.Close(), d.l2.Close())
}

// Stats merges counters from both layers.
func (d *DualCache) Stats() Stats {
	s1 := d.l1.Stats()
	s2 := d.l2.Stats()
	hits := s1.Hits + s2.Hits
	misses := s2.Misses
	return Stats{
		Hits:    hits,
		Misses:  misses,
		Sets:    s1.Sets,
		Errors:  s2.Errors,
		HitRate: hitRate(hits, misses),
	}
}
