package exact

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	t.Run("should scope keys by project", func(t *testing.T) {
		assert.NotEqual(t, Key("p1", "hello"), Key("p2", "hello"))
	})

	t.Run("should be deterministic", func(t *testing.T) {
		assert.Equal(t, Key("p1", "hello"), Key("p1", "hello"))
	})

	t.Run("should differ by prompt", func(t *testing.T) {
		assert.NotEqual(t, Key("p1", "hello"), Key("p1", "hello "))
	})
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("should round trip entries", func(t *testing.T) {
		c := NewMemoryCache(time.Minute)
		defer c.Close()

		key := Key("p1", "what is rag")
		require.NoError(t, c.Set(ctx, key, &Entry{EntryID: "e1", Answer: "cached"}, 0))

		got, err := c.Get(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "e1", got.EntryID)
		assert.Equal(t, "cached", got.Answer)
	})

	t.Run("should miss on absent key", func(t *testing.T) {
		c := NewMemoryCache(time.Minute)
		defer c.Close()

		got, err := c.Get(ctx, Key("p1", "never stored"))
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("should expire entries", func(t *testing.T) {
		c := NewMemoryCache(time.Minute)
		defer c.Close()

		key := Key("p1", "short lived")
		require.NoError(t, c.Set(ctx, key, &Entry{Answer: "a"}, 10*time.Millisecond))
		time.Sleep(30 * time.Millisecond)

		got, err := c.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("should track stats", func(t *testing.T) {
		c := NewMemoryCache(time.Minute)
		defer c.Close()

		key := Key("p1", "x")
		require.NoError(t, c.Set(ctx, key, &Entry{Answer: "a"}, 0))
		c.Get(ctx, key)
		c.Get(ctx, Key("p1", "missing"))

		stats := c.Stats()
		assert.Equal(t, int64(1), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)
		assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
	})
}

func newTestRedis(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := DefaultRedisConfig()
	cfg.Addr = mr.Addr()
	c, err := NewRedisCache(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()

	t.Run("should round trip entries", func(t *testing.T) {
		c := newTestRedis(t)

		key := Key("p1", "what is caching")
		require.NoError(t, c.Set(ctx, key, &Entry{EntryID: "e2", Answer: "semantic caching"}, time.Minute))

		got, err := c.Get(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "e2", got.EntryID)
	})

	t.Run("should miss on absent key", func(t *testing.T) {
		c := newTestRedis(t)

		got, err := c.Get(ctx, Key("p1", "nothing"))
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("should delete entries", func(t *testing.T) {
		c := newTestRedis(t)

		key := Key("p1", "gone soon")
		require.NoError(t, c.Set(ctx, key, &Entry{Answer: "a"}, time.Minute))
		require.NoError(t, c.Delete(ctx, key))

		got, err := c.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("should ping", func(t *testing.T) {
		c := newTestRedis(t)
		assert.NoError(t, c.Ping(ctx))
	})
}

func TestDualCache(t *testing.T) {
	ctx := context.Background()

	newDual := func(t *testing.T) (*DualCache, *MemoryCache, *RedisCache) {
		l1 := NewMemoryCache(time.Minute)
		l2 := newTestRedis(t)
		return NewDualCache(l1, l2, time.Minute, nil), l1, l2
	}

	t.Run("should write through both layers", func(t *testing.T) {
		d, l1, l2 := newDual(t)

		key := Key("p1", "hi")
		require.NoError(t, d.Set(ctx, key, &Entry{Answer: "a"}, time.Minute))

		got, err := l1.Get(ctx, key)
		require.NoError(t, err)
		assert.NotNil(t, got)

		got, err = l2.Get(ctx, key)
		require.NoError(t, err)
		assert.NotNil(t, got)
	})

	t.Run("should backfill l1 from l2", func(t *testing.T) {
		d, l1, l2 := newDual(t)

		key := Key("p1", "only in redis")
		require.NoError(t, l2.Set(ctx, key, &Entry{Answer: "from l2"}, time.Minute))

		got, err := d.Get(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "from l2", got.Answer)

		// Next read is served locally.
		got, err = l1.Get(ctx, key)
		require.NoError(t, err)
		assert.NotNil(t, got)
	})

	t.Run("should delete from both layers", func(t *testing.T) {
		d, l1, l2 := newDual(t)

		key := Key("p1", "bye")
		require.NoError(t, d.Set(ctx, key, &Entry{Answer: "a"}, time.Minute))
		require.NoError(t, d.Delete(ctx, key))

		got, _ := l1.Get(ctx, key)
		assert.Nil(t, got)
		got, _ = l2.Get(ctx, key)
		assert.Nil(t, got)
	})
}
