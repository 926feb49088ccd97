package memcache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, cfg Config) *LRUCache {
	t.Helper()
	return NewLRUCache("test", cfg, nil)
}

func TestGetMissOnEmptyCache(t *testing.T) {
	c := newTestCache(t, Config{})

	v, ok := c.Get("x")
	assert.Nil(t, v)
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(0), stats.Hits)
}

func TestPutThenGet(t *testing.T) {
	c := newTestCache(t, Config{})

	require.True(t, c.Put("k", "value", 0))
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "value", v)
	assert.Equal(t, int64(1), c.Stats().Hits)
}

func TestLRUEviction(t *testing.T) {
	c := newTestCache(t, Config{MaxSize: 2})

	require.True(t, c.Put("a", 1, 0))
	require.True(t, c.Put("b", 2, 0))
	require.True(t, c.Put("c", 3, 0))

	_, ok := c.Get("a")
	assert.False(t, ok, "a should have been evicted")

	v, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = c.Get("c")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestGetRefreshesRecency(t *testing.T) {
	c := newTestCache(t, Config{MaxSize: 2})

	c.Put("a", 1, 0)
	c.Put("b", 2, 0)
	c.Get("a") // a is now most recent; b is the eviction candidate
	c.Put("c", 3, 0)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
}

func TestBoundsHoldUnderManyPuts(t *testing.T) {
	c := newTestCache(t, Config{MaxSize: 10, MaxMemoryBytes: 1024})

	for i := 0; i < 100; i++ {
		require.True(t, c.Put(fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i), 0))
		assert.LessOrEqual(t, c.Len(), 10)
		assert.LessOrEqual(t, c.MemoryUsage(), int64(1024))
	}
}

func TestPutRejectsOversizedValue(t *testing.T) {
	c := newTestCache(t, Config{MaxMemoryBytes: 16})

	big := make([]byte, 1024)
	assert.False(t, c.Put("big", big, 0))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t, Config{})

	require.True(t, c.Put("k", "v", 5*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	v, ok := c.Get("k")
	assert.Nil(t, v)
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Expirations)
	assert.Equal(t, 0, c.Len(), "expired entry must be purged from storage")
}

func TestGetSweepsAllExpiredEntries(t *testing.T) {
	c := newTestCache(t, Config{})

	c.Put("short-1", 1, 5*time.Millisecond)
	c.Put("short-2", 2, 5*time.Millisecond)
	c.Put("long", 3, time.Hour)
	time.Sleep(20 * time.Millisecond)

	// Looking up an unrelated key still purges every expired entry.
	c.Get("long")
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(2), c.Stats().Expirations)
}

func TestDelete(t *testing.T) {
	c := newTestCache(t, Config{})

	c.Put("k", "v", 0)
	assert.True(t, c.Delete("k"))
	assert.False(t, c.Delete("k"))
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestInvalidateByTags(t *testing.T) {
	c := newTestCache(t, Config{})

	c.Put("a", 1, 0, "users")
	c.Put("b", 2, 0, "users", "admin")
	c.Put("c", 3, 0, "orders")
	c.Put("d", 4, 0)

	removed := c.InvalidateByTags("users")
	assert.Equal(t, 2, removed)

	_, ok := c.Get("c")
	assert.True(t, ok)
	_, ok = c.Get("d")
	assert.True(t, ok)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestInvalidateByPattern(t *testing.T) {
	c := newTestCache(t, Config{})

	c.Put("user:1", 1, 0)
	c.Put("user:2", 2, 0)
	c.Put("order:1", 3, 0)

	assert.Equal(t, 2, c.InvalidateByPattern("user:*"))
	assert.Equal(t, 1, c.Len())

	assert.Equal(t, 1, c.InvalidateByPattern("*:1"))
	assert.Equal(t, 0, c.Len())
}

func TestInvalidateByPatternFollowsDependencies(t *testing.T) {
	c := newTestCache(t, Config{})

	c.Put("base", 1, 0)
	c.Put("derived", 2, 0)
	c.Put("unrelated", 3, 0)
	c.Consistency().AddDependency("derived", "base")

	removed := c.InvalidateByPattern("base")
	assert.Equal(t, 2, removed)

	_, ok := c.Get("derived")
	assert.False(t, ok)
	_, ok = c.Get("unrelated")
	assert.True(t, ok)
}

func TestClearResetsStats(t *testing.T) {
	c := newTestCache(t, Config{})

	c.Put("k", "v", 0)
	c.Get("k")
	c.Get("missing")
	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.Equal(t, Stats{}, c.Stats())
}

func TestOptimizeEvictsColdQuartile(t *testing.T) {
	// Values sized so 8 entries sit above 80% of the memory bound.
	c := newTestCache(t, Config{MaxSize: 100, MaxMemoryBytes: 1000})

	for i := 0; i < 8; i++ {
		c.Put(fmt.Sprintf("k%d", i), make([]byte, 80), 0)
	}
	// Heat up everything except k0 and k1.
	for i := 2; i < 8; i++ {
		for j := 0; j < 3; j++ {
			c.Get(fmt.Sprintf("k%d", i))
		}
	}
	require.Greater(t, c.MemoryUsage(), int64(800))

	c.Optimize()

	assert.Equal(t, 6, c.Len())
	_, ok := c.Get("k0")
	assert.False(t, ok)
	_, ok = c.Get("k1")
	assert.False(t, ok)
}

func TestListenerEvents(t *testing.T) {
	c := newTestCache(t, Config{MaxSize: 1})

	var kinds []EventKind
	c.AddListener(ListenerFunc(func(ev Event) {
		kinds = append(kinds, ev.Kind)
	}))

	c.Put("a", 1, 0)
	c.Get("a")
	c.Get("missing")
	c.Put("b", 2, 0) // evicts a
	c.Delete("b")

	assert.Equal(t, []EventKind{EventPut, EventHit, EventMiss, EventEvict, EventPut, EventInvalidate}, kinds)
}

func TestPanickingListenerIsIsolated(t *testing.T) {
	c := newTestCache(t, Config{})

	var called bool
	c.AddListener(ListenerFunc(func(Event) { panic("bad listener") }))
	c.AddListener(ListenerFunc(func(Event) { called = true }))

	require.True(t, c.Put("k", "v", 0))
	assert.True(t, called, "second listener must still run")
}

func TestHitRate(t *testing.T) {
	c := newTestCache(t, Config{})

	assert.Equal(t, float64(0), c.Stats().HitRate())

	c.Put("k", "v", 0)
	c.Get("k")
	c.Get("k")
	c.Get("missing")
	c.Get("missing")

	assert.InDelta(t, 50.0, c.Stats().HitRate(), 0.001)
}

func TestEstimateSizeFallback(t *testing.T) {
	// Channels are not JSON-encodable; the heuristic fallback applies.
	assert.Equal(t, int64(64), estimateSize(make(chan int)))
	// JSON-encodable values are sized by their encoding.
	assert.Equal(t, int64(9), estimateSize("seven.."))
}
