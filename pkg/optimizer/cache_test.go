package optimizer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryCachePutGet(t *testing.T) {
	c := NewQueryCache(10, time.Minute)

	result := []map[string]any{{"id": int64(1)}}
	c.Put("SELECT 1", nil, result)

	got, ok := c.Get("SELECT 1", nil)
	require.True(t, ok)
	assert.Equal(t, result, got)
}

func TestQueryCacheKeyIncludesParameters(t *testing.T) {
	c := NewQueryCache(10, time.Minute)

	c.Put("SELECT * FROM t WHERE id = ?", []any{1}, []map[string]any{{"id": int64(1)}})

	_, ok := c.Get("SELECT * FROM t WHERE id = ?", []any{2})
	assert.False(t, ok)
}

func TestQueryCacheTTL(t *testing.T) {
	c := NewQueryCache(10, 5*time.Millisecond)

	c.Put("SELECT 1", nil, nil)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("SELECT 1", nil)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Entries, "expired entry is dropped on lookup")
}

func TestQueryCacheLRUEviction(t *testing.T) {
	c := NewQueryCache(2, time.Minute)

	c.Put("q1", nil, nil)
	c.Put("q2", nil, nil)
	c.Get("q1", nil) // refresh q1; q2 becomes the eviction candidate
	c.Put("q3", nil, nil)

	_, ok := c.Get("q2", nil)
	assert.False(t, ok)
	_, ok = c.Get("q1", nil)
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestQueryCacheClear(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	for i := 0; i < 5; i++ {
		c.Put(fmt.Sprintf("q%d", i), nil, nil)
	}
	c.Clear()
	assert.Equal(t, 0, c.Stats().Entries)
}
