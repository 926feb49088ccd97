package optimizer

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// QueryCache memoizes SQL result sets keyed by query text and parameters.
// LRU with a fixed entry count and a single TTL; no byte accounting.
type QueryCache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	items      map[string]*list.Element
	order      *list.List // front = most recently used
	hits       int64
	misses     int64
	evictions  int64
}

type queryCacheEntry struct {
	key      string
	result   []map[string]any
	cachedAt time.Time
}

// NewQueryCache creates a cache. maxEntries <= 0 defaults to 1000,
// ttl <= 0 defaults to 5 minutes.
func NewQueryCache(maxEntries int, ttl time.Duration) *QueryCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		items:      make(map[string]*list.Element),
		order:      list.New(),
	}
}

func cacheKey(query string, args []any) string {
	return fmt.Sprintf("%s|%v", query, args)
}

// Get returns the memoized result for (query, args), or (nil, false).
func (c *QueryCache) Get(query string, args []any) ([]map[string]any, bool) {
	key := cacheKey(query, args)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	entry := elem.Value.(*queryCacheEntry)
	if time.Since(entry.cachedAt) > c.ttl {
		c.removeElement(elem)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(elem)
	c.hits++
	return entry.result, true
}

// Put memoizes a result, evicting the least recently used entry when full.
func (c *QueryCache) Put(query string, args []any, result []map[string]any) {
	key := cacheKey(query, args)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	for c.order.Len() >= c.maxEntries {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.removeElement(back)
		c.evictions++
	}
	elem := c.order.PushFront(&queryCacheEntry{key: key, result: result, cachedAt: time.Now()})
	c.items[key] = elem
}

// Clear drops all memoized results.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// CacheStats reports the cache's counters.
type CacheStats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// Stats returns a snapshot of the counters.
func (c *QueryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Entries:   c.order.Len(),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

func (c *QueryCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*queryCacheEntry)
	delete(c.items, entry.key)
	c.order.Remove(elem)
}
