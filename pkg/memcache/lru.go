package memcache

import (
	"container/list"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config controls a single LRUCache.
type Config struct {
	MaxSize           int           `yaml:"max_size"`
	MaxMemoryBytes    int64         `yaml:"max_memory_bytes"`
	DefaultTTL        time.Duration `yaml:"default_ttl"`
	HotWindowSize     int           `yaml:"hot_window_size"`
	HotThresholdRatio float64       `yaml:"hot_threshold_ratio"`
}

// DefaultConfig returns the defaults applied to zero-valued fields.
func DefaultConfig() Config {
	return Config{
		MaxSize:           1000,
		MaxMemoryBytes:    64 << 20,
		HotWindowSize:     1000,
		HotThresholdRatio: 0.1,
	}
}

// merged fills zero-valued fields of c from DefaultConfig. DefaultTTL stays
// as given: zero means entries never expire.
func (c Config) merged() Config {
	def := DefaultConfig()
	if c.MaxSize <= 0 {
		c.MaxSize = def.MaxSize
	}
	if c.MaxMemoryBytes <= 0 {
		c.MaxMemoryBytes = def.MaxMemoryBytes
	}
	if c.HotWindowSize <= 0 {
		c.HotWindowSize = def.HotWindowSize
	}
	if c.HotThresholdRatio <= 0 {
		c.HotThresholdRatio = def.HotThresholdRatio
	}
	return c
}

// LRUCache is a fixed-capacity, TTL-aware, memory-bounded cache with hotspot
// detection and dependency-driven invalidation. Safe for concurrent use.
type LRUCache struct {
	mu          sync.Mutex
	name        string
	cfg         Config
	items       map[string]*list.Element
	order       *list.List // front = most recently used
	currentMem  int64
	stats       Stats
	hot         *HotDataDetector
	consistency *ConsistencyManager
	listeners   []Listener
	logger      *zap.Logger
}

// NewLRUCache creates a cache. A nil logger disables logging.
func NewLRUCache(name string, cfg Config, logger *zap.Logger) *LRUCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.merged()
	return &LRUCache{
		name:        name,
		cfg:         cfg,
		items:       make(map[string]*list.Element),
		order:       list.New(),
		hot:         NewHotDataDetector(cfg.HotWindowSize, cfg.HotThresholdRatio),
		consistency: NewConsistencyManager(),
		logger:      logger,
	}
}

// Name returns the cache's registry name.
func (c *LRUCache) Name() string { return c.name }

// AddListener registers an event observer.
func (c *LRUCache) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Consistency exposes the cache's dependency graph so callers can wire
// key-to-key invalidation edges.
func (c *LRUCache) Consistency() *ConsistencyManager { return c.consistency }

// HotKeys returns the currently hot keys, most accessed first.
func (c *LRUCache) HotKeys() []string { return c.hot.HotKeys() }

// Get returns the value for key, or (nil, false) on a miss. Every call first
// sweeps expired entries out of the whole cache; hits refresh recency and
// access counters.
func (c *LRUCache) Get(key string) (any, bool) {
	c.hot.RecordAccess(key)
	now := time.Now()

	c.mu.Lock()
	events := c.purgeExpired(now)

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		c.mu.Unlock()
		events = append(events, Event{Kind: EventMiss, Cache: c.name, Key: key})
		c.emit(events)
		return nil, false
	}

	entry := elem.Value.(*Entry)
	entry.touch(now)
	c.order.MoveToFront(elem)
	c.stats.Hits++
	value := entry.Value
	c.mu.Unlock()

	events = append(events, Event{Kind: EventHit, Cache: c.name, Key: key, Value: value})
	c.emit(events)
	return value, true
}

// Put stores value under key, evicting least-recently-used entries until both
// the entry-count and memory bounds hold. A value whose estimated size alone
// exceeds the memory bound is rejected and the cache is left untouched.
// ttl <= 0 selects the cache default; tags drive InvalidateByTags.
func (c *LRUCache) Put(key string, value any, ttl time.Duration, tags ...string) bool {
	size := estimateSize(value)
	if size > c.cfg.MaxMemoryBytes {
		c.logger.Warn("cache value exceeds memory limit",
			zap.String("cache", c.name),
			zap.String("key", key),
			zap.Int64("size_bytes", size),
			zap.Int64("max_memory_bytes", c.cfg.MaxMemoryBytes))
		return false
	}
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	now := time.Now()
	entry := &Entry{
		Key:          key,
		Value:        value,
		CreatedAt:    now,
		LastAccessed: now,
		SizeBytes:    size,
		TTL:          ttl,
		Tags:         tagSet(tags),
	}

	c.mu.Lock()
	if old, ok := c.items[key]; ok {
		c.removeElement(old)
	}
	elem := c.order.PushFront(entry)
	c.items[key] = elem
	c.currentMem += size
	c.stats.Puts++

	var events []Event
	for c.order.Len() > c.cfg.MaxSize || c.currentMem > c.cfg.MaxMemoryBytes {
		back := c.order.Back()
		if back == nil {
			break
		}
		evicted := back.Value.(*Entry)
		c.removeElement(back)
		c.stats.Evictions++
		events = append(events, Event{Kind: EventEvict, Cache: c.name, Key: evicted.Key})
	}
	c.mu.Unlock()

	events = append(events, Event{Kind: EventPut, Cache: c.name, Key: key, Value: value})
	c.emit(events)
	return true
}

// Delete removes key if present and reports whether it was.
func (c *LRUCache) Delete(key string) bool {
	c.mu.Lock()
	elem, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.removeElement(elem)
	c.stats.Invalidations++
	c.mu.Unlock()

	c.emit([]Event{{Kind: EventInvalidate, Cache: c.name, Key: key}})
	return true
}

// InvalidateByTags removes every entry whose tag set intersects tags and
// returns the number removed.
func (c *LRUCache) InvalidateByTags(tags ...string) int {
	c.mu.Lock()
	var doomed []string
	for key, elem := range c.items {
		if elem.Value.(*Entry).HasAnyTag(tags) {
			doomed = append(doomed, key)
		}
	}
	events := make([]Event, 0, len(doomed))
	for _, key := range doomed {
		c.removeElement(c.items[key])
		c.stats.Invalidations++
		events = append(events, Event{Kind: EventInvalidate, Cache: c.name, Key: key})
	}
	c.mu.Unlock()

	c.emit(events)
	return len(doomed)
}

// InvalidateByPattern removes every entry whose key matches the glob-lite
// pattern, plus the transitive closure of keys depending on them per the
// consistency manager. Returns the number of entries actually removed.
func (c *LRUCache) InvalidateByPattern(pattern string) int {
	c.mu.Lock()
	var matched []string
	for key := range c.items {
		if MatchPattern(pattern, key) {
			matched = append(matched, key)
		}
	}
	c.mu.Unlock()

	doomed := make(map[string]struct{})
	for _, key := range matched {
		for dep := range c.consistency.InvalidateKey(key) {
			doomed[dep] = struct{}{}
		}
	}

	c.mu.Lock()
	removed := 0
	var events []Event
	for key := range doomed {
		elem, ok := c.items[key]
		if !ok {
			continue
		}
		c.removeElement(elem)
		c.stats.Invalidations++
		removed++
		events = append(events, Event{Kind: EventInvalidate, Cache: c.name, Key: key})
	}
	c.mu.Unlock()

	c.emit(events)
	return removed
}

// Clear drops every entry and resets the memory counter and stats.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.currentMem = 0
	c.stats.Reset()
}

// Optimize purges expired entries and, when memory usage exceeds 80% of the
// bound, evicts the least-frequently-and-least-recently accessed quartile.
func (c *LRUCache) Optimize() {
	now := time.Now()

	c.mu.Lock()
	events := c.purgeExpired(now)

	if float64(c.currentMem) > float64(c.cfg.MaxMemoryBytes)*0.8 {
		entries := make([]*Entry, 0, c.order.Len())
		for elem := c.order.Front(); elem != nil; elem = elem.Next() {
			entries = append(entries, elem.Value.(*Entry))
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].AccessCount != entries[j].AccessCount {
				return entries[i].AccessCount < entries[j].AccessCount
			}
			return entries[i].LastAccessed.Before(entries[j].LastAccessed)
		})
		n := len(entries) / 4
		if n < 1 {
			n = 1
		}
		for _, entry := range entries[:n] {
			if elem, ok := c.items[entry.Key]; ok {
				c.removeElement(elem)
				c.stats.Evictions++
				events = append(events, Event{Kind: EventEvict, Cache: c.name, Key: entry.Key})
			}
		}
	}
	c.mu.Unlock()

	c.emit(events)
}

// Stats returns a snapshot of the cache's counters.
func (c *LRUCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Len returns the number of live entries.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// MemoryUsage returns the tracked byte total.
func (c *LRUCache) MemoryUsage() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentMem
}

// purgeExpired removes every expired entry. Caller holds the lock.
func (c *LRUCache) purgeExpired(now time.Time) []Event {
	var events []Event
	for key, elem := range c.items {
		if elem.Value.(*Entry).Expired(now) {
			c.removeElement(elem)
			c.stats.Expirations++
			events = append(events, Event{Kind: EventExpire, Cache: c.name, Key: key})
		}
	}
	return events
}

// removeElement unlinks an entry and releases its bytes. Caller holds the lock.
func (c *LRUCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*Entry)
	delete(c.items, entry.Key)
	c.order.Remove(elem)
	c.currentMem -= entry.SizeBytes
}

// emit fires events to listeners outside the cache lock so listeners may call
// back into the cache.
func (c *LRUCache) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	c.mu.Lock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()
	for _, ev := range events {
		notify(listeners, ev)
	}
}

func tagSet(tags []string) map[string]struct{} {
	if len(tags) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

// estimateSize guesses a value's in-memory footprint by probing its JSON
// encoding, falling back to a per-type heuristic for unencodable values.
func estimateSize(v any) int64 {
	if data, err := json.Marshal(v); err == nil {
		return int64(len(data))
	}
	switch vv := v.(type) {
	case string:
		return int64(len(vv))
	case []byte:
		return int64(len(vv))
	case bool:
		return 1
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return 8
	default:
		return 64
	}
}
