package memcache

import (
	"sync"

	"go.uber.org/zap"
)

// System is a registry of named LRUCache instances sharing a default
// configuration. Every cache it creates feeds one set of global counters
// alongside the cache's own stats.
type System struct {
	mu       sync.Mutex
	defaults Config
	caches   map[string]*LRUCache
	logger   *zap.Logger

	globalMu sync.Mutex
	global   Stats
}

// NewSystem creates a registry applying defaults to every cache it constructs.
func NewSystem(defaults Config, logger *zap.Logger) *System {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &System{
		defaults: defaults.merged(),
		caches:   make(map[string]*LRUCache),
		logger:   logger,
	}
}

// GetCache returns the named cache, creating it on first access. A non-nil
// cfg overrides the registry defaults field-by-field for a newly created
// cache; it is ignored when the cache already exists.
func (s *System) GetCache(name string, cfg *Config) *LRUCache {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cache, ok := s.caches[name]; ok {
		return cache
	}

	merged := s.defaults
	if cfg != nil {
		if cfg.MaxSize > 0 {
			merged.MaxSize = cfg.MaxSize
		}
		if cfg.MaxMemoryBytes > 0 {
			merged.MaxMemoryBytes = cfg.MaxMemoryBytes
		}
		if cfg.DefaultTTL > 0 {
			merged.DefaultTTL = cfg.DefaultTTL
		}
		if cfg.HotWindowSize > 0 {
			merged.HotWindowSize = cfg.HotWindowSize
		}
		if cfg.HotThresholdRatio > 0 {
			merged.HotThresholdRatio = cfg.HotThresholdRatio
		}
	}

	cache := NewLRUCache(name, merged, s.logger.With(zap.String("cache", name)))
	cache.AddListener(ListenerFunc(s.recordGlobal))
	s.caches[name] = cache
	return cache
}

// Names returns the registered cache names.
func (s *System) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.caches))
	for name := range s.caches {
		names = append(names, name)
	}
	return names
}

// GlobalStats returns counters aggregated across every managed cache.
func (s *System) GlobalStats() Stats {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	return s.global
}

// CacheStats returns a per-cache stats snapshot.
func (s *System) CacheStats() map[string]Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Stats, len(s.caches))
	for name, cache := range s.caches {
		out[name] = cache.Stats()
	}
	return out
}

// OptimizeAll runs maintenance on every managed cache.
func (s *System) OptimizeAll() {
	for _, cache := range s.snapshot() {
		cache.Optimize()
	}
}

// ClearAll drops every entry from every managed cache.
func (s *System) ClearAll() {
	for _, cache := range s.snapshot() {
		cache.Clear()
	}
}

func (s *System) snapshot() []*LRUCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	caches := make([]*LRUCache, 0, len(s.caches))
	for _, cache := range s.caches {
		caches = append(caches, cache)
	}
	return caches
}

func (s *System) recordGlobal(ev Event) {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	switch ev.Kind {
	case EventHit:
		s.global.Hits++
	case EventMiss:
		s.global.Misses++
	case EventPut:
		s.global.Puts++
	case EventEvict:
		s.global.Evictions++
	case EventExpire:
		s.global.Expirations++
	case EventInvalidate:
		s.global.Invalidations++
	}
}
