package memcache

import (
	"strings"
	"sync"
)

// ConsistencyManager tracks which cache keys depend on which others and
// computes the transitive set of keys to drop when one of them changes.
// It holds key names only, never values; the owning cache does the actual
// eviction.
type ConsistencyManager struct {
	mu sync.Mutex
	// dependents[x] = keys that depend on x and must be invalidated with it.
	dependents map[string]map[string]struct{}
	dependsOn  map[string]map[string]struct{}
	callbacks  []patternCallback
}

type patternCallback struct {
	pattern string
	fn      func(key string)
}

// NewConsistencyManager creates an empty dependency graph.
func NewConsistencyManager() *ConsistencyManager {
	return &ConsistencyManager{
		dependents: make(map[string]map[string]struct{}),
		dependsOn:  make(map[string]map[string]struct{}),
	}
}

// AddDependency records that key must be invalidated whenever dependsOn is.
func (m *ConsistencyManager) AddDependency(key, dependsOn string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dependents[dependsOn] == nil {
		m.dependents[dependsOn] = make(map[string]struct{})
	}
	m.dependents[dependsOn][key] = struct{}{}

	if m.dependsOn[key] == nil {
		m.dependsOn[key] = make(map[string]struct{})
	}
	m.dependsOn[key][dependsOn] = struct{}{}
}

// RemoveDependency removes the edge in both directions.
func (m *ConsistencyManager) RemoveDependency(key, dependsOn string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if deps := m.dependents[dependsOn]; deps != nil {
		delete(deps, key)
		if len(deps) == 0 {
			delete(m.dependents, dependsOn)
		}
	}
	if rev := m.dependsOn[key]; rev != nil {
		delete(rev, dependsOn)
		if len(rev) == 0 {
			delete(m.dependsOn, key)
		}
	}
}

// RegisterPatternCallback invokes fn for every invalidated key that matches
// pattern (glob-lite, see MatchPattern).
func (m *ConsistencyManager) RegisterPatternCallback(pattern string, fn func(key string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, patternCallback{pattern: pattern, fn: fn})
}

// InvalidateKey walks the dependency graph breadth-first from key and returns
// every key reachable through dependent edges, key itself included. Pattern
// callbacks fire once per visited key. Cycles are safe: each key is visited
// at most once.
func (m *ConsistencyManager) InvalidateKey(key string) map[string]struct{} {
	m.mu.Lock()
	callbacks := make([]patternCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)

	visited := map[string]struct{}{key: {}}
	queue := []string{key}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for dep := range m.dependents[current] {
			if _, seen := visited[dep]; seen {
				continue
			}
			visited[dep] = struct{}{}
			queue = append(queue, dep)
		}
	}
	m.mu.Unlock()

	for visitedKey := range visited {
		for _, cb := range callbacks {
			if MatchPattern(cb.pattern, visitedKey) {
				func() {
					defer func() { _ = recover() }()
					cb.fn(visitedKey)
				}()
			}
		}
	}
	return visited
}

// MatchPattern implements the glob-lite pattern syntax shared by the cache
// invalidation APIs: "*" matches everything, "prefix*" matches by prefix,
// "*suffix" matches by suffix, anything else is an exact match.
func MatchPattern(pattern, key string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(key, pattern[:len(pattern)-1])
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(key, pattern[1:])
	default:
		return pattern == key
	}
}
