package memcache

import "time"

// Entry is a single cached value with its bookkeeping.
type Entry struct {
	Key          string
	Value        any
	CreatedAt    time.Time
	LastAccessed time.Time
	AccessCount  int64
	SizeBytes    int64
	TTL          time.Duration
	Tags         map[string]struct{}
}

// Expired reports whether the entry's TTL has elapsed. Entries without a TTL
// never expire.
func (e *Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) > e.TTL
}

func (e *Entry) touch(now time.Time) {
	e.LastAccessed = now
	e.AccessCount++
}

// HasAnyTag reports whether the entry carries at least one of the given tags.
func (e *Entry) HasAnyTag(tags []string) bool {
	for _, t := range tags {
		if _, ok := e.Tags[t]; ok {
			return true
		}
	}
	return false
}

// Stats holds monotonic counters for one cache. Counters only ever move
// forward except through Reset.
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Puts          int64 `json:"puts"`
	Evictions     int64 `json:"evictions"`
	Expirations   int64 `json:"expirations"`
	Invalidations int64 `json:"invalidations"`
}

// HitRate returns the hit percentage, or 0 if no requests were made.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	*s = Stats{}
}
