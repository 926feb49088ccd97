package memcache

import (
	"sort"
	"sync"
	"time"
)

type access struct {
	key string
	at  time.Time
}

// HotDataDetector tracks access frequency over a sliding window of the most
// recent accesses and flags keys that account for an outsized share of them.
type HotDataDetector struct {
	mu             sync.Mutex
	windowSize     int
	thresholdRatio float64
	history        []access
	counts         map[string]int
}

// NewHotDataDetector creates a detector. windowSize <= 0 defaults to 1000
// accesses, thresholdRatio <= 0 defaults to 0.1.
func NewHotDataDetector(windowSize int, thresholdRatio float64) *HotDataDetector {
	if windowSize <= 0 {
		windowSize = 1000
	}
	if thresholdRatio <= 0 {
		thresholdRatio = 0.1
	}
	return &HotDataDetector{
		windowSize:     windowSize,
		thresholdRatio: thresholdRatio,
		counts:         make(map[string]int),
	}
}

// RecordAccess appends an access to the window, rolling the oldest one off
// once the window is full.
func (d *HotDataDetector) RecordAccess(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.history = append(d.history, access{key: key, at: time.Now()})
	d.counts[key]++

	if len(d.history) > d.windowSize {
		oldest := d.history[0]
		d.history = d.history[1:]
		d.counts[oldest.key]--
		if d.counts[oldest.key] <= 0 {
			delete(d.counts, oldest.key)
		}
	}
}

// HotKeys returns the keys whose in-window access count meets the threshold,
// most-accessed first.
func (d *HotDataDetector) HotKeys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	threshold := float64(len(d.history)) * d.thresholdRatio
	var hot []string
	for key, count := range d.counts {
		if float64(count) >= threshold {
			hot = append(hot, key)
		}
	}
	sort.Slice(hot, func(i, j int) bool {
		if d.counts[hot[i]] != d.counts[hot[j]] {
			return d.counts[hot[i]] > d.counts[hot[j]]
		}
		return hot[i] < hot[j]
	})
	return hot
}

// AccessCount returns the in-window count for a key.
func (d *HotDataDetector) AccessCount(key string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[key]
}
