// Package metrics exposes cache activity as Prometheus counters through the
// cache event listener seam.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/swagdesk/swagdesk/pkg/memcache"
)

// Listener counts cache events per cache name.
type Listener struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	puts          *prometheus.CounterVec
	evictions     *prometheus.CounterVec
	expirations   *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

// NewListener creates a Listener registered with reg. An empty namespace
// defaults to "swagdesk".
func NewListener(reg prometheus.Registerer, namespace string) *Listener {
	if namespace == "" {
		namespace = "swagdesk"
	}
	factory := promauto.With(reg)
	counter := func(name, help string) *prometheus.CounterVec {
		return factory.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help},
			[]string{"cache"},
		)
	}
	return &Listener{
		hits:          counter("cache_hits_total", "Total number of cache hits"),
		misses:        counter("cache_misses_total", "Total number of cache misses"),
		puts:          counter("cache_puts_total", "Total number of cache inserts"),
		evictions:     counter("cache_evictions_total", "Total number of cache evictions"),
		expirations:   counter("cache_expirations_total", "Total number of TTL expirations"),
		invalidations: counter("cache_invalidations_total", "Total number of explicit invalidations"),
	}
}

// HandleCacheEvent implements memcache.Listener.
func (l *Listener) HandleCacheEvent(ev memcache.Event) {
	switch ev.Kind {
	case memcache.EventHit:
		l.hits.WithLabelValues(ev.Cache).Inc()
	case memcache.EventMiss:
		l.misses.WithLabelValues(ev.Cache).Inc()
	case memcache.EventPut:
		l.puts.WithLabelValues(ev.Cache).Inc()
	case memcache.EventEvict:
		l.evictions.WithLabelValues(ev.Cache).Inc()
	case memcache.EventExpire:
		l.expirations.WithLabelValues(ev.Cache).Inc()
	case memcache.EventInvalidate:
		l.invalidations.WithLabelValues(ev.Cache).Inc()
	}
}
