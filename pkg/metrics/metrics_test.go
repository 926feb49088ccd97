package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/swagdesk/swagdesk/pkg/memcache"
)

func TestListenerCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	l := NewListener(reg, "test")

	c := memcache.NewLRUCache("schemas", memcache.Config{MaxSize: 1}, nil)
	c.AddListener(l)

	c.Put("a", 1, 0)
	c.Get("a")
	c.Get("missing")
	c.Put("b", 2, 0) // evicts a
	c.Delete("b")

	assert.Equal(t, float64(1), testutil.ToFloat64(l.hits.WithLabelValues("schemas")))
	assert.Equal(t, float64(1), testutil.ToFloat64(l.misses.WithLabelValues("schemas")))
	assert.Equal(t, float64(2), testutil.ToFloat64(l.puts.WithLabelValues("schemas")))
	assert.Equal(t, float64(1), testutil.ToFloat64(l.evictions.WithLabelValues("schemas")))
	assert.Equal(t, float64(1), testutil.ToFloat64(l.invalidations.WithLabelValues("schemas")))
}

func TestListenerIgnoresOtherCaches(t *testing.T) {
	reg := prometheus.NewRegistry()
	l := NewListener(reg, "test")

	a := memcache.NewLRUCache("a", memcache.Config{}, nil)
	b := memcache.NewLRUCache("b", memcache.Config{}, nil)
	a.AddListener(l)
	b.AddListener(l)

	a.Put("k", 1, 0)
	b.Put("k", 1, 0)
	b.Put("k2", 2, 0)

	assert.Equal(t, float64(1), testutil.ToFloat64(l.puts.WithLabelValues("a")))
	assert.Equal(t, float64(2), testutil.ToFloat64(l.puts.WithLabelValues("b")))
}
