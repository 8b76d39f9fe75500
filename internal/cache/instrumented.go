package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters carry a "cache" label holding the Options.Group of the instance.
var (
	HitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits.",
		},
		[]string{"cache"},
	)

	MissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses.",
		},
		[]string{"cache"},
	)

	EvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of entries evicted from the cache.",
		},
		[]string{"cache"},
	)
)

func init() {
	prometheus.MustRegister(HitsTotal, MissesTotal, EvictionsTotal)
}

// instrumentedCache counts hits and misses for its group.
type instrumentedCache struct {
	Cache
	group string
}

func newInstrumentedCache(inner Cache, group string) *instrumentedCache {
	registerEntriesGauge(group, inner.Len)
	return &instrumentedCache{Cache: inner, group: group}
}

func (c *instrumentedCache) Get(key string) ([]byte, bool) {
	val, ok := c.Cache.Get(key)
	if ok {
		HitsTotal.WithLabelValues(c.group).Inc()
	} else {
		MissesTotal.WithLabelValues(c.group).Inc()
	}
	return val, ok
}

// Close drops the group's entries gauge before closing the backend.
func (c *instrumentedCache) Close() error {
	unregisterEntriesGauge(c.group)
	return c.Cache.Close()
}

// entriesGauge reports Len() at scrape time, which stays correct when the
// backend expires entries on its own.
type entriesGauge struct {
	desc *prometheus.Desc
	size func() int
}

func (g *entriesGauge) Describe(ch chan<- *prometheus.Desc) {
	ch <- g.desc
}

func (g *entriesGauge) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(g.desc, prometheus.GaugeValue, float64(g.size()))
}

var (
	gaugesMu sync.Mutex
	gauges   = make(map[string]*entriesGauge)
	// gaugeRegisterer is swapped by tests for an isolated registry.
	gaugeRegisterer prometheus.Registerer = prometheus.DefaultRegisterer
)

// registerEntriesGauge replaces any gauge already registered for group.
func registerEntriesGauge(group string, size func() int) {
	g := &entriesGauge{
		desc: prometheus.NewDesc(
			"cache_entries",
			"Current number of entries in the cache.",
			nil,
			prometheus.Labels{"cache": group},
		),
		size: size,
	}

	gaugesMu.Lock()
	defer gaugesMu.Unlock()
	if old, ok := gauges[group]; ok {
		gaugeRegisterer.Unregister(old)
	}
	gauges[group] = g
	_ = gaugeRegisterer.Register(g)
}

func unregisterEntriesGauge(group string) {
	gaugesMu.Lock()
	defer gaugesMu.Unlock()
	if g, ok := gauges[group]; ok {
		gaugeRegisterer.Unregister(g)
		delete(gauges, group)
	}
}
