package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application.
// A nil *Collector is valid and records nothing, so components can run
// without metrics in tests and in the CLI.
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Catalogue metrics
	Lookups        *prometheus.CounterVec
	LookupDuration prometheus.Histogram

	// Graph build metrics
	GraphBuilds     *prometheus.CounterVec
	GraphNodes      prometheus.Histogram
	BuildDuration   prometheus.Histogram
	DroppedConcepts prometheus.Counter

	// Session metrics
	ActiveSessions  prometheus.Gauge
	SimulationTicks prometheus.Counter

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "concept_lookups_total",
				Help:      "Total number of concept lookups by outcome",
			},
			[]string{"result"},
		),
		LookupDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "concept_lookup_duration_seconds",
				Help:      "Upstream concept lookup duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		GraphBuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_builds_total",
				Help:      "Total number of graph builds by outcome",
			},
			[]string{"result"},
		),
		GraphNodes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_nodes",
				Help:      "Number of nodes per built graph",
				Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
			},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_build_duration_seconds",
				Help:      "Graph build duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		DroppedConcepts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_dropped_concepts_total",
				Help:      "Candidates dropped because they could not be resolved",
			},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Number of open exploration sessions",
			},
		),
		SimulationTicks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "simulation_ticks_total",
				Help:      "Total number of layout simulation ticks",
			},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"tier"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"tier"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Lookups,
		c.LookupDuration,
		c.GraphBuilds,
		c.GraphNodes,
		c.BuildDuration,
		c.DroppedConcepts,
		c.ActiveSessions,
		c.SimulationTicks,
		c.CacheHits,
		c.CacheMisses,
	)

	return c
}

// Handler exposes the collector's registry for scraping
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordHTTP records a served HTTP request
func (c *Collector) RecordHTTP(method, route, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordLookup records one upstream concept lookup
func (c *Collector) RecordLookup(result string, duration time.Duration) {
	if c == nil {
		return
	}
	c.Lookups.WithLabelValues(result).Inc()
	if duration > 0 {
		c.LookupDuration.Observe(duration.Seconds())
	}
}

// RecordBuild records a finished (or abandoned) graph build
func (c *Collector) RecordBuild(result string, nodes, dropped int, duration time.Duration) {
	if c == nil {
		return
	}
	c.GraphBuilds.WithLabelValues(result).Inc()
	c.BuildDuration.Observe(duration.Seconds())
	if result == "success" {
		c.GraphNodes.Observe(float64(nodes))
	}
	c.DroppedConcepts.Add(float64(dropped))
}

// RecordCache records a cache hit or miss for the named tier
func (c *Collector) RecordCache(tier string, hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.CacheHits.WithLabelValues(tier).Inc()
	} else {
		c.CacheMisses.WithLabelValues(tier).Inc()
	}
}

// SessionOpened increments the active session gauge
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.ActiveSessions.Inc()
}

// SessionClosed decrements the active session gauge
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.ActiveSessions.Dec()
}

// RecordTicks adds n simulation ticks
func (c *Collector) RecordTicks(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.SimulationTicks.Add(float64(n))
}
