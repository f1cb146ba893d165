// Package metrics holds the Prometheus collectors of the media resolution service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all service metrics.
	Namespace = "media"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ProbesTotal        *prometheus.CounterVec
	ProbeDuration      *prometheus.HistogramVec
	ResolutionsTotal   *prometheus.CounterVec
	ResolutionDuration prometheus.Histogram
	CacheLookupsTotal  *prometheus.CounterVec
	MirrorBreakerState *prometheus.GaugeVec
	StreamsTotal       *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on reg (the default registerer when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.ProbesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "gateway",
			Name:      "probes_total",
			Help:      "Total number of mirror probes by classification",
		},
		[]string{"mirror", "classification"},
	)

	m.ProbeDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "gateway",
			Name:      "probe_duration_seconds",
			Help:      "Duration of mirror probes in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
		[]string{"mirror"},
	)

	m.MirrorBreakerState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "gateway",
			Name:      "breaker_state",
			Help:      "Mirror breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"mirror"},
	)

	m.ResolutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Total number of locator resolutions by outcome and strategy",
		},
		[]string{"status", "strategy"},
	)

	m.ResolutionDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "resolver",
			Name:      "resolution_duration_seconds",
			Help:      "Duration of uncached locator resolutions in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	m.CacheLookupsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "resolver",
			Name:      "cache_lookups_total",
			Help:      "Resolution cache lookups by result",
		},
		[]string{"result"},
	)

	m.StreamsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "media",
			Name:      "streams_total",
			Help:      "Streamed media responses by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	return m
}

// ObserveProbe records a single probe attempt
func (m *Metrics) ObserveProbe(mirror, classification string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProbesTotal.WithLabelValues(mirror, classification).Inc()
	m.ProbeDuration.WithLabelValues(mirror).Observe(d.Seconds())
}

// ObserveResolution records the outcome of an uncached resolution
func (m *Metrics) ObserveResolution(status, strategy string, d time.Duration) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(status, strategy).Inc()
	m.ResolutionDuration.Observe(d.Seconds())
}

// CacheLookup records a cache hit, miss or stale read
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// SetBreakerState publishes a mirror breaker state
func (m *Metrics) SetBreakerState(mirror string, state int) {
	if m == nil {
		return
	}
	m.MirrorBreakerState.WithLabelValues(mirror).Set(float64(state))
}

// ObserveStream records a streamed response
func (m *Metrics) ObserveStream(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.StreamsTotal.WithLabelValues(endpoint, outcome).Inc()
}
