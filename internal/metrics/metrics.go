package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/weather-widget/internal/fetch"
)

const namespace = "weather_widget"

// Metrics groups the collectors exported by the widget core.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	cacheLookups  *prometheus.CounterVec
	upstream      *prometheus.CounterVec
	rateLimitWait prometheus.Histogram
	refreshes     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache name and result.",
		}, []string{"cache", "result"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Outbound OpenWeatherMap requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		rateLimitWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting for the weather rate limiter.",
			Buckets:   []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_refreshes_total",
			Help:      "Scheduled weather refreshes by outcome.",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(m.cacheLookups, m.upstream, m.rateLimitWait, m.refreshes)
	}
	return m
}

// CacheLookup records a hit or miss against the named cache.
func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// Upstream records the outcome of one outbound request.
func (m *Metrics) Upstream(endpoint string, err error) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(endpoint, outcome(err)).Inc()
}

// RateLimitWait records how long a fetch waited for its turn.
func (m *Metrics) RateLimitWait(d time.Duration) {
	if m == nil {
		return
	}
	m.rateLimitWait.Observe(d.Seconds())
}

// Refresh records a scheduled refresh.
func (m *Metrics) Refresh(err error) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, fetch.ErrTimeout):
		return "timeout"
	case errors.Is(err, fetch.ErrCircuitOpen):
		return "circuit_open"
	default:
		return "error"
	}
}
