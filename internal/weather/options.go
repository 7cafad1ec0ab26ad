package weather

import (
	"github.com/i474232898/weather-widget/internal/metrics"
)

// Option customizes a Geocoder or Service.
type Option func(*options)

type options struct {
	metrics  *metrics.Metrics
	resolver TimezoneResolver
}

// WithMetrics records cache and upstream activity.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTimezoneResolver fills Snapshot.TimezoneName from coordinates. Service only.
func WithTimezoneResolver(r TimezoneResolver) Option {
	return func(o *options) { o.resolver = r }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
