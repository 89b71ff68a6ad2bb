package repository

import "time"

const (
	defaultMetricsInterval = 5 * time.Second
	defaultMaxRetries      = 3
)

type options struct {
	metricsInterval time.Duration
	maxRetries      int
}

func defaultOptions() options {
	return options{
		metricsInterval: defaultMetricsInterval,
		maxRetries:      defaultMaxRetries,
	}
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithMetricsUpdateInterval sets the interval for background event gauges.
// A non-positive interval disables the updater.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *options) {
		o.metricsInterval = interval
	}
}

// WithMaxRetries bounds how often the SQL store retries a version conflict.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}
