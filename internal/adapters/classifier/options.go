package classifier

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/truthfuse/pkg/logger"
)

// Option applies a configuration option to the HTTPClassifier.
type Option func(*HTTPClassifier)

// WithTimeout bounds each call, including connection setup.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClassifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClassifier) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithRateLimit caps outbound calls per second. Calls over the limit fall
// back immediately instead of waiting. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *HTTPClassifier) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBreaker sets how many consecutive failures open the circuit and how
// long it stays open. maxFailures <= 0 disables the breaker.
func WithBreaker(maxFailures int, reset time.Duration) Option {
	return func(c *HTTPClassifier) {
		c.maxFailures = maxFailures
		if reset > 0 {
			c.resetTimeout = reset
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *HTTPClassifier) {
		if l != nil {
			c.log = l.Named("classifier")
		}
	}
}
