package classifier

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/okian/truthfuse/pkg/metrics"
)

// State is the circuit breaker state.
type State = gobreaker.State

const (
	Closed   = gobreaker.StateClosed
	HalfOpen = gobreaker.StateHalfOpen
	Open     = gobreaker.StateOpen
)

// newBreaker trips after maxFailures consecutive failures and lets a single
// trial call through once resetTimeout has elapsed. maxFailures <= 0 yields
// nil, meaning calls are never short-circuited.
func newBreaker(maxFailures int, resetTimeout time.Duration) *gobreaker.CircuitBreaker {
	metrics.UpdateClassifierBreakerState(gaugeValue(Closed))
	if maxFailures <= 0 {
		return nil
	}
	threshold := uint32(maxFailures)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "classifier",
		MaxRequests: 1,
		Timeout:     resetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			metrics.UpdateClassifierBreakerState(gaugeValue(to))
		},
	})
}

// gaugeValue keeps the exported metric encoding: 0 closed, 1 open, 2 half-open.
func gaugeValue(s State) int {
	switch s {
	case Open:
		return 1
	case HalfOpen:
		return 2
	default:
		return 0
	}
}

// guarded runs call through the breaker when one is configured.
func (c *HTTPClassifier) guarded(call func() (Verdict, error)) (Verdict, error) {
	if c.breaker == nil {
		return call()
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return call()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Verdict{}, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	if err != nil {
		return Verdict{}, err
	}
	return out.(Verdict), nil
}
