package clients

import (
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace-service/internal/metrics"
)

const serviceName = "marketplace-service"

// circuitBreaker wraps gobreaker and reports its state to Prometheus.
type circuitBreaker struct {
	cb   *gobreaker.CircuitBreaker
	name string
}

// newCircuitBreaker trips after at least 3 requests with a failure ratio of
// 60% or more, and probes again after 30 seconds.
func newCircuitBreaker(name string) *circuitBreaker {
	logger := logging.NewLogger("circuit-breaker")

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(serviceName, name).Set(stateValue(to))
			logger.Warn("Circuit breaker state changed", logging.Fields{
				"circuit": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	}

	metrics.CircuitBreakerState.WithLabelValues(serviceName, name).Set(0)

	return &circuitBreaker{
		cb:   gobreaker.NewCircuitBreaker(settings),
		name: name,
	}
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// execute runs fn through the breaker. Errors from fn count as failures.
func (c *circuitBreaker) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := c.cb.Execute(fn)
	if err != nil {
		metrics.CircuitBreakerFailures.WithLabelValues(serviceName, c.name).Inc()
	}
	return result, err
}

func (c *circuitBreaker) state() gobreaker.State {
	return c.cb.State()
}

func isBreakerRejection(err error) bool {
	return err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests
}

func breakerMessage(name string, err error) string {
	switch err {
	case gobreaker.ErrOpenState:
		return fmt.Sprintf("%s service unavailable (circuit open)", name)
	case gobreaker.ErrTooManyRequests:
		return fmt.Sprintf("%s service busy (circuit half-open)", name)
	default:
		return fmt.Sprintf("%s service call failed", name)
	}
}
