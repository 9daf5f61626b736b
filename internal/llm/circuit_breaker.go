package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when a provider's circuit breaker rejects a
// request without attempting it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig controls failure handling for a provider client.
type CircuitBreakerConfig struct {
	MaxFailures          uint32        // consecutive failures required to trip
	Timeout              time.Duration // how long the circuit stays open
	HalfOpenMaxSuccesses uint32        // successes required in half-open to close
}

// DefaultCircuitBreakerConfig returns the defaults shared by all provider
// clients: trip after 3 consecutive failures, stay open 30 seconds, close
// after 2 half-open successes.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures:          3,
		Timeout:              30 * time.Second,
		HalfOpenMaxSuccesses: 2,
	}
}

// CircuitBreaker wraps gobreaker so a failing LLM backend gets time to
// recover instead of being hammered by every pipeline stage at once.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewCircuitBreaker creates a circuit breaker for the named provider. State
// transitions are logged at warn level.
func NewCircuitBreaker(name string, config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := &CircuitBreaker{logger: logger}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.HalfOpenMaxSuccesses,
		Interval:    0, // never clear closed-state counts periodically
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cb.logger.Warn("circuit breaker state change",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	cb.breaker = gobreaker.NewCircuitBreaker(settings)
	return cb
}

// Execute runs fn through the breaker. Context cancellation is checked before
// the attempt so a dead caller never counts against the provider's failure
// streak.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := cb.breaker.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return result, nil
}

// State reports the current breaker state: "closed", "open", or "half-open".
func (cb *CircuitBreaker) State() string {
	switch cb.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("unknown(%d)", cb.breaker.State())
	}
}

// CircuitBreakerMetrics is a snapshot of breaker counters for diagnostics.
type CircuitBreakerMetrics struct {
	State                string `json:"state"`
	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"total_successes"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
}

// Metrics returns the current breaker counters.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	counts := cb.breaker.Counts()
	return CircuitBreakerMetrics{
		State:                cb.State(),
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
	}
}
