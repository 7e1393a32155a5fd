package httpclient

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"canvaschat/internal/domain"
	"canvaschat/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// Breaker guards one outbound dependency. When the dependency fails
// repeatedly the circuit opens and calls fail fast with domain.ErrCircuitOpen
// instead of piling up on a dead endpoint. A disabled Breaker calls through.
type Breaker[T any] struct {
	name string
	cb   *gobreaker.CircuitBreaker[T]
}

// NewBreaker builds a breaker named name. Zero-valued settings use defaults.
// Errors for which counts returns false do not count as failures: a 4xx
// caused by the caller says nothing about the endpoint's health.
func NewBreaker[T any](name string, cfg config.CircuitBreakerConfig, counts func(error) bool, logger *slog.Logger) *Breaker[T] {
	b := &Breaker[T]{name: name}
	if !cfg.Enabled {
		return b
	}

	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}
	if counts == nil {
		counts = func(error) bool { return true }
	}

	b.cb = gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // one probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !counts(err)
		},
	})
	return b
}

// Execute runs fn through the breaker.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, fmt.Errorf("%s: %w", b.name, domain.ErrCircuitOpen)
	}
	return v, err
}

// State returns the breaker state for status reporting. A disabled breaker
// is always closed.
func (b *Breaker[T]) State() gobreaker.State {
	if b == nil || b.cb == nil {
		return gobreaker.StateClosed
	}
	return b.cb.State()
}

// Enabled reports whether calls are guarded.
func (b *Breaker[T]) Enabled() bool { return b != nil && b.cb != nil }
