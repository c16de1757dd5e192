// Package guard wraps store calls with retry and a circuit breaker. Only
// failures classified as transient (store unavailable, timeout) are retried
// or counted against the breaker; validation and conflict errors pass
// straight through.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/circuitbreaker"
	"github.com/alem-hub/alem-quest/pkg/logger"
	"github.com/alem-hub/alem-quest/pkg/retry"
)

// Config tunes the guard.
type Config struct {
	MaxAttempts      int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	FailureThreshold int
	OpenTimeout      time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		InitialDelay:     50 * time.Millisecond,
		MaxDelay:         time.Second,
		FailureThreshold: 3,
		OpenTimeout:      10 * time.Second,
	}
}

// Guard is safe for concurrent use.
type Guard struct {
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// New creates a Guard.
func New(cfg Config, log *slog.Logger) *Guard {
	log = logger.OrDefault(log).With(logger.Component("guard"))

	g := &Guard{logger: log}
	g.breaker = circuitbreaker.New("store",
		circuitbreaker.WithFailureThreshold(cfg.FailureThreshold),
		circuitbreaker.WithSuccessThreshold(1),
		circuitbreaker.WithTimeout(cfg.OpenTimeout),
		circuitbreaker.WithIsFailure(shared.IsRetryable),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
		}),
	)
	g.retrier = retry.New(
		retry.WithMaxAttempts(cfg.MaxAttempts),
		retry.WithInitialDelay(cfg.InitialDelay),
		retry.WithMaxDelay(cfg.MaxDelay),
		retry.WithRetryIf(func(err error) bool {
			return shared.IsRetryable(err) && !circuitbreaker.IsRejected(err)
		}),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("retrying store operation", "attempt", attempt, "delay", delay, logger.Err(err))
		}),
	)
	return g
}

// Do runs fn under retry and the breaker. A rejected call is reported as
// store unavailable without invoking fn.
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := g.retrier.Do(ctx, func(ctx context.Context) error {
		err := g.breaker.Execute(ctx, fn)
		if circuitbreaker.IsRejected(err) {
			return shared.StoreUnavailable("store", op, err)
		}
		return err
	})
	if err != nil && shared.IsRetryable(err) {
		g.logger.Warn("store operation gave up", logger.Operation(op), logger.Err(err))
	}
	return err
}

// State exposes the breaker state for readiness checks.
func (g *Guard) State() circuitbreaker.State {
	return g.breaker.State()
}

// Check fails while the breaker is open. It has the shape of a health check.
func (g *Guard) Check(context.Context) error {
	if state := g.breaker.State(); state == circuitbreaker.StateOpen {
		return fmt.Errorf("store circuit is %s", state)
	}
	return nil
}

// Call is Do for operations that return a value.
func Call[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}
