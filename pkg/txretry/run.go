package txretry

import (
	"context"
	"fmt"
	"log/slog"
)

// Option adjusts observability hooks for a retry scope.
type Option func(*config)

type config struct {
	logger  *slog.Logger
	metrics MetricsRecorder
}

// WithLogger attaches a logger used to note repeated attempts.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithMetrics attaches a recorder observing attempts and outcomes.
func WithMetrics(rec MetricsRecorder) Option {
	return func(c *config) { c.metrics = rec }
}

// Run executes fn under transactional retry. Each attempt begins a fresh
// transaction on the manager, threads it through the context handed to fn,
// and commits on success. Errors from fn or from the commit are put to the
// transaction's resource managers: a retryable vote rolls the failed
// attempt back and loops, anything else propagates unchanged after the
// rollback. When every attempt is consumed, Run fails with an
// ExhaustedError chaining the last error.
//
// Run fails with ErrAlreadyInTransaction when ctx already carries an active
// transaction, and with ErrNotConfigured when the manager is nil or its
// retry attempt count is not positive. Both reject the call before the
// first Begin.
func Run[T any](ctx context.Context, mgr Manager, fn func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var zero T
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	if mgr == nil {
		return zero, ErrNotConfigured
	}
	if _, active := FromContext(ctx); active {
		return zero, ErrAlreadyInTransaction
	}
	attempts := mgr.RetryAttemptCount()
	if attempts <= 0 {
		return zero, ErrNotConfigured
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt >= 1 {
			if cfg.logger != nil {
				cfg.logger.InfoContext(ctx, "transaction retry attempt", "attempt", attempt+1, "max_attempts", attempts)
			}
			if cfg.metrics != nil {
				cfg.metrics.ObserveRetry(ctx)
			}
		}

		tx, err := mgr.Begin(ctx)
		if err != nil {
			return zero, fmt.Errorf("begin transaction: %w", err)
		}
		mgr.SetLatestRetryIndex(attempt)
		if cfg.metrics != nil {
			cfg.metrics.ObserveAttempt(ctx)
		}

		value, err := fn(WithTransaction(ctx, tx))
		committed := false
		if err == nil {
			if err = tx.Commit(); err == nil {
				committed = true
			}
		}
		if committed {
			if cfg.metrics != nil {
				cfg.metrics.ObserveOutcome(ctx, OutcomeCommitted)
			}
			return value, nil
		}
		rollback(tx)
		if !IsRetryable(tx, err) {
			if cfg.metrics != nil {
				cfg.metrics.ObserveOutcome(ctx, OutcomeFatal)
			}
			return zero, err
		}
		lastErr = err
	}

	if cfg.metrics != nil {
		cfg.metrics.ObserveOutcome(ctx, OutcomeExhausted)
	}
	return zero, &ExhaustedError{Attempts: attempts, last: lastErr}
}

// rollback releases a failed attempt's transaction when the implementation
// supports it. SQL-backed transactions hold a pooled connection until
// rolled back; purely in-memory ones have nothing to release.
func rollback(tx Transaction) {
	if r, ok := tx.(interface{ Rollback() error }); ok {
		_ = r.Rollback()
	}
}

// Exec is Run for units of work without a result.
func Exec(ctx context.Context, mgr Manager, fn func(ctx context.Context) error, opts ...Option) error {
	_, err := Run(ctx, mgr, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
	return err
}

// Wrap returns a callable with fn's signature that applies the retry
// protocol around every invocation, using the fixed manager.
func Wrap[T any](mgr Manager, fn func(ctx context.Context) (T, error), opts ...Option) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		return Run(ctx, mgr, fn, opts...)
	}
}

// WrapProvider is Wrap with the manager resolved per call, for callers that
// derive the manager from request-scoped state.
func WrapProvider[T any](provider func(ctx context.Context) Manager, fn func(ctx context.Context) (T, error), opts ...Option) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		return Run(ctx, provider(ctx), fn, opts...)
	}
}
