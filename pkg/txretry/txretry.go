// Package txretry executes units of work under optimistic transaction
// retry semantics. A unit of work runs inside a fresh transaction per
// attempt; serialization conflicts reported as retryable by the
// transaction's resource managers trigger another attempt up to the
// manager's configured bound, while any other failure propagates
// immediately.
//
// The active transaction travels in the context. Begin-ning a retry scope
// inside an existing one is a misuse, not a concurrency event, and is
// rejected up front.
package txretry

import (
	"context"
	"errors"
	"fmt"
)

// Transaction is one attempt's atomic scope. Commit may fail with a
// serialization conflict; Resources exposes the participating resource
// managers consulted when classifying errors.
type Transaction interface {
	Commit() error
	Resources() []any
}

// Manager begins transactions and carries the retry configuration. The
// latest retry index setter is an observability hook: it records the
// zero-based index of the most recent attempt.
type Manager interface {
	Begin(ctx context.Context) (Transaction, error)
	RetryAttemptCount() int
	SetLatestRetryIndex(n int)
}

// RetryClassifier is the optional vote a resource manager casts on whether
// an error warrants another attempt. Resources that do not implement it
// never vote retryable.
type RetryClassifier interface {
	ShouldRetry(err error) bool
}

// ErrNotConfigured reports a nil manager or a non-positive retry attempt
// count.
var ErrNotConfigured = errors.New("txretry: transaction manager has no retry attempt count configured")

// ErrAlreadyInTransaction reports an attempt to start a retry scope while
// the context already carries an active transaction.
var ErrAlreadyInTransaction = errors.New("txretry: transaction already in progress in this context")

// ExhaustedError reports that every configured attempt failed with a
// retryable error. It chains the last observed error as its cause.
type ExhaustedError struct {
	Attempts int
	last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("txretry: out of retry attempts, tried %d times", e.Attempts)
}

func (e *ExhaustedError) Unwrap() error {
	return e.last
}

// IsRetryable reports whether any resource manager participating in the
// transaction classifies the error as retryable.
func IsRetryable(tx Transaction, err error) bool {
	if tx == nil || err == nil {
		return false
	}
	for _, res := range tx.Resources() {
		if classifier, ok := res.(RetryClassifier); ok && classifier.ShouldRetry(err) {
			return true
		}
	}
	return false
}

type txContextKey struct{}

// WithTransaction returns a context carrying tx as the active transaction.
func WithTransaction(ctx context.Context, tx Transaction) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// FromContext returns the active transaction carried by the context, if
// any.
func FromContext(ctx context.Context) (Transaction, bool) {
	tx, ok := ctx.Value(txContextKey{}).(Transaction)
	return tx, ok
}
