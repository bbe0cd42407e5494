// Package sqltx implements the transaction-manager contract over
// database/sql. Each retry attempt maps to one sql.Tx started at the
// configured isolation level; driver packages supply the conflict
// classifier that decides which errors are worth another attempt.
package sqltx

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"modelkit/pkg/txretry"
)

// Dialect selects placeholder style and column types for the snapshot
// table DDL.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Manager is a txretry.Manager backed by a sql.DB.
type Manager struct {
	db         *sql.DB
	dialect    Dialect
	attempts   int
	isolation  sql.IsolationLevel
	classifier txretry.RetryClassifier

	// latestRetryIndex records the zero-based index of the most recent
	// attempt, for observability and tests.
	latestRetryIndex atomic.Int64
}

var _ txretry.Manager = (*Manager)(nil)

// NewManager constructs a manager over db. The classifier may be nil, in
// which case no error is ever classified retryable.
func NewManager(db *sql.DB, dialect Dialect, attempts int, isolation sql.IsolationLevel, classifier txretry.RetryClassifier) *Manager {
	m := &Manager{
		db:         db,
		dialect:    dialect,
		attempts:   attempts,
		isolation:  isolation,
		classifier: classifier,
	}
	m.latestRetryIndex.Store(-1)
	return m
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (m *Manager) DB() *sql.DB { return m.db }

// Dialect returns the configured SQL dialect.
func (m *Manager) Dialect() Dialect { return m.dialect }

// RetryAttemptCount implements txretry.Manager.
func (m *Manager) RetryAttemptCount() int { return m.attempts }

// SetLatestRetryIndex implements txretry.Manager.
func (m *Manager) SetLatestRetryIndex(n int) { m.latestRetryIndex.Store(int64(n)) }

// LatestRetryIndex returns the zero-based index of the most recent attempt,
// or -1 before the first Begin.
func (m *Manager) LatestRetryIndex() int { return int(m.latestRetryIndex.Load()) }

// Begin implements txretry.Manager. The returned transaction exposes the
// manager's classifier as its sole resource manager.
func (m *Manager) Begin(ctx context.Context) (txretry.Transaction, error) {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: m.isolation})
	if err != nil {
		return nil, fmt.Errorf("begin %s transaction: %w", m.dialect, err)
	}
	return &Transaction{tx: tx, manager: m}, nil
}

// Transaction adapts a sql.Tx to the txretry contract.
type Transaction struct {
	tx      *sql.Tx
	manager *Manager
}

var _ txretry.Transaction = (*Transaction)(nil)

// Tx exposes the wrapped sql.Tx for statement execution.
func (t *Transaction) Tx() *sql.Tx { return t.tx }

// Commit implements txretry.Transaction.
func (t *Transaction) Commit() error {
	return t.tx.Commit()
}

// Rollback discards the transaction, releasing its pooled connection. The
// retry loop calls it on every failed attempt.
func (t *Transaction) Rollback() error {
	return t.tx.Rollback()
}

// Resources implements txretry.Transaction.
func (t *Transaction) Resources() []any {
	if t.manager.classifier == nil {
		return nil
	}
	return []any{t.manager.classifier}
}

// TxFrom extracts the sql.Tx threaded through the context by the retry
// loop.
func TxFrom(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := txretry.FromContext(ctx)
	if !ok {
		return nil, false
	}
	st, ok := tx.(*Transaction)
	if !ok {
		return nil, false
	}
	return st.tx, true
}
