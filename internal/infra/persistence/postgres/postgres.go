// Package postgres provides the Postgres-backed transaction manager.
// Transactions run at serializable isolation; the classifier votes to retry
// on the server's serialization-conflict SQLSTATEs.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"modelkit/internal/infra/persistence/sqltx"
	"modelkit/pkg/txretry"
)

const (
	defaultDSN = "postgres://localhost/modelkit?sslmode=disable"

	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Classifier votes retryable for serialization failures and deadlocks,
// the two conflict shapes serializable isolation surfaces at commit.
type Classifier struct{}

var _ txretry.RetryClassifier = Classifier{}

// ShouldRetry implements txretry.RetryClassifier.
func (Classifier) ShouldRetry(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

// Open connects to Postgres (falling back to defaultDSN), ensures the
// record snapshot table exists, and returns the transaction manager.
func Open(dsn string, attempts int) (*sqltx.Manager, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	m := sqltx.NewManager(db, sqltx.DialectPostgres, attempts, sql.LevelSerializable, Classifier{})
	if err := m.EnsureRecordTable(ctx); err != nil {
		return nil, err
	}
	return m, nil
}
