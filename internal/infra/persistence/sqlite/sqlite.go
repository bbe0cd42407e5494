// Package sqlite provides the SQLite-backed transaction manager. Lock
// contention surfaces as SQLITE_BUSY / SQLITE_LOCKED, which the classifier
// treats as retryable conflicts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"modelkit/internal/infra/persistence/sqltx"
	"modelkit/pkg/txretry"
)

const defaultPath = "modelkit.db"

// Classifier votes retryable when the database or a table is locked by a
// concurrent writer.
type Classifier struct{}

var _ txretry.RetryClassifier = Classifier{}

// ShouldRetry implements txretry.RetryClassifier. Extended result codes are
// masked down to their primary code before comparison.
func (Classifier) ShouldRetry(err error) bool {
	var serr *sqlitedriver.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	default:
		return false
	}
}

// Open opens (creating if needed) the SQLite database at path, ensures the
// record snapshot table exists, and returns the transaction manager.
func Open(path string, attempts int) (*sqltx.Manager, error) {
	if path == "" {
		path = defaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	m := sqltx.NewManager(db, sqltx.DialectSQLite, attempts, sql.LevelSerializable, Classifier{})
	if err := m.EnsureRecordTable(context.Background()); err != nil {
		return nil, err
	}
	return m, nil
}
