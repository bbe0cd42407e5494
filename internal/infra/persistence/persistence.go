// Package persistence selects a concrete transaction-manager backend from
// the environment.
package persistence

import (
	"fmt"
	"os"
	"strconv"

	"modelkit/internal/infra/persistence/postgres"
	"modelkit/internal/infra/persistence/sqlite"
	"modelkit/internal/infra/persistence/sqltx"
)

// Driver identifies a concrete storage backend implementation.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file (default)
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

const defaultRetryAttempts = 3

// Open selects a backend using environment variables. Defaults to sqlite
// when unset.
//
//	MODELKIT_STORAGE_DRIVER: sqlite|postgres (default sqlite)
//	MODELKIT_SQLITE_PATH: path to sqlite file (default ./modelkit.db)
//	MODELKIT_POSTGRES_DSN: postgres DSN when driver=postgres
//	MODELKIT_RETRY_ATTEMPTS: transaction retry attempt bound (default 3)
func Open() (*sqltx.Manager, error) {
	driver := os.Getenv("MODELKIT_STORAGE_DRIVER")
	if driver == "" {
		driver = string(DriverSQLite)
	}
	attempts := defaultRetryAttempts
	if raw := os.Getenv("MODELKIT_RETRY_ATTEMPTS"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid MODELKIT_RETRY_ATTEMPTS %q", raw)
		}
		attempts = parsed
	}
	switch Driver(driver) {
	case DriverSQLite:
		return sqlite.Open(os.Getenv("MODELKIT_SQLITE_PATH"), attempts)
	case DriverPostgres:
		return postgres.Open(os.Getenv("MODELKIT_POSTGRES_DSN"), attempts)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
