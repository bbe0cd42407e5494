// Package archive stores immutable snapshots of record documents as blobs.
// A snapshot is the plain-data JSON projection of a record at flush time,
// keyed by table, record id and capture instant. Backends cover the local
// filesystem (default), S3-compatible object storage, and process memory
// for tests.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Driver identifies a concrete snapshot storage backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local filesystem (default, dev)
	DriverS3         Driver = "s3"     // S3 / MinIO compatible
	DriverMemory     Driver = "memory" // in-memory (tests)
)

// Info describes a stored snapshot blob.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the minimal blob surface the archiver needs. Snapshots are
// immutable: Put MUST fail when the key already exists.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	// Delete removes a snapshot. Returns (false, nil) when absent.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns snapshots whose key has the prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// ErrExists reports a Put against an existing key.
var ErrExists = errors.New("archive: snapshot already exists")

// ErrNotFound reports a Get against a missing key.
var ErrNotFound = errors.New("archive: snapshot not found")

// Open selects a backend using environment variables. Defaults to the
// filesystem driver when unset.
//
//	MODELKIT_ARCHIVE_DRIVER: fs|s3|memory (default fs)
//	MODELKIT_ARCHIVE_FS_ROOT: filesystem root (default ./archivedata)
//	MODELKIT_ARCHIVE_S3_BUCKET etc: see OpenS3FromEnv
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("MODELKIT_ARCHIVE_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("MODELKIT_ARCHIVE_FS_ROOT"))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", driver)
	}
}
