package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"modelkit/pkg/record"
)

// Archiver captures point-in-time snapshots of records into a Store.
type Archiver struct {
	store Store
	nowFn func() time.Time
}

// NewArchiver constructs an archiver over the given store.
func NewArchiver(store Store) *Archiver {
	return &Archiver{
		store: store,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// ArchiveRecord writes the record's plain-data projection as an immutable
// JSON snapshot keyed by table, id and capture instant. The returned Info
// identifies the stored blob.
func (a *Archiver) ArchiveRecord(ctx context.Context, rec *record.Record) (Info, error) {
	id, ok := rec.Get("id")
	if !ok {
		return Info{}, fmt.Errorf("archive: table %s record has no id attribute", rec.Table().Name)
	}
	payload, err := json.Marshal(rec.Snapshot())
	if err != nil {
		return Info{}, fmt.Errorf("archive: encode %s record: %w", rec.Table().Name, err)
	}
	key := fmt.Sprintf("%s/%v/%s.json", rec.Table().Name, id, a.nowFn().Format(time.RFC3339Nano))
	info, err := a.store.Put(ctx, key, bytes.NewReader(payload))
	if err != nil {
		return Info{}, fmt.Errorf("archive: store %s: %w", key, err)
	}
	return info, nil
}

// Snapshots lists the stored snapshots of one record, oldest first.
func (a *Archiver) Snapshots(ctx context.Context, table, id string) ([]Info, error) {
	return a.store.List(ctx, fmt.Sprintf("%s/%s/", table, id))
}
