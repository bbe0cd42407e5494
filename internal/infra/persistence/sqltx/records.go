package sqltx

import (
	"context"
	"encoding/json"
	"fmt"

	"modelkit/pkg/record"
)

// EnsureRecordTable creates the snapshot table holding serialized record
// documents, keyed by table name and record id.
func (m *Manager) EnsureRecordTable(ctx context.Context) error {
	payloadType := "BLOB"
	if m.dialect == DialectPostgres {
		payloadType = "JSONB"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS records (
		table_name TEXT NOT NULL,
		record_id TEXT NOT NULL,
		payload %s NOT NULL,
		PRIMARY KEY (table_name, record_id)
	)`, payloadType)
	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure records table: %w", err)
	}
	return nil
}

// SaveRecord flushes a dirty record through the transaction carried by ctx,
// upserting its plain-data projection as one JSON document. Clean records
// are skipped. The dirty state is cleared only after the statement
// succeeds; the commit itself remains the retry loop's business.
func SaveRecord(ctx context.Context, m *Manager, rec *record.Record) error {
	if len(rec.Dirty()) == 0 {
		return nil
	}
	tx, ok := TxFrom(ctx)
	if !ok {
		return fmt.Errorf("save record: no transaction in context")
	}
	id, ok := rec.Get("id")
	if !ok {
		return fmt.Errorf("save record: table %s record has no id attribute", rec.Table().Name)
	}
	payload, err := json.Marshal(rec.Snapshot())
	if err != nil {
		return fmt.Errorf("encode %s record: %w", rec.Table().Name, err)
	}

	stmt := `INSERT INTO records(table_name, record_id, payload) VALUES(?, ?, ?)
		ON CONFLICT(table_name, record_id) DO UPDATE SET payload = excluded.payload`
	if m.dialect == DialectPostgres {
		stmt = `INSERT INTO records(table_name, record_id, payload) VALUES($1, $2, $3)
			ON CONFLICT(table_name, record_id) DO UPDATE SET payload = excluded.payload`
	}
	if _, err := tx.ExecContext(ctx, stmt, rec.Table().Name, fmt.Sprint(id), payload); err != nil {
		return fmt.Errorf("upsert %s record: %w", rec.Table().Name, err)
	}
	rec.ClearDirty()
	return nil
}

// LoadRecord hydrates a record from its stored document. Attribute values
// run through the record's coercion hook, so JSON columns come back in
// their tracked form with a clean dirty state.
func LoadRecord(ctx context.Context, m *Manager, rec *record.Record, id string) error {
	var payload []byte
	stmt := `SELECT payload FROM records WHERE table_name = ? AND record_id = ?`
	if m.dialect == DialectPostgres {
		stmt = `SELECT payload FROM records WHERE table_name = $1 AND record_id = $2`
	}
	if err := m.db.QueryRowContext(ctx, stmt, rec.Table().Name, id).Scan(&payload); err != nil {
		return fmt.Errorf("select %s record %s: %w", rec.Table().Name, id, err)
	}
	var attrs map[string]any
	if err := json.Unmarshal(payload, &attrs); err != nil {
		return fmt.Errorf("decode %s record %s: %w", rec.Table().Name, id, err)
	}
	for name, value := range attrs {
		if err := rec.Load(name, value); err != nil {
			return err
		}
	}
	return nil
}
