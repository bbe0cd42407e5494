package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"modelkit/internal/infra/persistence/sqltx"
	"modelkit/pkg/mutable"
	"modelkit/pkg/record"
	"modelkit/pkg/schema"
	"modelkit/pkg/txretry"
)

func speciesTable() schema.Table {
	return schema.Table{Name: "species", Columns: []schema.Column{
		{Name: "id", Type: schema.TypeText},
		{Name: "name", Type: schema.TypeText},
		{Name: "payload", Type: schema.TypeJSON},
	}}
}

func openManager(t *testing.T) *sqltx.Manager {
	t.Helper()
	m, err := Open(filepath.Join(t.TempDir(), "test.db"), 3)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { m.DB().Close() })
	return m
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	m := openManager(t)
	ctx := context.Background()

	rec := record.New(speciesTable())
	rec.Set("id", "s1")
	rec.Set("name", "frog")
	rec.Set("payload", map[string]any{"tags": []any{"wet"}})

	err := txretry.Exec(ctx, m, func(ctx context.Context) error {
		return sqltx.SaveRecord(ctx, m, rec)
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(rec.Dirty()) != 0 {
		t.Fatalf("expected clean record after flush, got %v", rec.Dirty())
	}

	loaded := record.New(speciesTable())
	if err := sqltx.LoadRecord(ctx, m, loaded, "s1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	name, _ := loaded.Get("name")
	if name != "frog" {
		t.Fatalf("unexpected name %v", name)
	}
	payload, _ := loaded.Get("payload")
	tracked, ok := payload.(*mutable.Map)
	if !ok {
		t.Fatalf("expected tracked payload, got %T", payload)
	}
	tags, _ := tracked.Get("tags")
	if !tags.(*mutable.List).Equal([]any{"wet"}) {
		t.Fatalf("unexpected payload %v", tracked)
	}
	if len(loaded.Dirty()) != 0 {
		t.Fatalf("loaded record must be clean, got %v", loaded.Dirty())
	}
}

func TestDirtyMutationFlush(t *testing.T) {
	m := openManager(t)
	ctx := context.Background()

	rec := record.New(speciesTable())
	rec.Set("id", "s1")
	rec.Set("payload", map[string]any{"tags": []any{}})
	if err := txretry.Exec(ctx, m, func(ctx context.Context) error {
		return sqltx.SaveRecord(ctx, m, rec)
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	// An in-place edit of the nested list is enough to make the next flush
	// persist the field, with no reassignment of the column.
	payload, _ := rec.Get("payload")
	tags, _ := payload.(*mutable.Map).Get("tags")
	tags.(*mutable.List).Append("wet")
	if !rec.IsDirty("payload") {
		t.Fatalf("expected nested mutation to dirty the record")
	}

	if err := txretry.Exec(ctx, m, func(ctx context.Context) error {
		return sqltx.SaveRecord(ctx, m, rec)
	}); err != nil {
		t.Fatalf("flush: %v", err)
	}

	loaded := record.New(speciesTable())
	if err := sqltx.LoadRecord(ctx, m, loaded, "s1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	snap := loaded.Snapshot()
	tagsPlain := snap["payload"].(map[string]any)["tags"]
	if !reflect.DeepEqual(tagsPlain, []any{"wet"}) {
		t.Fatalf("expected mutated payload persisted, got %v", tagsPlain)
	}
}

func TestCleanRecordIsSkipped(t *testing.T) {
	m := openManager(t)
	ctx := context.Background()

	rec := record.New(speciesTable())
	if err := rec.Load("id", "s1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := txretry.Exec(ctx, m, func(ctx context.Context) error {
		return sqltx.SaveRecord(ctx, m, rec)
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := record.New(speciesTable())
	if err := sqltx.LoadRecord(ctx, m, loaded, "s1"); err == nil {
		t.Fatalf("expected no row for a never-flushed clean record")
	}
}

func TestSaveRequiresTransaction(t *testing.T) {
	m := openManager(t)
	rec := record.New(speciesTable())
	rec.Set("id", "s1")
	if err := sqltx.SaveRecord(context.Background(), m, rec); err == nil {
		t.Fatalf("expected error outside a transaction")
	}
}

func TestFatalErrorAbortsAttempt(t *testing.T) {
	m := openManager(t)
	boom := errors.New("domain rule violated")
	calls := 0
	err := txretry.Exec(context.Background(), m, func(ctx context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fatal error unchanged, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}

	// The failed attempt's transaction was rolled back, so the pool is not
	// starved and a follow-up scope still works.
	if err := txretry.Exec(context.Background(), m, func(ctx context.Context) error {
		tx, ok := sqltx.TxFrom(ctx)
		if !ok {
			return fmt.Errorf("no transaction in context")
		}
		_, err := tx.ExecContext(ctx, "SELECT 1")
		return err
	}); err != nil {
		t.Fatalf("follow-up scope: %v", err)
	}
}

func TestClassifier(t *testing.T) {
	c := Classifier{}
	if c.ShouldRetry(nil) {
		t.Fatalf("nil error must not be retryable")
	}
	if c.ShouldRetry(errors.New("plain error")) {
		t.Fatalf("non-driver error must not be retryable")
	}
}
