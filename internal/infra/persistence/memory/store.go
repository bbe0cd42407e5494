// Package memory provides the in-memory record store and transaction
// manager used for tests and ephemeral deployments. The manager fulfils
// the same contract as the durable drivers without touching a database.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"modelkit/pkg/forms"
	"modelkit/pkg/record"
	"modelkit/pkg/schema"
	"modelkit/pkg/txretry"
)

// Store keeps records per table, keyed by their id attribute.
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[string]*record.Record
}

var _ forms.Finder = (*Store)(nil)

// NewStore constructs an empty in-memory record store.
func NewStore() *Store {
	return &Store{tables: make(map[string]map[string]*record.Record)}
}

// Put stores a record under its id attribute.
func (s *Store) Put(rec *record.Record) error {
	id, ok := rec.Get("id")
	if !ok {
		return fmt.Errorf("memory: table %s record has no id attribute", rec.Table().Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	table := s.tables[rec.Table().Name]
	if table == nil {
		table = make(map[string]*record.Record)
		s.tables[rec.Table().Name] = table
	}
	table[fmt.Sprint(id)] = rec
	return nil
}

// Get returns the record stored under id.
func (s *Store) Get(table, id string) (*record.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tables[table][id]
	return rec, ok
}

// Delete removes the record stored under id, reporting whether it existed.
func (s *Store) Delete(table, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[table][id]; !ok {
		return false
	}
	delete(s.tables[table], id)
	return true
}

// List returns every record of the table.
func (s *Store) List(table string) []*record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*record.Record, 0, len(s.tables[table]))
	for _, rec := range s.tables[table] {
		out = append(out, rec)
	}
	return out
}

// FindByColumn implements forms.Finder over the stored records.
func (s *Store) FindByColumn(_ context.Context, table schema.Table, column string, values []any) ([]*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*record.Record
	for _, rec := range s.tables[table.Name] {
		attr, ok := rec.Get(column)
		if !ok {
			continue
		}
		for _, value := range values {
			if matches(attr, value) {
				out = append(out, rec)
				break
			}
		}
	}
	return out, nil
}

// matches compares an attribute against a query value, tolerating the
// string-form mismatch between decoded widget values and stored scalars.
func matches(attr, value any) bool {
	if reflect.DeepEqual(attr, value) {
		return true
	}
	return fmt.Sprint(attr) == fmt.Sprint(value)
}

// Manager is a txretry.Manager whose transactions commit in memory. The
// commit hook and resource list are injectable so conflict handling can be
// exercised without a database.
type Manager struct {
	attempts  int
	resources []any

	// CommitFunc, when set, replaces the default always-succeeding commit.
	CommitFunc func() error

	latestRetryIndex atomic.Int64
	begun            atomic.Int64
}

var _ txretry.Manager = (*Manager)(nil)

// NewManager constructs a manager with the given attempt bound and
// participating resource managers.
func NewManager(attempts int, resources ...any) *Manager {
	m := &Manager{attempts: attempts, resources: resources}
	m.latestRetryIndex.Store(-1)
	return m
}

// Begin implements txretry.Manager.
func (m *Manager) Begin(context.Context) (txretry.Transaction, error) {
	m.begun.Add(1)
	return &transaction{manager: m}, nil
}

// RetryAttemptCount implements txretry.Manager.
func (m *Manager) RetryAttemptCount() int { return m.attempts }

// SetLatestRetryIndex implements txretry.Manager.
func (m *Manager) SetLatestRetryIndex(n int) { m.latestRetryIndex.Store(int64(n)) }

// LatestRetryIndex returns the zero-based index of the most recent attempt,
// or -1 before the first Begin.
func (m *Manager) LatestRetryIndex() int { return int(m.latestRetryIndex.Load()) }

// BeginCount returns how many transactions the manager has started.
func (m *Manager) BeginCount() int { return int(m.begun.Load()) }

type transaction struct {
	manager *Manager
}

func (t *transaction) Commit() error {
	if t.manager.CommitFunc != nil {
		return t.manager.CommitFunc()
	}
	return nil
}

func (t *transaction) Resources() []any {
	return t.manager.resources
}
