// Package record implements the persistence-facing record model: attribute
// storage keyed by column metadata, dirty-field tracking, and the coercion
// hooks that route JSON column values through mutable tracking. It is the
// glue between the schema layer, the mutable wrappers, and the storage
// drivers that flush dirty fields.
package record

import (
	"fmt"
	"maps"
	"slices"

	"modelkit/pkg/mutable"
	"modelkit/pkg/schema"
)

// Record is one row-like instance of a table. JSON column values are held
// in their mutable-tracked form, so in-place edits of nested structures
// mark the owning field dirty without reassignment.
type Record struct {
	table schema.Table
	attrs map[string]any
	dirty map[string]struct{}
}

var _ mutable.Root = (*Record)(nil)

// New constructs a record and applies column defaults. Defaults for JSON
// columns are wrapped as tracked containers rooted at this record before
// assignment, so even a never-persisted initial value participates in
// dirty-tracking from its first in-place mutation.
func New(table schema.Table) *Record {
	r := &Record{
		table: table,
		attrs: make(map[string]any, len(table.Columns)),
		dirty: make(map[string]struct{}),
	}
	for _, col := range table.Columns {
		def := col.DefaultValue()
		if def == nil {
			continue
		}
		if col.IsJSON() {
			def = mutable.BindDefault(col.Name, def, r)
		}
		r.attrs[col.Name] = def
	}
	return r
}

// Table returns the record's column metadata.
func (r *Record) Table() schema.Table {
	return r.table
}

// Get returns the attribute value. JSON column values come back in their
// tracked form.
func (r *Record) Get(name string) (any, bool) {
	value, ok := r.attrs[name]
	return value, ok
}

// Set assigns an attribute and marks the field dirty. Values assigned into
// JSON columns run through the coercion entry point: plain containers are
// wrapped and bound to this record, already-wrapped values are rebound
// unchanged.
func (r *Record) Set(name string, value any) error {
	col, ok := r.table.Column(name)
	if !ok {
		return fmt.Errorf("record: table %s has no column %s", r.table.Name, name)
	}
	if col.IsJSON() {
		value = mutable.Coerce(name, value, r)
	}
	r.attrs[name] = value
	r.MarkModified(name)
	return nil
}

// Load hydrates an attribute from storage. It applies the same coercion as
// Set but leaves the dirty state untouched: a freshly loaded value is
// clean by definition.
func (r *Record) Load(name string, value any) error {
	col, ok := r.table.Column(name)
	if !ok {
		return fmt.Errorf("record: table %s has no column %s", r.table.Name, name)
	}
	if col.IsJSON() {
		value = mutable.Coerce(name, value, r)
	}
	r.attrs[name] = value
	return nil
}

// MarkModified flags a field as needing persistence. It is the terminal
// hop of the mutable change-propagation chain.
func (r *Record) MarkModified(name string) {
	r.dirty[name] = struct{}{}
}

// Dirty returns the names of modified fields in sorted order.
func (r *Record) Dirty() []string {
	fields := slices.Collect(maps.Keys(r.dirty))
	slices.Sort(fields)
	return fields
}

// IsDirty reports whether the named field has been modified.
func (r *Record) IsDirty(name string) bool {
	_, ok := r.dirty[name]
	return ok
}

// ClearDirty resets the dirty state, typically after a successful flush.
func (r *Record) ClearDirty() {
	clear(r.dirty)
}

// Snapshot returns a plain-data projection of every attribute, suitable
// for serialization. Tracked containers are unwrapped recursively.
func (r *Record) Snapshot() map[string]any {
	out := make(map[string]any, len(r.attrs))
	for name, value := range r.attrs {
		out[name] = mutable.Plain(value)
	}
	return out
}
