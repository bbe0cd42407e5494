// Package schema describes table and column metadata for JSON-document
// backed records: column types, default specifications, and
// reflection-based derivation from Go struct types.
package schema

import (
	"errors"
	"fmt"
)

// ColumnType identifies the declared storage type of a column.
type ColumnType string

const (
	TypeText   ColumnType = "text"
	TypeNumber ColumnType = "number"
	TypeBool   ColumnType = "bool"
	TypeDate   ColumnType = "date"
	TypeBlob   ColumnType = "blob"
	TypeJSON   ColumnType = "json" // mutable-tracked document column
)

// Column describes a single record attribute.
type Column struct {
	Name        string     `json:"name"`
	Type        ColumnType `json:"type"`
	Required    bool       `json:"required,omitempty"`
	Description string     `json:"description,omitempty"`

	// Default is the literal default value; DefaultFunc generates one per
	// record instance and wins when both are set. Container defaults on
	// JSON columns are copied before binding, so a shared literal is safe.
	Default     any        `json:"-"`
	DefaultFunc func() any `json:"-"`
}

// IsJSON reports whether the column holds a mutable-tracked document.
func (c Column) IsJSON() bool {
	return c.Type == TypeJSON
}

// DefaultValue resolves the configured default specification, invoking the
// generator when one is set.
func (c Column) DefaultValue() any {
	if c.DefaultFunc != nil {
		return c.DefaultFunc()
	}
	return c.Default
}

// Table groups the columns of one record type.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

var errTableNameRequired = errors.New("schema: table name is required")

// Validate checks that the table is well formed: a name, uniquely named
// columns, and a type on every column.
func (t Table) Validate() error {
	if t.Name == "" {
		return errTableNameRequired
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for i, col := range t.Columns {
		if col.Name == "" {
			return fmt.Errorf("schema: table %s column %d: name is required", t.Name, i)
		}
		if col.Type == "" {
			return fmt.Errorf("schema: table %s column %s: type is required", t.Name, col.Name)
		}
		if _, dup := seen[col.Name]; dup {
			return fmt.Errorf("schema: table %s column %s declared twice", t.Name, col.Name)
		}
		seen[col.Name] = struct{}{}
	}
	return nil
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// JSONColumns returns the columns holding mutable-tracked documents.
func (t Table) JSONColumns() []Column {
	var out []Column
	for _, col := range t.Columns {
		if col.IsJSON() {
			out = append(out, col)
		}
	}
	return out
}
