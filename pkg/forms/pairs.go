// Package forms adapts query results to form-widget inputs: rows become
// (value, label) pairs for select and checkbox widgets, and model-select
// adapters translate between submitted widget values and the records they
// reference.
package forms

import (
	"database/sql"
	"fmt"

	"modelkit/pkg/record"
)

// Pair is one widget choice: the submitted value and its display label.
type Pair struct {
	Value any
	Label any
}

// Getter extracts a pair component from a record.
type Getter func(*record.Record) any

// ColumnGetter returns a Getter reading the named attribute.
func ColumnGetter(name string) Getter {
	return func(r *record.Record) any {
		value, _ := r.Get(name)
		return value
	}
}

// Pairs converts records to widget choice pairs using the given getters.
func Pairs(recs []*record.Record, value, label Getter) []Pair {
	out := make([]Pair, len(recs))
	for i, r := range recs {
		out[i] = Pair{Value: value(r), Label: label(r)}
	}
	return out
}

// PairsByColumn converts records to widget choice pairs by column name.
func PairsByColumn(recs []*record.Record, valueColumn, labelColumn string) []Pair {
	return Pairs(recs, ColumnGetter(valueColumn), ColumnGetter(labelColumn))
}

// PairsFromRows drains a two-column result set into widget choice pairs.
// The caller keeps ownership of rows and its error state; PairsFromRows
// closes nothing.
func PairsFromRows(rows *sql.Rows) ([]Pair, error) {
	var out []Pair
	for rows.Next() {
		var value, label any
		if err := rows.Scan(&value, &label); err != nil {
			return nil, fmt.Errorf("scan choice pair: %w", err)
		}
		out = append(out, Pair{Value: value, Label: label})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate choice pairs: %w", err)
	}
	return out, nil
}
