package forms

import (
	"context"
	"fmt"

	"modelkit/pkg/record"
	"modelkit/pkg/schema"
)

// Finder runs the membership query behind model-select deserialization. It
// returns the records of the table whose column value is in values.
type Finder interface {
	FindByColumn(ctx context.Context, table schema.Table, column string, values []any) ([]*record.Record, error)
}

// ResultSet marks a record slice as the product of a storage query rather
// than caller-constructed data.
type ResultSet []*record.Record

// ModelSelect presents a set of records as widget choices: records
// serialize to (match, label) pairs, and submitted values deserialize back
// to records through a membership query.
type ModelSelect struct {
	Table schema.Table
	// MatchColumn is the attribute submitted as the widget value and used
	// in the membership query.
	MatchColumn string
	// LabelColumn is the attribute shown to the user.
	LabelColumn string
	Finder      Finder

	// EncodeValue and DecodeValue translate between attribute values and
	// their wire form. Nil means identity.
	EncodeValue func(any) (string, error)
	DecodeValue func(string) (any, error)
}

// Serialize converts chosen records to widget choice pairs.
func (s *ModelSelect) Serialize(recs []*record.Record) ([]Pair, error) {
	if s.MatchColumn == "" || s.LabelColumn == "" {
		return nil, fmt.Errorf("forms: match and label columns must be configured for table %s", s.Table.Name)
	}
	out := make([]Pair, len(recs))
	for i, r := range recs {
		match, _ := r.Get(s.MatchColumn)
		label, _ := r.Get(s.LabelColumn)
		if s.EncodeValue != nil {
			encoded, err := s.EncodeValue(match)
			if err != nil {
				return nil, fmt.Errorf("encode %s value: %w", s.MatchColumn, err)
			}
			out[i] = Pair{Value: encoded, Label: label}
			continue
		}
		out[i] = Pair{Value: match, Label: label}
	}
	return out, nil
}

// Deserialize resolves submitted widget values back to records. An empty
// submission yields an empty result set without touching storage; a
// membership query with no values is never issued.
func (s *ModelSelect) Deserialize(ctx context.Context, values []string) (ResultSet, error) {
	if s.Finder == nil {
		return nil, fmt.Errorf("forms: no finder configured for table %s", s.Table.Name)
	}
	if s.MatchColumn == "" {
		return nil, fmt.Errorf("forms: match column must be configured for table %s", s.Table.Name)
	}
	if len(values) == 0 {
		return ResultSet{}, nil
	}
	decoded := make([]any, len(values))
	for i, v := range values {
		if s.DecodeValue != nil {
			d, err := s.DecodeValue(v)
			if err != nil {
				return nil, fmt.Errorf("decode %s value %q: %w", s.MatchColumn, v, err)
			}
			decoded[i] = d
			continue
		}
		decoded[i] = v
	}
	recs, err := s.Finder.FindByColumn(ctx, s.Table, s.MatchColumn, decoded)
	if err != nil {
		return nil, fmt.Errorf("resolve %s selection: %w", s.Table.Name, err)
	}
	return ResultSet(recs), nil
}

// NewUUIDSelect returns a ModelSelect matching on a UUID column whose wire
// form is the URL-safe base64 slug.
func NewUUIDSelect(table schema.Table, labelColumn string, finder Finder) *ModelSelect {
	return &ModelSelect{
		Table:       table,
		MatchColumn: "uuid",
		LabelColumn: labelColumn,
		Finder:      finder,
		EncodeValue: encodeUUIDSlug,
		DecodeValue: decodeUUIDSlug,
	}
}
