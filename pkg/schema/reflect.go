package schema

import (
	"fmt"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
)

// FromStruct derives a Table from a struct type using JSON Schema
// reflection. Field descriptions come from `jsonschema:"description=..."`
// tags, required flags from the generated schema, and column types from the
// Go field types. Struct, map and slice fields map to TypeJSON and so
// participate in mutable tracking when records are constructed.
func FromStruct[T any](name string) (Table, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return Table{}, fmt.Errorf("schema: type must be a struct or pointer to struct, got %s", t.Kind())
	}

	// Inline all properties; references would hide nested field metadata.
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	s := r.ReflectFromType(t)

	required := make(map[string]bool, len(s.Required))
	for _, field := range s.Required {
		required[field] = true
	}

	table := Table{Name: name}
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		colType := TypeText
		for i := range t.NumField() {
			field := t.Field(i)
			if jsonFieldName(&field) == pair.Key {
				colType = columnTypeFor(field.Type)
				break
			}
		}
		table.Columns = append(table.Columns, Column{
			Name:        pair.Key,
			Type:        colType,
			Required:    required[pair.Key],
			Description: pair.Value.Description,
		})
	}
	if err := table.Validate(); err != nil {
		return Table{}, err
	}
	return table, nil
}

// jsonFieldName returns the JSON field name for a struct field, honoring
// the json tag's name component.
func jsonFieldName(field *reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" || tag == "-" {
		return field.Name
	}
	for i, c := range tag {
		if c == ',' {
			if i == 0 {
				return field.Name
			}
			return tag[:i]
		}
	}
	return tag
}

// columnTypeFor maps a Go field type to its declared column type.
func columnTypeFor(t reflect.Type) ColumnType {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == reflect.TypeFor[time.Time]() {
		return TypeDate
	}
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return TypeBlob
	}
	switch t.Kind() {
	case reflect.String:
		return TypeText
	case reflect.Bool:
		return TypeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.Struct, reflect.Slice, reflect.Array, reflect.Map:
		return TypeJSON
	default:
		return TypeText
	}
}
