// Package mutable provides change-tracked wrappers for JSON-column values.
// Plain maps and slices stored in a record's JSON attribute are wrapped in
// Map and List containers that detect in-place mutation of arbitrarily
// nested structures and propagate a dirty mark to the owning record field,
// so callers never need to reassign the column to persist an edit.
//
// Nested containers are wrapped lazily on read: indexing into a tracked
// container re-wraps the returned value with a parent back-reference, which
// keeps deep structures tracked without eagerly walking them up front.
package mutable

import (
	"maps"
	"reflect"
	"slices"
)

// Root receives the dirty mark for a container bound directly to a record
// field. It is the terminal hop of the change-propagation chain.
type Root interface {
	MarkModified(field string)
}

// Projector is implemented by values that supply their own plain-data JSON
// projection. Plain uses it recursively when building serializable output.
type Projector interface {
	ProjectJSON() any
}

// notifier is the internal change-propagation hook shared by Map and List.
type notifier interface {
	changed()
}

// base carries the ownership chain of a tracked container: either a parent
// container (for nested values) or a record field binding (for roots). The
// back-references are non-owning; lifetime is managed by the collector.
//
// writeBack re-anchors a nested slice into its parent container after a
// mutation. Slice headers are values in Go, so growing or shrinking a
// nested list reallocates storage the parent's raw tree would otherwise
// never see. The parent locates the child by the identity of its
// pre-mutation slice (old), never by a position remembered at wrap time:
// positions go stale when the parent is itself mutated between the wrap
// and the write. Maps mutate in place and leave it nil.
type base struct {
	parent    notifier
	writeBack func(old, updated []any)
	root      Root
	field     string
}

// changed bubbles a mutation toward the root of the ownership chain. A
// container nested inside another tracked container forwards to its parent;
// a root container marks the bound record field modified. Containers that
// were never bound anywhere drop the event silently: they hold data nobody
// is persisting yet, and the binding step re-wraps them anyway.
func (b *base) changed() {
	if b.parent != nil {
		b.parent.changed()
		return
	}
	if b.root != nil {
		b.root.MarkModified(b.field)
	}
}

// Wrap coerces a raw value into its tracked form. Maps and slices are
// wrapped without a parent; already-wrapped values are returned unchanged,
// and nil, scalars and unrecognized container types pass through untouched.
func Wrap(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case *Map, *List:
		return value
	case map[string]any:
		return &Map{raw: v}
	case []any:
		return &List{raw: v}
	default:
		return value
	}
}

// Coerce wraps a value assigned into a record's JSON attribute and binds it
// to the record as its root. Idempotent: an already-wrapped value is
// rebound, not rewrapped. Non-container values pass through unchanged.
func Coerce(field string, value any, root Root) any {
	switch v := value.(type) {
	case *Map:
		v.bindRoot(field, root)
		return v
	case *List:
		v.bindRoot(field, root)
		return v
	case map[string]any:
		m := &Map{raw: v}
		m.bindRoot(field, root)
		return m
	case []any:
		l := &List{raw: v}
		l.bindRoot(field, root)
		return l
	default:
		return value
	}
}

// BindDefault wraps a column default value rooted at the given record. The
// raw container is shallow-copied first so a shared default declared once
// per table cannot be mutated through one record instance and leak into the
// next. Non-container defaults pass through unchanged.
func BindDefault(field string, value any, root Root) any {
	switch v := value.(type) {
	case map[string]any:
		m := &Map{raw: maps.Clone(v)}
		m.bindRoot(field, root)
		return m
	case []any:
		l := &List{raw: slices.Clone(v)}
		l.bindRoot(field, root)
		return l
	default:
		return value
	}
}

func (b *base) bindRoot(field string, root Root) {
	b.parent = nil
	b.writeBack = nil
	b.root = root
	b.field = field
}

// Plain recursively builds a plain-data projection of a value: wrappers are
// unwrapped, Projector implementations are expanded, and nested maps and
// slices are copied so the result shares no structure with tracked state.
// This projection is what gets serialized to storage or JSON text.
func Plain(value any) any {
	switch v := value.(type) {
	case Projector:
		return Plain(v.ProjectJSON())
	case *Map:
		return Plain(v.raw)
	case *List:
		return Plain(v.raw)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = Plain(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Plain(item)
		}
		return out
	default:
		return value
	}
}

// slicePtr returns the backing-array address of a slice, the identity used
// to locate a nested list inside its parent. Zero-capacity slices have no
// usable identity (they may share the runtime's zero-size sentinel), so
// wrapChild replaces them with uniquely backed ones before handing out a
// wrapper.
func slicePtr(s []any) uintptr {
	if cap(s) == 0 {
		return 0
	}
	return reflect.ValueOf(s).Pointer()
}

// sameSlice reports whether two slice headers denote the same stored value.
func sameSlice(a, b []any) bool {
	pa := slicePtr(a)
	return pa != 0 && pa == slicePtr(b) && len(a) == len(b)
}

// uniquelyBacked returns s, reallocated if needed so its backing array
// address is a usable identity.
func uniquelyBacked(s []any) []any {
	if cap(s) > 0 {
		return s
	}
	return make([]any, 0, 1)
}

// rawValue strips the tracking wrapper, if any, so raw trees stay plain
// when wrapped values are assigned back into tracked slots.
func rawValue(value any) any {
	switch v := value.(type) {
	case *Map:
		return v.raw
	case *List:
		return v.raw
	default:
		return value
	}
}
