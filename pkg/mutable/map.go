package mutable

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Map is the tracked wrapper for a map[string]any stored in a JSON column.
// Read operations delegate to the raw map without signalling; mutations
// apply the change and then propagate a single changed event up the
// ownership chain.
type Map struct {
	base
	raw map[string]any
}

var _ json.Marshaler = (*Map)(nil)

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.raw)
}

// Has reports whether the key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.raw[key]
	return ok
}

// Keys returns the keys in sorted order.
func (m *Map) Keys() []string {
	keys := slices.Collect(maps.Keys(m.raw))
	slices.Sort(keys)
	return keys
}

// Get returns the value stored under key. Nested maps and slices are
// wrapped on read with this container as parent, which is what extends
// tracking into deep structures. Reading never marks anything dirty.
func (m *Map) Get(key string) (any, bool) {
	value, ok := m.raw[key]
	if !ok {
		return nil, false
	}
	return m.wrapChild(key, value), true
}

// Raw exposes the underlying map. Mutating it directly bypasses tracking.
func (m *Map) Raw() map[string]any {
	return m.raw
}

// Set stores a value under key and signals the change. Wrapped values are
// stripped back to their raw form so the underlying tree stays plain.
func (m *Map) Set(key string, value any) {
	m.raw[key] = rawValue(value)
	m.changed()
}

// Delete removes key and signals the change. Removing an absent key is a
// no-op and does not dirty the record.
func (m *Map) Delete(key string) bool {
	if _, ok := m.raw[key]; !ok {
		return false
	}
	delete(m.raw, key)
	m.changed()
	return true
}

// Pop removes and returns the raw value under key. The value is detached
// from the tree, so it is returned unwrapped.
func (m *Map) Pop(key string) (any, bool) {
	value, ok := m.raw[key]
	if !ok {
		return nil, false
	}
	delete(m.raw, key)
	m.changed()
	return value, true
}

// SetDefault returns the value under key, inserting def first when the key
// is absent. Container defaults are wrapped before insertion so a freshly
// inserted nested structure is tracked from its first mutation. Only an
// actual insertion signals a change: a SetDefault that finds the key is a
// read and must not dirty the owning record.
func (m *Map) SetDefault(key string, def any) any {
	if existing, ok := m.raw[key]; ok {
		return m.wrapChild(key, existing)
	}
	m.raw[key] = rawValue(def)
	m.changed()
	return m.wrapChild(key, m.raw[key])
}

// Update merges the entries into the map and signals a single change.
func (m *Map) Update(entries map[string]any) {
	for key, value := range entries {
		m.raw[key] = rawValue(value)
	}
	m.changed()
}

// Clear removes all entries and signals the change.
func (m *Map) Clear() {
	clear(m.raw)
	m.changed()
}

// Equal compares the wrapped contents against another value, unwrapping a
// tracked container on the other side first.
func (m *Map) Equal(other any) bool {
	return reflect.DeepEqual(m.raw, rawValue(other))
}

func (m *Map) String() string {
	return fmt.Sprintf("mutable.Map%v", m.raw)
}

// MarshalJSON serializes the plain projection of the wrapped map.
func (m *Map) MarshalJSON() ([]byte, error) {
	return json.Marshal(Plain(m.raw))
}

// wrapChild wraps a nested container value with this map as parent. A
// nested list's write-back hook re-checks that the key still holds the
// child's slice before anchoring the updated header: a child wrapped
// before the key was deleted or replaced must not resurrect the key or
// overwrite its successor.
func (m *Map) wrapChild(key string, value any) any {
	switch v := value.(type) {
	case map[string]any:
		return &Map{base: base{parent: m}, raw: v}
	case []any:
		if unique := uniquelyBacked(v); cap(unique) != cap(v) {
			v = unique
			m.raw[key] = v
		}
		child := &List{raw: v}
		child.parent = m
		child.writeBack = func(old, updated []any) {
			if cur, ok := m.raw[key].([]any); ok && sameSlice(cur, old) {
				m.raw[key] = updated
			}
		}
		return child
	default:
		return value
	}
}
