package mutable

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
)

// List is the tracked wrapper for a []any stored in a JSON column. It
// follows the same protocol as Map: reads delegate without signalling,
// mutations apply the change and propagate one changed event.
type List struct {
	base
	raw []any
}

var _ json.Marshaler = (*List)(nil)

// Len returns the number of items.
func (l *List) Len() int {
	return len(l.raw)
}

// At returns the item at index i, wrapping nested containers on read with
// this list as parent. Panics when i is out of range, like slice indexing.
func (l *List) At(i int) any {
	return l.wrapChild(i, l.raw[i])
}

// Raw exposes the underlying slice. Mutating it directly bypasses tracking.
func (l *List) Raw() []any {
	return l.raw
}

// Set replaces the item at index i and signals the change.
func (l *List) Set(i int, value any) {
	l.raw[i] = rawValue(value)
	l.changed()
}

// Append adds items to the end and signals a single change.
func (l *List) Append(values ...any) {
	old := l.raw
	for _, value := range values {
		l.raw = append(l.raw, rawValue(value))
	}
	l.sync(old)
	l.changed()
}

// Extend appends all items from the given slice and signals a single change.
func (l *List) Extend(values []any) {
	l.Append(values...)
}

// Insert places a value at index i, shifting later items, and signals the
// change.
func (l *List) Insert(i int, value any) {
	old := l.raw
	l.raw = slices.Insert(l.raw, i, rawValue(value))
	l.sync(old)
	l.changed()
}

// Remove deletes the first item equal to value, reporting whether one was
// found. Only a successful removal signals a change.
func (l *List) Remove(value any) bool {
	target := rawValue(value)
	for i, item := range l.raw {
		if reflect.DeepEqual(item, target) {
			old := l.raw
			l.raw = slices.Delete(l.raw, i, i+1)
			l.sync(old)
			l.changed()
			return true
		}
	}
	return false
}

// Pop removes and returns the raw item at index i. The value is detached
// from the tree, so it is returned unwrapped.
func (l *List) Pop(i int) any {
	value := l.raw[i]
	old := l.raw
	l.raw = slices.Delete(l.raw, i, i+1)
	l.sync(old)
	l.changed()
	return value
}

// DeleteAt removes the item at index i and signals the change.
func (l *List) DeleteAt(i int) {
	old := l.raw
	l.raw = slices.Delete(l.raw, i, i+1)
	l.sync(old)
	l.changed()
}

// SetRange replaces the items in [i, j) with the given values and signals
// the change.
func (l *List) SetRange(i, j int, values []any) {
	replacement := make([]any, len(values))
	for k, value := range values {
		replacement[k] = rawValue(value)
	}
	old := l.raw
	l.raw = slices.Concat(l.raw[:i:i], replacement, l.raw[j:])
	l.sync(old)
	l.changed()
}

// DeleteRange removes the items in [i, j) and signals the change.
func (l *List) DeleteRange(i, j int) {
	old := l.raw
	l.raw = slices.Delete(l.raw, i, j)
	l.sync(old)
	l.changed()
}

// Clear removes all items and signals the change.
func (l *List) Clear() {
	old := l.raw
	l.raw = l.raw[:0]
	l.sync(old)
	l.changed()
}

// Equal compares the wrapped contents against another value, unwrapping a
// tracked container on the other side first.
func (l *List) Equal(other any) bool {
	return reflect.DeepEqual(l.raw, rawValue(other))
}

func (l *List) String() string {
	return fmt.Sprintf("mutable.List%v", l.raw)
}

// MarshalJSON serializes the plain projection of the wrapped slice.
func (l *List) MarshalJSON() ([]byte, error) {
	return json.Marshal(Plain(l.raw))
}

// sync re-anchors the slice header into the parent container after a
// mutation that may have reallocated or resized it. old is the header the
// parent still holds.
func (l *List) sync(old []any) {
	if l.writeBack != nil {
		l.writeBack(old, l.raw)
	}
}

// wrapChild wraps a nested container value with this list as parent. A
// nested list is located by slice identity at write time: the index held
// at wrap time goes stale the moment this list is itself mutated, so it is
// only a fast-path hint. A child whose slot no longer holds it is left
// detached rather than written over whatever took its place.
func (l *List) wrapChild(i int, value any) any {
	switch v := value.(type) {
	case map[string]any:
		return &Map{base: base{parent: l}, raw: v}
	case []any:
		if unique := uniquelyBacked(v); cap(unique) != cap(v) {
			v = unique
			l.raw[i] = v
		}
		child := &List{raw: v}
		child.parent = l
		child.writeBack = func(old, updated []any) {
			if i < len(l.raw) {
				if cur, ok := l.raw[i].([]any); ok && sameSlice(cur, old) {
					l.raw[i] = updated
					return
				}
			}
			for j, item := range l.raw {
				if cur, ok := item.([]any); ok && sameSlice(cur, old) {
					l.raw[j] = updated
					return
				}
			}
		}
		return child
	default:
		return value
	}
}
