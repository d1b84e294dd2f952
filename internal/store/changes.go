package store

import (
	"fmt"
	"reflect"

	"udb/internal/domain"
)

// Diff compares a field snapshot against the current values and returns
// the change set, omitting unchanged fields. Technical fields never
// appear because Fields() does not list them.
func Diff(before, after map[string]any) domain.ChangeSet {
	cs := domain.ChangeSet{}
	for name, newValue := range after {
		oldValue, ok := before[name]
		if ok && equalValue(oldValue, newValue) {
			continue
		}
		if !ok {
			oldValue = nil
		}
		cs[name] = domain.FieldChange{oldValue, newValue}
	}
	for name, oldValue := range before {
		if _, ok := after[name]; !ok {
			cs[name] = domain.FieldChange{oldValue, nil}
		}
	}
	if len(cs) == 0 {
		return nil
	}
	return cs
}

// NewChanges builds the change set of a freshly created entity: every
// non-empty field going from nil to its value.
func NewChanges(fields map[string]any) domain.ChangeSet {
	cs := domain.ChangeSet{}
	for name, value := range fields {
		if value == nil || isZeroValue(value) {
			continue
		}
		cs[name] = domain.FieldChange{nil, value}
	}
	return cs
}

// ApplyChanges replays a change set onto a snapshot, yielding the
// post-commit field values.
func ApplyChanges(snapshot map[string]any, cs domain.ChangeSet) map[string]any {
	out := make(map[string]any, len(snapshot))
	for k, v := range snapshot {
		out[k] = v
	}
	for name, change := range cs {
		out[name] = change[1]
	}
	return out
}

func equalValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	// Numeric columns round-trip through JSON as float64.
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func isZeroValue(v any) bool {
	switch x := v.(type) {
	case string:
		return x == ""
	case bool:
		return !x
	case int:
		return x == 0
	case int16:
		return x == 0
	case int64:
		return x == 0 || x == int64(domain.NetworkIDUndefined)
	case uint:
		return x == 0
	}
	return false
}
