// Package serialize turns query results into JSON-safe trees.
//
// Only JSON primitives, map[string]any and []any survive serialization.
// Timestamps are the one lossy conversion: they are rendered in UTC using
// TimeLayout (RFC 3339, millisecond precision).
package serialize

import "time"

// TimeLayout is the fixed timestamp rendering used for every serialized time.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Record is implemented by every result variant. Fields returns the record's
// named fields; values are serialized again by Value, so they may hold
// nested records, times, maps and slices. A slice of a concrete record type
// must be passed through Slice first.
type Record interface {
	Fields() map[string]any
}

// Value serializes v recursively, deepest first.
func Value(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case Record:
		return Map(t.Fields())
	case time.Time:
		return Time(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return Time(*t)
	case map[string]any:
		return Map(t)
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Value(item)
		}
		return out
	case []Record:
		return Slice(t)
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = Map(m)
		}
		return out
	case []time.Time:
		out := make([]any, len(t))
		for i, ts := range t {
			out[i] = Time(ts)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return v
	}
}

// Map serializes every value of m into a new map with the same keys.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Value(v)
	}
	return out
}

// Slice serializes a typed slice of records, preserving order. A nil slice
// becomes an empty sequence so callers always see a JSON array.
func Slice[T Record](items []T) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = Value(item)
	}
	return out
}

// Time renders t with TimeLayout. The zero time serializes to nil.
func Time(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(TimeLayout)
}
