package props

import (
	"fmt"
	"reflect"
)

// Map is an insertion-ordered mapping from string keys to property values.
// Keys are case-sensitive. The zero value is not usable; call New.
type Map struct {
	keys []string
	vals map[string]any
}

// New creates an empty Map.
func New() *Map {
	return &Map{vals: make(map[string]any)}
}

// FromPairs creates a Map from alternating key/value arguments.
// Panics if keys is odd-length or a key is not a string; intended for
// literals in tests and fixtures.
func FromPairs(pairs ...any) *Map {
	if len(pairs)%2 != 0 {
		panic("props.FromPairs: odd number of arguments")
	}
	m := New()
	for i := 0; i < len(pairs); i += 2 {
		k, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("props.FromPairs: key %v is not a string", pairs[i]))
		}
		m.Set(k, pairs[i+1])
	}
	return m
}

// Set inserts or replaces the value for key. A new key is appended to the
// iteration order; replacing an existing key keeps its original position.
func (m *Map) Set(key string, value any) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = value
}

// Get returns the value for key and whether it is present.
func (m *Map) Get(key string) (any, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// GetString returns the value for key as a string.
// Returns "" if the key is absent or the value is not a string.
func (m *Map) GetString(key string) string {
	if v, ok := m.vals[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.vals[key]
	return ok
}

// Delete removes key if present. Deleting an absent key is a no-op.
func (m *Map) Delete(key string) {
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of keys.
func (m *Map) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order. The slice is a copy.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Each calls fn for every key/value pair in insertion order.
// Iteration stops early if fn returns false.
func (m *Map) Each(fn func(key string, value any) bool) {
	for _, k := range m.keys {
		if !fn(k, m.vals[k]) {
			return
		}
	}
}

// Merge sets every key/value pair from other into m, preserving other's
// relative order for newly added keys.
func (m *Map) Merge(other *Map) {
	if other == nil {
		return
	}
	other.Each(func(k string, v any) bool {
		m.Set(k, v)
		return true
	})
}

// Clone returns a deep copy of m. Nested maps and slices are copied;
// scalar values are shared.
func (m *Map) Clone() *Map {
	out := New()
	m.Each(func(k string, v any) bool {
		out.Set(k, cloneValue(v))
		return true
	})
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case *Map:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Flatten returns a plain map[string]any view of m with nested Maps
// flattened recursively. Iteration order is lost; used for expression
// evaluation and path queries.
func (m *Map) Flatten() map[string]any {
	out := make(map[string]any, len(m.keys))
	m.Each(func(k string, v any) bool {
		out[k] = flattenValue(v)
		return true
	})
	return out
}

func flattenValue(v any) any {
	switch t := v.(type) {
	case *Map:
		return t.Flatten()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = flattenValue(e)
		}
		return out
	default:
		return v
	}
}

// Equal reports whether two Maps hold the same keys with deeply equal
// values. Key order is not significant for equality.
func (m *Map) Equal(other *Map) bool {
	if m == nil || other == nil {
		return m == other
	}
	if len(m.keys) != len(other.keys) {
		return false
	}
	for k, v := range m.vals {
		ov, ok := other.vals[k]
		if !ok {
			return false
		}
		if !valueEqual(v, ov) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	am, aok := a.(*Map)
	bm, bok := b.(*Map)
	if aok || bok {
		if !aok || !bok {
			return false
		}
		return am.Equal(bm)
	}
	as, aok := a.([]any)
	bs, bok := b.([]any)
	if aok || bok {
		if !aok || !bok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !valueEqual(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// String returns a compact JSON-ish rendering, mainly for debugging.
func (m *Map) String() string {
	b, err := m.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("props.Map(%d keys)", len(m.keys))
	}
	return string(b)
}
