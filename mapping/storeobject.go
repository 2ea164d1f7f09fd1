package mapping

import (
	"bytes"
	"encoding/json"
	"sort"
)

// StoreObject is the backend-shaped form of one entity: an ordered mapping of
// field names to store values. Values are scalars, nil, []any, map[string]any
// or nested *StoreObject for embedded fields.
//
// A StoreObject belongs to the single operation that built it.
type StoreObject struct {
	keys   []string
	values map[string]any
}

// NewStoreObject creates an empty StoreObject.
func NewStoreObject() *StoreObject {
	return &StoreObject{values: make(map[string]any)}
}

// StoreObjectFromMap wraps a raw backend record. Keys are ordered by name.
func StoreObjectFromMap(m map[string]any) *StoreObject {
	so := &StoreObject{
		keys:   make([]string, 0, len(m)),
		values: make(map[string]any, len(m)),
	}
	for k := range m {
		so.keys = append(so.keys, k)
	}
	sort.Strings(so.keys)
	for k, v := range m {
		so.values[k] = v
	}
	return so
}

// Set stores value under key, keeping the key's first insertion position.
func (so *StoreObject) Set(key string, value any) {
	if _, ok := so.values[key]; !ok {
		so.keys = append(so.keys, key)
	}
	so.values[key] = value
}

// Get returns the value under key and whether the key is present.
func (so *StoreObject) Get(key string) (any, bool) {
	v, ok := so.values[key]
	return v, ok
}

// Delete removes key.
func (so *StoreObject) Delete(key string) {
	if _, ok := so.values[key]; !ok {
		return
	}
	delete(so.values, key)
	for i, k := range so.keys {
		if k == key {
			so.keys = append(so.keys[:i], so.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in order.
func (so *StoreObject) Keys() []string {
	return append([]string(nil), so.keys...)
}

func (so *StoreObject) Len() int { return len(so.keys) }

// Map returns a plain map copy, flattening nested StoreObjects.
func (so *StoreObject) Map() map[string]any {
	out := make(map[string]any, len(so.keys))
	for _, k := range so.keys {
		out[k] = plainValue(so.values[k])
	}
	return out
}

func plainValue(v any) any {
	switch t := v.(type) {
	case *StoreObject:
		if t == nil {
			return nil
		}
		return t.Map()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plainValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = plainValue(item)
		}
		return out
	}
	return v
}

// MarshalJSON encodes the object with its keys in order.
func (so *StoreObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range so.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(so.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
