package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// marshalJSON encodes v compactly without HTML escaping, so templates
// like "{{ value_json.text }}" and "a > b" stay readable.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// object is a JSON object that keeps keys in insertion order. State
// payloads carry whichever metrics the radio sent, in the order it sent
// them, so their keys are not known ahead of time.
type object struct {
	keys   []string
	values map[string]any
}

func newObject() *object {
	return &object{values: make(map[string]any)}
}

// Set adds or replaces a key. A replaced key keeps its original position.
func (o *object) Set(key string, value any) *object {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
	return o
}

// Len returns the number of keys.
func (o *object) Len() int {
	return len(o.keys)
}

// MarshalJSON writes the object compactly, in key order.
func (o *object) MarshalJSON() ([]byte, error) {
	out := []byte{'{'}
	for i, key := range o.keys {
		if i > 0 {
			out = append(out, ',')
		}

		k, err := marshalJSON(key)
		if err != nil {
			return nil, fmt.Errorf("encode key %q: %w", key, err)
		}
		v, err := marshalJSON(o.values[key])
		if err != nil {
			return nil, fmt.Errorf("encode value for %q: %w", key, err)
		}
		out = append(out, k...)
		out = append(out, ':')
		out = append(out, v...)
	}
	return append(out, '}'), nil
}
