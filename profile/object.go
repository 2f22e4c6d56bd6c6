package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Object is a JSON object that keeps keys in insertion order. Setting an
// existing key replaces its value in place. The zero value is an empty
// object ready to use.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Set stores value under key, replacing any previous value.
func (o *Object) Set(key string, value any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}

	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}

	o.values[key] = value
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]

	return v, ok
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	return append([]string(nil), o.keys...)
}

// Len returns the number of keys.
func (o *Object) Len() int {
	return len(o.keys)
}

// MarshalJSON implements json.Marshaler.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		k, err := encodeValue(key)
		if err != nil {
			return nil, err
		}

		v, err := encodeValue(o.values[key])
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", key, err)
		}

		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// encodeValue is json.Marshal without HTML escaping, so captured payload
// text is written as-is.
func encodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
