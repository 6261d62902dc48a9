package simulator

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one named measurement. Value is a float64 or a string.
type Field struct {
	Name  string
	Value any
}

// Payload is a single generated reading for one device. It is created fresh
// for every publish attempt and not retained afterwards.
type Payload struct {
	Device DeviceID
	Fields []Field
}

// Get returns the value of the named field.
func (p Payload) Get(name string) (any, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Values returns the fields as a map.
func (p Payload) Values() map[string]any {
	out := make(map[string]any, len(p.Fields))
	for _, f := range p.Fields {
		out[f.Name] = f.Value
	}
	return out
}

// Marshal encodes the payload as a JSON object with fields in profile order.
func (p Payload) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range p.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", ErrEncode, f.Name, err)
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", ErrEncode, f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParsePayload decodes a marshalled payload back into field values.
// Numbers decode as float64.
func ParsePayload(data []byte) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing payload: %w", err)
	}
	return out, nil
}
