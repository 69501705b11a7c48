package capture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

type wireValue struct {
	Kind         string          `json:"kind"`
	Descriptions []string        `json:"descriptions,omitempty"`
	Value        json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes c with its kind and descriptions at every level.
func (c *Value) MarshalJSON() ([]byte, error) {
	w := wireValue{Kind: c.Kind().String(), Descriptions: c.descs}
	var (
		raw []byte
		err error
	)
	switch c.kind {
	case Mapping:
		raw, err = json.Marshal(c.fields)
	case List:
		raw, err = json.Marshal(c.items)
	default:
		raw, err = json.Marshal(c.scalar)
	}
	if err != nil {
		return nil, err
	}
	w.Value = raw
	return json.Marshal(w)
}

// UnmarshalJSON decodes a value written by MarshalJSON. Containers come back
// as map[string]any and []any; scalars as their generic JSON types, except
// that whole numbers decode as int64.
func (c *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Value{descs: w.Descriptions}
	switch w.Kind {
	case "mapping":
		out.kind = Mapping
		out.typ = reflect.TypeOf(map[string]any(nil))
		if err := json.Unmarshal(w.Value, &out.fields); err != nil {
			return fmt.Errorf("decode mapping: %w", err)
		}
		if out.fields == nil {
			out.fields = map[string]*Value{}
		}
	case "list":
		out.kind = List
		out.typ = reflect.TypeOf([]any(nil))
		if err := json.Unmarshal(w.Value, &out.items); err != nil {
			return fmt.Errorf("decode list: %w", err)
		}
	case "scalar", "":
		if len(w.Value) > 0 {
			dec := json.NewDecoder(bytes.NewReader(w.Value))
			dec.UseNumber()
			var v any
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("decode scalar: %w", err)
			}
			out.scalar = numbers(v)
		}
	default:
		return fmt.Errorf("unknown value kind %q", w.Kind)
	}
	*c = out
	return nil
}

// numbers replaces json.Number values, also inside decoded objects and
// arrays, with int64 when they are whole and float64 otherwise.
func numbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		for k, e := range val {
			val[k] = numbers(e)
		}
	case []any:
		for i, e := range val {
			val[i] = numbers(e)
		}
	}
	return v
}
