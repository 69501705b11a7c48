// Package capture wraps plain values so that any element, at any depth, can
// carry human-readable descriptions, and unwraps them back to the original
// data.
//
// Example payloads are written as ordinary literals. Fields that need prose
// are wrapped inline:
//
//	body := map[string]any{
//	    "id":   capture.Capture(42).Desc("order id"),
//	    "note": "left at the door",
//	}
//	c := capture.Capture(body)   // every element is now a *Value
//	plain := capture.Undo(body)  // map[string]any{"id": 42, "note": "left at the door"}
package capture

import (
	"reflect"
	"sort"
	"strings"
)

// Kind is the shape of a captured value.
type Kind int

const (
	Scalar Kind = iota
	List
	Mapping
)

func (k Kind) String() string {
	switch k {
	case List:
		return "list"
	case Mapping:
		return "mapping"
	default:
		return "scalar"
	}
}

// Value is a captured value with its descriptions. Lists and mappings hold
// their elements as independent *Value nodes.
type Value struct {
	kind   Kind
	typ    reflect.Type // container type; nil for scalars
	scalar any
	items  []*Value
	fields map[string]*Value
	descs  []string
}

var (
	valueType = reflect.TypeOf((*Value)(nil))
	anyType   = reflect.TypeOf((*any)(nil)).Elem()
)

// Capture wraps v. A *Value is returned unchanged, and *Value elements nested
// in plain maps or slices are reused so their descriptions survive.
// Maps with string keys, slices and arrays are wrapped element by element;
// everything else (structs, pointers, nil containers, byte slices) is a
// scalar. v is never modified. A map or slice that contains itself is
// wrapped once; the inner reference is kept as a scalar.
func Capture(v any) *Value {
	if c, ok := v.(*Value); ok {
		if c == nil {
			return &Value{}
		}
		return c
	}
	return captureValue(reflect.ValueOf(v), path{})
}

// path holds the maps and slices being walked, keyed by their data pointer.
type path map[uintptr]bool

// enter reports whether rv can be walked, marking it as on the path.
func (p path) enter(rv reflect.Value) bool {
	if rv.Len() == 0 {
		return true
	}
	ptr := rv.Pointer()
	if p[ptr] {
		return false
	}
	p[ptr] = true
	return true
}

func (p path) leave(rv reflect.Value) {
	if rv.Len() > 0 {
		delete(p, rv.Pointer())
	}
}

func captureValue(rv reflect.Value, seen path) *Value {
	if !rv.IsValid() {
		return &Value{}
	}
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return &Value{}
		}
		rv = rv.Elem()
	}
	if rv.Type() == valueType {
		if rv.IsNil() {
			return &Value{}
		}
		return rv.Interface().(*Value)
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() || rv.Type().Key().Kind() != reflect.String || !seen.enter(rv) {
			break
		}
		defer seen.leave(rv)
		out := &Value{kind: Mapping, typ: plainType(rv.Type()), fields: make(map[string]*Value, rv.Len())}
		iter := rv.MapRange()
		for iter.Next() {
			out.fields[iter.Key().String()] = captureValue(iter.Value(), seen)
		}
		return out
	case reflect.Slice:
		if rv.IsNil() || rv.Type().Elem().Kind() == reflect.Uint8 || !seen.enter(rv) {
			break
		}
		defer seen.leave(rv)
		return captureList(rv, seen)
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			break
		}
		return captureList(rv, seen)
	}
	return &Value{scalar: rv.Interface()}
}

func captureList(rv reflect.Value, seen path) *Value {
	out := &Value{kind: List, typ: plainType(rv.Type()), items: make([]*Value, rv.Len())}
	for i := range out.items {
		out.items[i] = captureValue(rv.Index(i), seen)
	}
	return out
}

// plainType swaps a *Value element type for any, so the undone container can
// hold the unwrapped elements.
func plainType(t reflect.Type) reflect.Type {
	if t.Elem() != valueType {
		return t
	}
	switch t.Kind() {
	case reflect.Map:
		return reflect.MapOf(t.Key(), anyType)
	case reflect.Array:
		return reflect.ArrayOf(t.Len(), anyType)
	default:
		return reflect.SliceOf(anyType)
	}
}

// Undo returns the plain value behind v. It accepts a *Value or an already
// plain value, and unwraps captures nested inside plain containers. A plain
// container met again inside itself is returned as is.
func Undo(v any) any {
	return undo(v, path{})
}

func undo(v any, seen path) any {
	if c, ok := v.(*Value); ok {
		return c.Plain()
	}
	if v == nil {
		return nil
	}
	return undoPlain(reflect.ValueOf(v), seen)
}

func undoPlain(rv reflect.Value, seen path) any {
	t := rv.Type()
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() || !holdsValues(t.Elem()) || !seen.enter(rv) {
			break
		}
		defer seen.leave(rv)
		target := plainType(t)
		out := reflect.MakeMapWithSize(target, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), assignable(target.Elem(), undo(iter.Value().Interface(), seen)))
		}
		return out.Interface()
	case reflect.Slice, reflect.Array:
		if (rv.Kind() == reflect.Slice && rv.IsNil()) || !holdsValues(t.Elem()) {
			break
		}
		if rv.Kind() == reflect.Slice {
			if !seen.enter(rv) {
				break
			}
			defer seen.leave(rv)
		}
		target := plainType(t)
		var out reflect.Value
		if target.Kind() == reflect.Array {
			out = reflect.New(target).Elem()
		} else {
			out = reflect.MakeSlice(target, rv.Len(), rv.Len())
		}
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(assignable(target.Elem(), undo(rv.Index(i).Interface(), seen)))
		}
		return out.Interface()
	}
	return rv.Interface()
}

func holdsValues(t reflect.Type) bool {
	return t.Kind() == reflect.Interface || t == valueType
}

func assignable(t reflect.Type, v any) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t)
	}
	return reflect.Zero(t)
}

// Desc replaces the descriptions of c.
func (c *Value) Desc(descs ...string) *Value {
	c.descs = append([]string(nil), descs...)
	return c
}

func (c *Value) Kind() Kind {
	if c == nil {
		return Scalar
	}
	return c.kind
}

// Descriptions returns a copy of the attached descriptions.
func (c *Value) Descriptions() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.descs...)
}

// Description joins the descriptions with a space.
func (c *Value) Description() string {
	if c == nil {
		return ""
	}
	return strings.Join(c.descs, " ")
}

// Scalar returns the payload of a scalar value, nil for containers.
func (c *Value) Scalar() any {
	if c == nil {
		return nil
	}
	return c.scalar
}

func (c *Value) Len() int {
	if c == nil {
		return 0
	}
	switch c.kind {
	case List:
		return len(c.items)
	case Mapping:
		return len(c.fields)
	}
	return 0
}

// Items returns the elements of a list.
func (c *Value) Items() []*Value {
	if c == nil {
		return nil
	}
	return append([]*Value(nil), c.items...)
}

// Keys returns the mapping keys in sorted order.
func (c *Value) Keys() []string {
	if c == nil || c.kind != Mapping {
		return nil
	}
	keys := make([]string, 0, len(c.fields))
	for k := range c.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the mapping element for key.
func (c *Value) Get(key string) (*Value, bool) {
	if c == nil || c.kind != Mapping {
		return nil, false
	}
	v, ok := c.fields[key]
	return v, ok
}

// Plain rebuilds the original value, with the original container types.
func (c *Value) Plain() any {
	if c == nil {
		return nil
	}
	switch c.kind {
	case Mapping:
		out := reflect.MakeMapWithSize(c.typ, len(c.fields))
		for k, f := range c.fields {
			out.SetMapIndex(reflect.ValueOf(k).Convert(c.typ.Key()), assignable(c.typ.Elem(), f.Plain()))
		}
		return out.Interface()
	case List:
		var out reflect.Value
		if c.typ.Kind() == reflect.Array {
			out = reflect.New(c.typ).Elem()
		} else {
			out = reflect.MakeSlice(c.typ, len(c.items), len(c.items))
		}
		for i, it := range c.items {
			out.Index(i).Set(assignable(c.typ.Elem(), it.Plain()))
		}
		return out.Interface()
	}
	return c.scalar
}

// IsEmpty reports whether c is nil or a scalar nil.
func (c *Value) IsEmpty() bool {
	return c == nil || (c.kind == Scalar && c.scalar == nil)
}
