package capture

import "reflect"

// JSONType names the JSON type of c: object, array, string, integer, number,
// boolean or null. Scalars that are neither (structs, pointers) report
// object.
func (c *Value) JSONType() string {
	switch c.Kind() {
	case Mapping:
		return "object"
	case List:
		return "array"
	}
	s := c.Scalar()
	if s == nil {
		return "null"
	}
	rv := reflect.ValueOf(s)
	switch rv.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return "string"
		}
		return "array"
	case reflect.Pointer:
		if rv.IsNil() {
			return "null"
		}
		return Capture(rv.Elem().Interface()).JSONType()
	case reflect.Map:
		if rv.IsNil() {
			return "null"
		}
	}
	return "object"
}

// HasNestedDescriptions reports whether any element below c carries
// descriptions.
func (c *Value) HasNestedDescriptions() bool {
	switch c.Kind() {
	case Mapping:
		for _, f := range c.fields {
			if len(f.Descriptions()) > 0 || f.HasNestedDescriptions() {
				return true
			}
		}
	case List:
		for _, it := range c.items {
			if len(it.Descriptions()) > 0 || it.HasNestedDescriptions() {
				return true
			}
		}
	}
	return false
}
