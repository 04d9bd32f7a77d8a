// Package value provides the tagged-union argument values exchanged between
// tool callers and the registry, and the coercion rules applied when
// arguments are validated against a declared parameter type.
package value

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindObject
	KindArray
)

var kindNames = [...]string{
	KindNull:   "null",
	KindString: "string",
	KindInt:    "integer",
	KindFloat:  "number",
	KindBool:   "boolean",
	KindObject: "object",
	KindArray:  "array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is an immutable tagged union of the JSON-compatible values
// accepted as tool arguments and produced as tool results.
// The zero Value is null.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	obj  Object
	arr  []Value
}

// Object is a mapping of argument name to value.
type Object map[string]Value

// Null is the null value.
var Null = Value{}

func NewString(s string) Value  { return Value{kind: KindString, s: s} }
func NewInt(i int64) Value      { return Value{kind: KindInt, i: i} }
func NewFloat(f float64) Value  { return Value{kind: KindFloat, f: f} }
func NewBool(b bool) Value      { return Value{kind: KindBool, b: b} }
func NewObject(o Object) Value  { return Value{kind: KindObject, obj: o} }
func NewArray(a ...Value) Value { return Value{kind: KindArray, arr: a} }

// Kind returns the variant of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull returns true for the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string and true if v holds a string.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Int returns the integer and true if v holds an integer.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float returns the number and true if v holds an integer or a float.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// Bool returns the boolean and true if v holds a boolean.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Object returns the object and true if v holds an object.
func (v Value) Object() (Object, bool) { return v.obj, v.kind == KindObject }

// Array returns the elements and true if v holds an array.
func (v Value) Array() ([]Value, bool) { return v.arr, v.kind == KindArray }

// Any converts the value to plain Go types:
// nil, string, int64, float64, bool, map[string]any, []any.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindObject:
		return v.obj.Any()
	case KindArray:
		list := make([]any, len(v.arr))
		for i, item := range v.arr {
			list[i] = item.Any()
		}
		return list
	}
	return nil
}

// String returns a short human readable rendering of the value.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.s)
	case KindNull:
		return "null"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	js, err := json.Marshal(v)
	if err != nil {
		return v.kind.String()
	}
	return string(js)
}

// Equal reports whether two values hold the same variant and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.s == o.s
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, item := range v.obj {
			other, ok := o.obj[k]
			if !ok || !item.Equal(other) {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, errors.Errorf("unsupported number: %v", v.f)
		}
	case KindObject:
		return json.Marshal(v.obj)
	case KindArray:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	}
	return json.Marshal(v.Any())
}

// UnmarshalJSON implements json.Unmarshaler.
// Numbers without fraction or exponent are decoded as integers.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return errors.WithStack(err)
	}
	val, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// FromAny converts decoded JSON or Go scalar values to a Value.
func FromAny(src any) (Value, error) {
	switch t := src.(type) {
	case nil:
		return Null, nil
	case Value:
		return t, nil
	case Object:
		return NewObject(t), nil
	case string:
		return NewString(t), nil
	case bool:
		return NewBool(t), nil
	case json.Number:
		return fromNumber(t)
	case int:
		return NewInt(int64(t)), nil
	case int8:
		return NewInt(int64(t)), nil
	case int16:
		return NewInt(int64(t)), nil
	case int32:
		return NewInt(int64(t)), nil
	case int64:
		return NewInt(t), nil
	case uint8:
		return NewInt(int64(t)), nil
	case uint16:
		return NewInt(int64(t)), nil
	case uint32:
		return NewInt(int64(t)), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return Null, errors.Errorf("integer overflow: %d", t)
		}
		return NewInt(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Null, errors.Errorf("integer overflow: %d", t)
		}
		return NewInt(int64(t)), nil
	case float32:
		return NewFloat(float64(t)), nil
	case float64:
		return NewFloat(t), nil
	case map[string]any:
		return fromMap(t)
	case []any:
		list := make([]Value, len(t))
		for i, item := range t {
			val, err := FromAny(item)
			if err != nil {
				return Null, errors.Wrapf(err, "[%d]", i)
			}
			list[i] = val
		}
		return NewArray(list...), nil
	}
	return fromReflect(reflect.ValueOf(src))
}

// fromReflect handles typed slices and maps such as []string or map[string]int.
func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return Null, nil
		}
		return FromAny(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return NewArray(), nil
		}
		list := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			val, err := FromAny(rv.Index(i).Interface())
			if err != nil {
				return Null, errors.Wrapf(err, "[%d]", i)
			}
			list[i] = val
		}
		return NewArray(list...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		obj := make(Object, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			val, err := FromAny(iter.Value().Interface())
			if err != nil {
				return Null, errors.Wrapf(err, "%s", iter.Key().String())
			}
			obj[iter.Key().String()] = val
		}
		return NewObject(obj), nil
	case reflect.String:
		return NewString(rv.String()), nil
	case reflect.Bool:
		return NewBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return Null, errors.Errorf("integer overflow: %d", rv.Uint())
		}
		return NewInt(int64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return NewFloat(rv.Float()), nil
	}
	if !rv.IsValid() {
		return Null, nil
	}
	if rv.Kind() != reflect.Struct {
		return Null, errors.Errorf("unsupported value type: %T", rv.Interface())
	}
	// structs go through their JSON form to honor field tags
	js, err := json.Marshal(rv.Interface())
	if err != nil {
		return Null, errors.Wrapf(err, "unsupported value type: %T", rv.Interface())
	}
	var val Value
	if err = val.UnmarshalJSON(js); err != nil {
		return Null, err
	}
	return val, nil
}

func fromNumber(n json.Number) (Value, error) {
	if i, err := n.Int64(); err == nil {
		return NewInt(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return Null, errors.Errorf("invalid number: %s", n.String())
	}
	return NewFloat(f), nil
}

func fromMap(m map[string]any) (Value, error) {
	obj, err := ObjectFromMap(m)
	if err != nil {
		return Null, err
	}
	return NewObject(obj), nil
}

// ObjectFromMap converts a decoded JSON object to an Object.
func ObjectFromMap(m map[string]any) (Object, error) {
	obj := make(Object, len(m))
	for k, item := range m {
		val, err := FromAny(item)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", k)
		}
		obj[k] = val
	}
	return obj, nil
}

// MustObject is like ObjectFromMap but panics on error.
// It is intended for tests and static declarations.
func MustObject(m map[string]any) Object {
	obj, err := ObjectFromMap(m)
	if err != nil {
		panic(err)
	}
	return obj
}

// Any converts the object to a plain map.
func (o Object) Any() map[string]any {
	if o == nil {
		return nil
	}
	m := make(map[string]any, len(o))
	for k, v := range o {
		m[k] = v.Any()
	}
	return m
}

// Keys returns the sorted keys of the object.
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the object.
func (o Object) Clone() Object {
	c := make(Object, len(o))
	for k, v := range o {
		c[k] = v
	}
	return c
}

// Decode converts the object into the given Go structure through its JSON form.
func (o Object) Decode(target any) error {
	js, err := json.Marshal(o)
	if err != nil {
		return errors.WithStack(err)
	}
	if err = json.Unmarshal(js, target); err != nil {
		return errors.Wrap(err, "failed to decode arguments")
	}
	return nil
}
