package value

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/bububa/ljson"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/utils"
)

// Type is a declared parameter type, named as in JSON Schema.
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
)

// Valid returns true for the supported types.
func (t Type) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeObject, TypeArray:
		return true
	}
	return false
}

// ErrMismatch is returned when a value cannot be coerced to the declared type.
var ErrMismatch = errors.New("type mismatch")

// Coerce converts v to the declared type t.
//
// Allowed conversions:
//   - integer: integral numbers in int64 range, and strings holding a base-10 integer literal;
//   - number: integers, and strings holding a finite decimal number;
//   - boolean: the strings "true" and "false";
//   - string, object, array: exact kind only.
//
// Null never coerces.
func Coerce(v Value, t Type) (Value, error) {
	switch t {
	case TypeString:
		if v.kind == KindString {
			return v, nil
		}
	case TypeInteger:
		switch v.kind {
		case KindInt:
			return v, nil
		case KindFloat:
			if v.f == math.Trunc(v.f) && v.f >= math.MinInt64 && v.f < math.MaxInt64 {
				return NewInt(int64(v.f)), nil
			}
		case KindString:
			if i, err := strconv.ParseInt(v.s, 10, 64); err == nil {
				return NewInt(i), nil
			}
		}
	case TypeNumber:
		switch v.kind {
		case KindFloat:
			return v, nil
		case KindInt:
			return NewFloat(float64(v.i)), nil
		case KindString:
			if f, err := strconv.ParseFloat(v.s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
				return NewFloat(f), nil
			}
		}
	case TypeBoolean:
		switch v.kind {
		case KindBool:
			return v, nil
		case KindString:
			switch v.s {
			case "true":
				return NewBool(true), nil
			case "false":
				return NewBool(false), nil
			}
		}
	case TypeObject:
		if v.kind == KindObject {
			return v, nil
		}
	case TypeArray:
		if v.kind == KindArray {
			return v, nil
		}
	default:
		return Null, errors.Errorf("unsupported type: %q", t)
	}
	if v.kind == KindNull {
		return Null, errors.WithMessagef(ErrMismatch, "expected %s, got null", t)
	}
	return Null, errors.WithMessagef(ErrMismatch, "expected %s, got %s %s", t, v.kind, v)
}

// CoerceItems coerces every element of an array to the item type.
func CoerceItems(v Value, item Type) (Value, error) {
	list, ok := v.Array()
	if !ok {
		return Coerce(v, TypeArray)
	}
	out := make([]Value, len(list))
	for i, el := range list {
		c, err := Coerce(el, item)
		if err != nil {
			return Null, errors.WithMessagef(err, "item [%d]", i)
		}
		out[i] = c
	}
	return NewArray(out...), nil
}

// ParseObject decodes a JSON object from text produced by people or models.
// Leading prose and code fences around the object are ignored,
// and minor syntax errors are tolerated.
func ParseObject(data []byte) (Object, error) {
	data = bytes.TrimSpace(utils.CleanJSON(utils.BytesTrimBackticks(data)))
	if len(data) == 0 {
		return Object{}, nil
	}

	var obj Object
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var strict map[string]any
	if err := dec.Decode(&strict); err == nil {
		obj, err = ObjectFromMap(strict)
		return obj, err
	}

	var lenient map[string]any
	if err := ljson.Unmarshal(data, &lenient); err != nil {
		return nil, errors.Wrap(err, "failed to parse arguments")
	}
	return ObjectFromMap(lenient)
}
