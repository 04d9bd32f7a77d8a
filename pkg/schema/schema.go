package schema

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Faker is implemented by types that provide their own example value
// for format instructions.
type Faker interface {
	Fake() any
}

// Example returns an example value of the type, the Fake value when the type
// implements Faker, otherwise a pointer to a value filled by gofakeit.
// Returns nil for a nil type.
func Example(t reflect.Type) any {
	if t == nil {
		return nil
	}
	ptr := reflect.New(t)
	if f, ok := ptr.Elem().Interface().(Faker); ok {
		return f.Fake()
	}
	if f, ok := ptr.Interface().(Faker); ok {
		return f.Fake()
	}
	_ = gofakeit.Struct(ptr.Interface())
	return ptr.Interface()
}

var (
	cache   = make(map[reflect.Type]*Schema)
	cacheMu sync.RWMutex
)

// Schema is a reflected schema of a Go structure
type Schema struct {
	RawSchema *jsonschema.Schema
	// Parameters represents the Function parameters definition
	Parameters *jsonschema.Schema
}

// New creates a new schema from the given type
func New(t reflect.Type) (*Schema, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.Errorf("expected struct, got %s", t.Kind())
	}

	cacheMu.RLock()
	s, ok := cache[t]
	cacheMu.RUnlock()
	if ok {
		return s, nil
	}

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if s, ok := cache[t]; ok {
		return s, nil
	}

	s, err := buildSchema(t)
	if err != nil {
		return nil, err
	}
	cache[t] = s

	return s, nil
}

// For returns the schema of T
func For[T any]() (*Schema, error) {
	return New(reflect.TypeFor[T]())
}

func (s *Schema) String() string {
	js, _ := json.MarshalIndent(s.Parameters, "", "\t")
	return string(js)
}

func buildSchema(t reflect.Type) (*Schema, error) {
	schema := JSONSchema(t)

	funcDef, err := ToFunctionSchema(schema)
	if err != nil {
		return nil, errors.WithMessagef(err, "unable to build schema for %s", t.Name())
	}
	return &Schema{
		RawSchema:  schema,
		Parameters: funcDef,
	}, nil
}

// ToFunctionSchema returns the top level object of the reflected schema,
// with all $ref resolved from its definitions.
func ToFunctionSchema(tSchema *jsonschema.Schema) (*jsonschema.Schema, error) {
	// find top level properties
	refID := strings.TrimPrefix(tSchema.Ref, "#/$defs/")

	var defs = make(map[string]*jsonschema.Schema)
	root := tSchema

	for name, def := range tSchema.Definitions {
		if name == refID {
			root = def
		} else {
			defs[name] = def
		}
	}

	res := &jsonschema.Schema{
		Type:       root.Type,
		Properties: root.Properties,
		Required:   root.Required,
	}

	if res.Properties != nil {
		if err := resolveRefs(res.Properties, defs); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func resolveRefs(props *orderedmap.OrderedMap[string, *jsonschema.Schema], defs map[string]*jsonschema.Schema) error {
	for pair := props.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Ref != "" {
			def, err := lookupRef(pair.Value.Ref, defs)
			if err != nil {
				return errors.WithMessagef(err, "property %s", pair.Key)
			}
			pair.Value = def
		}
		child := pair.Value
		if child.Properties != nil {
			if err := resolveRefs(child.Properties, defs); err != nil {
				return err
			}
		}
		if child.Items != nil && child.Items.Ref != "" {
			def, err := lookupRef(child.Items.Ref, defs)
			if err != nil {
				return errors.WithMessagef(err, "items of %s", pair.Key)
			}
			child.Items = def
		}
	}
	return nil
}

func lookupRef(ref string, defs map[string]*jsonschema.Schema) (*jsonschema.Schema, error) {
	name := strings.TrimPrefix(ref, "#/$defs/")
	if def, ok := defs[name]; ok {
		return def, nil
	}
	return nil, errors.Errorf("definition not found: %s", ref)
}

// JSONSchema return the json schema of the type
func JSONSchema(t reflect.Type) *jsonschema.Schema {
	r := new(jsonschema.Reflector)
	r.ExpandedStruct = true
	r.DoNotReference = true
	r.AllowAdditionalProperties = true

	// The Struct name could be same, but the package name is different,
	// which would produce the same `$ref` for different types.
	// See: https://github.com/invopop/jsonschema/issues/42
	r.Namer = func(t reflect.Type) string {
		name := t.Name()
		if t.Kind() == reflect.Struct {
			fullname := t.PkgPath() + "/" + t.Name()
			name = t.Name() + "@" + strconv.FormatUint(xxhash.Sum64String(fullname), 10)
		}
		return name
	}

	return r.ReflectFromType(t)
}

// MustFromAny creates a json schema from any value.
// It panics if the value does not describe a schema.
//
// For example:
//
//	map[string]any{
//		"type": "object",
//		"properties": map[string]any{
//			"query": map[string]any{
//				"type": "string",
//			},
//		},
//	}
func MustFromAny(t any) *jsonschema.Schema {
	schema, err := FromAny(t)
	if err != nil {
		panic(err)
	}
	return schema
}

// FromAny creates a json schema from any value, such as a decoded JSON map
func FromAny(t any) (*jsonschema.Schema, error) {
	js, err := json.Marshal(t)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	schema := &jsonschema.Schema{}
	err = json.Unmarshal(js, schema)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return schema, nil
}

// ToMap returns the schema as a plain JSON map
func ToMap(s *jsonschema.Schema) (map[string]any, error) {
	if s == nil {
		return nil, nil
	}
	js, err := json.Marshal(s)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var m map[string]any
	if err = json.Unmarshal(js, &m); err != nil {
		return nil, errors.WithStack(err)
	}
	return m, nil
}
