package registry

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/value"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Param declares one named tool parameter.
type Param struct {
	Name        string     `json:"name" yaml:"name"`
	Type        value.Type `json:"type" yaml:"type"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool       `json:"required,omitempty" yaml:"required,omitempty"`
	// Default is used when the argument is absent or null
	Default any `json:"default,omitempty" yaml:"default,omitempty"`
	// Enum restricts the allowed values
	Enum []any `json:"enum,omitempty" yaml:"enum,omitempty"`
	// Items is the element type of an array parameter
	Items value.Type `json:"items,omitempty" yaml:"items,omitempty"`
}

// Params is an ordered parameter schema.
type Params []Param

// Get returns the parameter by name
func (p Params) Get(name string) (*Param, bool) {
	for i := range p {
		if p[i].Name == name {
			return &p[i], true
		}
	}
	return nil, false
}

// Names returns the parameter names in declaration order
func (p Params) Names() []string {
	names := make([]string, len(p))
	for i, param := range p {
		names[i] = param.Name
	}
	return names
}

// Validate checks the declaration itself
func (p Params) Validate() error {
	seen := make(map[string]bool, len(p))
	for _, param := range p {
		if param.Name == "" {
			return errors.New("parameter name is required")
		}
		if seen[param.Name] {
			return errors.Errorf("duplicate parameter: %s", param.Name)
		}
		seen[param.Name] = true
		if !param.Type.Valid() {
			return errors.Errorf("parameter %s: unsupported type %q", param.Name, param.Type)
		}
		if param.Items != "" {
			if param.Type != value.TypeArray {
				return errors.Errorf("parameter %s: items declared for %s", param.Name, param.Type)
			}
			if !param.Items.Valid() {
				return errors.Errorf("parameter %s: unsupported items type %q", param.Name, param.Items)
			}
		}
		if param.Default != nil {
			if _, err := param.defaultValue(); err != nil {
				return errors.WithMessagef(err, "parameter %s: invalid default", param.Name)
			}
		}
	}
	return nil
}

func (p *Param) defaultValue() (value.Value, error) {
	v, err := value.FromAny(p.Default)
	if err != nil {
		return value.Null, err
	}
	return p.coerce(v)
}

// coerce converts v to the declared type, including array items and enum check
func (p *Param) coerce(v value.Value) (value.Value, error) {
	var (
		c   value.Value
		err error
	)
	if p.Type == value.TypeArray && p.Items != "" {
		c, err = value.CoerceItems(v, p.Items)
	} else {
		c, err = value.Coerce(v, p.Type)
	}
	if err != nil {
		return value.Null, err
	}
	if len(p.Enum) > 0 && !p.inEnum(c) {
		return value.Null, errors.WithMessagef(value.ErrMismatch, "value %s is not one of %v", c, p.Enum)
	}
	return c, nil
}

func (p *Param) inEnum(v value.Value) bool {
	return slices.ContainsFunc(p.Enum, func(e any) bool {
		ev, err := value.FromAny(e)
		if err != nil {
			return false
		}
		if cv, err := p.coerceScalar(ev); err == nil {
			return cv.Equal(v)
		}
		return false
	})
}

func (p *Param) coerceScalar(v value.Value) (value.Value, error) {
	return value.Coerce(v, p.Type)
}

// JSONSchema returns the JSON schema of the parameter
func (p *Param) JSONSchema() *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:        string(p.Type),
		Description: p.Description,
		Default:     p.Default,
		Enum:        p.Enum,
	}
	if p.Items != "" {
		s.Items = &jsonschema.Schema{Type: string(p.Items)}
	}
	return s
}

// JSONSchema returns the object schema describing all parameters,
// with properties in declaration order.
func (p Params) JSONSchema() *jsonschema.Schema {
	props := orderedmap.New[string, *jsonschema.Schema]()
	var required []string
	for i := range p {
		props.Set(p[i].Name, p[i].JSONSchema())
		if p[i].Required {
			required = append(required, p[i].Name)
		}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// ParamsFromSchema derives parameters from an object schema,
// such as one reflected from a Go structure.
func ParamsFromSchema(s *jsonschema.Schema) (Params, error) {
	if s == nil {
		return nil, nil
	}
	if s.Type != "" && s.Type != "object" {
		return nil, errors.Errorf("expected object schema, got %q", s.Type)
	}
	var params Params
	if s.Properties == nil {
		return params, nil
	}
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		prop := pair.Value
		param := Param{
			Name:        pair.Key,
			Type:        value.Type(prop.Type),
			Description: prop.Description,
			Required:    slices.Contains(s.Required, pair.Key),
			Default:     prop.Default,
			Enum:        prop.Enum,
		}
		if param.Type == "" {
			// untyped properties are treated as objects
			param.Type = value.TypeObject
		}
		if prop.Items != nil && prop.Items.Type != "" && param.Type == value.TypeArray {
			param.Items = value.Type(prop.Items.Type)
		}
		if !param.Type.Valid() {
			return nil, errors.Errorf("property %s: unsupported type %q", pair.Key, prop.Type)
		}
		params = append(params, param)
	}
	return params, nil
}
