// Package translator converts registry tool metadata into the
// function-calling conventions understood by decision-making models.
package translator

import (
	"github.com/effective-security/toolbridge/registry"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// FunctionDefinition is a definition of a function that can be called by the model.
type FunctionDefinition struct {
	// Name is the name of the function.
	Name string `json:"name" yaml:"name"`
	// Description is a description of the function.
	Description string `json:"description" yaml:"description"`
	// Parameters is the object schema of the function arguments.
	Parameters *jsonschema.Schema `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Translate converts tool metadata to a function definition.
// Only type, description, properties, required, items, enum and default
// keys of the schema are kept.
// The function-calling conventions of Gemini, Anthropic and MCP require the
// parameters to be an object schema, so a missing schema, or one without a
// type, is rendered as {"type": "object"}. No other key is added.
func Translate(info registry.ToolInfo) FunctionDefinition {
	params := CleanSchema(info.InputSchema)
	if params == nil {
		params = &jsonschema.Schema{Type: "object"}
	}
	if params.Type == "" {
		params.Type = "object"
	}
	return FunctionDefinition{
		Name:        info.Name,
		Description: info.Description,
		Parameters:  params,
	}
}

// TranslateAll converts the list of tools, preserving order
func TranslateAll(list []registry.ToolInfo) []FunctionDefinition {
	defs := make([]FunctionDefinition, len(list))
	for i, info := range list {
		defs[i] = Translate(info)
	}
	return defs
}

// Names returns the names of the definitions
func Names(defs []FunctionDefinition) []string {
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// CleanSchema returns a copy of the schema with only the keys kept by Translate
func CleanSchema(in *jsonschema.Schema) *jsonschema.Schema {
	if in == nil {
		return nil
	}
	out := &jsonschema.Schema{
		Type:        in.Type,
		Description: in.Description,
		Required:    append([]string(nil), in.Required...),
		Enum:        in.Enum,
		Default:     in.Default,
	}
	if in.Properties != nil {
		out.Properties = orderedmap.New[string, *jsonschema.Schema]()
		for pair := in.Properties.Oldest(); pair != nil; pair = pair.Next() {
			out.Properties.Set(pair.Key, CleanSchema(pair.Value))
		}
	}
	if in.Items != nil {
		out.Items = CleanSchema(in.Items)
	}
	return out
}
