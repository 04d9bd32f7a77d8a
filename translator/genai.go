package translator

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

// ToGenAI converts function definitions to Gemini tools,
// one tool per function declaration.
func ToGenAI(defs []FunctionDefinition) ([]*genai.Tool, error) {
	tools := make([]*genai.Tool, 0, len(defs))
	for i, def := range defs {
		decl := &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
		}
		if def.Parameters != nil {
			sc, err := ToGenAISchema(def.Parameters)
			if err != nil {
				return nil, errors.Wrapf(err, "tool [%d] %s", i, def.Name)
			}
			decl.Parameters = sc
		}
		tools = append(tools, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{decl},
		})
	}
	return tools, nil
}

// ToGenAISchema converts a JSON schema to a genai.Schema
func ToGenAISchema(js *jsonschema.Schema) (*genai.Schema, error) {
	if js == nil {
		return nil, nil
	}

	typ := GenAIType(js.Type)
	if typ == genai.TypeUnspecified && js.Type != "" {
		return nil, errors.Errorf("unsupported type: %q", js.Type)
	}

	out := &genai.Schema{
		Type:        typ,
		Description: js.Description,
		Required:    js.Required,
		Default:     js.Default,
	}

	for _, e := range js.Enum {
		out.Enum = append(out.Enum, fmt.Sprint(e))
	}

	if js.Properties != nil && js.Properties.Len() > 0 {
		out.Properties = make(map[string]*genai.Schema, js.Properties.Len())
		for pair := js.Properties.Oldest(); pair != nil; pair = pair.Next() {
			prop, err := ToGenAISchema(pair.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "property [%s]", pair.Key)
			}
			out.Properties[pair.Key] = prop
			out.PropertyOrdering = append(out.PropertyOrdering, pair.Key)
		}
	}

	if js.Items != nil {
		items, err := ToGenAISchema(js.Items)
		if err != nil {
			return nil, errors.Wrap(err, "items")
		}
		out.Items = items
	}

	return out, nil
}

// GenAIType converts a JSON schema type name to a genai.Type.
func GenAIType(dt string) genai.Type {
	switch dt {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}
