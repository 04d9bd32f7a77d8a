package translator

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
)

// ToAnthropic converts function definitions to Anthropic tool parameters.
// Returns nil if no definitions are provided.
func ToAnthropic(defs []FunctionDefinition) []anthropic.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}

	tools := make([]anthropic.ToolUnionParam, len(defs))
	for i, def := range defs {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: "object",
		}
		if def.Parameters != nil {
			inputSchema.Properties = properties(def.Parameters)
			if len(def.Parameters.Required) > 0 {
				inputSchema.Required = def.Parameters.Required
			}
		}

		tool := &anthropic.ToolParam{
			Name:        def.Name,
			InputSchema: inputSchema,
		}
		if def.Description != "" {
			tool.Description = anthropic.String(def.Description)
		}
		tools[i] = anthropic.ToolUnionParam{OfTool: tool}
	}
	return tools
}

// properties converts ordered properties to a regular map for the SDK
func properties(s *jsonschema.Schema) map[string]any {
	if s.Properties == nil {
		return map[string]any{}
	}
	props := make(map[string]any, s.Properties.Len())
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		props[pair.Key] = pair.Value
	}
	return props
}
