package translator

import (
	"github.com/effective-security/toolbridge/pkg/schema"
	"github.com/invopop/jsonschema"
)

// allowedKeys are the schema keys understood by the function-calling conventions
var allowedKeys = map[string]bool{
	"type":        true,
	"description": true,
	"properties":  true,
	"required":    true,
	"items":       true,
	"enum":        true,
	"default":     true,
}

// Clean removes keys not understood by the function-calling conventions,
// such as "additionalProperties" and "$schema", from a raw JSON schema.
// The input is not modified.
func Clean(raw map[string]any) map[string]any {
	if raw == nil {
		return nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if !allowedKeys[k] {
			continue
		}
		switch k {
		case "properties":
			props, ok := v.(map[string]any)
			if !ok {
				continue
			}
			cleaned := make(map[string]any, len(props))
			for name, p := range props {
				if pm, ok := p.(map[string]any); ok {
					cleaned[name] = Clean(pm)
				} else {
					cleaned[name] = map[string]any{}
				}
			}
			out[k] = cleaned
		case "items":
			if im, ok := v.(map[string]any); ok {
				out[k] = Clean(im)
			}
		default:
			out[k] = v
		}
	}
	return out
}

// SchemaFromMap cleans a raw JSON schema, as received from a remote server,
// and converts it to a schema object.
func SchemaFromMap(raw map[string]any) (*jsonschema.Schema, error) {
	if raw == nil {
		return &jsonschema.Schema{Type: "object"}, nil
	}
	return schema.FromAny(Clean(raw))
}
