package registry_test

import (
	"strings"
	"testing"

	"github.com/effective-security/toolbridge/pkg/schema"
	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/toolbridge/utils"
	"github.com/effective-security/toolbridge/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsJSONSchema(t *testing.T) {
	t.Parallel()

	params := registry.Params{
		{Name: "file_path", Type: value.TypeString, Required: true, Description: "Path to the CSV file"},
		{Name: "nth_row", Type: value.TypeInteger, Required: true},
		{Name: "tags", Type: value.TypeArray, Items: value.TypeString},
		{Name: "mode", Type: value.TypeString, Enum: []any{"a", "b"}, Default: "a"},
	}

	m, err := schema.ToMap(params.JSONSchema())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"type":     "object",
		"required": []any{"file_path", "nth_row"},
		"properties": map[string]any{
			"file_path": map[string]any{"type": "string", "description": "Path to the CSV file"},
			"nth_row":   map[string]any{"type": "integer"},
			"tags":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"mode":      map[string]any{"type": "string", "enum": []any{"a", "b"}, "default": "a"},
		},
	}, m)

	// property order follows declaration
	js := utils.ToJSON(params.JSONSchema())
	assert.Less(t, strings.Index(js, "file_path"), strings.Index(js, "nth_row"))
	assert.Less(t, strings.Index(js, "nth_row"), strings.Index(js, "tags"))

	empty := registry.Params{}.JSONSchema()
	assert.Equal(t, "object", empty.Type)
	assert.Empty(t, empty.Required)
	assert.Equal(t, 0, empty.Properties.Len())
}

func TestParamsFromSchema(t *testing.T) {
	t.Parallel()

	sc := schema.MustFromAny(map[string]any{
		"type":     "object",
		"required": []string{"query"},
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "search query"},
			"limit": map[string]any{"type": "integer", "default": 5},
			"ids":   map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
			"extra": map[string]any{},
		},
	})

	params, err := registry.ParamsFromSchema(sc)
	require.NoError(t, err)
	require.Len(t, params, 4)

	q, ok := params.Get("query")
	require.True(t, ok)
	assert.Equal(t, registry.Param{Name: "query", Type: value.TypeString, Description: "search query", Required: true}, *q)

	ids, ok := params.Get("ids")
	require.True(t, ok)
	assert.Equal(t, value.TypeInteger, ids.Items)

	extra, ok := params.Get("extra")
	require.True(t, ok)
	assert.Equal(t, value.TypeObject, extra.Type)

	_, err = registry.ParamsFromSchema(schema.MustFromAny(map[string]any{"type": "string"}))
	assert.EqualError(t, err, `expected object schema, got "string"`)

	_, err = registry.ParamsFromSchema(schema.MustFromAny(map[string]any{
		"type":       "object",
		"properties": map[string]any{"x": map[string]any{"type": "null"}},
	}))
	assert.EqualError(t, err, `property x: unsupported type "null"`)

	params, err = registry.ParamsFromSchema(nil)
	require.NoError(t, err)
	assert.Empty(t, params)
}
