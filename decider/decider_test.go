package decider_test

import (
	"testing"
	"time"

	"github.com/effective-security/toolbridge/decider"
	"github.com/effective-security/toolbridge/dispatcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseText(t *testing.T) {
	t.Parallel()

	tcases := []struct {
		name string
		text string
		tool string
	}{
		{"plain", `{"tool": "add", "arguments": {"a": 1, "b": 2}}`, "add"},
		{"fenced", "```json\n{\"tool\": \"add\", \"arguments\": {\"a\": 1, \"b\": 2}}\n```", "add"},
		{"prose", "Sure.\n{\"tool\": \"add\", \"arguments\": {\"a\": 1, \"b\": 2}}", "add"},
		{"no_json", "I cannot help with that", ""},
		{"no_tool", `{"answer": 42}`, ""},
		{"broken", `{"tool": `, ""},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := decider.ParseText(tc.text)
			require.NoError(t, err)
			if tc.tool == "" {
				assert.Nil(t, d)
				return
			}
			require.NotNil(t, d)
			assert.Equal(t, tc.tool, d.ToolName)
			a, ok := d.Arguments["a"].Int()
			assert.True(t, ok)
			assert.Equal(t, int64(1), a)
		})
	}

	_, err := decider.ParseText(`{"tool": ["add"]}`)
	assert.Error(t, err)
}

func TestFormatInstructions(t *testing.T) {
	t.Parallel()

	ins, err := decider.FormatInstructions("")
	require.NoError(t, err)
	assert.Contains(t, ins, `"tool"`)
	assert.Contains(t, ins, `"arguments"`)
	assert.Contains(t, ins, "Name of the chosen tool")

	ins, err = decider.FormatInstructions("yaml")
	require.NoError(t, err)
	assert.Contains(t, ins, "```yaml\ntool: read_csv\n")
	assert.Contains(t, ins, "nth_row: 1")

	ins, err = decider.FormatInstructions("toml")
	require.NoError(t, err)
	assert.Contains(t, ins, "```toml\n")
	assert.Contains(t, ins, `tool = "read_csv"`)
	assert.Contains(t, ins, "[arguments]")

	_, err = decider.FormatInstructions("xml")
	assert.EqualError(t, err, "unsupported reply format: xml")
}

func TestParseReply(t *testing.T) {
	t.Parallel()

	tcases := []struct {
		name   string
		format string
		text   string
		tool   string
	}{
		{"json", "json", `{"tool": "add", "arguments": {"a": 1, "b": 2}}`, "add"},
		{"default", "", `{"tool": "add", "arguments": {"a": 1, "b": 2}}`, "add"},
		{"yaml", "yaml", "tool: add\narguments:\n  a: 1\n  b: 2\n", "add"},
		{"yaml_fenced", "yaml", "```yaml\ntool: add\narguments:\n  a: 1\n  b: 2\n```", "add"},
		{"toml", "toml", "tool = \"add\"\n\n[arguments]\na = 1\nb = 2\n", "add"},
		{"toml_fenced", "toml", "```toml\ntool = \"add\"\n\n[arguments]\na = 1\nb = 2\n```", "add"},
		{"yaml_prose", "yaml", "I cannot help with that", ""},
		{"yaml_no_tool", "yaml", "arguments:\n  a: 1\n", ""},
		{"toml_prose", "toml", "I cannot help with that", ""},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := decider.ParseReply(tc.format, tc.text)
			require.NoError(t, err)
			if tc.tool == "" {
				assert.Nil(t, d)
				return
			}
			require.NotNil(t, d)
			assert.Equal(t, tc.tool, d.ToolName)
			a, ok := d.Arguments["a"].Int()
			assert.True(t, ok)
			assert.Equal(t, int64(1), a)
		})
	}

	_, err := decider.ParseReply("xml", "<tool/>")
	assert.EqualError(t, err, "unsupported reply format: xml")
}

func TestRecord(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		started := time.Now()
		decider.Record("test", "model", started, decider.Usage{InputTokens: 3, OutputTokens: 1}, &dispatcher.Decision{ToolName: "add"}, nil)
		decider.Record("test", "model", started, decider.Usage{}, nil, nil)
		decider.Record("test", "model", started, decider.Usage{}, nil, assert.AnError)
	})
}
