package encoding_test

import (
	"testing"

	"github.com/effective-security/toolbridge/encoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Row struct {
	File string `json:"file" yaml:"file" toml:"file" jsonschema:"description=Path of the CSV file" fake:"data.csv"`
	Row  int    `json:"row" yaml:"row" toml:"row" jsonschema:"description=Zero based row number" fake:"2"`
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, mode := range encoding.Modes() {
		enc, err := encoding.New(mode, Row{})
		require.NoError(t, err, mode)
		require.NotNil(t, enc, mode)
	}

	enc, err := encoding.New("", nil)
	require.NoError(t, err)
	assert.Empty(t, enc.GetFormatInstructions())

	_, err = encoding.New("xml", nil)
	assert.EqualError(t, err, "unsupported output format: xml")
}

func TestMarshal(t *testing.T) {
	t.Parallel()

	row := Row{File: "data.csv", Row: 2}
	tcases := []struct {
		mode encoding.Mode
		exp  string
	}{
		{encoding.ModeJSON, "{\n  \"file\": \"data.csv\",\n  \"row\": 2\n}"},
		{encoding.ModeYAML, "file: data.csv\nrow: 2\n"},
		{encoding.ModeTOML, "file = \"data.csv\"\nrow = 2\n"},
		{encoding.ModeText, "{\n  \"file\": \"data.csv\",\n  \"row\": 2\n}"},
	}
	for _, tc := range tcases {
		t.Run(tc.mode, func(t *testing.T) {
			bs, err := encoding.Marshal(tc.mode, row)
			require.NoError(t, err)
			assert.Equal(t, tc.exp, string(bs))
		})
	}

	bs, err := encoding.Marshal(encoding.ModeText, "User ID: 1, Name: Alice")
	require.NoError(t, err)
	assert.Equal(t, "User ID: 1, Name: Alice", string(bs))
}

func TestUnmarshal_Reply(t *testing.T) {
	t.Parallel()

	tcases := []struct {
		mode  encoding.Mode
		reply string
	}{
		{encoding.ModeJSON, "Here it is:\n```json\n{\"file\": \"data.csv\", \"row\": 2}\n```"},
		{encoding.ModeYAML, "```yaml\nfile: data.csv\nrow: 2\n```"},
		{encoding.ModeTOML, "```toml\nfile = \"data.csv\"\nrow = 2\n```"},
	}
	for _, tc := range tcases {
		t.Run(tc.mode, func(t *testing.T) {
			enc, err := encoding.New(tc.mode, Row{})
			require.NoError(t, err)

			var row Row
			require.NoError(t, enc.Unmarshal([]byte(tc.reply), &row))
			assert.Equal(t, Row{File: "data.csv", Row: 2}, row)
			assert.NotEmpty(t, enc.GetFormatInstructions())
		})
	}
}
