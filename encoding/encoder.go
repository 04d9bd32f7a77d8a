// Package encoding renders tool results and decisions in the supported output formats,
// and parses model replies back into Go values.
package encoding

import (
	"strings"

	"github.com/cockroachdb/errors"
	jsonenc "github.com/effective-security/toolbridge/encoding/json"
	textenc "github.com/effective-security/toolbridge/encoding/text"
	tomlenc "github.com/effective-security/toolbridge/encoding/toml"
	yamlenc "github.com/effective-security/toolbridge/encoding/yaml"
)

// Encoder marshals values to, and parses values from, one format
type Encoder interface {
	Marshal(v any) ([]byte, error)
	Unmarshal([]byte, any) error
	// GetFormatInstructions returns the prompt fragment asking a model
	// to reply in this format
	GetFormatInstructions() string
}

// Validator validates a decoded value
type Validator interface {
	Validate(any) error
}

// Mode is the name of an output format
type Mode = string

const (
	ModeJSON Mode = "json"
	ModeYAML Mode = "yaml"
	ModeTOML Mode = "toml"
	ModeText Mode = "text"
)

// ModeDefault is the default mode of the CLI output
var ModeDefault = ModeText

// Modes returns the supported modes
func Modes() []Mode {
	return []Mode{ModeText, ModeJSON, ModeYAML, ModeTOML}
}

// New returns the encoder for the mode,
// req is the example value used by the format instructions and may be nil.
func New(mode Mode, req any) (Encoder, error) {
	switch strings.ToLower(mode) {
	case ModeJSON:
		return jsonenc.NewEncoder(req), nil
	case ModeYAML:
		return yamlenc.NewEncoder(req), nil
	case ModeTOML:
		return tomlenc.NewEncoder(req), nil
	case ModeText, "":
		return textenc.NewEncoder(), nil
	default:
		return nil, errors.Errorf("unsupported output format: %s", mode)
	}
}

// Marshal encodes v in the mode
func Marshal(mode Mode, v any) ([]byte, error) {
	enc, err := New(mode, nil)
	if err != nil {
		return nil, err
	}
	return enc.Marshal(v)
}

var (
	_ Encoder = (*textenc.Encoder)(nil)
	_ Encoder = (*jsonenc.Encoder)(nil)
	_ Encoder = (*tomlenc.Encoder)(nil)
	_ Encoder = (*yamlenc.Encoder)(nil)

	_ Validator = (*jsonenc.Encoder)(nil)
	_ Validator = (*tomlenc.Encoder)(nil)
	_ Validator = (*yamlenc.Encoder)(nil)
)
