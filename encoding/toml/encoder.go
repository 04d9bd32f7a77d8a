// Package toml renders values as TOML and parses TOML replies.
package toml

import (
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/pkg/schema"
	"github.com/effective-security/toolbridge/utils"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Encoder is the TOML encoder,
// the optional example type is rendered by the format instructions.
type Encoder struct {
	reqType reflect.Type
}

// NewEncoder returns the TOML encoder, req describes the expected reply and may be nil
func NewEncoder(req any) *Encoder {
	return &Encoder{
		reqType: reflect.TypeOf(req),
	}
}

// Marshal encodes v, which must be a struct or a map
func (e *Encoder) Marshal(v any) ([]byte, error) {
	bs, err := toml.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode TOML")
	}
	return bs, nil
}

// Unmarshal decodes a TOML document, optionally fenced in a code block
func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	if _, err := toml.Decode(string(utils.BytesTrimBackticks(bs)), ret); err != nil {
		return errors.Wrap(err, "failed to decode TOML")
	}
	return nil
}

// Validate checks the `validate` tags of the decoded struct
func (e *Encoder) Validate(req any) error {
	return validate.Struct(req)
}

// GetFormatInstructions returns the prompt fragment with a TOML example
// of the reply, or empty string when the encoder has no example type.
func (e *Encoder) GetFormatInstructions() string {
	example := schema.Example(e.reqType)
	if example == nil {
		return ""
	}
	bs, err := e.Marshal(example)
	if err != nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("\nRespond with TOML in the following TOML schema:\n")
	b.WriteString("```toml\n")
	b.Write(bs)
	b.WriteString("```")
	b.WriteString("\nMake sure to return an instance of the TOML, not the schema itself.\n")
	return b.String()
}
