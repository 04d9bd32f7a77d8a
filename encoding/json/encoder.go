package json

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/bububa/ljson"
	"github.com/effective-security/toolbridge/pkg/schema"
	"github.com/effective-security/toolbridge/utils"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Encoder is the JSON encoder
type Encoder struct {
	reqType reflect.Type
}

// NewEncoder returns JSON encoder, req describes the expected reply
func NewEncoder(req any) *Encoder {
	return &Encoder{
		reqType: reflect.TypeOf(req),
	}
}

// Marshal returns indented JSON
func (e *Encoder) Marshal(req any) ([]byte, error) {
	return json.MarshalIndent(req, "", "  ")
}

// Unmarshal decodes a model reply, ignoring the prose and fences around the JSON
func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	data := utils.CleanJSON(bs)
	return ljson.Unmarshal(data, ret)
}

// Validate checks the `validate` tags of the decoded struct
func (e *Encoder) Validate(req any) error {
	return validate.Struct(req)
}

// Schema returns the schema of the expected reply
func (e *Encoder) Schema() (*schema.Schema, error) {
	if e.reqType == nil {
		return nil, nil
	}
	return schema.New(e.reqType)
}

func (e *Encoder) GetFormatInstructions() string {
	s, err := e.Schema()
	if err != nil || s == nil {
		return ""
	}
	var b bytes.Buffer
	b.WriteString("\nRespond with JSON in the following JSON schema:\n")
	b.WriteString("```json\n")
	b.WriteString(s.String())
	b.WriteString("\n```")
	b.WriteString("\nMake sure to return an instance of the JSON, not the schema itself.\n")
	b.WriteString("Use the exact field names as they are defined in the schema.\n")
	return b.String()
}
