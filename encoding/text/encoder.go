// Package text renders values as plain text.
package text

import (
	"encoding/json"

	"github.com/effective-security/toolbridge/utils"
)

// Unmarshaler is implemented by types that parse their own text form
type Unmarshaler interface {
	Unmarshal(bs []byte) error
}

// Encoder renders strings as is and other values as indented JSON
type Encoder struct{}

func NewEncoder() *Encoder {
	return new(Encoder)
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	switch s := v.(type) {
	case []byte:
		return s, nil
	case *string:
		return []byte(*s), nil
	case *[]byte:
		return *s, nil
	}
	return []byte(utils.Stringify(v)), nil
}

func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	switch s := ret.(type) {
	case Unmarshaler:
		return s.Unmarshal(bs)
	case *string:
		*s = string(bs)
	case *[]byte:
		*s = bs
	default:
		return json.Unmarshal(bs, ret)
	}
	return nil
}

func (e *Encoder) GetFormatInstructions() string {
	return ""
}
