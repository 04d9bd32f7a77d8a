package registry

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind classifies invocation failures.
type Kind string

const (
	KindToolNotFound      Kind = "ToolNotFound"
	KindDuplicateName     Kind = "DuplicateName"
	KindTypeMismatch      Kind = "TypeMismatch"
	KindUnknownArgument   Kind = "UnknownArgument"
	KindExecutionError    Kind = "ExecutionError"
	KindInvalidToolChoice Kind = "InvalidToolChoice"
	KindTransportError    Kind = "TransportError"
)

// JSON-RPC error codes for each kind.
const (
	CodeTransportError    = -32000
	CodeToolNotFound      = -32001
	CodeExecutionError    = -32002
	CodeDuplicateName     = -32003
	CodeInvalidToolChoice = -32004
	CodeInvalidParams     = -32602
	CodeMethodNotFound    = -32601
	CodeInternalError     = -32603
)

// Sentinels to use with errors.Is
var (
	ErrToolNotFound      = &Error{Kind: KindToolNotFound}
	ErrDuplicateName     = &Error{Kind: KindDuplicateName}
	ErrTypeMismatch      = &Error{Kind: KindTypeMismatch}
	ErrUnknownArgument   = &Error{Kind: KindUnknownArgument}
	ErrExecutionError    = &Error{Kind: KindExecutionError}
	ErrInvalidToolChoice = &Error{Kind: KindInvalidToolChoice}
	ErrTransportError    = &Error{Kind: KindTransportError}
)

// Error is the failure descriptor of an invocation.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	// Detail is optional structured detail, such as the argument name
	Detail map[string]any `json:"detail,omitempty"`

	cause error
}

// NewError returns a new error of the given kind
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError returns a new error of the given kind,
// keeping err as the cause and its text as the message.
func WrapError(kind Kind, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: err.Error(),
		cause:   err,
	}
}

// WithDetail adds structured detail and returns the error
func (e *Error) WithDetail(key string, val any) *Error {
	if e.Detail == nil {
		e.Detail = map[string]any{}
	}
	e.Detail[key] = val
	return e
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Unwrap returns the original error, if any
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches errors of the same kind
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Recoverable returns false only for transport failures,
// which end the session.
func (e *Error) Recoverable() bool {
	return e.Kind.Recoverable()
}

// Recoverable returns false only for TransportError
func (k Kind) Recoverable() bool {
	return k != KindTransportError
}

// Code returns JSON-RPC error code for the kind
func (k Kind) Code() int {
	switch k {
	case KindToolNotFound:
		return CodeToolNotFound
	case KindExecutionError:
		return CodeExecutionError
	case KindTypeMismatch, KindUnknownArgument:
		return CodeInvalidParams
	case KindDuplicateName:
		return CodeDuplicateName
	case KindInvalidToolChoice:
		return CodeInvalidToolChoice
	case KindTransportError:
		return CodeTransportError
	}
	return CodeInternalError
}

// KindFromCode returns the kind for a JSON-RPC error code.
// Codes shared by several kinds resolve to the most common one.
func KindFromCode(code int) Kind {
	switch code {
	case CodeToolNotFound, CodeMethodNotFound:
		return KindToolNotFound
	case CodeExecutionError, CodeInternalError:
		return KindExecutionError
	case CodeInvalidParams:
		return KindTypeMismatch
	case CodeDuplicateName:
		return KindDuplicateName
	case CodeInvalidToolChoice:
		return KindInvalidToolChoice
	}
	return KindTransportError
}

// ParseKind returns the kind by its name
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindToolNotFound, KindDuplicateName, KindTypeMismatch, KindUnknownArgument,
		KindExecutionError, KindInvalidToolChoice, KindTransportError:
		return k, true
	}
	return "", false
}

// KindOf returns the kind of the error, looking through wrapping.
// Errors that carry no kind are reported as ExecutionError.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindExecutionError
}

// AsError returns err as *Error, promoting unknown errors to ExecutionError
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return WrapError(KindExecutionError, err)
}
