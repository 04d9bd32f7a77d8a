package transport

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
)

// JSONRPCVersion is the only supported JSON-RPC version
const JSONRPCVersion = "2.0"

// Standard JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// JsonRpcBody is a result of a request handler
type JsonRpcBody any

// RequestId is a JSON-RPC request identifier
type RequestId int64

// BaseJSONRPCRequest is a request that expects a response
type BaseJSONRPCRequest struct {
	// Jsonrpc corresponds to the JSON schema field "jsonrpc".
	Jsonrpc string `json:"jsonrpc" yaml:"jsonrpc"`
	// Method corresponds to the JSON schema field "method".
	Method string `json:"method" yaml:"method"`
	// Params corresponds to the JSON schema field "params".
	Params json.RawMessage `json:"params,omitempty" yaml:"params,omitempty"`
	// Id corresponds to the JSON schema field "id".
	Id RequestId `json:"id" yaml:"id"`
}

// BaseJSONRPCNotification is a one-way message
type BaseJSONRPCNotification struct {
	Jsonrpc string          `json:"jsonrpc" yaml:"jsonrpc"`
	Method  string          `json:"method" yaml:"method"`
	Params  json.RawMessage `json:"params,omitempty" yaml:"params,omitempty"`
}

// BaseJSONRPCResponse is a successful response to a request
type BaseJSONRPCResponse struct {
	Jsonrpc string          `json:"jsonrpc" yaml:"jsonrpc"`
	Result  json.RawMessage `json:"result" yaml:"result"`
	Id      RequestId       `json:"id" yaml:"id"`
}

// BaseJSONRPCErrorInner is the error object of an error response
type BaseJSONRPCErrorInner struct {
	// The error type that occurred.
	Code int `json:"code" yaml:"code"`
	// A short description of the error.
	Message string `json:"message" yaml:"message"`
	// Additional information about the error.
	Data any `json:"data,omitempty" yaml:"data,omitempty"`
}

// BaseJSONRPCError is an error response to a request
type BaseJSONRPCError struct {
	Jsonrpc string                `json:"jsonrpc" yaml:"jsonrpc"`
	Error   BaseJSONRPCErrorInner `json:"error" yaml:"error"`
	Id      RequestId             `json:"id" yaml:"id"`

	// NoId is set when the id of the request could not be read,
	// the id is then sent as null
	NoId bool `json:"-" yaml:"-"`
}

// MarshalJSON encodes the id as null when NoId is set
func (e BaseJSONRPCError) MarshalJSON() ([]byte, error) {
	type plain BaseJSONRPCError
	if !e.NoId {
		return json.Marshal(plain(e))
	}
	return json.Marshal(struct {
		Jsonrpc string                `json:"jsonrpc"`
		Error   BaseJSONRPCErrorInner `json:"error"`
		Id      *RequestId            `json:"id"`
	}{
		Jsonrpc: e.Jsonrpc,
		Error:   e.Error,
	})
}

// BaseMessageType identifies the kind of a message
type BaseMessageType string

const (
	BaseMessageTypeJSONRPCRequestType      BaseMessageType = "request"
	BaseMessageTypeJSONRPCNotificationType BaseMessageType = "notification"
	BaseMessageTypeJSONRPCResponseType     BaseMessageType = "response"
	BaseMessageTypeJSONRPCErrorType        BaseMessageType = "error"
)

// BaseJsonRpcMessage is one of request, notification, response or error
type BaseJsonRpcMessage struct {
	Type                BaseMessageType
	JsonRpcRequest      *BaseJSONRPCRequest
	JsonRpcNotification *BaseJSONRPCNotification
	JsonRpcResponse     *BaseJSONRPCResponse
	JsonRpcError        *BaseJSONRPCError
}

// NewBaseMessageRequest wraps a request
func NewBaseMessageRequest(request *BaseJSONRPCRequest) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:           BaseMessageTypeJSONRPCRequestType,
		JsonRpcRequest: request,
	}
}

// NewBaseMessageNotification wraps a notification
func NewBaseMessageNotification(notification *BaseJSONRPCNotification) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:                BaseMessageTypeJSONRPCNotificationType,
		JsonRpcNotification: notification,
	}
}

// NewBaseMessageResponse wraps a response
func NewBaseMessageResponse(response *BaseJSONRPCResponse) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:            BaseMessageTypeJSONRPCResponseType,
		JsonRpcResponse: response,
	}
}

// NewBaseMessageError wraps an error response
func NewBaseMessageError(response *BaseJSONRPCError) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:         BaseMessageTypeJSONRPCErrorType,
		JsonRpcError: response,
	}
}

// MessageID returns the ID of request, response or error messages,
// and 0 for notifications.
func (m *BaseJsonRpcMessage) MessageID() RequestId {
	switch m.Type {
	case BaseMessageTypeJSONRPCRequestType:
		return m.JsonRpcRequest.Id
	case BaseMessageTypeJSONRPCResponseType:
		return m.JsonRpcResponse.Id
	case BaseMessageTypeJSONRPCErrorType:
		return m.JsonRpcError.Id
	}
	return 0
}

// SetMessageID replaces the ID of request, response or error messages
func (m *BaseJsonRpcMessage) SetMessageID(id RequestId) {
	switch m.Type {
	case BaseMessageTypeJSONRPCRequestType:
		m.JsonRpcRequest.Id = id
	case BaseMessageTypeJSONRPCResponseType:
		m.JsonRpcResponse.Id = id
	case BaseMessageTypeJSONRPCErrorType:
		m.JsonRpcError.Id = id
	}
}

// MarshalJSON encodes the wrapped message
func (m *BaseJsonRpcMessage) MarshalJSON() ([]byte, error) {
	switch m.Type {
	case BaseMessageTypeJSONRPCRequestType:
		return json.Marshal(m.JsonRpcRequest)
	case BaseMessageTypeJSONRPCNotificationType:
		return json.Marshal(m.JsonRpcNotification)
	case BaseMessageTypeJSONRPCResponseType:
		return json.Marshal(m.JsonRpcResponse)
	case BaseMessageTypeJSONRPCErrorType:
		return json.Marshal(m.JsonRpcError)
	}
	return nil, errors.Errorf("unknown message type: %q", m.Type)
}

// envelope is used to detect the message type
type envelope struct {
	Jsonrpc string                 `json:"jsonrpc"`
	Method  *string                `json:"method"`
	Params  json.RawMessage        `json:"params"`
	Id      *RequestId             `json:"id"`
	Result  json.RawMessage        `json:"result"`
	Error   *BaseJSONRPCErrorInner `json:"error"`
}

// ParseMessage decodes a single JSON-RPC message.
// Errors returned are *Error with CodeParseError or CodeInvalidRequest.
func ParseMessage(data []byte) (*BaseJsonRpcMessage, error) {
	data = bytes.TrimSpace(data)
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, NewError(CodeParseError, "parse error: %s", err.Error())
	}
	if e.Jsonrpc != JSONRPCVersion {
		return nil, NewError(CodeInvalidRequest, "invalid request: unsupported jsonrpc version %q", e.Jsonrpc)
	}

	switch {
	case e.Method != nil && e.Id != nil:
		return NewBaseMessageRequest(&BaseJSONRPCRequest{
			Jsonrpc: e.Jsonrpc,
			Method:  *e.Method,
			Params:  e.Params,
			Id:      *e.Id,
		}), nil
	case e.Method != nil:
		return NewBaseMessageNotification(&BaseJSONRPCNotification{
			Jsonrpc: e.Jsonrpc,
			Method:  *e.Method,
			Params:  e.Params,
		}), nil
	case e.Error != nil:
		res := &BaseJSONRPCError{
			Jsonrpc: e.Jsonrpc,
			Error:   *e.Error,
			NoId:    e.Id == nil,
		}
		if e.Id != nil {
			res.Id = *e.Id
		}
		return NewBaseMessageError(res), nil
	case e.Id != nil && e.Result != nil:
		return NewBaseMessageResponse(&BaseJSONRPCResponse{
			Jsonrpc: e.Jsonrpc,
			Result:  e.Result,
			Id:      *e.Id,
		}), nil
	}
	return nil, NewError(CodeInvalidRequest, "invalid request: not a request, notification or response")
}

// Error is a JSON-RPC error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewError returns a new JSON-RPC error
func NewError(code int, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithData sets the error data and returns the error
func (e *Error) WithData(data any) *Error {
	e.Data = data
	return e
}

func (e *Error) Error() string {
	return e.Message
}

// Inner returns the error object for the error response
func (e *Error) Inner() BaseJSONRPCErrorInner {
	return BaseJSONRPCErrorInner{
		Code:    e.Code,
		Message: e.Message,
		Data:    e.Data,
	}
}

// ErrClosed is returned when the connection is closed
var ErrClosed = errors.New("connection closed")
