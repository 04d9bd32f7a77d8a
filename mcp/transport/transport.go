// Package transport defines the JSON-RPC message types and
// the Transport interface implemented by the MCP transports.
package transport

import "context"

// MessageHandler is called for each message received over the connection
type MessageHandler func(ctx context.Context, message *BaseJsonRpcMessage)

// Transport describes the minimal contract for a MCP transport that a client or server can communicate over.
type Transport interface {
	// Start starts processing messages on the transport, including any connection steps that might need to be taken.
	//
	// This method should be called after callbacks are installed, or else messages may be lost.
	// It must not block for the lifetime of the connection.
	Start(ctx context.Context) error

	// Send sends a JSON-RPC message (request, notification or response).
	// Messages are delivered in the order they are sent.
	Send(ctx context.Context, message *BaseJsonRpcMessage) error

	// Close closes the connection.
	Close() error

	// SetCloseHandler sets the callback for when the connection is closed for any reason.
	// This should be invoked when Close() is called as well.
	SetCloseHandler(handler func())

	// SetErrorHandler sets the callback for when an error occurs.
	// Note that errors are not necessarily fatal; they are used for reporting any kind of exceptional condition out of band.
	SetErrorHandler(handler func(error))

	// SetMessageHandler sets the callback for when a message (request, notification or response) is received over the connection.
	SetMessageHandler(handler MessageHandler)
}
