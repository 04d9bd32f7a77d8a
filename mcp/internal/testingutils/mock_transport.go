// Package testingutils provides helpers for MCP tests
package testingutils

import (
	"context"
	"sync"

	"github.com/effective-security/toolbridge/mcp/transport"
)

// MockTransport records sent messages and lets tests inject received ones
type MockTransport struct {
	mu sync.RWMutex

	// Callbacks
	onClose   func()
	onError   func(error)
	onMessage transport.MessageHandler

	// Test helpers
	messages []*transport.BaseJsonRpcMessage
	sent     chan *transport.BaseJsonRpcMessage
	started  bool
	closed   bool
}

// NewMockTransport returns a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		sent: make(chan *transport.BaseJsonRpcMessage, 100),
	}
}

// Start implements Transport.Start
func (t *MockTransport) Start(_ context.Context) error {
	t.mu.Lock()
	t.started = true
	t.mu.Unlock()
	return nil
}

// Send records the message
func (t *MockTransport) Send(_ context.Context, msg *transport.BaseJsonRpcMessage) error {
	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.mu.Unlock()

	select {
	case t.sent <- msg:
	default:
	}
	return nil
}

// Close implements Transport.Close
func (t *MockTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	onClose := t.onClose
	t.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return nil
}

// SetCloseHandler implements Transport.SetCloseHandler
func (t *MockTransport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	t.onClose = handler
	t.mu.Unlock()
}

// SetErrorHandler implements Transport.SetErrorHandler
func (t *MockTransport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	t.onError = handler
	t.mu.Unlock()
}

// SetMessageHandler implements Transport.SetMessageHandler
func (t *MockTransport) SetMessageHandler(handler transport.MessageHandler) {
	t.mu.Lock()
	t.onMessage = handler
	t.mu.Unlock()
}

// GetMessages returns the sent messages
func (t *MockTransport) GetMessages() []*transport.BaseJsonRpcMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	msgs := make([]*transport.BaseJsonRpcMessage, len(t.messages))
	copy(msgs, t.messages)
	return msgs
}

// Sent returns a channel of sent messages
func (t *MockTransport) Sent() <-chan *transport.BaseJsonRpcMessage {
	return t.sent
}

// SimulateMessage delivers a message as if it was received
func (t *MockTransport) SimulateMessage(msg *transport.BaseJsonRpcMessage) {
	t.mu.RLock()
	handler := t.onMessage
	t.mu.RUnlock()
	if handler != nil {
		handler(context.Background(), msg)
	}
}

// SimulateError reports an error as if it came from the connection
func (t *MockTransport) SimulateError(err error) {
	t.mu.RLock()
	handler := t.onError
	t.mu.RUnlock()
	if handler != nil {
		handler(err)
	}
}

// IsStarted returns true if the transport was started
func (t *MockTransport) IsStarted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.started
}

// IsClosed returns true if the transport was closed
func (t *MockTransport) IsClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}
