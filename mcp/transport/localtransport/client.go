package localtransport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/mcp/transport"
)

// ClientTransport is the client side of the local transport
type ClientTransport struct {
	messageHandler transport.MessageHandler
	errorHandler   func(error)
	closeHandler   func()
	mu             sync.RWMutex
	handler        Handler
	headers        map[string]string
	closed         bool
}

// NewClient creates a new client transport that sends messages to the handler
func NewClient(handler Handler) *ClientTransport {
	return &ClientTransport{
		handler: handler,
		headers: make(map[string]string),
	}
}

// WithHeader adds a header to the request
func (t *ClientTransport) WithHeader(key, value string) *ClientTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.headers[key] = value
	return t
}

// Start implements Transport.Start
func (t *ClientTransport) Start(_ context.Context) error {
	return nil
}

// Send implements Transport.Send
func (t *ClientTransport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	t.mu.RLock()
	closed := t.closed
	handler := t.messageHandler
	headers := make(map[string]string, len(t.headers))
	for k, v := range t.headers {
		headers[k] = v
	}
	t.mu.RUnlock()

	if closed {
		return errors.WithStack(transport.ErrClosed)
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	resp, err := t.handler.HandleMCP(ctx, &McpProxyRequest{
		Body:    jsonData,
		Headers: headers,
	})
	if err != nil {
		return err
	}

	if resp.Status != http.StatusOK && resp.Status != http.StatusAccepted {
		return errors.Errorf("server returned error: %d", resp.Status)
	}
	if len(resp.Body) == 0 {
		return nil
	}

	msg, err := transport.ParseMessage(resp.Body)
	if err != nil {
		return errors.Wrap(err, "received invalid response")
	}
	if handler != nil {
		handler(ctx, msg)
	}
	return nil
}

// Close implements Transport.Close
func (t *ClientTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	handler := t.closeHandler
	t.mu.Unlock()

	if handler != nil {
		handler()
	}
	return nil
}

// SetCloseHandler implements Transport.SetCloseHandler
func (t *ClientTransport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

// SetErrorHandler implements Transport.SetErrorHandler
func (t *ClientTransport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

// SetMessageHandler implements Transport.SetMessageHandler
func (t *ClientTransport) SetMessageHandler(handler transport.MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}
