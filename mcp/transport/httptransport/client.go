package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/mcp/transport"
	"github.com/effective-security/xlog"
)

// Client implements a client-side HTTP transport for MCP
type Client struct {
	url            string
	client         *http.Client
	headers        http.Header
	mu             sync.RWMutex
	messageHandler transport.MessageHandler
	errorHandler   func(error)
	closeHandler   func()
	closed         bool
}

// NewClient creates a new client transport posting to the URL
func NewClient(url string) *Client {
	return &Client{
		url:     url,
		client:  http.DefaultClient,
		headers: make(http.Header),
	}
}

// WithHTTPClient sets the HTTP client
func (t *Client) WithHTTPClient(client *http.Client) *Client {
	t.client = client
	return t
}

// WithHeader adds a header to the requests
func (t *Client) WithHeader(key, value string) *Client {
	t.headers.Set(key, value)
	return t
}

// Start implements Transport.Start
func (t *Client) Start(_ context.Context) error {
	// stateless, nothing to connect
	return nil
}

// Send posts the message and dispatches the response, if any, to the message handler
func (t *Client) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	t.mu.RLock()
	closed := t.closed
	handler := t.messageHandler
	t.mu.RUnlock()
	if closed {
		return errors.WithStack(transport.ErrClosed)
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(jsonData))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	for k, v := range t.headers {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"type", message.Type,
		"id", message.MessageID(),
		"status", resp.StatusCode,
		"size", len(body))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return errors.Errorf("server returned error: %d %s", resp.StatusCode, string(bytes.TrimSpace(body)))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	msg, err := transport.ParseMessage(body)
	if err != nil {
		return errors.Wrap(err, "received invalid response")
	}
	if handler != nil {
		handler(ctx, msg)
	}
	return nil
}

// Close implements Transport.Close
func (t *Client) Close() error {
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
func (t *Client) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

// SetErrorHandler implements Transport.SetErrorHandler
func (t *Client) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

// SetMessageHandler implements Transport.SetMessageHandler
func (t *Client) SetMessageHandler(handler transport.MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}
