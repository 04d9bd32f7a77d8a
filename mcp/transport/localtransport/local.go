// Package localtransport implements an in-process MCP transport,
// used to embed a server in the same process as its client,
// or to proxy messages through another channel.
package localtransport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/mcp/transport"
)

// McpProxyRequest is a message sent to the server
type McpProxyRequest struct {
	Body    []byte            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// McpProxyResponse is a reply of the server
type McpProxyResponse struct {
	Type    transport.BaseMessageType `json:"type"`
	Status  int                       `json:"status"`
	Body    []byte                    `json:"body"`
	Headers map[string]string         `json:"headers"`
}

// Handler is an interface for handling MCP requests using local transport or proxy
type Handler interface {
	HandleMCP(ctx context.Context, req *McpProxyRequest) (*McpProxyResponse, error)
}

// Transport is the server side of the local transport
type Transport struct {
	messageHandler transport.MessageHandler
	errorHandler   func(error)
	closeHandler   func()
	mu             sync.RWMutex
	responseMap    map[transport.RequestId]chan *transport.BaseJsonRpcMessage
	counter        atomic.Int64
	closed         atomic.Bool
}

// New returns the server side transport
func New() *Transport {
	return &Transport{
		responseMap: make(map[transport.RequestId]chan *transport.BaseJsonRpcMessage),
	}
}

// Start implements Transport.Start
func (s *Transport) Start(_ context.Context) error {
	// Does nothing in the stateless local transport
	return nil
}

// Close closes the connection.
func (s *Transport) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.RLock()
	handler := s.closeHandler
	s.mu.RUnlock()
	if handler != nil {
		handler()
	}
	return nil
}

// SetErrorHandler sets the callback for when an error occurs.
func (s *Transport) SetErrorHandler(handler func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorHandler = handler
}

// SetCloseHandler sets the callback for when the connection is closed for any reason.
func (s *Transport) SetCloseHandler(handler func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeHandler = handler
}

// SetMessageHandler sets the callback for when a message is received over the connection.
func (s *Transport) SetMessageHandler(handler transport.MessageHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageHandler = handler
}

// Send delivers a response to the pending request.
func (s *Transport) Send(_ context.Context, message *transport.BaseJsonRpcMessage) error {
	if message.Type != transport.BaseMessageTypeJSONRPCResponseType &&
		message.Type != transport.BaseMessageTypeJSONRPCErrorType {
		// server initiated messages are not supported
		return nil
	}
	key := message.MessageID()

	s.mu.RLock()
	ch := s.responseMap[key]
	s.mu.RUnlock()

	if ch == nil {
		return errors.Errorf("no response channel found for key: %d", key)
	}
	select {
	case ch <- message:
		return nil
	default:
		return errors.Errorf("duplicate response for key: %d", key)
	}
}

// HandleMCP implements Handler
func (s *Transport) HandleMCP(ctx context.Context, req *McpProxyRequest) (*McpProxyResponse, error) {
	if s.closed.Load() {
		return &McpProxyResponse{Status: http.StatusServiceUnavailable}, nil
	}
	msg, err := s.HandleMessage(ctx, req.Body)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return &McpProxyResponse{
			Type:   transport.BaseMessageTypeJSONRPCNotificationType,
			Status: http.StatusAccepted,
		}, nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal response")
	}
	return &McpProxyResponse{
		Type:    msg.Type,
		Status:  http.StatusOK,
		Body:    body,
		Headers: map[string]string{"Content-Type": "application/json"},
	}, nil
}

// HandleMessage processes an incoming message and returns the response,
// or nil for notifications.
func (s *Transport) HandleMessage(ctx context.Context, body []byte) (*transport.BaseJsonRpcMessage, error) {
	msg, err := transport.ParseMessage(body)
	if err != nil {
		var rpcErr *transport.Error
		if errors.As(err, &rpcErr) {
			return transport.NewBaseMessageError(&transport.BaseJSONRPCError{
				Jsonrpc: transport.JSONRPCVersion,
				Error:   rpcErr.Inner(),
				NoId:    true,
			}), nil
		}
		return nil, err
	}

	s.mu.RLock()
	handler := s.messageHandler
	s.mu.RUnlock()
	if handler == nil {
		return nil, errors.New("transport is not connected")
	}

	if msg.Type != transport.BaseMessageTypeJSONRPCRequestType {
		handler(ctx, msg)
		return nil, nil
	}

	prevID := msg.JsonRpcRequest.Id
	key := transport.RequestId(s.counter.Add(1))
	ch := make(chan *transport.BaseJsonRpcMessage, 1)

	s.mu.Lock()
	s.responseMap[key] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.responseMap, key)
		s.mu.Unlock()
	}()

	msg.JsonRpcRequest.Id = key
	handler(ctx, msg)

	select {
	case response := <-ch:
		response.SetMessageID(prevID)
		return response, nil
	case <-ctx.Done():
		return nil, errors.WithStack(ctx.Err())
	}
}
