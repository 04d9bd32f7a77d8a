// Package httptransport implements a stateless HTTP transport for MCP,
// where each JSON-RPC message is sent as a POST request
// and the response is returned in the HTTP response body.
package httptransport

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/mcp/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolbridge/mcp/transport", "httptransport")

// MaxBodySize is the maximum size of a request body
const MaxBodySize = 10 * 1024 * 1024

// Server implements a stateless HTTP server transport for MCP
type Server struct {
	endpoint       string
	mu             sync.RWMutex
	messageHandler transport.MessageHandler
	errorHandler   func(error)
	closeHandler   func()
	responseMap    map[transport.RequestId]chan *transport.BaseJsonRpcMessage
	counter        atomic.Int64
	closed         atomic.Bool
	server         *http.Server
}

// NewServer creates a new HTTP transport that serves the specified endpoint
func NewServer(endpoint string) *Server {
	if endpoint == "" {
		endpoint = "/mcp"
	}
	return &Server{
		endpoint:    endpoint,
		responseMap: make(map[transport.RequestId]chan *transport.BaseJsonRpcMessage),
	}
}

// Endpoint returns the served path
func (t *Server) Endpoint() string {
	return t.endpoint
}

// Handler returns http.Handler serving the endpoint
func (t *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(t.endpoint, t.ServeHTTP)
	return mux
}

// ListenAndServe serves HTTP on the address until the context is cancelled
func (t *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return t.Serve(ctx, ln)
}

// Serve serves HTTP on the listener until the context is cancelled
func (t *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	t.mu.Lock()
	t.server = srv
	t.mu.Unlock()

	logger.KV(xlog.INFO, "status", "listening", "addr", ln.Addr().String(), "endpoint", t.endpoint)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.WithStack(err)
}

// Start implements Transport.Start
func (t *Server) Start(_ context.Context) error {
	// requests are accepted by ServeHTTP
	return nil
}

// Send implements Transport.Send, delivering the response to the pending HTTP request
func (t *Server) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	if message.Type == transport.BaseMessageTypeJSONRPCNotificationType ||
		message.Type == transport.BaseMessageTypeJSONRPCRequestType {
		// stateless transport can not push messages to the client
		logger.ContextKV(ctx, xlog.DEBUG, "status", "dropped", "type", message.Type)
		return nil
	}

	key := message.MessageID()
	t.mu.RLock()
	ch := t.responseMap[key]
	t.mu.RUnlock()

	if ch == nil {
		return errors.Errorf("no pending request for id: %d", key)
	}
	select {
	case ch <- message:
		return nil
	default:
		return errors.Errorf("duplicate response for id: %d", key)
	}
}

// Close implements Transport.Close
func (t *Server) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.mu.RLock()
	srv := t.server
	handler := t.closeHandler
	t.mu.RUnlock()

	var err error
	if srv != nil {
		err = srv.Close()
	}
	if handler != nil {
		handler()
	}
	return err
}

// SetCloseHandler implements Transport.SetCloseHandler
func (t *Server) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

// SetErrorHandler implements Transport.SetErrorHandler
func (t *Server) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

// SetMessageHandler implements Transport.SetMessageHandler
func (t *Server) SetMessageHandler(handler transport.MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}

// ServeHTTP handles a single JSON-RPC message
func (t *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST method is supported", http.StatusMethodNotAllowed)
		return
	}
	if t.closed.Load() {
		http.Error(w, "server is closed", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize))
	if err != nil {
		t.reportError(errors.Wrap(err, "failed to read request body"))
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	response, err := t.HandleMessage(r.Context(), body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if response == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	jsonData, err := json.Marshal(response)
	if err != nil {
		t.reportError(errors.Wrap(err, "failed to marshal response"))
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(jsonData)
}

// HandleMessage processes an incoming message and returns the response,
// or nil for notifications.
func (t *Server) HandleMessage(ctx context.Context, body []byte) (*transport.BaseJsonRpcMessage, error) {
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

	t.mu.RLock()
	handler := t.messageHandler
	t.mu.RUnlock()
	if handler == nil {
		return nil, errors.New("transport is not connected")
	}

	if msg.Type != transport.BaseMessageTypeJSONRPCRequestType {
		handler(ctx, msg)
		return nil, nil
	}

	// IDs of concurrent clients may collide, so requests are re-keyed
	origID := msg.JsonRpcRequest.Id
	key := transport.RequestId(t.counter.Add(1))
	ch := make(chan *transport.BaseJsonRpcMessage, 1)

	t.mu.Lock()
	t.responseMap[key] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.responseMap, key)
		t.mu.Unlock()
	}()

	msg.JsonRpcRequest.Id = key
	handler(ctx, msg)

	select {
	case response := <-ch:
		response.SetMessageID(origID)
		return response, nil
	case <-ctx.Done():
		return nil, errors.WithStack(ctx.Err())
	}
}

func (t *Server) reportError(err error) {
	t.mu.RLock()
	handler := t.errorHandler
	t.mu.RUnlock()
	if handler != nil {
		handler(err)
	}
}
