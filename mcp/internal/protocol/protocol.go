// Package protocol implements the JSON-RPC layer shared by the MCP client and server.
//
// It handles request/response correlation, timeouts, request cancellation
// and error propagation on top of a pluggable transport.
//
// Thread Safety:
//   - All public methods are thread-safe
//   - Requests are handled concurrently and correlated by ID
//
// Usage:
//
//	p := protocol.NewProtocol(nil)
//	p.SetRequestHandler("ping", handler)
//	err := p.Connect(tr)
//	defer p.Close()
//
//	res, err := p.Request(ctx, "tools/list", params, &protocol.RequestOptions{
//	    Timeout: 5 * time.Second,
//	})
package protocol

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/mcp/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolbridge/mcp/internal", "protocol")

// DefaultRequestTimeout is used when the request has no timeout
const DefaultRequestTimeout = 60 * time.Second

// Options contains additional initialization options
type Options struct {
	// RequestTimeout is the default timeout for outgoing requests
	RequestTimeout time.Duration
}

// RequestOptions contains options that can be given per request
type RequestOptions struct {
	// Timeout specifies a timeout for this request.
	// If not specified, the protocol default is used.
	Timeout time.Duration
}

// RequestHandler handles a request and returns its result.
// A returned *transport.Error is sent with its code and data,
// other errors are sent as internal errors.
type RequestHandler func(ctx context.Context, req *transport.BaseJSONRPCRequest) (transport.JsonRpcBody, error)

// NotificationHandler handles a notification
type NotificationHandler func(ctx context.Context, notification *transport.BaseJSONRPCNotification) error

// Protocol implements MCP protocol framing on top of a pluggable transport
type Protocol struct {
	transport transport.Transport
	options   Options

	requestMessageID transport.RequestId
	mu               sync.RWMutex
	closed           bool

	// Maps method name to request handler
	requestHandlers map[string]RequestHandler
	// Maps request ID to cancellation function
	requestCancellers map[transport.RequestId]context.CancelFunc
	// Maps method name to notification handler
	notificationHandlers map[string]NotificationHandler
	// Maps message ID to response handler
	responseHandlers map[transport.RequestId]chan *responseEnvelope

	// OnClose is called when the connection is closed for any reason
	OnClose func()
	// OnError is called when an error occurs
	OnError func(error)
}

type responseEnvelope struct {
	response json.RawMessage
	err      error
}

// NewProtocol creates a new Protocol instance
func NewProtocol(options *Options) *Protocol {
	p := &Protocol{
		requestHandlers:      make(map[string]RequestHandler),
		requestCancellers:    make(map[transport.RequestId]context.CancelFunc),
		notificationHandlers: make(map[string]NotificationHandler),
		responseHandlers:     make(map[transport.RequestId]chan *responseEnvelope),
	}
	if options != nil {
		p.options = *options
	}
	if p.options.RequestTimeout == 0 {
		p.options.RequestTimeout = DefaultRequestTimeout
	}

	p.SetNotificationHandler("notifications/cancelled", p.handleCancelledNotification)
	p.SetNotificationHandler("notifications/initialized", func(ctx context.Context, n *transport.BaseJSONRPCNotification) error {
		logger.ContextKV(ctx, xlog.DEBUG, "method", n.Method)
		return nil
	})

	return p
}

// Connect attaches to the given transport, starts it, and starts listening for messages
func (p *Protocol) Connect(tr transport.Transport) error {
	p.mu.Lock()
	p.transport = tr
	p.closed = false
	p.mu.Unlock()

	tr.SetCloseHandler(p.handleClose)
	tr.SetErrorHandler(p.handleError)
	tr.SetMessageHandler(func(ctx context.Context, message *transport.BaseJsonRpcMessage) {
		switch message.Type {
		case transport.BaseMessageTypeJSONRPCRequestType:
			p.handleRequest(ctx, message.JsonRpcRequest)
		case transport.BaseMessageTypeJSONRPCNotificationType:
			p.handleNotification(ctx, message.JsonRpcNotification)
		case transport.BaseMessageTypeJSONRPCResponseType:
			p.handleResponse(message.JsonRpcResponse.Id, message.JsonRpcResponse.Result, nil)
		case transport.BaseMessageTypeJSONRPCErrorType:
			e := message.JsonRpcError.Error
			p.handleResponse(message.JsonRpcError.Id, nil, &transport.Error{
				Code:    e.Code,
				Message: e.Message,
				Data:    e.Data,
			})
		}
	})

	return tr.Start(context.Background())
}

func (p *Protocol) handleClose() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true

	for _, cancel := range p.requestCancellers {
		cancel()
	}
	// pending requests receive the close error, channels are buffered
	for id, ch := range p.responseHandlers {
		select {
		case ch <- &responseEnvelope{err: transport.ErrClosed}:
		default:
		}
		delete(p.responseHandlers, id)
	}
	onClose := p.OnClose
	p.mu.Unlock()

	logger.KV(xlog.DEBUG, "status", "closed")

	if onClose != nil {
		onClose()
	}
}

func (p *Protocol) handleError(err error) {
	logger.KV(xlog.DEBUG, "status", "transport_error", "err", err.Error())
	if p.OnError != nil {
		p.OnError(err)
	}
}

func (p *Protocol) handleNotification(ctx context.Context, notification *transport.BaseJSONRPCNotification) {
	logger.ContextKV(ctx, xlog.DEBUG, "notification", notification.Method)

	p.mu.RLock()
	handler := p.notificationHandlers[notification.Method]
	p.mu.RUnlock()

	if handler == nil {
		return
	}
	if err := handler(ctx, notification); err != nil {
		p.handleError(errors.Wrapf(err, "notification handler %s", notification.Method))
	}
}

func (p *Protocol) handleRequest(ctx context.Context, request *transport.BaseJSONRPCRequest) {
	logger.ContextKV(ctx, xlog.DEBUG,
		"method", request.Method,
		"id", request.Id,
	)

	p.mu.RLock()
	handler := p.requestHandlers[request.Method]
	p.mu.RUnlock()

	if handler == nil {
		p.sendErrorResponse(ctx, request.Id,
			transport.NewError(transport.CodeMethodNotFound, "method not found: %s", request.Method))
		return
	}

	// the request context must outlive the transport callback
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.mu.Lock()
	p.requestCancellers[request.Id] = cancel
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			delete(p.requestCancellers, request.Id)
			p.mu.Unlock()
			cancel()
		}()

		result, err := safeHandle(ctx, handler, request)
		if err != nil {
			logger.ContextKV(ctx, xlog.DEBUG,
				"method", request.Method,
				"id", request.Id,
				"err", err.Error())
			p.sendErrorResponse(ctx, request.Id, err)
			return
		}

		jsonResult, err := json.Marshal(result)
		if err != nil {
			p.sendErrorResponse(ctx, request.Id, errors.Wrap(err, "failed to marshal result"))
			return
		}
		response := &transport.BaseJSONRPCResponse{
			Jsonrpc: transport.JSONRPCVersion,
			Id:      request.Id,
			Result:  jsonResult,
		}

		if err := p.send(ctx, transport.NewBaseMessageResponse(response)); err != nil {
			p.handleError(errors.Wrap(err, "failed to send response"))
		}
	}()
}

func safeHandle(ctx context.Context, handler RequestHandler, request *transport.BaseJSONRPCRequest) (res transport.JsonRpcBody, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"method", request.Method,
				"panic", rec,
				"stack", string(debug.Stack()))
			err = transport.NewError(transport.CodeInternalError, "internal error: %v", rec)
		}
	}()
	return handler(ctx, request)
}

func (p *Protocol) handleCancelledNotification(_ context.Context, notification *transport.BaseJSONRPCNotification) error {
	var params struct {
		RequestId transport.RequestId `json:"requestId"`
		Reason    string              `json:"reason"`
	}

	if err := json.Unmarshal(notification.Params, &params); err != nil {
		return errors.Wrap(err, "failed to unmarshal cancelled params")
	}

	p.mu.RLock()
	cancel := p.requestCancellers[params.RequestId]
	p.mu.RUnlock()

	if cancel != nil {
		logger.KV(xlog.DEBUG, "status", "cancelled", "id", params.RequestId, "reason", params.Reason)
		cancel()
	}

	return nil
}

func (p *Protocol) handleResponse(id transport.RequestId, result json.RawMessage, err error) {
	p.mu.RLock()
	ch := p.responseHandlers[id]
	p.mu.RUnlock()

	if ch == nil {
		p.handleError(errors.Errorf("unexpected response id: %d", id))
		return
	}
	select {
	case ch <- &responseEnvelope{response: result, err: err}:
	default:
		p.handleError(errors.Errorf("duplicate response id: %d", id))
	}
}

// Close closes the connection
func (p *Protocol) Close() error {
	p.mu.RLock()
	tr := p.transport
	p.mu.RUnlock()

	if tr != nil {
		return tr.Close()
	}
	return nil
}

// Request sends a request and waits for a response.
// JSON-RPC errors are returned as *transport.Error.
func (p *Protocol) Request(ctx context.Context, method string, params any, opts *RequestOptions) (json.RawMessage, error) {
	timeout := p.options.RequestTimeout
	if opts != nil && opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	marshalledParams, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal params")
	}
	if params == nil {
		marshalledParams = nil
	}

	p.mu.Lock()
	if p.transport == nil || p.closed {
		p.mu.Unlock()
		return nil, errors.WithStack(transport.ErrClosed)
	}
	p.requestMessageID++
	id := p.requestMessageID
	ch := make(chan *responseEnvelope, 1)
	p.responseHandlers[id] = ch
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.responseHandlers, id)
		p.mu.Unlock()
	}()

	request := &transport.BaseJSONRPCRequest{
		Jsonrpc: transport.JSONRPCVersion,
		Method:  method,
		Params:  marshalledParams,
		Id:      id,
	}

	if err := p.send(ctx, transport.NewBaseMessageRequest(request)); err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case envelope := <-ch:
		if envelope.err != nil {
			return nil, envelope.err
		}
		return envelope.response, nil
	case <-ctx.Done():
		p.sendCancelNotification(id, ctx.Err().Error())
		return nil, errors.WithStack(ctx.Err())
	case <-timer.C:
		p.sendCancelNotification(id, "request timeout")
		return nil, errors.Errorf("request timeout after %v", timeout)
	}
}

func (p *Protocol) sendCancelNotification(requestID transport.RequestId, reason string) {
	err := p.Notification(context.Background(), "notifications/cancelled", map[string]any{
		"requestId": requestID,
		"reason":    reason,
	})
	if err != nil {
		p.handleError(errors.Wrap(err, "failed to send cancel notification"))
	}
}

func (p *Protocol) sendErrorResponse(ctx context.Context, requestID transport.RequestId, err error) {
	var rpcErr *transport.Error
	if !errors.As(err, &rpcErr) {
		rpcErr = transport.NewError(transport.CodeInternalError, "%s", err.Error())
	}
	response := &transport.BaseJSONRPCError{
		Jsonrpc: transport.JSONRPCVersion,
		Id:      requestID,
		Error:   rpcErr.Inner(),
	}

	if err := p.send(context.WithoutCancel(ctx), transport.NewBaseMessageError(response)); err != nil {
		p.handleError(errors.Wrap(err, "failed to send error response"))
	}
}

// Notification emits a notification, which is a one-way message that does not expect a response
func (p *Protocol) Notification(ctx context.Context, method string, params any) error {
	notification := &transport.BaseJSONRPCNotification{
		Jsonrpc: transport.JSONRPCVersion,
		Method:  method,
	}
	if params != nil {
		marshalled, err := json.Marshal(params)
		if err != nil {
			return errors.Wrap(err, "failed to marshal notification params")
		}
		notification.Params = marshalled
	}

	return p.send(ctx, transport.NewBaseMessageNotification(notification))
}

func (p *Protocol) send(ctx context.Context, msg *transport.BaseJsonRpcMessage) error {
	p.mu.RLock()
	tr := p.transport
	p.mu.RUnlock()
	if tr == nil {
		return errors.WithStack(transport.ErrClosed)
	}
	return tr.Send(ctx, msg)
}

// SetRequestHandler registers a handler to invoke when this protocol object receives a request with the given method
func (p *Protocol) SetRequestHandler(method string, handler RequestHandler) {
	p.mu.Lock()
	p.requestHandlers[method] = handler
	p.mu.Unlock()
}

// SetNotificationHandler registers a handler to invoke when this protocol object receives a notification with the given method
func (p *Protocol) SetNotificationHandler(method string, handler NotificationHandler) {
	p.mu.Lock()
	p.notificationHandlers[method] = handler
	p.mu.Unlock()
}
