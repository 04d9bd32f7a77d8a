package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/mcp/internal/protocol"
	"github.com/effective-security/toolbridge/mcp/transport"
	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/toolbridge/translator"
	"github.com/effective-security/toolbridge/value"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
)

// ClientOption configures the Client
type ClientOption func(*Client)

// WithClientInfo sets the name and version sent on initialize
func WithClientInfo(name, version string) ClientOption {
	return func(c *Client) {
		c.info = Implementation{Name: name, Version: version}
	}
}

// WithClientTimeout sets the default request timeout
func WithClientTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.options.RequestTimeout = timeout
	}
}

// Client discovers and calls the tools of a MCP server
type Client struct {
	transport transport.Transport
	protocol  *protocol.Protocol
	options   protocol.Options
	info      Implementation

	lock        sync.Mutex
	connected   bool
	initialized *InitializeResult
}

// NewClient returns a client over the transport.
// The transport is started by Initialize.
func NewClient(tr transport.Transport, opts ...ClientOption) *Client {
	c := &Client{
		transport: tr,
		info: Implementation{
			Name:    "toolbridge",
			Version: "dev",
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.protocol = protocol.NewProtocol(&c.options)
	return c
}

// Initialize connects to the server and performs the initialization handshake.
// It is called implicitly by ListTools and CallTool.
func (c *Client) Initialize(ctx context.Context) (*InitializeResult, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.initialized != nil {
		return c.initialized, nil
	}

	if !c.connected {
		if err := c.protocol.Connect(c.transport); err != nil {
			return nil, registry.WrapError(registry.KindTransportError, errors.WithMessage(err, "failed to connect"))
		}
		c.connected = true
	}

	params := InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      c.info,
	}
	raw, err := c.protocol.Request(ctx, MethodInitialize, params, nil)
	if err != nil {
		return nil, fromRPCError(errors.WithMessage(err, "initialize"))
	}

	var res InitializeResult
	if err = json.Unmarshal(raw, &res); err != nil {
		return nil, registry.WrapError(registry.KindTransportError,
			errors.Wrap(err, "failed to unmarshal initialize result"))
	}

	if err = c.protocol.Notification(ctx, MethodInitialized, nil); err != nil {
		return nil, registry.WrapError(registry.KindTransportError,
			errors.WithMessage(err, "failed to send initialized notification"))
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "initialized",
		"server", res.ServerInfo.Name,
		"version", res.ServerInfo.Version,
		"protocol", res.ProtocolVersion)

	c.initialized = &res
	return c.initialized, nil
}

// ServerInfo returns the server implementation, once initialized
func (c *Client) ServerInfo() (Implementation, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.initialized == nil {
		return Implementation{}, false
	}
	return c.initialized.ServerInfo, true
}

// Ping checks that the server is alive
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.Initialize(ctx); err != nil {
		return err
	}
	if _, err := c.protocol.Request(ctx, MethodPing, nil, nil); err != nil {
		return fromRPCError(err)
	}
	return nil
}

// ListTools returns the tools of the server, following pagination cursors.
// Input schemas are reduced to the keys understood by function-calling models.
func (c *Client) ListTools(ctx context.Context) ([]registry.ToolInfo, error) {
	if _, err := c.Initialize(ctx); err != nil {
		return nil, err
	}

	var list []registry.ToolInfo
	var cursor *string
	for {
		raw, err := c.protocol.Request(ctx, MethodToolsList, ListToolsParams{Cursor: cursor}, nil)
		if err != nil {
			return nil, fromRPCError(err)
		}

		var page rawToolsResponse
		if err = json.Unmarshal(raw, &page); err != nil {
			return nil, registry.WrapError(registry.KindTransportError,
				errors.Wrap(err, "failed to unmarshal tools"))
		}
		for _, t := range page.Tools {
			sc, err := decodeInputSchema(t.InputSchema)
			if err != nil {
				return nil, registry.WrapError(registry.KindTransportError,
					errors.WithMessagef(err, "tool %s: invalid input schema", t.Name))
			}
			list = append(list, registry.ToolInfo{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: sc,
			})
		}

		if page.NextCursor == nil || *page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	logger.ContextKV(ctx, xlog.DEBUG, "status", "listed", "tools", len(list))
	return list, nil
}

// CallTool invokes the named tool.
// Text results are returned as string, structured results as plain Go values.
// Failures are returned as *registry.Error of the kind reported by the server.
func (c *Client) CallTool(ctx context.Context, name string, args value.Object) (any, error) {
	if _, err := c.Initialize(ctx); err != nil {
		return nil, err
	}

	params := map[string]any{
		"name": name,
	}
	if args != nil {
		params["arguments"] = args
	}

	raw, err := c.protocol.Request(ctx, MethodToolsCall, params, nil)
	if err != nil {
		return nil, fromRPCError(err)
	}

	var res ToolResponse
	if err = json.Unmarshal(raw, &res); err != nil {
		return nil, registry.WrapError(registry.KindTransportError,
			errors.Wrap(err, "failed to unmarshal tool response"))
	}
	if res.IsError {
		return nil, registry.NewError(registry.KindExecutionError, "%s", res.Text()).
			WithDetail("tool", name)
	}
	if len(res.StructuredContent) > 0 && !bytes.Equal(res.StructuredContent, []byte("null")) {
		var v value.Value
		if err = json.Unmarshal(res.StructuredContent, &v); err != nil {
			return nil, registry.WrapError(registry.KindTransportError,
				errors.Wrap(err, "failed to unmarshal structured content"))
		}
		return v.Any(), nil
	}
	return res.Text(), nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.protocol.Close()
}

// fromRPCError restores the registry error from a JSON-RPC error.
// Other failures are reported as TransportError.
func fromRPCError(err error) error {
	var rpcErr *transport.Error
	if !errors.As(err, &rpcErr) {
		return registry.WrapError(registry.KindTransportError, err)
	}

	e := &registry.Error{
		Kind:    registry.KindFromCode(rpcErr.Code),
		Message: rpcErr.Message,
	}
	if data, ok := rpcErr.Data.(map[string]any); ok {
		if k, ok := data["kind"].(string); ok {
			if kind, ok := registry.ParseKind(k); ok {
				e.Kind = kind
			}
		}
		if detail, ok := data["detail"].(map[string]any); ok {
			e.Detail = detail
		}
	}
	return e
}

// decodeInputSchema decodes and cleans a schema received from a server
func decodeInputSchema(raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return &jsonschema.Schema{Type: "object"}, nil
	}

	// properties order is kept by the schema decoder
	var sc jsonschema.Schema
	if err := json.Unmarshal(raw, &sc); err == nil {
		return translator.CleanSchema(&sc), nil
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.WithStack(err)
	}
	return translator.SchemaFromMap(m)
}
