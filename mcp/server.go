// Package mcp serves a tool registry over the Model Context Protocol,
// and provides a client to discover and call the tools of a remote server.
package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/mcp/internal/protocol"
	"github.com/effective-security/toolbridge/mcp/transport"
	"github.com/effective-security/toolbridge/pkg/metricskey"
	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/toolbridge/value"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolbridge", "mcp")

// ServerOption configures the Server
type ServerOption func(*Server)

// WithServerInfo sets the name and version reported on initialize
func WithServerInfo(name, version string) ServerOption {
	return func(s *Server) {
		s.info = Implementation{Name: name, Version: version}
	}
}

// WithPaginationLimit sets the page size of tools/list,
// 0 disables pagination.
func WithPaginationLimit(limit int) ServerOption {
	return func(s *Server) {
		if limit > 0 {
			s.paginationLimit = &limit
		} else {
			s.paginationLimit = nil
		}
	}
}

// WithInstructions sets the instructions reported on initialize
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// WithRequestTimeout sets the timeout of requests sent by the server
func WithRequestTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.protocolOptions.RequestTimeout = timeout
	}
}

// Server exposes the tools of a registry to MCP clients
type Server struct {
	registry        *registry.Registry
	protocol        *protocol.Protocol
	protocolOptions protocol.Options
	info            Implementation
	instructions    string
	paginationLimit *int
}

// NewServer returns a server for the registry
func NewServer(reg *registry.Registry, opts ...ServerOption) *Server {
	s := &Server{
		registry: reg,
		info: Implementation{
			Name:    "toolbridge",
			Version: "dev",
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.protocol = protocol.NewProtocol(&s.protocolOptions)
	s.protocol.SetRequestHandler(MethodInitialize, s.handleInitialize)
	s.protocol.SetRequestHandler(MethodPing, s.handlePing)
	s.protocol.SetRequestHandler(MethodToolsList, s.handleListTools)
	s.protocol.SetRequestHandler(MethodToolsCall, s.handleToolCalls)
	return s
}

// Serve starts serving on the transport, it does not block
func (s *Server) Serve(tr transport.Transport) error {
	logger.KV(xlog.INFO,
		"status", "serving",
		"name", s.info.Name,
		"version", s.info.Version,
		"tools", s.registry.Len())
	return s.protocol.Connect(tr)
}

// Close closes the transport
func (s *Server) Close() error {
	return s.protocol.Close()
}

func (s *Server) handleInitialize(ctx context.Context, req *transport.BaseJSONRPCRequest) (transport.JsonRpcBody, error) {
	metricskey.StatsRPCRequests.IncrCounter(1, req.Method)

	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, transport.NewError(transport.CodeInvalidParams, "invalid initialize params: %s", err.Error())
		}
	}
	logger.ContextKV(ctx, xlog.INFO,
		"status", "initialize",
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"protocol", params.ProtocolVersion)

	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools: &ToolsCapability{},
		},
		ServerInfo:   s.info,
		Instructions: s.instructions,
	}, nil
}

func (s *Server) handlePing(_ context.Context, req *transport.BaseJSONRPCRequest) (transport.JsonRpcBody, error) {
	metricskey.StatsRPCRequests.IncrCounter(1, req.Method)
	return map[string]any{}, nil
}

func (s *Server) handleListTools(_ context.Context, req *transport.BaseJSONRPCRequest) (transport.JsonRpcBody, error) {
	metricskey.StatsRPCRequests.IncrCounter(1, req.Method)

	var params ListToolsParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, transport.NewError(transport.CodeInvalidParams, "invalid tools/list params: %s", err.Error())
		}
	}

	list := s.registry.List()
	if s.paginationLimit == nil {
		return ToolsResponse{Tools: toWire(list)}, nil
	}

	version := listVersion(list)
	offset := 0
	if params.Cursor != nil {
		var err error
		offset, err = decodeCursor(*params.Cursor, version)
		if err != nil || offset > len(list) {
			return nil, transport.NewError(transport.CodeInvalidParams, "invalid cursor: %s", *params.Cursor)
		}
	}

	end := min(offset+*s.paginationLimit, len(list))
	res := ToolsResponse{
		Tools: toWire(list[offset:end]),
	}
	if end < len(list) {
		cursor := encodeCursor(end, version)
		res.NextCursor = &cursor
	}
	return res, nil
}

func (s *Server) handleToolCalls(ctx context.Context, req *transport.BaseJSONRPCRequest) (transport.JsonRpcBody, error) {
	metricskey.StatsRPCRequests.IncrCounter(1, req.Method)

	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, transport.NewError(transport.CodeInvalidParams, "invalid tools/call params: %s", err.Error())
	}

	var args value.Object
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return nil, toRPCError(registry.NewError(registry.KindTypeMismatch,
				"failed to unmarshal arguments: %s", err.Error()))
		}
	}

	res, err := s.registry.Invoke(ctx, params.Name, args)
	if err != nil {
		return nil, toRPCError(err)
	}
	return toToolResponse(res)
}

// toRPCError converts registry errors to JSON-RPC errors,
// keeping the kind and detail in the error data.
func toRPCError(err error) *transport.Error {
	e := registry.AsError(err)
	return transport.NewError(e.Kind.Code(), "%s", e.Error()).
		WithData(errorData{
			Kind:   string(e.Kind),
			Detail: e.Detail,
		})
}

// toToolResponse returns strings as text content,
// other values as JSON text and structured content.
func toToolResponse(res any) (*ToolResponse, error) {
	switch v := res.(type) {
	case nil:
		return NewToolResponse(NewTextContent("")), nil
	case string:
		return NewToolResponse(NewTextContent(v)), nil
	case *ToolResponse:
		return v, nil
	case value.Value:
		if s, ok := v.Str(); ok {
			return NewToolResponse(NewTextContent(s)), nil
		}
	case fmt.Stringer:
		// structures with JSON form take precedence over String()
		if _, ok := res.(json.Marshaler); !ok {
			return NewToolResponse(NewTextContent(v.String())), nil
		}
	}

	js, err := json.Marshal(res)
	if err != nil {
		return nil, toRPCError(registry.NewError(registry.KindExecutionError,
			"failed to marshal result: %s", err.Error()))
	}
	r := NewToolResponse(NewTextContent(string(js)))
	r.StructuredContent = js
	return r, nil
}

func toWire(list []registry.ToolInfo) []ToolRetType {
	tools := make([]ToolRetType, len(list))
	for i, info := range list {
		tools[i] = ToolRetType{
			Name:        info.Name,
			InputSchema: info.InputSchema,
		}
		if info.Description != "" {
			desc := info.Description
			tools[i].Description = &desc
		}
	}
	return tools
}

// listVersion identifies the tool list, so cursors of a changed registry are rejected
func listVersion(list []registry.ToolInfo) uint64 {
	h := xxhash.New()
	for _, info := range list {
		_, _ = h.WriteString(info.Name)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

func encodeCursor(offset int, version uint64) string {
	raw := strconv.Itoa(offset) + ":" + strconv.FormatUint(version, 16)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string, version uint64) (int, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	offsetStr, versionStr, ok := strings.Cut(string(raw), ":")
	if !ok {
		return 0, errors.New("malformed cursor")
	}
	offset, err := strconv.Atoi(offsetStr)
	if err != nil || offset < 0 {
		return 0, errors.New("malformed cursor offset")
	}
	v, err := strconv.ParseUint(versionStr, 16, 64)
	if err != nil {
		return 0, errors.New("malformed cursor version")
	}
	if v != version {
		return 0, errors.New("tool list changed")
	}
	return offset, nil
}
