package mcp

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ProtocolVersion is the MCP protocol version implemented by the server and client
const ProtocolVersion = "2024-11-05"

// MCP method names
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

// ContentType is the type of the content in a tool response
type ContentType string

const (
	// ContentTypeText is a plain text content
	ContentTypeText ContentType = "text"
)

// Implementation describes the name and version of an MCP implementation
type Implementation struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// ToolsCapability is present if the server offers tools
type ToolsCapability struct {
	// ListChanged is true if the server supports notifications for changes to the tool list.
	ListChanged bool `json:"listChanged,omitempty" yaml:"listChanged,omitempty"`
}

// ServerCapabilities are the capabilities advertised by the server
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// InitializeParams are sent by the client in the initialize request
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion" yaml:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities" yaml:"capabilities"`
	ClientInfo      Implementation `json:"clientInfo" yaml:"clientInfo"`
}

// InitializeResult is the server response to the initialize request
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion" yaml:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities" yaml:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo" yaml:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty" yaml:"instructions,omitempty"`
}

// ListToolsParams are the params of tools/list
type ListToolsParams struct {
	// Cursor is an opaque token returned by a previous page
	Cursor *string `json:"cursor,omitempty" yaml:"cursor,omitempty"`
}

// ToolRetType is a tool definition on the wire
type ToolRetType struct {
	Name        string             `json:"name" yaml:"name"`
	Description *string            `json:"description,omitempty" yaml:"description,omitempty"`
	InputSchema *jsonschema.Schema `json:"inputSchema" yaml:"inputSchema"`
}

// ToolsResponse is the result of tools/list
type ToolsResponse struct {
	Tools      []ToolRetType `json:"tools" yaml:"tools"`
	NextCursor *string       `json:"nextCursor,omitempty" yaml:"nextCursor,omitempty"`
}

// rawToolsResponse is decoded by the client,
// the input schemas are cleaned before use.
type rawToolsResponse struct {
	Tools []struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		InputSchema json.RawMessage `json:"inputSchema"`
	} `json:"tools"`
	NextCursor *string `json:"nextCursor,omitempty"`
}

// CallToolParams are the params of tools/call
type CallToolParams struct {
	Name      string          `json:"name" yaml:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// Content is an item of a tool response
type Content struct {
	Type ContentType `json:"type" yaml:"type"`
	Text string      `json:"text,omitempty" yaml:"text,omitempty"`
}

// NewTextContent returns text content
func NewTextContent(text string) *Content {
	return &Content{
		Type: ContentTypeText,
		Text: text,
	}
}

// ToolResponse is the result of tools/call
type ToolResponse struct {
	Content []*Content `json:"content" yaml:"content"`
	// StructuredContent holds non-text results as JSON
	StructuredContent json.RawMessage `json:"structuredContent,omitempty" yaml:"structuredContent,omitempty"`
	IsError           bool            `json:"isError,omitempty" yaml:"isError,omitempty"`
}

// NewToolResponse returns a response with the given content
func NewToolResponse(content ...*Content) *ToolResponse {
	return &ToolResponse{
		Content: content,
	}
}

// Text returns the concatenated text content
func (r *ToolResponse) Text() string {
	var text string
	for i, c := range r.Content {
		if c.Type != ContentTypeText {
			continue
		}
		if i > 0 && text != "" {
			text += "\n"
		}
		text += c.Text
	}
	return text
}

// errorData is the data of JSON-RPC errors produced from registry errors
type errorData struct {
	Kind   string         `json:"kind"`
	Detail map[string]any `json:"detail,omitempty"`
}
