// Package tools exposes the agent-facing surface: a JSON-RPC 2.0 server
// speaking the MCP tool protocol, a registry of named tools with input
// schemas, and the renderers that turn pipeline output into markdown.
package tools

import (
	"encoding/json"

	literrors "github.com/litfuse/litfuse/internal/errors"
)

// JSON-RPC 2.0 types

// Request represents a JSON-RPC request
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC response
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	ErrParse          = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603
)

// MCP types

// ServerInfo describes the tool server
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities describes what the server supports
type Capabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability describes tool support
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// InitializeParams are the params for the initialize method
type InitializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      ClientInfo `json:"clientInfo"`
}

// ClientInfo describes the client
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the result of the initialize method
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// Tool describes an available tool
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema describes the expected input for a tool
type InputSchema struct {
	Type       string                    `json:"type"` // always "object"
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// PropertySchema describes a property in the input schema
type PropertySchema struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

// ListToolsResult is the result of tools/list
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams are the params for tools/call
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallToolResult is the result of tools/call
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Content represents content in a tool result
type Content struct {
	Type     string `json:"type"` // "text"
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// ErrorEnvelope is the structured failure payload every tool returns on
// error. Retryable failures carry a retry hint when upstream supplied one.
type ErrorEnvelope struct {
	Error      string  `json:"error"`
	Suggestion string  `json:"suggestion,omitempty"`
	Example    string  `json:"example,omitempty"`
	RetryAfter float64 `json:"retry_after,omitempty"` // seconds
	Retryable  bool    `json:"retryable"`
}

// NewTextContent creates a text content object
func NewTextContent(text string) Content {
	return Content{Type: "text", Text: text}
}

// NewTextResult creates a successful text tool result
func NewTextResult(text string) CallToolResult {
	return CallToolResult{Content: []Content{NewTextContent(text)}}
}

// NewJSONResult marshals data into a text tool result
func NewJSONResult(data any) CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return NewErrorResult(err)
	}
	return CallToolResult{Content: []Content{NewTextContent(string(b))}}
}

// NewErrorResult wraps an error into the structured envelope.
func NewErrorResult(err error) CallToolResult {
	envelope := ErrorEnvelope{
		Error:     err.Error(),
		Retryable: literrors.IsRetryable(err),
	}
	if after, ok := literrors.RetryAfter(err); ok {
		envelope.RetryAfter = after.Seconds()
	}
	if literrors.IsValidation(err) {
		envelope.Suggestion = "Check the tool's input schema via tools/list."
	}
	b, merr := json.Marshal(envelope)
	if merr != nil {
		return CallToolResult{Content: []Content{NewTextContent(err.Error())}, IsError: true}
	}
	return CallToolResult{Content: []Content{NewTextContent(string(b))}, IsError: true}
}

// NewValidationError builds a validation envelope with guidance.
func NewValidationError(message, suggestion, example string) CallToolResult {
	b, err := json.Marshal(ErrorEnvelope{
		Error:      message,
		Suggestion: suggestion,
		Example:    example,
	})
	if err != nil {
		return CallToolResult{Content: []Content{NewTextContent(message)}, IsError: true}
	}
	return CallToolResult{Content: []Content{NewTextContent(string(b))}, IsError: true}
}
