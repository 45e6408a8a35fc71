package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	literrors "github.com/litfuse/litfuse/internal/errors"
)

// stubExecutor serves a single echo tool.
type stubExecutor struct{}

func (stubExecutor) ListTools() []Tool {
	return []Tool{{
		Name:        "echo",
		Description: "Echoes its input.",
		InputSchema: objectSchema(map[string]PropertySchema{
			"text": stringProp("Text to echo"),
		}, "text"),
	}}
}

func (stubExecutor) ExecuteTool(ctx context.Context, name string, args map[string]any) (CallToolResult, error) {
	if name != "echo" {
		return CallToolResult{}, fmt.Errorf("unknown tool: %s", name)
	}
	return NewTextResult(argString(args, "text")), nil
}

func newRPCServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := NewServer(":0", stubExecutor{})
	srv := httptest.NewServer(http.HandlerFunc(s.handleRequest))
	t.Cleanup(srv.Close)
	return srv
}

func rpc(t *testing.T, srv *httptest.Server, body string) Response {
	t.Helper()
	resp, err := http.Post(srv.URL, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestServerInitialize(t *testing.T) {
	srv := newRPCServer(t)
	resp := rpc(t, srv, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"agent","version":"0.1"}}}`)
	require.Nil(t, resp.Error)

	var result InitializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, ServerName, result.ServerInfo.Name)
	assert.Equal(t, ServerVersion, result.ServerInfo.Version)
	require.NotNil(t, result.Capabilities.Tools)
}

func TestServerListTools(t *testing.T) {
	srv := newRPCServer(t)
	resp := rpc(t, srv, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	require.Nil(t, resp.Error)

	var result ListToolsResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Tools, 1)
	assert.Equal(t, "echo", result.Tools[0].Name)
	assert.Equal(t, "object", result.Tools[0].InputSchema.Type)
	assert.Equal(t, []string{"text"}, result.Tools[0].InputSchema.Required)
}

func TestServerCallTool(t *testing.T) {
	srv := newRPCServer(t)
	resp := rpc(t, srv, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hello"}}}`)
	require.Nil(t, resp.Error)

	var result CallToolResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "hello", result.Content[0].Text)
}

func TestServerCallUnknownTool(t *testing.T) {
	srv := newRPCServer(t)
	resp := rpc(t, srv, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"nope"}}`)
	require.Nil(t, resp.Error)

	var result CallToolResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "unknown tool")
}

func TestServerMethodNotFound(t *testing.T) {
	srv := newRPCServer(t)
	resp := rpc(t, srv, `{"jsonrpc":"2.0","id":5,"method":"teleport"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrMethodNotFound, resp.Error.Code)
}

func TestServerRejectsBadRequests(t *testing.T) {
	srv := newRPCServer(t)

	parse := rpc(t, srv, `{not json`)
	require.NotNil(t, parse.Error)
	assert.Equal(t, ErrParse, parse.Error.Code)

	version := rpc(t, srv, `{"jsonrpc":"1.0","id":6,"method":"ping"}`)
	require.NotNil(t, version.Error)
	assert.Equal(t, ErrInvalidRequest, version.Error.Code)

	get, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)
}

func TestServerPing(t *testing.T) {
	srv := newRPCServer(t)
	resp := rpc(t, srv, `{"jsonrpc":"2.0","id":7,"method":"ping"}`)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{}`, string(resp.Result))
}

func TestServerHealth(t *testing.T) {
	s := NewServer(":0", stubExecutor{})
	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestNewErrorResultEnvelope(t *testing.T) {
	cause := literrors.New(literrors.ErrorTypeTransient, "search", "pubmed",
		fmt.Errorf("rate limited")).WithRetryAfter(30 * time.Second)

	result := NewErrorResult(cause)
	assert.True(t, result.IsError)

	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &envelope))
	assert.True(t, envelope.Retryable)
	assert.Equal(t, 30.0, envelope.RetryAfter)
	assert.Contains(t, envelope.Error, "rate limited")
}

func TestNewErrorResultValidationSuggestion(t *testing.T) {
	result := NewErrorResult(literrors.WrapValidation("search", fmt.Errorf("query is required")))

	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &envelope))
	assert.False(t, envelope.Retryable)
	assert.NotEmpty(t, envelope.Suggestion)
}

func TestNewValidationErrorGuidance(t *testing.T) {
	result := NewValidationError("query is required", "Provide a query.", `{"query": "sepsis"}`)
	assert.True(t, result.IsError)

	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &envelope))
	assert.Equal(t, "query is required", envelope.Error)
	assert.Equal(t, "Provide a query.", envelope.Suggestion)
	assert.Equal(t, `{"query": "sepsis"}`, envelope.Example)
}

func TestToolRegistry(t *testing.T) {
	r := NewToolRegistry()
	r.Register(Tool{Name: "b"}, func(ctx context.Context, args map[string]any) CallToolResult {
		return NewTextResult("b")
	})
	r.Register(Tool{Name: "a"}, func(ctx context.Context, args map[string]any) CallToolResult {
		return NewTextResult("a")
	})

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)

	result, err := r.Call(context.Background(), "a", nil)
	require.NoError(t, err)
	assert.Equal(t, "a", result.Content[0].Text)

	_, err = r.Call(context.Background(), "zzz", nil)
	require.Error(t, err)
}
