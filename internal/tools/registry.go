package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler executes one tool invocation.
type Handler func(ctx context.Context, args map[string]any) CallToolResult

// entry pairs a tool descriptor with its handler.
type entry struct {
	tool    Tool
	handler Handler
}

// ToolRegistry maps tool names to handlers and input schemas. The tool
// inventory is introspectable: tools/list is served straight from here.
type ToolRegistry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{entries: make(map[string]entry)}
}

// Register adds a tool. Re-registering a name replaces the handler.
func (r *ToolRegistry) Register(tool Tool, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[tool.Name] = entry{tool: tool, handler: handler}
}

// List returns tool descriptors sorted by name.
func (r *ToolRegistry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call dispatches an invocation to the named tool.
func (r *ToolRegistry) Call(ctx context.Context, name string, args map[string]any) (CallToolResult, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return CallToolResult{}, fmt.Errorf("unknown tool: %s", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return e.handler(ctx, args), nil
}

// Schema helpers keep the registration code compact.

func objectSchema(props map[string]PropertySchema, required ...string) InputSchema {
	return InputSchema{Type: "object", Properties: props, Required: required}
}

func stringProp(desc string) PropertySchema {
	return PropertySchema{Type: "string", Description: desc}
}

func intProp(desc string, def int) PropertySchema {
	return PropertySchema{Type: "integer", Description: desc, Default: def}
}

func enumProp(desc string, values ...string) PropertySchema {
	return PropertySchema{Type: "string", Description: desc, Enum: values}
}
