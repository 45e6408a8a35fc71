package tools

import (
	"context"

	"github.com/litfuse/litfuse/internal/citegraph"
	"github.com/litfuse/litfuse/internal/enrich"
	"github.com/litfuse/litfuse/internal/landmark"
	"github.com/litfuse/litfuse/internal/pipeline"
	"github.com/litfuse/litfuse/internal/providers"
	"github.com/litfuse/litfuse/internal/query"
	"github.com/litfuse/litfuse/internal/search"
	"github.com/litfuse/litfuse/internal/timeline"
)

// ServerVersion is the version of the tool surface.
const ServerVersion = "1.0.0"

// Deps bundles the services the tool handlers run on.
type Deps struct {
	Search    *search.Service
	Analyzer  *query.Analyzer
	Enhancer  *query.Enhancer
	Registry  *providers.Registry
	Enricher  *enrich.Enricher
	Metrics   providers.MetricsProvider
	Fulltext  *providers.Fulltext
	Graphs    *citegraph.Builder
	Timelines *timeline.Builder
	Landmarks *landmark.Scorer
	Pipelines *pipeline.Executor
	Store     *pipeline.Store
}

// Executor owns the tool registry and dispatches invocations.
type Executor struct {
	deps     Deps
	registry *ToolRegistry
}

// NewExecutor creates the executor and registers the full tool surface.
func NewExecutor(deps Deps) *Executor {
	e := &Executor{deps: deps, registry: NewToolRegistry()}
	e.registerSearchTools()
	e.registerGraphTools()
	e.registerPipelineTools()
	return e
}

// ListTools returns the tool inventory.
func (e *Executor) ListTools() []Tool {
	return e.registry.List()
}

// ExecuteTool dispatches a tool invocation by name.
func (e *Executor) ExecuteTool(ctx context.Context, name string, args map[string]any) (CallToolResult, error) {
	return e.registry.Call(ctx, name, args)
}
