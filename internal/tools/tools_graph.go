package tools

import (
	"context"
	"strings"

	"github.com/litfuse/litfuse/internal/citegraph"
	"github.com/litfuse/litfuse/internal/search"
	"github.com/litfuse/litfuse/internal/timeline"
)

func (e *Executor) registerGraphTools() {
	e.registry.Register(Tool{
		Name:        "build_citation_tree",
		Description: "Expand the citation neighborhood of a seed article into a graph, rendered for a chosen consumer.",
		InputSchema: objectSchema(map[string]PropertySchema{
			"id":        stringProp("Seed article ID (PMID)"),
			"depth":     intProp("Expansion depth, 1-3", 1),
			"direction": enumProp("Which edges to follow", "citing", "references", "both"),
			"format":    enumProp("Graph serialization", "cytoscape", "g6", "d3", "vis", "graphml", "mermaid"),
		}, "id"),
	}, e.handleCitationTree)

	e.registry.Register(Tool{
		Name:        "build_research_timeline",
		Description: "Search a topic, detect research milestones, and arrange them into a chronological timeline with thematic branches and landmark scores.",
		InputSchema: objectSchema(map[string]PropertySchema{
			"topic":   stringProp("Research topic"),
			"filters": stringProp("Comma-separated filters, same keys as unified_search"),
			"limit":   intProp("Articles to consider", 50),
			"tree":    PropertySchema{Type: "boolean", Description: "Include the branch tree", Default: true},
		}, "topic"),
	}, e.handleResearchTimeline)
}

func (e *Executor) handleCitationTree(ctx context.Context, args map[string]any) CallToolResult {
	id := strings.TrimSpace(argString(args, "id"))
	if id == "" {
		return NewValidationError("id is required", "Provide the seed article's PMID.", `{"id": "37654670", "depth": 2}`)
	}

	direction := citegraph.Direction(argString(args, "direction"))
	graph, err := e.deps.Graphs.Build(ctx, id, argInt(args, "depth", 1), direction)
	if err != nil {
		return NewErrorResult(err)
	}

	format := citegraph.Format(argString(args, "format"))
	if format == "" {
		format = citegraph.FormatCytoscape
	}
	rendered, err := citegraph.Render(graph, format)
	if err != nil {
		return NewErrorResult(err)
	}
	if text, ok := rendered.(string); ok {
		return NewTextResult(text)
	}
	return NewJSONResult(rendered)
}

func (e *Executor) handleResearchTimeline(ctx context.Context, args map[string]any) CallToolResult {
	topic := strings.TrimSpace(argString(args, "topic"))
	if topic == "" {
		return NewValidationError("topic is required", "Provide the research topic.", `{"topic": "CAR-T cell therapy"}`)
	}

	filters, warnings := ParseFilters(args["filters"])
	resp, err := e.deps.Search.Search(ctx, search.Request{
		Query:   topic,
		Limit:   argInt(args, "limit", 50),
		Filters: filters,
	})
	if err != nil {
		return NewErrorResult(err)
	}

	if e.deps.Landmarks != nil {
		e.deps.Landmarks.ScoreBatch(resp.Articles)
	}
	tl := e.deps.Timelines.Build(topic, resp.Articles)

	out := map[string]any{"timeline": tl}
	includeTree := true
	if v, ok := args["tree"].(bool); ok {
		includeTree = v
	}
	if includeTree {
		out["tree"] = timeline.BuildTree(tl)
	}
	if landmarks := landmarkArticles(resp); len(landmarks) > 0 {
		out["landmarks"] = landmarks
	}
	if len(warnings) > 0 {
		out["warnings"] = warnings
	}
	return NewJSONResult(out)
}

// landmarkArticles lists the IDs scored at the landmark tier.
func landmarkArticles(resp *search.Response) []string {
	var ids []string
	for _, a := range resp.Articles {
		if a.LandmarkScore != nil && a.LandmarkScore.Tier == "landmark" {
			ids = append(ids, a.ID)
		}
	}
	return ids
}
