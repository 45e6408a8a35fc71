// Package citegraph builds citation trees around a seed article and
// renders them for common graph consumers.
package citegraph

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	literrors "github.com/litfuse/litfuse/internal/errors"
	"github.com/litfuse/litfuse/internal/models"
	"github.com/litfuse/litfuse/internal/providers"
)

// Direction selects which citation edges to follow.
type Direction string

const (
	DirectionCiting     Direction = "citing"     // who cites the seed
	DirectionReferences Direction = "references" // what the seed cites
	DirectionBoth       Direction = "both"
)

const (
	maxDepth      = 3
	perNodeFanout = 10
	maxTotalNodes = 200
)

// Node is one article in the citation graph.
type Node struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Year    int    `json:"year,omitempty"`
	Depth   int    `json:"depth"`
	Seed    bool   `json:"seed,omitempty"`
	Cites   int    `json:"citation_count,omitempty"`
	Journal string `json:"journal,omitempty"`
}

// Edge is a directed citation: Source cites Target.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is the builder output.
type Graph struct {
	Seed  string `json:"seed"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Builder expands citation trees through the adapter registry.
type Builder struct {
	registry *providers.Registry
	source   models.ProviderKey
}

// NewBuilder creates a builder that expands through the given provider.
func NewBuilder(registry *providers.Registry, source models.ProviderKey) *Builder {
	if source == "" {
		source = models.ProviderPubMed
	}
	return &Builder{registry: registry, source: source}
}

// Build runs a breadth-first expansion from the seed up to depth levels.
// Fan-out is capped per node and the graph is capped in total size;
// provider failures prune the affected subtree but do not fail the build.
func (b *Builder) Build(ctx context.Context, seedID string, depth int, direction Direction) (*Graph, error) {
	if depth <= 0 {
		depth = 1
	}
	if depth > maxDepth {
		depth = maxDepth
	}
	if direction == "" {
		direction = DirectionCiting
	}

	seed, err := b.fetchSeed(ctx, seedID)
	if err != nil {
		return nil, err
	}

	graph := &Graph{Seed: seed.ID}
	seen := map[string]bool{seed.ID: true}
	graph.Nodes = append(graph.Nodes, nodeFrom(seed, 0, true))

	frontier := []models.UnifiedArticle{*seed}
	for level := 1; level <= depth && len(frontier) > 0; level++ {
		var next []models.UnifiedArticle
		for _, parent := range frontier {
			if len(graph.Nodes) >= maxTotalNodes {
				break
			}
			if direction == DirectionCiting || direction == DirectionBoth {
				children := b.expand(ctx, parent.ID, true)
				next = append(next, b.attach(graph, seen, parent.ID, children, level, true)...)
			}
			if direction == DirectionReferences || direction == DirectionBoth {
				children := b.expand(ctx, parent.ID, false)
				next = append(next, b.attach(graph, seen, parent.ID, children, level, false)...)
			}
		}
		frontier = next
	}
	return graph, nil
}

func (b *Builder) fetchSeed(ctx context.Context, id string) (*models.UnifiedArticle, error) {
	fetcher, ok := b.registry.Fetcher(b.source)
	if !ok {
		return nil, literrors.WrapConfig("citation_tree",
			fmt.Errorf("provider %s cannot fetch records", b.source))
	}
	seed, err := fetcher.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if seed == nil {
		return nil, literrors.WrapNotFound("citation_tree", string(b.source), literrors.ErrNotFound)
	}
	return seed, nil
}

// expand lists citing articles (citing=true) or references of id.
func (b *Builder) expand(ctx context.Context, id string, citing bool) []models.UnifiedArticle {
	var (
		articles []models.UnifiedArticle
		err      error
	)
	if citing {
		finder, ok := b.registry.CitingFinder(b.source)
		if !ok {
			return nil
		}
		articles, err = finder.Citing(ctx, id, perNodeFanout)
	} else {
		finder, ok := b.registry.ReferenceFinder(b.source)
		if !ok {
			return nil
		}
		articles, err = finder.References(ctx, id, perNodeFanout)
	}
	if err != nil {
		log.Debug().Str("id", id).Bool("citing", citing).Err(err).Msg("Citation expansion failed")
		return nil
	}
	return articles
}

// attach adds children to the graph. Edge direction always runs from the
// citing article to the cited one.
func (b *Builder) attach(graph *Graph, seen map[string]bool, parentID string, children []models.UnifiedArticle, level int, citing bool) []models.UnifiedArticle {
	var added []models.UnifiedArticle
	for i := range children {
		child := &children[i]
		if child.ID == "" || len(graph.Nodes) >= maxTotalNodes {
			continue
		}
		if !seen[child.ID] {
			seen[child.ID] = true
			graph.Nodes = append(graph.Nodes, nodeFrom(child, level, false))
			added = append(added, *child)
		}
		if citing {
			graph.Edges = append(graph.Edges, Edge{Source: child.ID, Target: parentID})
		} else {
			graph.Edges = append(graph.Edges, Edge{Source: parentID, Target: child.ID})
		}
	}
	return added
}

func nodeFrom(a *models.UnifiedArticle, depth int, seed bool) Node {
	n := Node{
		ID:      a.ID,
		Title:   a.Title,
		Year:    a.Year,
		Depth:   depth,
		Seed:    seed,
		Journal: a.Journal,
	}
	if a.Citations != nil {
		n.Cites = a.Citations.CitationCount
	}
	return n
}
