package tools

import (
	"context"
	"fmt"
	"strings"

	literrors "github.com/litfuse/litfuse/internal/errors"
	"github.com/litfuse/litfuse/internal/models"
	"github.com/litfuse/litfuse/internal/search"
)

func (e *Executor) registerSearchTools() {
	e.registry.Register(Tool{
		Name:        "unified_search",
		Description: "Search biomedical literature across multiple scholarly indices. Results are deduplicated, ranked and enriched with citation metrics and open-access links.",
		InputSchema: objectSchema(map[string]PropertySchema{
			"query":   stringProp("Free text, a boolean expression, or a bare ID (PMID, DOI, PMC, NCT)"),
			"limit":   intProp("Maximum results", 20),
			"filters": stringProp("Comma-separated filters: year:Y-Y, age:<group>, sex:<f/m>, species:<humans/...>, lang:<english/...>, clinical:<therapy/diagnosis/...>"),
			"options": stringProp("Comma-separated flags: preprints, shallow, all_types, no_oa, no_analysis, no_scores, no_relax"),
			"format":  enumProp("Output format", "markdown", "json"),
			"ranking": enumProp("Ranking profile override", "balanced", "impact", "recency", "quality", "clinical", "comparison"),
		}, "query"),
	}, e.handleUnifiedSearch)

	e.registry.Register(Tool{
		Name:        "analyze_search_query",
		Description: "Classify a query's complexity and intent, resolve biomedical entities, and recommend a provider subset and ranking profile without searching.",
		InputSchema: objectSchema(map[string]PropertySchema{
			"query": stringProp("The query to analyze"),
		}, "query"),
	}, e.handleAnalyzeQuery)

	e.registry.Register(Tool{
		Name:        "find_related_articles",
		Description: "Find articles similar to a given one.",
		InputSchema: objectSchema(map[string]PropertySchema{
			"id":    stringProp("Primary article ID (PMID)"),
			"limit": intProp("Maximum results", 20),
		}, "id"),
	}, e.handleRelated)

	e.registry.Register(Tool{
		Name:        "find_citing_articles",
		Description: "List articles that cite a given one.",
		InputSchema: objectSchema(map[string]PropertySchema{
			"id":    stringProp("Primary article ID (PMID)"),
			"limit": intProp("Maximum results", 20),
		}, "id"),
	}, e.handleCiting)

	e.registry.Register(Tool{
		Name:        "get_article_references",
		Description: "List a given article's reference list.",
		InputSchema: objectSchema(map[string]PropertySchema{
			"id":    stringProp("Primary article ID (PMID)"),
			"limit": intProp("Maximum results", 20),
		}, "id"),
	}, e.handleReferences)

	e.registry.Register(Tool{
		Name:        "get_citation_metrics",
		Description: "Fetch field-normalized citation metrics for a set of articles, optionally filtering to those above impact thresholds.",
		InputSchema: objectSchema(map[string]PropertySchema{
			"ids":           stringProp("Comma-separated PMIDs"),
			"min_rcr":       PropertySchema{Type: "number", Description: "Keep articles with relative citation ratio at or above this"},
			"min_citations": intProp("Keep articles with at least this many citations", 0),
		}, "ids"),
	}, e.handleCitationMetrics)

	e.registry.Register(Tool{
		Name:        "get_fulltext",
		Description: "Resolve the full-text retrieval chain for an article: PMC, open-access locations, then the publisher landing page. Returns extracted text when available.",
		InputSchema: objectSchema(map[string]PropertySchema{
			"id": stringProp("Any article ID: PMID, DOI, PMC"),
		}, "id"),
	}, e.handleFulltext)
}

func (e *Executor) handleUnifiedSearch(ctx context.Context, args map[string]any) CallToolResult {
	q := strings.TrimSpace(argString(args, "query"))
	if q == "" {
		return NewValidationError("query is required",
			"Provide free text or an explicit ID.",
			`{"query": "remimazolam vs propofol for ICU sedation"}`)
	}

	filters, filterWarnings := ParseFilters(args["filters"])
	options, optionWarnings := ParseOptions(args["options"])
	warnings := append(filterWarnings, optionWarnings...)

	resp, err := e.deps.Search.Search(ctx, search.Request{
		Query:   q,
		Limit:   argInt(args, "limit", 20),
		Filters: filters,
		Options: options,
		Profile: models.RankingProfile(argString(args, "ranking")),
	})
	if err != nil {
		return NewErrorResult(err)
	}

	if argString(args, "format") == "json" {
		return NewJSONResult(map[string]any{"response": resp, "warnings": warnings})
	}
	out := RenderMarkdown(resp)
	if len(warnings) > 0 {
		out += "\n_Warnings: " + strings.Join(warnings, "; ") + "_\n"
	}
	return NewTextResult(out)
}

func (e *Executor) handleAnalyzeQuery(ctx context.Context, args map[string]any) CallToolResult {
	q := strings.TrimSpace(argString(args, "query"))
	if q == "" {
		return NewValidationError("query is required", "Provide the query text to analyze.", `{"query": "BRCA1 mechanism in breast cancer"}`)
	}
	analyzed := e.deps.Analyzer.Analyze(ctx, q)
	return NewJSONResult(analyzed)
}

func (e *Executor) handleRelated(ctx context.Context, args map[string]any) CallToolResult {
	return e.lookupList(ctx, args, "Related articles", func(ctx context.Context, id string, limit int) ([]models.UnifiedArticle, error) {
		finder, ok := e.deps.Registry.RelatedFinder(models.ProviderPubMed)
		if !ok {
			return nil, literrors.WrapConfig("find_related_articles", fmt.Errorf("no related-article capability registered"))
		}
		return finder.Related(ctx, id, limit)
	})
}

func (e *Executor) handleCiting(ctx context.Context, args map[string]any) CallToolResult {
	return e.lookupList(ctx, args, "Citing articles", func(ctx context.Context, id string, limit int) ([]models.UnifiedArticle, error) {
		finder, ok := e.deps.Registry.CitingFinder(models.ProviderPubMed)
		if !ok {
			return nil, literrors.WrapConfig("find_citing_articles", fmt.Errorf("no citing-article capability registered"))
		}
		return finder.Citing(ctx, id, limit)
	})
}

func (e *Executor) handleReferences(ctx context.Context, args map[string]any) CallToolResult {
	return e.lookupList(ctx, args, "References", func(ctx context.Context, id string, limit int) ([]models.UnifiedArticle, error) {
		finder, ok := e.deps.Registry.ReferenceFinder(models.ProviderPubMed)
		if !ok {
			return nil, literrors.WrapConfig("get_article_references", fmt.Errorf("no reference-list capability registered"))
		}
		return finder.References(ctx, id, limit)
	})
}

func (e *Executor) lookupList(ctx context.Context, args map[string]any, title string, fetch func(context.Context, string, int) ([]models.UnifiedArticle, error)) CallToolResult {
	id := strings.TrimSpace(argString(args, "id"))
	if id == "" {
		return NewValidationError("id is required", "Provide the article's primary ID.", `{"id": "37654670"}`)
	}
	articles, err := fetch(ctx, id, argInt(args, "limit", 20))
	if err != nil {
		return NewErrorResult(err)
	}
	return NewTextResult(RenderArticleList(fmt.Sprintf("%s for %s", title, id), articles))
}

func (e *Executor) handleCitationMetrics(ctx context.Context, args map[string]any) CallToolResult {
	ids := argStrings(args, "ids")
	if len(ids) == 0 {
		return NewValidationError("ids is required",
			"Provide a comma-separated list of PMIDs.",
			`{"ids": "37654670,36214591"}`)
	}
	if e.deps.Metrics == nil {
		return NewErrorResult(literrors.WrapConfig("get_citation_metrics", fmt.Errorf("no metrics provider configured")))
	}

	metrics, err := e.deps.Metrics.Metrics(ctx, ids)
	if err != nil {
		return NewErrorResult(err)
	}

	minRCR := 0.0
	if v, ok := args["min_rcr"].(float64); ok {
		minRCR = v
	}
	minCitations := argInt(args, "min_citations", 0)

	var passing []string
	for id, m := range metrics {
		if m.RelativeCitation >= minRCR && m.CitationCount >= minCitations {
			passing = append(passing, id)
		}
	}
	return NewJSONResult(map[string]any{
		"metrics":  metrics,
		"filtered": passing,
	})
}

func (e *Executor) handleFulltext(ctx context.Context, args map[string]any) CallToolResult {
	id := strings.TrimSpace(argString(args, "id"))
	if id == "" {
		return NewValidationError("id is required", "Provide a PMID, DOI or PMC ID.", `{"id": "10.1056/nejmoa2034577"}`)
	}

	article := e.resolveArticle(ctx, id)
	if article == nil {
		return NewErrorResult(literrors.WrapNotFound("get_fulltext", "", fmt.Errorf("%s: %w", id, literrors.ErrNotFound)))
	}
	result, err := e.deps.Fulltext.Resolve(ctx, article)
	if err != nil {
		return NewErrorResult(err)
	}
	return NewJSONResult(result)
}

// resolveArticle builds the minimal record the fulltext chain needs from
// a raw identifier, fetching the full record when the ID is a PMID.
func (e *Executor) resolveArticle(ctx context.Context, id string) *models.UnifiedArticle {
	lower := strings.ToLower(id)
	switch {
	case strings.HasPrefix(lower, "10."):
		return &models.UnifiedArticle{ID: "doi:" + lower, DOI: id}
	case strings.HasPrefix(lower, "doi:"):
		doi := strings.TrimPrefix(lower, "doi:")
		return &models.UnifiedArticle{ID: lower, DOI: doi}
	case strings.HasPrefix(strings.ToUpper(id), "PMC"):
		return &models.UnifiedArticle{ID: id, PMCID: strings.ToUpper(id)}
	default:
		if fetcher, ok := e.deps.Registry.Fetcher(models.ProviderPubMed); ok {
			if a, err := fetcher.Fetch(ctx, id); err == nil && a != nil {
				return a
			}
		}
		return nil
	}
}
