package search

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/litfuse/litfuse/internal/enrich"
	"github.com/litfuse/litfuse/internal/models"
	"github.com/litfuse/litfuse/internal/query"
)

// Response is the full unified-search output.
type Response struct {
	Query      string                  `json:"query"`
	Analysis   *models.AnalyzedQuery   `json:"analysis,omitempty"`
	Articles   []models.UnifiedArticle `json:"articles"`
	Stats      AggregationStats        `json:"stats"`
	Outcomes   []ProviderOutcome       `json:"provider_outcomes"`
	Relaxed    bool                    `json:"relaxed,omitempty"`
	RelaxTrail []RelaxStep             `json:"relaxation_trail,omitempty"`
	Degraded   []models.ProviderKey    `json:"degraded_providers,omitempty"`
	Duration   time.Duration           `json:"duration"`
}

// Request is one unified-search invocation.
type Request struct {
	Query   string
	Limit   int
	Filters models.SearchFilters
	Options models.SearchOptions
	Profile models.RankingProfile // overrides the analyzer recommendation when set
}

// Service orchestrates the full search pipeline: analyze, dispatch,
// aggregate, relax, enrich.
type Service struct {
	analyzer   *query.Analyzer
	dispatcher *Dispatcher
	aggregator *Aggregator
	relaxer    *Relaxer
	enricher   *enrich.Enricher
	strategy   DedupStrategy
}

// NewService wires the pipeline stages together.
func NewService(analyzer *query.Analyzer, dispatcher *Dispatcher, relaxer *Relaxer, enricher *enrich.Enricher, strategy DedupStrategy) *Service {
	if strategy == "" {
		strategy = DedupModerate
	}
	return &Service{
		analyzer:   analyzer,
		dispatcher: dispatcher,
		aggregator: NewAggregator(),
		relaxer:    relaxer,
		enricher:   enricher,
		strategy:   strategy,
	}
}

// Search runs the unified search. Provider failures degrade the response;
// only cancellation fails it.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	if req.Limit <= 0 {
		req.Limit = 20
	}

	analyzed := s.analyzer.Analyze(ctx, req.Query)
	providers := analyzed.Providers
	if req.Options.Preprints {
		providers = append(providers, models.ProviderBioRxiv)
	}
	profile := analyzed.Profile
	if req.Profile != "" {
		profile = req.Profile
	}

	dispatched, err := s.dispatcher.Dispatch(ctx, providers, analyzed.Normalized, req.Limit, req.Filters)
	if err != nil {
		return nil, err
	}

	resp := &Response{Query: req.Query, Outcomes: dispatched.Outcomes}
	if !req.Options.NoAnalysis {
		resp.Analysis = &analyzed
	}

	// Relaxation replays the dispatch with broadened queries when the
	// initial pass comes back too thin.
	if dispatched.TotalRecords() < s.relaxer.minimum && !req.Options.NoRelax {
		relaxed, trail, rerr := s.relaxer.Relax(ctx, providers, analyzed.Normalized, req.Limit, req.Filters, analyzed.Entities)
		if rerr != nil {
			return nil, rerr
		}
		resp.RelaxTrail = trail
		if relaxed != nil && relaxed.TotalRecords() > dispatched.TotalRecords() {
			resp.Relaxed = true
			dispatched = relaxed
		}
	}

	articles, stats := s.aggregator.Aggregate(dispatched.Records, AggregateConfig{
		Strategy:  s.strategy,
		Profile:   profile,
		Query:     analyzed.Normalized,
		Entities:  analyzed.Entities,
		Limit:     req.Limit,
		Diversify: analyzed.Intent == models.IntentExploration,
	})

	if !req.Options.Shallow && s.enricher != nil {
		s.enricher.Enrich(ctx, articles, enrich.Options{SkipOA: req.Options.NoOA})
	}
	if req.Options.NoScores {
		for i := range articles {
			articles[i].Similarity = nil
		}
	}
	if !req.Options.AllTypes {
		articles = filterPeerReviewed(articles, req.Options.Preprints)
	}

	resp.Articles = articles
	resp.Stats = stats
	resp.Degraded = dispatched.Failed()
	resp.Duration = time.Since(start)

	log.Info().Str("query", req.Query).Int("results", len(articles)).
		Int("input", stats.TotalInput).Bool("relaxed", resp.Relaxed).
		Dur("duration", resp.Duration).Msg("Unified search completed")
	return resp, nil
}

// filterPeerReviewed drops preprints unless the caller opted in.
func filterPeerReviewed(articles []models.UnifiedArticle, allowPreprints bool) []models.UnifiedArticle {
	if allowPreprints {
		return articles
	}
	out := articles[:0]
	for _, a := range articles {
		if !a.IsPreprint {
			out = append(out, a)
		}
	}
	return out
}
