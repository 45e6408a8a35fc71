package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/litfuse/litfuse/internal/enrich"
	literrors "github.com/litfuse/litfuse/internal/errors"
	"github.com/litfuse/litfuse/internal/models"
	"github.com/litfuse/litfuse/internal/providers"
	"github.com/litfuse/litfuse/internal/query"
	"github.com/litfuse/litfuse/internal/search"
	"github.com/litfuse/litfuse/internal/telemetry"
)

// Deps are the services the action handlers run on.
type Deps struct {
	Search   *search.Service
	Enhancer *query.Enhancer
	Analyzer *query.Analyzer
	Registry *providers.Registry
	Enricher *enrich.Enricher
}

// Executor runs validated pipeline configs.
type Executor struct {
	deps       Deps
	aggregator *search.Aggregator
	entropy    *ulid.MonotonicEntropy
	mu         sync.Mutex
}

// NewExecutor creates the pipeline executor.
func NewExecutor(deps Deps) *Executor {
	return &Executor{
		deps:       deps,
		aggregator: search.NewAggregator(),
		entropy:    ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (e *Executor) newRunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), e.entropy).String()
}

// Execute runs the config's steps in order. The config must have passed
// Validate; inputs always reference earlier steps, so config order is a
// topological order.
func (e *Executor) Execute(ctx context.Context, cfg Config) (*Run, error) {
	expanded, err := ExpandTemplate(cfg)
	if err != nil {
		return nil, err
	}
	cfg = expanded

	run := &Run{
		ID:         e.newRunID(),
		ConfigHash: cfg.Hash(),
		Name:       cfg.Name,
		StartedAt:  time.Now(),
	}
	results := make(map[string]*StepResult, len(cfg.Steps))

	for _, step := range cfg.Steps {
		if err := ctx.Err(); err != nil {
			return run, literrors.WrapCancelled("pipeline", err)
		}

		inputs := collectInputs(step.Inputs, results)
		start := time.Now()
		result := e.runStep(ctx, cfg, step, inputs)
		result.Duration = time.Since(start)
		result.InCount = countArticles(inputs)
		result.OutCount = len(result.Articles)
		telemetry.PipelineSteps.WithLabelValues(string(step.Action)).Observe(result.Duration.Seconds())

		results[step.ID] = result
		run.Steps = append(run.Steps, *result)

		if result.Err != "" {
			log.Warn().Str("step", step.ID).Str("action", string(step.Action)).
				Str("error", result.Err).Msg("Pipeline step failed")
			if step.OnError == OnErrorAbort {
				run.Aborted = true
				run.AbortStep = step.ID
				break
			}
		}
	}

	run.Output = e.finalOutput(cfg, run, results)
	run.Duration = time.Since(run.StartedAt)
	log.Info().Str("run", run.ID).Str("hash", run.ConfigHash).Int("steps", len(run.Steps)).
		Bool("aborted", run.Aborted).Dur("duration", run.Duration).Msg("Pipeline completed")
	return run, nil
}

// finalOutput merges the sink steps (steps nothing depends on) and applies
// the output limit.
func (e *Executor) finalOutput(cfg Config, run *Run, results map[string]*StepResult) []models.UnifiedArticle {
	consumed := make(map[string]bool)
	for _, step := range cfg.Steps {
		for _, in := range step.Inputs {
			consumed[in] = true
		}
	}

	byProvider := make(map[models.ProviderKey][]models.UnifiedArticle)
	for _, step := range cfg.Steps {
		if consumed[step.ID] {
			continue
		}
		if r := results[step.ID]; r != nil && len(r.Articles) > 0 {
			byProvider[models.ProviderKey("step:"+step.ID)] = r.Articles
		}
	}
	if len(byProvider) == 0 {
		return nil
	}

	profile := cfg.Output.Ranking
	if profile == "" {
		profile = models.ProfileBalanced
	}
	limit := cfg.Output.Limit
	if limit <= 0 {
		limit = 20
	}
	merged, _ := e.aggregator.Aggregate(byProvider, search.AggregateConfig{
		Strategy: search.DedupModerate,
		Profile:  profile,
		Limit:    limit,
	})
	// Synthetic step keys must not leak into provenance.
	for i := range merged {
		merged[i].Provenance = stripStepKeys(merged[i].Provenance)
		if strings.HasPrefix(string(merged[i].PrimarySource), "step:") {
			if len(merged[i].Provenance) > 0 {
				merged[i].PrimarySource = merged[i].Provenance[0]
			}
		}
	}
	return merged
}

func stripStepKeys(keys []models.ProviderKey) []models.ProviderKey {
	out := keys[:0]
	for _, k := range keys {
		if !strings.HasPrefix(string(k), "step:") {
			out = append(out, k)
		}
	}
	return out
}

func (e *Executor) runStep(ctx context.Context, cfg Config, step Step, inputs []*StepResult) *StepResult {
	result := &StepResult{StepID: step.ID, Action: step.Action}

	var err error
	switch step.Action {
	case ActionSearch:
		err = e.doSearch(ctx, step, result)
	case ActionPICO:
		err = e.doPICO(ctx, step, result)
	case ActionExpand:
		err = e.doExpand(ctx, step, inputs, result)
	case ActionDetails:
		err = e.doLookup(ctx, step, inputs, result, lookupDetails)
	case ActionRelated:
		err = e.doLookup(ctx, step, inputs, result, lookupRelated)
	case ActionCiting:
		err = e.doLookup(ctx, step, inputs, result, lookupCiting)
	case ActionReferences:
		err = e.doLookup(ctx, step, inputs, result, lookupReferences)
	case ActionMetrics:
		err = e.doMetrics(ctx, inputs, result)
	case ActionMerge:
		err = e.doMerge(cfg, step, inputs, result)
	case ActionFilter:
		err = e.doFilter(step, inputs, result)
	default:
		err = literrors.WrapValidation("pipeline", fmt.Errorf("unknown action %q", step.Action))
	}
	if err != nil {
		result.Err = err.Error()
	}
	for i := range result.Articles {
		result.IDs = append(result.IDs, result.Articles[i].ID)
	}
	return result
}

func (e *Executor) doSearch(ctx context.Context, step Step, result *StepResult) error {
	req := search.Request{
		Query:   paramString(step.Params, "query"),
		Limit:   paramInt(step.Params, "limit", 20),
		Filters: filtersFromParams(step.Params),
	}
	if req.Query == "" {
		return literrors.WrapValidation("pipeline", fmt.Errorf("search step %s has no query", step.ID))
	}
	resp, err := e.deps.Search.Search(ctx, req)
	if err != nil {
		return err
	}
	result.Articles = resp.Articles
	result.Metadata = map[string]any{"stats": resp.Stats, "relaxed": resp.Relaxed}
	return nil
}

// doPICO runs the P/I/C/O fragment searches concurrently and fuses the
// rank lists with RRF.
func (e *Executor) doPICO(ctx context.Context, step Step, result *StepResult) error {
	fragments := []string{"P", "I", "C", "O"}
	lists := make([][]models.UnifiedArticle, len(fragments))
	var wg sync.WaitGroup
	for i, f := range fragments {
		term := paramString(step.Params, f)
		if term == "" {
			continue
		}
		wg.Add(1)
		go func(slot int, q string) {
			defer wg.Done()
			resp, err := e.deps.Search.Search(ctx, search.Request{Query: q, Limit: paramInt(step.Params, "limit", 20)})
			if err != nil {
				log.Debug().Str("fragment", q).Err(err).Msg("PICO fragment search failed")
				return
			}
			lists[slot] = resp.Articles
		}(i, term)
	}
	wg.Wait()

	result.Articles = search.FuseRRF(lists)
	return nil
}

func (e *Executor) doExpand(ctx context.Context, step Step, inputs []*StepResult, result *StepResult) error {
	q := paramString(step.Params, "query")
	if q == "" && len(inputs) > 0 {
		q = strings.Join(inputs[0].IDs, " ")
	}
	analyzed := e.deps.Analyzer.Analyze(ctx, q)
	enhanced := e.deps.Enhancer.Enhance(ctx, analyzed)

	terms := make([]string, 0, len(enhanced.Expansions))
	for _, x := range enhanced.Expansions {
		terms = append(terms, x.Term)
	}
	result.Metadata = map[string]any{
		"expansions":       terms,
		"provider_queries": enhanced.ProviderQueries,
	}
	return nil
}

type lookupKind int

const (
	lookupDetails lookupKind = iota
	lookupRelated
	lookupCiting
	lookupReferences
)

// doLookup resolves per-record capability calls. IDs come from the "ids"
// param or from upstream step outputs.
func (e *Executor) doLookup(ctx context.Context, step Step, inputs []*StepResult, result *StepResult, kind lookupKind) error {
	ids := paramIDs(step.Params)
	if len(ids) == 0 {
		for _, in := range inputs {
			ids = append(ids, in.IDs...)
		}
	}
	if len(ids) == 0 {
		return literrors.WrapValidation("pipeline", fmt.Errorf("step %s has no input ids", step.ID))
	}
	limit := paramInt(step.Params, "limit", 20)
	source := models.ProviderKey(paramString(step.Params, "provider"))
	if source == "" {
		source = models.ProviderPubMed
	}

	for _, id := range ids {
		var (
			articles []models.UnifiedArticle
			err      error
		)
		switch kind {
		case lookupDetails:
			fetcher, ok := e.deps.Registry.Fetcher(source)
			if !ok {
				return literrors.WrapValidation("pipeline", fmt.Errorf("provider %s cannot fetch", source))
			}
			var a *models.UnifiedArticle
			a, err = fetcher.Fetch(ctx, id)
			if a != nil {
				articles = []models.UnifiedArticle{*a}
			}
		case lookupRelated:
			finder, ok := e.deps.Registry.RelatedFinder(source)
			if !ok {
				return literrors.WrapValidation("pipeline", fmt.Errorf("provider %s has no related capability", source))
			}
			articles, err = finder.Related(ctx, id, limit)
		case lookupCiting:
			finder, ok := e.deps.Registry.CitingFinder(source)
			if !ok {
				return literrors.WrapValidation("pipeline", fmt.Errorf("provider %s has no citing capability", source))
			}
			articles, err = finder.Citing(ctx, id, limit)
		case lookupReferences:
			finder, ok := e.deps.Registry.ReferenceFinder(source)
			if !ok {
				return literrors.WrapValidation("pipeline", fmt.Errorf("provider %s has no references capability", source))
			}
			articles, err = finder.References(ctx, id, limit)
		}
		if err != nil {
			if literrors.IsNotFound(err) {
				continue
			}
			return err
		}
		result.Articles = append(result.Articles, articles...)
	}
	return nil
}

func (e *Executor) doMetrics(ctx context.Context, inputs []*StepResult, result *StepResult) error {
	for _, in := range inputs {
		result.Articles = append(result.Articles, in.Articles...)
	}
	if e.deps.Enricher != nil {
		e.deps.Enricher.Enrich(ctx, result.Articles, enrich.Options{SkipOA: true})
	}
	return nil
}

func (e *Executor) doMerge(cfg Config, step Step, inputs []*StepResult, result *StepResult) error {
	if paramString(step.Params, "fusion") == "rrf" {
		lists := make([][]models.UnifiedArticle, 0, len(inputs))
		for _, in := range inputs {
			lists = append(lists, in.Articles)
		}
		result.Articles = search.FuseRRF(lists)
		return nil
	}

	byStep := make(map[models.ProviderKey][]models.UnifiedArticle, len(inputs))
	for _, in := range inputs {
		byStep[models.ProviderKey("step:"+in.StepID)] = in.Articles
	}
	profile := cfg.Output.Ranking
	if p := paramString(step.Params, "ranking"); p != "" {
		profile = models.RankingProfile(p)
	}
	merged, stats := e.aggregator.Aggregate(byStep, search.AggregateConfig{
		Strategy: search.DedupModerate,
		Profile:  profile,
		Limit:    paramInt(step.Params, "limit", 0),
	})
	for i := range merged {
		merged[i].Provenance = stripStepKeys(merged[i].Provenance)
		if strings.HasPrefix(string(merged[i].PrimarySource), "step:") && len(merged[i].Provenance) > 0 {
			merged[i].PrimarySource = merged[i].Provenance[0]
		}
	}
	result.Articles = merged
	result.Metadata = map[string]any{"stats": stats}
	return nil
}

func (e *Executor) doFilter(step Step, inputs []*StepResult, result *StepResult) error {
	yearFrom := paramInt(step.Params, "year_from", 0)
	yearTo := paramInt(step.Params, "year_to", 0)
	minCitations := paramInt(step.Params, "min_citations", 0)
	language := strings.ToLower(paramString(step.Params, "language"))
	types := paramStrings(step.Params, "article_types")

	for _, in := range inputs {
		for _, a := range in.Articles {
			if yearFrom > 0 && (a.Year == 0 || a.Year < yearFrom) {
				continue
			}
			if yearTo > 0 && (a.Year == 0 || a.Year > yearTo) {
				continue
			}
			if minCitations > 0 && (a.Citations == nil || a.Citations.CitationCount < minCitations) {
				continue
			}
			if language != "" && !strings.EqualFold(a.Language, language) {
				continue
			}
			if len(types) > 0 && !hasAnyType(&a, types) {
				continue
			}
			result.Articles = append(result.Articles, a)
		}
	}
	return nil
}

func hasAnyType(a *models.UnifiedArticle, wanted []string) bool {
	for _, t := range a.ArticleTypes {
		for _, w := range wanted {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	}
	return false
}

func collectInputs(ids []string, results map[string]*StepResult) []*StepResult {
	out := make([]*StepResult, 0, len(ids))
	for _, id := range ids {
		if r, ok := results[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

func countArticles(inputs []*StepResult) int {
	n := 0
	for _, in := range inputs {
		n += len(in.Articles)
	}
	return n
}

// Param helpers tolerate the loose typing YAML and JSON produce.

func paramString(params map[string]any, key string) string {
	if v, ok := params[key]; ok {
		switch t := v.(type) {
		case string:
			return t
		case int:
			return strconv.Itoa(t)
		case float64:
			return strconv.Itoa(int(t))
		}
	}
	return ""
}

func paramInt(params map[string]any, key string, def int) int {
	if v, ok := params[key]; ok {
		switch t := v.(type) {
		case int:
			return t
		case float64:
			return int(t)
		case string:
			if n, err := strconv.Atoi(t); err == nil {
				return n
			}
		}
	}
	return def
}

func paramStrings(params map[string]any, key string) []string {
	v, ok := params[key]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return nil
}

func paramIDs(params map[string]any) []string {
	if ids := paramStrings(params, "ids"); len(ids) > 0 {
		return ids
	}
	if id := paramString(params, "id"); id != "" {
		return []string{id}
	}
	return nil
}

func filtersFromParams(params map[string]any) models.SearchFilters {
	return models.SearchFilters{
		YearFrom:     paramInt(params, "year_from", 0),
		YearTo:       paramInt(params, "year_to", 0),
		AgeGroup:     paramString(params, "age_group"),
		Sex:          paramString(params, "sex"),
		Species:      paramString(params, "species"),
		Language:     paramString(params, "language"),
		ArticleTypes: paramStrings(params, "article_types"),
		MinCitations: paramInt(params, "min_citations", 0),
	}
}
