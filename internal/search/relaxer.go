package search

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/litfuse/litfuse/internal/models"
)

// RelaxStep records one relaxation attempt.
type RelaxStep struct {
	Label   string `json:"label"`
	Query   string `json:"query"`
	Results int    `json:"results"`
}

// Relaxer replays a dispatch with progressively broadened queries until
// a minimum result count is reached or the chain is exhausted. Each step
// is structurally simpler than the previous; the chain never exceeds
// five steps.
type Relaxer struct {
	dispatcher *Dispatcher
	minimum    int
}

// NewRelaxer creates the relaxer. minimum is the result-count threshold
// below which relaxation kicks in.
func NewRelaxer(dispatcher *Dispatcher, minimum int) *Relaxer {
	if minimum <= 0 {
		minimum = 1
	}
	return &Relaxer{dispatcher: dispatcher, minimum: minimum}
}

type relaxation struct {
	label string
	apply func(query string, filters models.SearchFilters, entities []models.ResolvedEntity) (string, models.SearchFilters, bool)
}

var relaxChain = []relaxation{
	{
		label: "drop_date_filter",
		apply: func(q string, f models.SearchFilters, _ []models.ResolvedEntity) (string, models.SearchFilters, bool) {
			if f.YearFrom == 0 && f.YearTo == 0 {
				return q, f, false
			}
			f.YearFrom, f.YearTo = 0, 0
			return q, f, true
		},
	},
	{
		label: "drop_article_type_filter",
		apply: func(q string, f models.SearchFilters, _ []models.ResolvedEntity) (string, models.SearchFilters, bool) {
			if len(f.ArticleTypes) == 0 && f.ClinicalQuery == "" {
				return q, f, false
			}
			f.ArticleTypes = nil
			f.ClinicalQuery = ""
			return q, f, true
		},
	},
	{
		label: "broaden_population_filters",
		apply: func(q string, f models.SearchFilters, _ []models.ResolvedEntity) (string, models.SearchFilters, bool) {
			if f.AgeGroup == "" && f.Sex == "" && f.Species == "" {
				return q, f, false
			}
			f.AgeGroup, f.Sex, f.Species = "", "", ""
			return q, f, true
		},
	},
	{
		label: "and_to_or",
		apply: func(q string, f models.SearchFilters, entities []models.ResolvedEntity) (string, models.SearchFilters, bool) {
			top := topEntities(entities, 2)
			if len(top) == 2 {
				return top[0] + " OR " + top[1], f, true
			}
			if !strings.Contains(strings.ToUpper(q), " AND ") {
				return q, f, false
			}
			parts := splitBoolean(q)
			if len(parts) < 2 {
				return q, f, false
			}
			return parts[0] + " OR " + parts[1], f, true
		},
	},
	{
		label: "single_keyword",
		apply: func(q string, f models.SearchFilters, entities []models.ResolvedEntity) (string, models.SearchFilters, bool) {
			if top := topEntities(entities, 1); len(top) == 1 {
				return top[0], f, true
			}
			tokens := titleTokens(q)
			if len(tokens) == 0 {
				return q, f, false
			}
			// Longest token is the crude salience proxy.
			best := tokens[0]
			for _, t := range tokens[1:] {
				if len(t) > len(best) {
					best = t
				}
			}
			return best, f, true
		},
	},
}

// Relax runs the relaxation chain. Returns the final dispatch result (nil
// when every step was inapplicable) and the trail of attempted steps.
func (r *Relaxer) Relax(ctx context.Context, keys []models.ProviderKey, query string, limit int, filters models.SearchFilters, entities []models.ResolvedEntity) (*DispatchResult, []RelaxStep, error) {
	var trail []RelaxStep
	var last *DispatchResult

	currentQuery, currentFilters := query, filters
	for _, step := range relaxChain {
		nextQuery, nextFilters, applied := step.apply(currentQuery, currentFilters, entities)
		if !applied {
			continue
		}
		currentQuery, currentFilters = nextQuery, nextFilters

		result, err := r.dispatcher.Dispatch(ctx, keys, currentQuery, limit, currentFilters)
		if err != nil {
			return nil, trail, err
		}
		count := result.TotalRecords()
		trail = append(trail, RelaxStep{Label: step.label, Query: currentQuery, Results: count})
		log.Debug().Str("step", step.label).Str("query", currentQuery).Int("results", count).
			Msg("Relaxation step")

		last = result
		if count >= r.minimum {
			break
		}
	}
	return last, trail, nil
}

func topEntities(entities []models.ResolvedEntity, n int) []string {
	if len(entities) == 0 {
		return nil
	}
	sorted := make([]models.ResolvedEntity, len(entities))
	copy(sorted, entities)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if n > len(sorted) {
		n = len(sorted)
	}
	out := make([]string, 0, n)
	for _, e := range sorted[:n] {
		name := e.Name
		if name == "" {
			name = e.Text
		}
		out = append(out, name)
	}
	return out
}

func splitBoolean(q string) []string {
	var parts []string
	for _, p := range strings.Split(strings.ToUpper(q), " AND ") {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
