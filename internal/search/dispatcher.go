// Package search implements the fan-out/fan-in core: concurrent dispatch
// across provider adapters, union-find deduplication, multi-signal ranking
// and progressive query relaxation.
package search

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	literrors "github.com/litfuse/litfuse/internal/errors"
	"github.com/litfuse/litfuse/internal/models"
	"github.com/litfuse/litfuse/internal/providers"
)

// ProviderOutcome records how one provider fared during a dispatch.
type ProviderOutcome struct {
	Provider models.ProviderKey `json:"provider"`
	Returned int                `json:"returned"`
	Total    int                `json:"total,omitempty"`
	HasTotal bool               `json:"has_total"`
	Duration time.Duration      `json:"duration"`
	Err      string             `json:"error,omitempty"`
}

// DispatchResult is the raw fan-in: per-provider record lists plus outcomes.
type DispatchResult struct {
	Records  map[models.ProviderKey][]models.UnifiedArticle
	Outcomes []ProviderOutcome
}

// Failed lists providers that returned an error.
func (d *DispatchResult) Failed() []models.ProviderKey {
	var failed []models.ProviderKey
	for _, o := range d.Outcomes {
		if o.Err != "" {
			failed = append(failed, o.Provider)
		}
	}
	return failed
}

// TotalRecords counts records across all providers.
func (d *DispatchResult) TotalRecords() int {
	n := 0
	for _, records := range d.Records {
		n += len(records)
	}
	return n
}

// Dispatcher fans a query out to a provider subset. One goroutine per
// provider; a provider failure never fails the dispatch.
type Dispatcher struct {
	registry        *providers.Registry
	providerTimeout time.Duration
	globalTimeout   time.Duration
}

// NewDispatcher creates a dispatcher over the adapter registry.
func NewDispatcher(registry *providers.Registry, providerTimeout, globalTimeout time.Duration) *Dispatcher {
	if providerTimeout <= 0 {
		providerTimeout = 10 * time.Second
	}
	if globalTimeout <= 0 {
		globalTimeout = 30 * time.Second
	}
	return &Dispatcher{
		registry:        registry,
		providerTimeout: providerTimeout,
		globalTimeout:   globalTimeout,
	}
}

// Dispatch runs the query against each listed provider concurrently and
// collects whatever completed before the global deadline. Only a request
// cancellation is returned as an error; provider failures land in the
// outcomes.
func (d *Dispatcher) Dispatch(ctx context.Context, keys []models.ProviderKey, query string, limit int, filters models.SearchFilters) (*DispatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.globalTimeout)
	defer cancel()

	result := &DispatchResult{Records: make(map[models.ProviderKey][]models.UnifiedArticle)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		key := key
		adapter := d.registry.Get(key)
		if adapter == nil {
			log.Warn().Str("provider", string(key)).Msg("Provider not registered, skipping")
			continue
		}
		g.Go(func() error {
			pctx, pcancel := context.WithTimeout(gctx, d.providerTimeout)
			defer pcancel()

			start := time.Now()
			searched, err := adapter.Search(pctx, query, limit, filters)
			outcome := ProviderOutcome{
				Provider: key,
				Returned: len(searched.Articles),
				Total:    searched.TotalCount,
				HasTotal: searched.HasTotal,
				Duration: time.Since(start),
			}
			if err != nil {
				outcome.Err = err.Error()
				log.Debug().Str("provider", string(key)).Err(err).Msg("Provider search failed")
			}

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				result.Records[key] = searched.Articles
			}
			result.Outcomes = append(result.Outcomes, outcome)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Full cancellation discards partial results.
	if err := ctx.Err(); err != nil && context.Cause(ctx) == context.Canceled {
		return nil, literrors.WrapCancelled("dispatch", err)
	}
	return result, nil
}
