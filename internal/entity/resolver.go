// Package entity resolves free-text biomedical terms to canonical entities
// and caches the results. Resolution is the hottest external call in query
// analysis, so lookups are served from an in-memory TTL cache and concurrent
// misses for the same term are coalesced into a single upstream request.
package entity

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/litfuse/litfuse/internal/models"
	"github.com/litfuse/litfuse/internal/providers"
	"github.com/litfuse/litfuse/internal/telemetry"
)

const (
	defaultCandidates = 5
	relationLimit     = 20
)

// Resolver wraps the PubTator adapter with caching.
type Resolver struct {
	annotator *providers.PubTator
	cache     *lru.LRU[string, []models.ResolvedEntity]
	group     singleflight.Group
}

// NewResolver creates a resolver with the given cache size and entry TTL.
func NewResolver(annotator *providers.PubTator, size int, ttl time.Duration) *Resolver {
	if size <= 0 {
		size = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Resolver{
		annotator: annotator,
		cache:     lru.NewLRU[string, []models.ResolvedEntity](size, nil, ttl),
	}
}

// cacheKey normalizes a term so that case and surrounding whitespace do not
// fragment the cache.
func cacheKey(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// Resolve maps a free-text term to candidate entities, best match first.
// Results are cached per normalized term; concurrent misses share one
// upstream call.
func (r *Resolver) Resolve(ctx context.Context, term string) ([]models.ResolvedEntity, error) {
	key := cacheKey(term)
	if key == "" {
		return nil, nil
	}

	if cached, ok := r.cache.Get(key); ok {
		telemetry.CacheEvents.WithLabelValues("hit").Inc()
		return cached, nil
	}
	telemetry.CacheEvents.WithLabelValues("miss").Inc()

	v, err, _ := r.group.Do(key, func() (any, error) {
		// Re-check under the flight: another goroutine may have populated
		// the cache while this one waited for the group lock.
		if cached, ok := r.cache.Get(key); ok {
			return cached, nil
		}
		entities, err := r.annotator.Autocomplete(ctx, key, defaultCandidates)
		if err != nil {
			return nil, err
		}
		r.cache.Add(key, entities)
		return entities, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.ResolvedEntity), nil
}

// Best returns the top-scoring entity for the term, or nil when the term
// does not resolve.
func (r *Resolver) Best(ctx context.Context, term string) (*models.ResolvedEntity, error) {
	entities, err := r.Resolve(ctx, term)
	if err != nil || len(entities) == 0 {
		return nil, err
	}
	best := entities[0]
	for _, e := range entities[1:] {
		if e.Score > best.Score {
			best = e
		}
	}
	return &best, nil
}

// Relations lists typed relations from a resolved entity. Relation queries
// are not cached; they are rare and their result set changes with the type
// argument.
func (r *Resolver) Relations(ctx context.Context, entityID, relationType string) ([]providers.Relation, error) {
	return r.annotator.Relations(ctx, entityID, relationType, relationLimit)
}

// Annotations returns the entities annotated in a document, cached by PMID.
func (r *Resolver) Annotations(ctx context.Context, pmid string) ([]models.ResolvedEntity, error) {
	key := "pmid:" + cacheKey(pmid)
	if cached, ok := r.cache.Get(key); ok {
		telemetry.CacheEvents.WithLabelValues("hit").Inc()
		return cached, nil
	}
	telemetry.CacheEvents.WithLabelValues("miss").Inc()

	v, err, _ := r.group.Do(key, func() (any, error) {
		if cached, ok := r.cache.Get(key); ok {
			return cached, nil
		}
		entities, err := r.annotator.Annotations(ctx, pmid)
		if err != nil {
			return nil, err
		}
		r.cache.Add(key, entities)
		return entities, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.ResolvedEntity), nil
}

// Purge clears the cache.
func (r *Resolver) Purge() {
	r.cache.Purge()
}
