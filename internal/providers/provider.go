// Package providers contains the capability adapters for each external
// scholarly data source. Adapters are leaves: they normalize raw provider
// responses into models.UnifiedArticle and know nothing of each other.
// Every external call goes through the shared requester, which applies
// rate limiting, circuit breaking and retries.
package providers

import (
	"context"

	"github.com/litfuse/litfuse/internal/models"
)

// SearchResult is the normalized output of one provider search.
type SearchResult struct {
	Articles   []models.UnifiedArticle
	TotalCount int  // upstream total when reported
	HasTotal   bool // false when the provider does not report totals
}

// Adapter is the minimum contract every provider implements.
type Adapter interface {
	Key() models.ProviderKey
	Search(ctx context.Context, query string, limit int, filters models.SearchFilters) (SearchResult, error)
}

// Optional capability interfaces. Callers check for these before use.

// Fetcher looks up a single record by provider-native ID.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (*models.UnifiedArticle, error)
}

// RelatedFinder returns records similar to the given one.
type RelatedFinder interface {
	Related(ctx context.Context, id string, limit int) ([]models.UnifiedArticle, error)
}

// CitingFinder returns records that cite the given one.
type CitingFinder interface {
	Citing(ctx context.Context, id string, limit int) ([]models.UnifiedArticle, error)
}

// ReferenceFinder returns the given record's reference list.
type ReferenceFinder interface {
	References(ctx context.Context, id string, limit int) ([]models.UnifiedArticle, error)
}

// MetricsProvider returns citation metrics for a batch of IDs.
type MetricsProvider interface {
	Metrics(ctx context.Context, ids []string) (map[string]models.CitationMetrics, error)
}

// Registry holds the configured adapters by provider key.
type Registry struct {
	adapters map[models.ProviderKey]Adapter
	order    []models.ProviderKey
}

// NewAdapterRegistry creates an empty adapter registry.
func NewAdapterRegistry() *Registry {
	return &Registry{adapters: make(map[models.ProviderKey]Adapter)}
}

// Register adds an adapter. Later registrations replace earlier ones.
func (r *Registry) Register(a Adapter) {
	if _, exists := r.adapters[a.Key()]; !exists {
		r.order = append(r.order, a.Key())
	}
	r.adapters[a.Key()] = a
}

// Get returns the adapter for key, or nil.
func (r *Registry) Get(key models.ProviderKey) Adapter {
	return r.adapters[key]
}

// Keys returns registered provider keys in registration order.
func (r *Registry) Keys() []models.ProviderKey {
	out := make([]models.ProviderKey, len(r.order))
	copy(out, r.order)
	return out
}

// Fetcher returns the adapter for key as a Fetcher, when it has that
// capability.
func (r *Registry) Fetcher(key models.ProviderKey) (Fetcher, bool) {
	f, ok := r.adapters[key].(Fetcher)
	return f, ok
}

// RelatedFinder returns the adapter for key as a RelatedFinder.
func (r *Registry) RelatedFinder(key models.ProviderKey) (RelatedFinder, bool) {
	f, ok := r.adapters[key].(RelatedFinder)
	return f, ok
}

// CitingFinder returns the adapter for key as a CitingFinder.
func (r *Registry) CitingFinder(key models.ProviderKey) (CitingFinder, bool) {
	f, ok := r.adapters[key].(CitingFinder)
	return f, ok
}

// ReferenceFinder returns the adapter for key as a ReferenceFinder.
func (r *Registry) ReferenceFinder(key models.ProviderKey) (ReferenceFinder, bool) {
	f, ok := r.adapters[key].(ReferenceFinder)
	return f, ok
}

// MetricsProvider returns the adapter for key as a MetricsProvider.
func (r *Registry) MetricsProvider(key models.ProviderKey) (MetricsProvider, bool) {
	f, ok := r.adapters[key].(MetricsProvider)
	return f, ok
}
