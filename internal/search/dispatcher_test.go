package search

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	literrors "github.com/litfuse/litfuse/internal/errors"
	"github.com/litfuse/litfuse/internal/models"
	"github.com/litfuse/litfuse/internal/providers"
)

// fakeAdapter is a scriptable in-memory provider.
type fakeAdapter struct {
	key      models.ProviderKey
	articles []models.UnifiedArticle
	total    int
	err      error
	delay    time.Duration
	calls    atomic.Int32
	lastQ    atomic.Value
}

func (f *fakeAdapter) Key() models.ProviderKey { return f.key }

func (f *fakeAdapter) Search(ctx context.Context, query string, limit int, filters models.SearchFilters) (providers.SearchResult, error) {
	f.calls.Add(1)
	f.lastQ.Store(query)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return providers.SearchResult{}, literrors.WrapCancelled("search", ctx.Err())
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return providers.SearchResult{}, f.err
	}
	total := f.total
	if total == 0 {
		total = len(f.articles)
	}
	return providers.SearchResult{Articles: f.articles, TotalCount: total, HasTotal: true}, nil
}

func fakeRegistry(adapters ...*fakeAdapter) *providers.Registry {
	r := providers.NewAdapterRegistry()
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func TestDispatchCollectsAllProviders(t *testing.T) {
	pm := &fakeAdapter{key: models.ProviderPubMed, articles: []models.UnifiedArticle{
		{ID: "1", Title: "one"}, {ID: "2", Title: "two"},
	}, total: 240}
	ep := &fakeAdapter{key: models.ProviderEuropePMC, articles: []models.UnifiedArticle{
		{ID: "3", Title: "three"},
	}}

	d := NewDispatcher(fakeRegistry(pm, ep), time.Second, 5*time.Second)
	result, err := d.Dispatch(context.Background(), []models.ProviderKey{pm.key, ep.key}, "sepsis", 20, models.SearchFilters{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalRecords())
	assert.Len(t, result.Outcomes, 2)
	assert.Empty(t, result.Failed())

	for _, o := range result.Outcomes {
		if o.Provider == models.ProviderPubMed {
			assert.Equal(t, 2, o.Returned)
			assert.Equal(t, 240, o.Total)
			assert.True(t, o.HasTotal)
		}
	}
}

func TestDispatchPartialSuccess(t *testing.T) {
	pm := &fakeAdapter{key: models.ProviderPubMed, articles: []models.UnifiedArticle{{ID: "1"}}}
	down := &fakeAdapter{key: models.ProviderOpenAlex, err: errors.New("upstream exploded")}

	d := NewDispatcher(fakeRegistry(pm, down), time.Second, 5*time.Second)
	result, err := d.Dispatch(context.Background(), []models.ProviderKey{pm.key, down.key}, "q", 20, models.SearchFilters{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalRecords())
	assert.Equal(t, []models.ProviderKey{models.ProviderOpenAlex}, result.Failed())
	assert.NotContains(t, result.Records, models.ProviderOpenAlex)
}

func TestDispatchProviderTimeoutDoesNotFailOthers(t *testing.T) {
	fast := &fakeAdapter{key: models.ProviderPubMed, articles: []models.UnifiedArticle{{ID: "1"}}}
	slow := &fakeAdapter{key: models.ProviderSemanticScholar, delay: 500 * time.Millisecond,
		articles: []models.UnifiedArticle{{ID: "2"}}}

	d := NewDispatcher(fakeRegistry(fast, slow), 50*time.Millisecond, 5*time.Second)
	result, err := d.Dispatch(context.Background(), []models.ProviderKey{fast.key, slow.key}, "q", 20, models.SearchFilters{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalRecords())
	assert.Equal(t, []models.ProviderKey{models.ProviderSemanticScholar}, result.Failed())
}

func TestDispatchGlobalDeadlineReturnsPartials(t *testing.T) {
	fast := &fakeAdapter{key: models.ProviderPubMed, articles: []models.UnifiedArticle{{ID: "1"}}}
	slow := &fakeAdapter{key: models.ProviderOpenAlex, delay: time.Second,
		articles: []models.UnifiedArticle{{ID: "2"}}}

	d := NewDispatcher(fakeRegistry(fast, slow), 10*time.Second, 100*time.Millisecond)
	result, err := d.Dispatch(context.Background(), []models.ProviderKey{fast.key, slow.key}, "q", 20, models.SearchFilters{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalRecords())
	assert.Contains(t, result.Records, models.ProviderPubMed)
}

func TestDispatchExplicitCancelDiscardsPartials(t *testing.T) {
	fast := &fakeAdapter{key: models.ProviderPubMed, articles: []models.UnifiedArticle{{ID: "1"}}}
	slow := &fakeAdapter{key: models.ProviderOpenAlex, delay: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	d := NewDispatcher(fakeRegistry(fast, slow), 10*time.Second, 30*time.Second)
	result, err := d.Dispatch(ctx, []models.ProviderKey{fast.key, slow.key}, "q", 20, models.SearchFilters{})
	require.Error(t, err)
	assert.ErrorIs(t, err, literrors.ErrCancelled)
	assert.Nil(t, result)
}

func TestDispatchSkipsUnregisteredProviders(t *testing.T) {
	pm := &fakeAdapter{key: models.ProviderPubMed, articles: []models.UnifiedArticle{{ID: "1"}}}

	d := NewDispatcher(fakeRegistry(pm), time.Second, 5*time.Second)
	result, err := d.Dispatch(context.Background(),
		[]models.ProviderKey{pm.key, models.ProviderCrossref}, "q", 20, models.SearchFilters{})
	require.NoError(t, err)

	assert.Len(t, result.Outcomes, 1)
	assert.Equal(t, 1, result.TotalRecords())
}
