package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litfuse/litfuse/internal/models"
)

func TestRelaxDropsFiltersFirst(t *testing.T) {
	pm := &fakeAdapter{key: models.ProviderPubMed, articles: []models.UnifiedArticle{{ID: "1"}}}
	d := NewDispatcher(fakeRegistry(pm), time.Second, 5*time.Second)
	r := NewRelaxer(d, 1)

	filters := models.SearchFilters{YearFrom: 2020, YearTo: 2024}
	result, trail, err := r.Relax(context.Background(),
		[]models.ProviderKey{pm.key}, "sepsis", 20, filters, nil)
	require.NoError(t, err)
	require.NotNil(t, result)

	// The first applicable step already satisfies the minimum.
	require.Len(t, trail, 1)
	assert.Equal(t, "drop_date_filter", trail[0].Label)
	assert.Equal(t, 1, trail[0].Results)
	assert.Equal(t, "sepsis", trail[0].Query)
}

func TestRelaxExhaustsChainAtMostFiveSteps(t *testing.T) {
	empty := &fakeAdapter{key: models.ProviderPubMed} // never returns anything
	d := NewDispatcher(fakeRegistry(empty), time.Second, 5*time.Second)
	r := NewRelaxer(d, 1)

	filters := models.SearchFilters{
		YearFrom:     2020,
		ArticleTypes: []string{"randomized controlled trial"},
		AgeGroup:     "adult",
	}
	result, trail, err := r.Relax(context.Background(),
		[]models.ProviderKey{empty.key}, "sepsis AND procalcitonin", 20, filters, nil)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.LessOrEqual(t, len(trail), 5)
	labels := make([]string, len(trail))
	for i, s := range trail {
		labels[i] = s.Label
	}
	assert.Equal(t, []string{
		"drop_date_filter",
		"drop_article_type_filter",
		"broaden_population_filters",
		"and_to_or",
		"single_keyword",
	}, labels)

	// The boolean query was weakened, then reduced to its longest keyword.
	assert.Equal(t, "sepsis OR procalcitonin", trail[3].Query)
	assert.Equal(t, "procalcitonin", trail[4].Query)
}

func TestRelaxUsesEntitiesForKeywordSteps(t *testing.T) {
	empty := &fakeAdapter{key: models.ProviderPubMed}
	d := NewDispatcher(fakeRegistry(empty), time.Second, 5*time.Second)
	r := NewRelaxer(d, 1)

	entities := []models.ResolvedEntity{
		{Text: "septic shock", Name: "Shock, Septic", Score: 0.95},
		{Text: "norepinephrine", Name: "Norepinephrine", Score: 0.8},
	}
	_, trail, err := r.Relax(context.Background(),
		[]models.ProviderKey{empty.key}, "septic shock norepinephrine dosing", 20,
		models.SearchFilters{}, entities)
	require.NoError(t, err)

	require.Len(t, trail, 2)
	assert.Equal(t, "Shock, Septic OR Norepinephrine", trail[0].Query)
	assert.Equal(t, "Shock, Septic", trail[1].Query)
}

func TestRelaxNothingApplicable(t *testing.T) {
	empty := &fakeAdapter{key: models.ProviderPubMed}
	d := NewDispatcher(fakeRegistry(empty), time.Second, 5*time.Second)
	r := NewRelaxer(d, 1)

	// Single-token query without filters: only single_keyword applies, and it
	// cannot simplify further than the token itself.
	result, trail, err := r.Relax(context.Background(),
		[]models.ProviderKey{empty.key}, "sepsis", 20, models.SearchFilters{}, nil)
	require.NoError(t, err)

	require.Len(t, trail, 1)
	assert.Equal(t, "single_keyword", trail[0].Label)
	assert.NotNil(t, result)
}

func TestTopEntities(t *testing.T) {
	entities := []models.ResolvedEntity{
		{Text: "b", Name: "Beta", Score: 0.5},
		{Text: "a", Name: "Alpha", Score: 0.9},
	}
	assert.Equal(t, []string{"Alpha", "Beta"}, topEntities(entities, 2))
	assert.Equal(t, []string{"Alpha"}, topEntities(entities, 1))
	assert.Nil(t, topEntities(nil, 2))
}
