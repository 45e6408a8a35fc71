package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litfuse/litfuse/internal/models"
)

func article(id, title string, year int, opts ...func(*models.UnifiedArticle)) models.UnifiedArticle {
	a := models.UnifiedArticle{ID: id, Title: title, Year: year}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

func withDOI(doi string) func(*models.UnifiedArticle) {
	return func(a *models.UnifiedArticle) { a.DOI = doi }
}

func withCitations(count int, rcr float64) func(*models.UnifiedArticle) {
	return func(a *models.UnifiedArticle) {
		a.Citations = &models.CitationMetrics{CitationCount: count, RelativeCitation: rcr}
	}
}

func TestAggregateDedupByExternalID(t *testing.T) {
	ag := NewAggregator()
	records := map[models.ProviderKey][]models.UnifiedArticle{
		models.ProviderPubMed: {
			article("37654670", "Early restrictive fluids in sepsis", 2023, withDOI("10.1056/NEJMoa2212663")),
		},
		models.ProviderEuropePMC: {
			func() models.UnifiedArticle {
				a := article("37654670", "Early restrictive fluids in sepsis", 2023, withDOI("10.1056/NEJMOA2212663"))
				a.Abstract = "Fluids are a mainstay of sepsis care."
				a.MeshTerms = []string{"Sepsis"}
				return a
			}(),
		},
	}

	out, stats := ag.Aggregate(records, AggregateConfig{Strategy: DedupStrict})
	require.Len(t, out, 1)
	assert.Equal(t, 2, stats.TotalInput)
	assert.Equal(t, 1, stats.UniqueArticles)
	assert.Equal(t, 1, stats.DuplicatesRemoved)
	assert.Equal(t, 1, stats.PerProvider[models.ProviderPubMed])

	// The more complete record represents the class; provenance is the union.
	a := out[0]
	assert.Equal(t, "Fluids are a mainstay of sepsis care.", a.Abstract)
	assert.True(t, a.HasProvenance(models.ProviderPubMed))
	assert.True(t, a.HasProvenance(models.ProviderEuropePMC))
}

func TestAggregateModerateTitleDedup(t *testing.T) {
	ag := NewAggregator()
	records := map[models.ProviderKey][]models.UnifiedArticle{
		models.ProviderPubMed: {
			article("37654670", "Early Restrictive or Liberal Fluid Management for Sepsis-Induced Hypotension", 2023),
		},
		models.ProviderOpenAlex: {
			article("W4385", "Early restrictive or liberal fluid management for sepsis induced hypotension.", 2023),
		},
	}

	out, _ := ag.Aggregate(records, AggregateConfig{Strategy: DedupModerate})
	assert.Len(t, out, 1)
}

func TestAggregateModerateSkipsUnknownYears(t *testing.T) {
	ag := NewAggregator()
	records := map[models.ProviderKey][]models.UnifiedArticle{
		models.ProviderPubMed: {
			article("1", "Identical title here", 2023),
			article("2", "Identical title here", 0),
		},
	}

	out, _ := ag.Aggregate(records, AggregateConfig{Strategy: DedupModerate})
	assert.Len(t, out, 2)
}

func TestAggregateAggressiveYearTolerance(t *testing.T) {
	ag := NewAggregator()
	preprint := article("PPR:1", "Dexmedetomidine for delirium prevention after cardiac surgery trial", 2022)
	published := article("37000001", "Dexmedetomidine for delirium prevention after cardiac surgery trial", 2023)
	records := map[models.ProviderKey][]models.UnifiedArticle{
		models.ProviderBioRxiv: {preprint},
		models.ProviderPubMed:  {published},
	}

	out, _ := ag.Aggregate(records, AggregateConfig{Strategy: DedupAggressive})
	assert.Len(t, out, 1)

	// MODERATE requires the same year, so these stay apart.
	out, _ = ag.Aggregate(records, AggregateConfig{Strategy: DedupModerate})
	assert.Len(t, out, 2)
}

func TestAggregateIdempotent(t *testing.T) {
	ag := NewAggregator()
	records := map[models.ProviderKey][]models.UnifiedArticle{
		models.ProviderPubMed: {
			article("1", "Sepsis biomarkers in adults", 2022),
			article("2", "Machine learning for sepsis prediction", 2023),
		},
	}

	first, _ := ag.Aggregate(records, AggregateConfig{Strategy: DedupModerate})
	again, stats := ag.Aggregate(map[models.ProviderKey][]models.UnifiedArticle{
		models.ProviderPubMed: first,
	}, AggregateConfig{Strategy: DedupModerate})

	assert.Equal(t, len(first), len(again))
	assert.Zero(t, stats.DuplicatesRemoved)
}

func TestRankDeterministicWithTieBreaks(t *testing.T) {
	ag := NewAggregator()
	records := map[models.ProviderKey][]models.UnifiedArticle{
		models.ProviderPubMed: {
			article("30000002", "Unrelated cardiology paper", 2021, withCitations(50, 1)),
			article("30000001", "Unrelated cardiology paper two", 2021, withCitations(50, 1)),
			article("30000003", "Unrelated cardiology paper three", 2023, withCitations(10, 1)),
		},
	}
	cfg := AggregateConfig{Strategy: DedupStrict, Profile: models.ProfileBalanced}

	first, _ := ag.Aggregate(records, cfg)
	for i := 0; i < 5; i++ {
		again, _ := ag.Aggregate(records, cfg)
		require.Equal(t, ids(first), ids(again))
	}
}

func TestRankRelevanceOrdersByQueryMatch(t *testing.T) {
	ag := NewAggregator()
	records := map[models.ProviderKey][]models.UnifiedArticle{
		models.ProviderPubMed: {
			article("1", "Hypertension management in primary care", 2022),
			article("2", "Sepsis biomarkers for early detection", 2022),
		},
	}

	out, _ := ag.Aggregate(records, AggregateConfig{
		Strategy: DedupStrict,
		Profile:  models.ProfileBalanced,
		Query:    "sepsis biomarkers",
	})
	require.Len(t, out, 2)
	assert.Equal(t, "2", out[0].ID)
	require.NotNil(t, out[0].Similarity)
	assert.Greater(t, *out[0].Similarity, *out[1].Similarity)
}

func TestRankImpactProfileFavorsCited(t *testing.T) {
	ag := NewAggregator()
	records := map[models.ProviderKey][]models.UnifiedArticle{
		models.ProviderPubMed: {
			article("1", "Topic paper alpha", 2024),
			article("2", "Topic paper beta", 2015, withCitations(5000, 5)),
		},
	}

	impact, _ := ag.Aggregate(records, AggregateConfig{Strategy: DedupStrict, Profile: models.ProfileImpact})
	assert.Equal(t, "2", impact[0].ID)

	recency, _ := ag.Aggregate(records, AggregateConfig{Strategy: DedupStrict, Profile: models.ProfileRecency})
	assert.Equal(t, "1", recency[0].ID)
}

func TestRankPreprintQualityCapped(t *testing.T) {
	pre := article("1", "x", 2023)
	pre.IsPreprint = true
	pre.ArticleTypes = []string{"systematic review"}
	assert.InDelta(t, 0.3, qualityScore(&pre), 1e-9)

	rev := article("2", "x", 2023)
	rev.ArticleTypes = []string{"Systematic Review"}
	assert.InDelta(t, 1.0, qualityScore(&rev), 1e-9)
}

func TestAggregateLimit(t *testing.T) {
	ag := NewAggregator()
	records := map[models.ProviderKey][]models.UnifiedArticle{
		models.ProviderPubMed: {
			article("1", "alpha one", 2020),
			article("2", "beta two", 2021),
			article("3", "gamma three", 2022),
		},
	}

	out, stats := ag.Aggregate(records, AggregateConfig{Strategy: DedupStrict, Limit: 2})
	assert.Len(t, out, 2)
	assert.Equal(t, 3, stats.UniqueArticles)
}

func TestFuseRRF(t *testing.T) {
	listA := []models.UnifiedArticle{
		article("1", "alpha", 2020),
		article("2", "beta", 2021),
	}
	listB := []models.UnifiedArticle{
		article("2", "beta", 2021),
		article("3", "gamma", 2022),
	}

	fused := FuseRRF([][]models.UnifiedArticle{listA, listB})
	require.Len(t, fused, 3)
	// "2" appears in both lists (ranks 2 and 1) and wins.
	assert.Equal(t, "2", fused[0].ID)
	// "1" sat at rank 1 (1/61), "3" at rank 2 (1/62).
	assert.Equal(t, "1", fused[1].ID)
	assert.Equal(t, "3", fused[2].ID)
}

func TestMMRDiversifyDemotesNearDuplicates(t *testing.T) {
	ranked := []models.UnifiedArticle{
		article("1", "Sepsis fluid resuscitation strategies randomized", 2023),
		article("2", "sepsis fluid resuscitation strategies, randomized.", 2023),
		article("3", "ventilator weaning protocols intensive care", 2023),
	}

	out := mmrDiversify(ranked)
	require.Len(t, out, 3)
	assert.Equal(t, "1", out[0].ID)
	assert.Equal(t, "3", out[1].ID)
	assert.Equal(t, "2", out[2].ID)
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 1.0, jaccard([]string{"a", "b"}, []string{"b", "a"}))
	assert.Equal(t, 0.0, jaccard([]string{"a"}, []string{"b"}))
	assert.Equal(t, 0.0, jaccard(nil, []string{"b"}))
	assert.InDelta(t, 1.0/3.0, jaccard([]string{"a", "b"}, []string{"b", "c"}), 1e-9)
}

func TestTitleTokens(t *testing.T) {
	tokens := titleTokens("The Early Restrictive Fluids: a Sepsis Trial!")
	assert.Equal(t, []string{"early", "restrictive", "fluids", "sepsis", "trial"}, tokens)
}

func ids(articles []models.UnifiedArticle) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.ID
	}
	return out
}
