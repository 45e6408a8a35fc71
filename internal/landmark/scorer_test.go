package landmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litfuse/litfuse/internal/models"
)

func TestScoreLandmarkTier(t *testing.T) {
	s := NewScorer(0)
	a := models.UnifiedArticle{
		Title: "Phase III randomized evaluation of early goal-directed therapy",
		Citations: &models.CitationMetrics{
			RelativeCitation: 5.0,
			Percentile:       99.0,
			CitationsPerYear: 40,
		},
		ArticleTypes: []string{"Randomized Controlled Trial", "Multicenter Study"},
		Provenance: []models.ProviderKey{
			models.ProviderPubMed, models.ProviderEuropePMC,
			models.ProviderOpenAlex, models.ProviderSemanticScholar,
		},
	}

	score := s.Score(&a)

	assert.InDelta(t, 0.995, score.CitationImpact, 1e-9) // (1.0 + 0.99) / 2
	assert.InDelta(t, 1.0, score.SourceAgreement, 1e-9)
	assert.InDelta(t, 0.95, score.MilestoneConfidence, 1e-9) // title hit
	assert.InDelta(t, 0.9, score.EvidenceQuality, 1e-9)
	assert.InDelta(t, 1.0, score.CitationVelocity, 1e-9) // 40 cpy caps at 20

	want := 0.35*0.995 + 0.15*1.0 + 0.20*0.95 + 0.15*0.9 + 0.15*1.0
	assert.InDelta(t, want, score.Overall, 1e-9)
	assert.Equal(t, "landmark", score.Tier)
}

func TestScoreStandardTier(t *testing.T) {
	s := NewScorer(0)
	a := models.UnifiedArticle{
		Title:      "Serum lactate in adult patients",
		Provenance: []models.ProviderKey{models.ProviderPubMed},
	}

	score := s.Score(&a)
	assert.Zero(t, score.CitationImpact)
	assert.Zero(t, score.SourceAgreement)
	assert.Zero(t, score.MilestoneConfidence)
	assert.Zero(t, score.Overall)
	assert.Equal(t, "standard", score.Tier)
}

func TestTierThresholds(t *testing.T) {
	assert.Equal(t, "landmark", tierOf(0.80))
	assert.Equal(t, "notable", tierOf(0.79))
	assert.Equal(t, "notable", tierOf(0.60))
	assert.Equal(t, "moderate", tierOf(0.59))
	assert.Equal(t, "moderate", tierOf(0.40))
	assert.Equal(t, "standard", tierOf(0.39))
}

func TestCitationImpact(t *testing.T) {
	assert.Zero(t, citationImpact(nil))

	// Without a percentile the RCR carries the component alone.
	rcrOnly := &models.CitationMetrics{RelativeCitation: 2.5}
	assert.InDelta(t, 0.5, citationImpact(rcrOnly), 1e-9)

	// RCR saturates at 5.
	huge := &models.CitationMetrics{RelativeCitation: 50, Percentile: 100}
	assert.InDelta(t, 1.0, citationImpact(huge), 1e-9)

	// Negative inputs clamp to zero.
	negative := &models.CitationMetrics{RelativeCitation: -1, Percentile: -5}
	assert.Zero(t, citationImpact(negative))
}

func TestSourceAgreement(t *testing.T) {
	assert.Zero(t, sourceAgreement(0))
	assert.Zero(t, sourceAgreement(1))
	assert.InDelta(t, 1.0/3.0, sourceAgreement(2), 1e-9)
	assert.InDelta(t, 2.0/3.0, sourceAgreement(3), 1e-9)
	assert.InDelta(t, 1.0, sourceAgreement(4), 1e-9)
	assert.InDelta(t, 1.0, sourceAgreement(9), 1e-9)
}

func TestEvidenceQualityPicksBestType(t *testing.T) {
	a := models.UnifiedArticle{ArticleTypes: []string{"Letter", "Meta-Analysis", "Review"}}
	assert.InDelta(t, 1.0, evidenceQualityScore(&a), 1e-9)

	unknown := models.UnifiedArticle{ArticleTypes: []string{"Retracted Publication"}}
	assert.Zero(t, evidenceQualityScore(&unknown))
}

func TestCitationVelocityCap(t *testing.T) {
	s := NewScorer(10)
	assert.Zero(t, s.citationVelocity(nil))
	assert.InDelta(t, 0.5, s.citationVelocity(&models.CitationMetrics{CitationsPerYear: 5}), 1e-9)
	assert.InDelta(t, 1.0, s.citationVelocity(&models.CitationMetrics{CitationsPerYear: 25}), 1e-9)
	assert.Zero(t, s.citationVelocity(&models.CitationMetrics{CitationsPerYear: -3}))

	// cap <= 0 falls back to 20 citations per year.
	fallback := NewScorer(-1)
	assert.InDelta(t, 0.5, fallback.citationVelocity(&models.CitationMetrics{CitationsPerYear: 10}), 1e-9)
}

func TestScoreBatchAnnotatesInPlace(t *testing.T) {
	s := NewScorer(0)
	batch := []models.UnifiedArticle{
		{Title: "Meta-analysis of statin trials", ArticleTypes: []string{"Meta-Analysis"}},
		{Title: "Serum lactate in adult patients"},
	}

	s.ScoreBatch(batch)

	require.NotNil(t, batch[0].LandmarkScore)
	require.NotNil(t, batch[1].LandmarkScore)
	assert.Greater(t, batch[0].LandmarkScore.Overall, batch[1].LandmarkScore.Overall)
}
