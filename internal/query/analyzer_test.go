package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litfuse/litfuse/internal/models"
)

func TestDetectID(t *testing.T) {
	tests := []struct {
		query string
		kind  IDKind
		id    string
	}{
		{"37654670", IDPMID, "37654670"},
		{"PMID: 37654670", IDPMID, "37654670"},
		{"pmid:37654670", IDPMID, "37654670"},
		{"10.1056/NEJMoa2212663", IDDOI, "10.1056/nejmoa2212663"},
		{"doi:10.1056/NEJMoa2212663", IDDOI, "10.1056/nejmoa2212663"},
		{"PMC10565790", IDPMC, "PMC10565790"},
		{"nct04280705", IDNCT, "NCT04280705"},
		{"sepsis treatment", IDNone, ""},
		{"123456", IDNone, ""}, // too short for a PMID
		{"37654670 sepsis", IDNone, ""},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			kind, id := DetectID(tc.query)
			assert.Equal(t, tc.kind, kind)
			assert.Equal(t, tc.id, id)
		})
	}
}

func TestAnalyzeIDLookup(t *testing.T) {
	a := NewAnalyzer(nil)

	analyzed := a.Analyze(context.Background(), "PMID: 37654670")
	assert.Equal(t, models.ComplexitySimple, analyzed.Complexity)
	assert.Equal(t, models.IntentLookup, analyzed.Intent)
	assert.Equal(t, "37654670", analyzed.Normalized)
	assert.Equal(t, []models.ProviderKey{models.ProviderPubMed}, analyzed.Providers)

	nct := a.Analyze(context.Background(), "NCT04280705")
	assert.Equal(t, []models.ProviderKey{models.ProviderClinicalTrials}, nct.Providers)

	doi := a.Analyze(context.Background(), "10.1056/NEJMoa2212663")
	assert.Equal(t, []models.ProviderKey{models.ProviderPubMed, models.ProviderCrossref}, doi.Providers)
}

func TestAnalyzeBareKeywordIsSimpleTopic(t *testing.T) {
	a := NewAnalyzer(nil)

	analyzed := a.Analyze(context.Background(), "sepsis biomarkers")
	assert.Equal(t, models.ComplexitySimple, analyzed.Complexity)
	assert.Equal(t, models.IntentTopic, analyzed.Intent)
	assert.Equal(t, []models.ProviderKey{models.ProviderPubMed}, analyzed.Providers)
	assert.Equal(t, models.ProfileBalanced, analyzed.Profile)
}

func TestAnalyzeComparisonIsComplex(t *testing.T) {
	a := NewAnalyzer(nil)

	analyzed := a.Analyze(context.Background(), "dexmedetomidine vs propofol in ICU delirium")
	assert.Equal(t, models.ComplexityComplex, analyzed.Complexity)
	assert.Equal(t, models.IntentComparison, analyzed.Intent)
	assert.Equal(t, models.ProfileImpact, analyzed.Profile)
	assert.Contains(t, analyzed.Providers, models.ProviderOpenAlex)
	assert.Contains(t, analyzed.Providers, models.ProviderSemanticScholar)
}

func TestAnalyzeClinicalAddsTrialsRegistry(t *testing.T) {
	a := NewAnalyzer(nil)

	analyzed := a.Analyze(context.Background(), "remdesivir treatment efficacy")
	assert.Equal(t, models.IntentClinical, analyzed.Intent)
	assert.Equal(t, models.ProfileClinical, analyzed.Profile)
	assert.Contains(t, analyzed.Providers, models.ProviderClinicalTrials)
}

func TestAnalyzeFieldTagsAreModerate(t *testing.T) {
	a := NewAnalyzer(nil)

	analyzed := a.Analyze(context.Background(), "neoplasms[mesh] imatinib")
	assert.Equal(t, models.ComplexityModerate, analyzed.Complexity)
	assert.Contains(t, analyzed.Providers, models.ProviderEuropePMC)
}

func TestAnalyzeExplorationAndImageCues(t *testing.T) {
	a := NewAnalyzer(nil)

	analyzed := a.Analyze(context.Background(), "recent advances in cardiac MRI")
	assert.Equal(t, models.IntentExploration, analyzed.Intent)
	assert.Equal(t, models.ProfileRecency, analyzed.Profile)
	assert.True(t, analyzed.ImageSearch)
}

func TestAnalyzeMechanism(t *testing.T) {
	a := NewAnalyzer(nil)

	analyzed := a.Analyze(context.Background(), "NLRP3 inflammasome signaling pathway")
	assert.Equal(t, models.IntentMechanism, analyzed.Intent)
	assert.Equal(t, models.ProfileQuality, analyzed.Profile)
}

func TestAnalyzeNormalizesWhitespace(t *testing.T) {
	a := NewAnalyzer(nil)

	analyzed := a.Analyze(context.Background(), "  sepsis \t biomarkers  ")
	assert.Equal(t, "sepsis biomarkers", analyzed.Normalized)
	assert.Equal(t, "  sepsis \t biomarkers  ", analyzed.Original)
}

func TestAnalyzeDeterministic(t *testing.T) {
	a := NewAnalyzer(nil)
	q := "dexmedetomidine vs propofol for sedation AND delirium[mesh]"

	first := a.Analyze(context.Background(), q)
	for i := 0; i < 5; i++ {
		again := a.Analyze(context.Background(), q)
		require.Equal(t, first, again)
	}
}

func TestCandidateTerms(t *testing.T) {
	terms := candidateTerms("dexmedetomidine versus propofol in the ICU")
	assert.Equal(t, []string{"dexmedetomidine", "propofol in the icu"}, terms)

	terms = candidateTerms("sepsis AND procalcitonin")
	assert.Equal(t, []string{"sepsis", "procalcitonin"}, terms)

	// Long fragments are capped at four words.
	terms = candidateTerms("acute respiratory distress syndrome ventilation strategies outcomes")
	require.Len(t, terms, 1)
	assert.Equal(t, "acute respiratory distress syndrome", terms[0])
}
