// Package models defines the canonical record types shared across the
// aggregation pipeline. Records exist only for the lifetime of a single
// request; nothing here is persisted.
package models

import (
	"strings"
	"time"
)

// ProviderKey identifies an external scholarly data provider.
type ProviderKey string

const (
	ProviderPubMed          ProviderKey = "pubmed"
	ProviderEuropePMC       ProviderKey = "europepmc"
	ProviderOpenAlex        ProviderKey = "openalex"
	ProviderSemanticScholar ProviderKey = "semanticscholar"
	ProviderCrossref        ProviderKey = "crossref"
	ProviderICite           ProviderKey = "icite"
	ProviderUnpaywall       ProviderKey = "unpaywall"
	ProviderPubTator        ProviderKey = "pubtator"
	ProviderBioRxiv         ProviderKey = "biorxiv"
	ProviderClinicalTrials  ProviderKey = "clinicaltrials"
)

// TrustRank orders providers by metadata reliability. Lower is better.
// Used for dedup representative tie-breaks and the source_trust ranking
// dimension.
var TrustRank = map[ProviderKey]int{
	ProviderPubMed:          0,
	ProviderEuropePMC:       1,
	ProviderOpenAlex:        2,
	ProviderSemanticScholar: 3,
	ProviderCrossref:        4,
	ProviderBioRxiv:         5,
	ProviderClinicalTrials:  6,
}

// Author is a single entry in an article's ordered author list.
type Author struct {
	Position    int      `json:"position"`
	Name        string   `json:"name"`
	Affiliation []string `json:"affiliation,omitempty"`
	ORCID       string   `json:"orcid,omitempty"`
}

// OpenAccessLink is one location where the article text is available.
type OpenAccessLink struct {
	URL      string `json:"url"`
	HostType string `json:"host_type"` // repository | publisher | preprint | aggregator
	Version  string `json:"version"`   // submitted | accepted | published | unknown
	License  string `json:"license,omitempty"`
	IsPDF    bool   `json:"is_pdf"`
	IsBest   bool   `json:"is_best"`
}

// CitationMetrics carries citation-derived impact signals for one article.
type CitationMetrics struct {
	CitationCount    int     `json:"citation_count"`
	RelativeCitation float64 `json:"relative_citation_ratio"` // field-normalized; 1.0 = field median
	Percentile       float64 `json:"percentile"`
	CitationsPerYear float64 `json:"citations_per_year"`
	ClinicalScore    float64 `json:"clinical_translation,omitempty"`
	IsClinical       bool    `json:"is_clinical,omitempty"`
}

// JournalMetrics carries journal-level impact signals.
type JournalMetrics struct {
	JournalID   string  `json:"journal_id,omitempty"`
	ImpactScore float64 `json:"impact_score,omitempty"`
	Percentile  float64 `json:"percentile,omitempty"`
	Quartile    int     `json:"quartile,omitempty"` // 1 (top) .. 4
}

// UnifiedArticle is the canonical record emitted by the aggregator.
type UnifiedArticle struct {
	ID           string            `json:"id"` // primary external ID, never empty
	DOI          string            `json:"doi,omitempty"`
	PMCID        string            `json:"pmcid,omitempty"`
	AltIDs       map[string]string `json:"alt_ids,omitempty"` // provider key -> provider-local ID
	Title        string            `json:"title"`
	Authors      []Author          `json:"authors,omitempty"`
	Journal      string            `json:"journal,omitempty"`
	Year         int               `json:"year,omitempty"` // 0 = unknown
	Abstract     string            `json:"abstract,omitempty"`
	MeshTerms    []string          `json:"mesh_terms,omitempty"`
	ArticleTypes []string          `json:"article_types,omitempty"`
	Language     string            `json:"language,omitempty"`

	PrimarySource  ProviderKey                    `json:"primary_source"`
	Provenance     []ProviderKey                  `json:"provenance"` // providers that contributed to this record
	SourceMetadata map[ProviderKey]map[string]any `json:"source_metadata,omitempty"`

	Citations      *CitationMetrics `json:"citations,omitempty"`
	JournalMetrics *JournalMetrics  `json:"journal_metrics,omitempty"`
	OAStatus       string           `json:"oa_status,omitempty"` // gold | green | hybrid | bronze | closed
	OALinks        []OpenAccessLink `json:"oa_links,omitempty"`
	IsPreprint     bool             `json:"is_preprint,omitempty"`

	Similarity    *float64       `json:"similarity,omitempty"` // [0,1]
	LandmarkScore *LandmarkScore `json:"landmark,omitempty"`
}

// HasProvenance reports whether key is recorded as a contributing provider.
func (a *UnifiedArticle) HasProvenance(key ProviderKey) bool {
	for _, p := range a.Provenance {
		if p == key {
			return true
		}
	}
	return false
}

// AddProvenance records key as a contributing provider, preserving order and
// uniqueness.
func (a *UnifiedArticle) AddProvenance(key ProviderKey) {
	if !a.HasProvenance(key) {
		a.Provenance = append(a.Provenance, key)
	}
}

// ExternalIDs returns every known identifier for the article, primary first.
// Used by the dedup union-find for STRICT matching.
func (a *UnifiedArticle) ExternalIDs() []string {
	ids := make([]string, 0, 3+len(a.AltIDs))
	if a.ID != "" {
		ids = append(ids, a.ID)
	}
	if a.DOI != "" {
		ids = append(ids, "doi:"+strings.ToLower(a.DOI))
	}
	if a.PMCID != "" {
		ids = append(ids, "pmc:"+strings.ToUpper(a.PMCID))
	}
	for k, v := range a.AltIDs {
		if v != "" {
			ids = append(ids, k+":"+v)
		}
	}
	return ids
}

// CompletenessScore counts non-empty metadata fields. The dedup stage keeps
// the most complete class member as representative.
func (a *UnifiedArticle) CompletenessScore() int {
	score := 0
	if a.Title != "" {
		score++
	}
	if len(a.Authors) > 0 {
		score++
	}
	if a.Journal != "" {
		score++
	}
	if a.Year != 0 {
		score++
	}
	if a.Abstract != "" {
		score++
	}
	if len(a.MeshTerms) > 0 {
		score++
	}
	if len(a.ArticleTypes) > 0 {
		score++
	}
	if a.DOI != "" {
		score++
	}
	if a.PMCID != "" {
		score++
	}
	if a.Language != "" {
		score++
	}
	if a.Citations != nil {
		score++
	}
	return score
}

// YearValid reports whether the publication year is plausible.
// Unknown (zero) years are not valid.
func (a *UnifiedArticle) YearValid() bool {
	return a.Year >= 1800 && a.Year <= time.Now().Year()+2
}

// LandmarkScore is the composite importance score computed by the landmark
// scorer. Overall is a weighted combination of the five components, each
// normalized to [0,1].
type LandmarkScore struct {
	CitationImpact      float64 `json:"citation_impact"`
	SourceAgreement     float64 `json:"source_agreement"`
	MilestoneConfidence float64 `json:"milestone_confidence"`
	EvidenceQuality     float64 `json:"evidence_quality"`
	CitationVelocity    float64 `json:"citation_velocity"`
	Overall             float64 `json:"overall"`
	Tier                string  `json:"tier"` // landmark | notable | moderate | standard
}
