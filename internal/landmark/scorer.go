// Package landmark computes the composite importance score that flags
// field-defining articles. Five normalized components combine into one
// overall score with a tier label.
package landmark

import (
	"math"
	"strings"

	"github.com/litfuse/litfuse/internal/models"
	"github.com/litfuse/litfuse/internal/timeline"
)

// Component weights. Citation impact dominates; the rest split the
// remainder.
const (
	weightCitationImpact      = 0.35
	weightSourceAgreement     = 0.15
	weightMilestoneConfidence = 0.20
	weightEvidenceQuality     = 0.15
	weightCitationVelocity    = 0.15
)

// Tier thresholds on the overall score.
const (
	tierLandmark = 0.80
	tierNotable  = 0.60
	tierModerate = 0.40
)

const defaultVelocityCap = 20

// evidenceQuality grades article types for the evidence_quality component.
var evidenceQuality = map[string]float64{
	"systematic review":           1.0,
	"meta-analysis":               1.0,
	"practice guideline":          0.95,
	"randomized controlled trial": 0.9,
	"clinical trial, phase iii":   0.85,
	"clinical trial":              0.75,
	"multicenter study":           0.7,
	"observational study":         0.55,
	"comparative study":           0.55,
	"review":                      0.45,
	"case reports":                0.25,
	"preprint":                    0.2,
	"editorial":                   0.1,
	"letter":                      0.1,
}

// Scorer computes landmark scores. VelocityCap is the citations-per-year
// value treated as saturation for the velocity component.
type Scorer struct {
	velocityCap float64
}

// NewScorer creates a scorer. cap <= 0 selects the default of 20
// citations per year.
func NewScorer(cap float64) *Scorer {
	if cap <= 0 {
		cap = defaultVelocityCap
	}
	return &Scorer{velocityCap: cap}
}

// Score computes the five components and the tiered overall score.
func (s *Scorer) Score(a *models.UnifiedArticle) models.LandmarkScore {
	score := models.LandmarkScore{
		CitationImpact:      citationImpact(a.Citations),
		SourceAgreement:     sourceAgreement(len(a.Provenance)),
		MilestoneConfidence: milestoneConfidence(a),
		EvidenceQuality:     evidenceQualityScore(a),
		CitationVelocity:    s.citationVelocity(a.Citations),
	}
	score.Overall = weightCitationImpact*score.CitationImpact +
		weightSourceAgreement*score.SourceAgreement +
		weightMilestoneConfidence*score.MilestoneConfidence +
		weightEvidenceQuality*score.EvidenceQuality +
		weightCitationVelocity*score.CitationVelocity
	score.Tier = tierOf(score.Overall)
	return score
}

// ScoreBatch annotates every article in place.
func (s *Scorer) ScoreBatch(articles []models.UnifiedArticle) {
	for i := range articles {
		ls := s.Score(&articles[i])
		articles[i].LandmarkScore = &ls
	}
}

func tierOf(overall float64) string {
	switch {
	case overall >= tierLandmark:
		return "landmark"
	case overall >= tierNotable:
		return "notable"
	case overall >= tierModerate:
		return "moderate"
	default:
		return "standard"
	}
}

// citationImpact blends field-normalized ratio and percentile. RCR 1.0 is
// the field median; 5.0 saturates.
func citationImpact(m *models.CitationMetrics) float64 {
	if m == nil {
		return 0
	}
	rcr := math.Min(math.Max(m.RelativeCitation, 0), 5) / 5
	pct := math.Min(math.Max(m.Percentile, 0), 100) / 100
	if pct == 0 {
		return rcr
	}
	return (rcr + pct) / 2
}

// sourceAgreement steps up per additional contributing provider,
// saturating at four.
func sourceAgreement(providers int) float64 {
	if providers <= 1 {
		return 0
	}
	return math.Min(float64(providers-1)/3, 1)
}

func milestoneConfidence(a *models.UnifiedArticle) float64 {
	detection := timeline.Detect(a)
	if detection == nil {
		return 0
	}
	return math.Min(detection.Confidence, 1)
}

func evidenceQualityScore(a *models.UnifiedArticle) float64 {
	best := 0.0
	for _, t := range a.ArticleTypes {
		if w, ok := evidenceQuality[strings.ToLower(t)]; ok && w > best {
			best = w
		}
	}
	return best
}

func (s *Scorer) citationVelocity(m *models.CitationMetrics) float64 {
	if m == nil {
		return 0
	}
	return math.Min(math.Max(m.CitationsPerYear, 0)/s.velocityCap, 1)
}
