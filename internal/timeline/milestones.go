// Package timeline detects research milestones in article metadata and
// arranges milestone articles into chronological timelines and thematic
// branch trees.
package timeline

import (
	"regexp"
	"strings"

	"github.com/litfuse/litfuse/internal/models"
)

// milestonePattern maps a title/abstract regex to a milestone type with a
// confidence. Patterns are checked in order; the highest-confidence match
// wins.
type milestonePattern struct {
	re         *regexp.Regexp
	milestone  models.MilestoneType
	confidence float64
	label      string
}

var milestonePatterns = []milestonePattern{
	{regexp.MustCompile(`(?i)\bfirst[- ](?:report|case|description|observation)\b`), models.MilestoneFirstReport, 0.9, "First report"},
	{regexp.MustCompile(`(?i)\bfirst[- ]in[- ]human\b`), models.MilestoneFirstInHuman, 0.95, "First in human"},
	{regexp.MustCompile(`(?i)\b(?:discovery|identification) of\b`), models.MilestoneDiscovery, 0.7, "Discovery"},
	{regexp.MustCompile(`(?i)\bnovel (?:target|gene|pathway|receptor)\b`), models.MilestoneTargetID, 0.7, "Target identification"},
	{regexp.MustCompile(`(?i)\bmechanism(?:s)? of (?:action|resistance|disease)\b`), models.MilestoneMechanism, 0.8, "Mechanism"},
	{regexp.MustCompile(`(?i)\b(?:mouse|murine|rat|animal) model\b`), models.MilestoneAnimalModel, 0.75, "Animal model"},
	{regexp.MustCompile(`(?i)\bpreclinical\b`), models.MilestonePreclinical, 0.6, "Preclinical"},
	{regexp.MustCompile(`(?i)\bphase\s*(?:i|1)\b[^iv]`), models.MilestonePhase1, 0.85, "Phase I trial"},
	{regexp.MustCompile(`(?i)\bphase\s*(?:ii|2)\b[^i]`), models.MilestonePhase2, 0.85, "Phase II trial"},
	{regexp.MustCompile(`(?i)\bphase\s*(?:iii|3)\b`), models.MilestonePhase3, 0.9, "Phase III trial"},
	{regexp.MustCompile(`(?i)\bphase\s*(?:iv|4)\b`), models.MilestonePhase4, 0.85, "Phase IV trial"},
	{regexp.MustCompile(`(?i)\b(?:fda|ema) approv(?:al|ed)\b|\bregulatory approval\b`), models.MilestoneApproval, 0.9, "Regulatory approval"},
	{regexp.MustCompile(`(?i)\blabel (?:expansion|extension)\b|\bexpanded indication\b`), models.MilestoneLabelExpansion, 0.8, "Label expansion"},
	{regexp.MustCompile(`(?i)\b(?:market )?withdraw(?:al|n)\b`), models.MilestoneWithdrawal, 0.8, "Withdrawal"},
	{regexp.MustCompile(`(?i)\bsystematic review\b`), models.MilestoneSystematicReview, 0.9, "Systematic review"},
	{regexp.MustCompile(`(?i)\bmeta[- ]analysis\b`), models.MilestoneMetaAnalysis, 0.9, "Meta-analysis"},
	{regexp.MustCompile(`(?i)\b(?:clinical |practice )?guideline(?:s)?\b`), models.MilestoneGuideline, 0.8, "Guideline"},
	{regexp.MustCompile(`(?i)\bconsensus (?:statement|conference|recommendation)\b`), models.MilestoneConsensus, 0.8, "Consensus statement"},
	{regexp.MustCompile(`(?i)\bsafety signal\b|\bblack box warning\b`), models.MilestoneSafetySignal, 0.85, "Safety signal"},
	{regexp.MustCompile(`(?i)\badverse (?:event|effect|reaction)s?\b`), models.MilestoneAdverseEvent, 0.6, "Adverse events"},
	{regexp.MustCompile(`(?i)\blandmark (?:trial|study)\b`), models.MilestoneLandmarkTrial, 0.9, "Landmark trial"},
	{regexp.MustCompile(`(?i)\bpractice[- ]changing\b|\bchanged (?:clinical )?practice\b`), models.MilestonePracticeChanging, 0.85, "Practice changing"},
}

// Detection is a milestone match with its confidence.
type Detection struct {
	Milestone  models.MilestoneType
	Label      string
	Confidence float64
}

// Detect scans title and abstract for milestone patterns and returns the
// strongest match, or nil when nothing matches. Article types contribute
// as a fallback signal when the text is silent.
func Detect(a *models.UnifiedArticle) *Detection {
	text := a.Title + " " + a.Abstract
	var best *Detection
	for _, p := range milestonePatterns {
		if !p.re.MatchString(text) {
			continue
		}
		conf := p.confidence
		// A title hit is a stronger signal than an abstract hit.
		if p.re.MatchString(a.Title) {
			conf += 0.05
		}
		if best == nil || conf > best.Confidence {
			best = &Detection{Milestone: p.milestone, Label: p.label, Confidence: conf}
		}
	}
	if best != nil {
		return best
	}
	return detectFromTypes(a)
}

func detectFromTypes(a *models.UnifiedArticle) *Detection {
	for _, t := range a.ArticleTypes {
		switch strings.ToLower(t) {
		case "systematic review":
			return &Detection{Milestone: models.MilestoneSystematicReview, Label: "Systematic review", Confidence: 0.7}
		case "meta-analysis":
			return &Detection{Milestone: models.MilestoneMetaAnalysis, Label: "Meta-analysis", Confidence: 0.7}
		case "practice guideline", "guideline":
			return &Detection{Milestone: models.MilestoneGuideline, Label: "Guideline", Confidence: 0.7}
		case "clinical trial, phase i":
			return &Detection{Milestone: models.MilestonePhase1, Label: "Phase I trial", Confidence: 0.7}
		case "clinical trial, phase ii":
			return &Detection{Milestone: models.MilestonePhase2, Label: "Phase II trial", Confidence: 0.7}
		case "clinical trial, phase iii":
			return &Detection{Milestone: models.MilestonePhase3, Label: "Phase III trial", Confidence: 0.7}
		case "clinical trial, phase iv":
			return &Detection{Milestone: models.MilestonePhase4, Label: "Phase IV trial", Confidence: 0.7}
		}
	}
	return nil
}

// evidenceLevel grades an article's evidence strength from its types.
func evidenceLevel(a *models.UnifiedArticle) string {
	for _, t := range a.ArticleTypes {
		switch strings.ToLower(t) {
		case "systematic review", "meta-analysis":
			return "1a"
		case "randomized controlled trial":
			return "1b"
		case "clinical trial", "clinical trial, phase iii", "clinical trial, phase iv":
			return "2a"
		case "observational study", "comparative study", "multicenter study":
			return "2b"
		case "case reports":
			return "4"
		}
	}
	return ""
}
