package models

// MilestoneType tags a timeline event with the kind of research milestone
// the article represents.
type MilestoneType string

const (
	MilestoneFirstReport      MilestoneType = "first_report"
	MilestoneDiscovery        MilestoneType = "discovery"
	MilestoneMechanism        MilestoneType = "mechanism"
	MilestoneTargetID         MilestoneType = "target_identification"
	MilestonePreclinical      MilestoneType = "preclinical"
	MilestoneAnimalModel      MilestoneType = "animal_model"
	MilestonePhase1           MilestoneType = "phase_1"
	MilestonePhase2           MilestoneType = "phase_2"
	MilestonePhase3           MilestoneType = "phase_3"
	MilestonePhase4           MilestoneType = "phase_4"
	MilestoneFirstInHuman     MilestoneType = "first_in_human"
	MilestoneApproval         MilestoneType = "regulatory_approval"
	MilestoneLabelExpansion   MilestoneType = "label_expansion"
	MilestoneWithdrawal       MilestoneType = "withdrawal"
	MilestoneSystematicReview MilestoneType = "systematic_review"
	MilestoneMetaAnalysis     MilestoneType = "meta_analysis"
	MilestoneGuideline        MilestoneType = "guideline"
	MilestoneConsensus        MilestoneType = "consensus_statement"
	MilestoneSafetySignal     MilestoneType = "safety_signal"
	MilestoneAdverseEvent     MilestoneType = "adverse_event"
	MilestoneLandmarkTrial    MilestoneType = "landmark_trial"
	MilestonePracticeChanging MilestoneType = "practice_changing"
)

// BranchCategory groups milestone types into the eight timeline branches.
type BranchCategory string

const (
	BranchDiscovery   BranchCategory = "discovery_mechanism"
	BranchClinicalDev BranchCategory = "clinical_development"
	BranchRegulatory  BranchCategory = "regulatory"
	BranchSynthesis   BranchCategory = "evidence_synthesis"
	BranchGuidelines  BranchCategory = "guidelines_practice"
	BranchSafety      BranchCategory = "safety"
	BranchLandmark    BranchCategory = "landmark_studies"
	BranchOther       BranchCategory = "other"
)

// BranchOf maps a milestone type to its branch category.
func BranchOf(m MilestoneType) BranchCategory {
	switch m {
	case MilestoneFirstReport, MilestoneDiscovery, MilestoneMechanism,
		MilestoneTargetID, MilestonePreclinical, MilestoneAnimalModel:
		return BranchDiscovery
	case MilestonePhase1, MilestonePhase2, MilestonePhase3, MilestonePhase4,
		MilestoneFirstInHuman:
		return BranchClinicalDev
	case MilestoneApproval, MilestoneLabelExpansion, MilestoneWithdrawal:
		return BranchRegulatory
	case MilestoneSystematicReview, MilestoneMetaAnalysis:
		return BranchSynthesis
	case MilestoneGuideline, MilestoneConsensus:
		return BranchGuidelines
	case MilestoneSafetySignal, MilestoneAdverseEvent:
		return BranchSafety
	case MilestoneLandmarkTrial, MilestonePracticeChanging:
		return BranchLandmark
	default:
		return BranchOther
	}
}

// EarlyPhase reports whether the milestone belongs to the Phase I/II
// sub-branch of clinical development.
func EarlyPhase(m MilestoneType) bool {
	return m == MilestonePhase1 || m == MilestonePhase2 || m == MilestoneFirstInHuman
}

// TimelineEvent is a single dated milestone on a research timeline.
type TimelineEvent struct {
	ID            string        `json:"id"`
	Year          int           `json:"year"`
	Title         string        `json:"title"`
	Milestone     MilestoneType `json:"milestone"`
	Label         string        `json:"label,omitempty"`
	CitationCount int           `json:"citation_count,omitempty"`
	EvidenceLevel string        `json:"evidence_level,omitempty"`
}

// TimelinePeriod is one chronological segment of a timeline.
type TimelinePeriod struct {
	Label    string   `json:"label"` // e.g. "1990s"
	YearFrom int      `json:"year_from"`
	YearTo   int      `json:"year_to"`
	EventIDs []string `json:"event_ids"`
}

// ResearchTimeline is the chronological view of a topic's milestone articles.
type ResearchTimeline struct {
	Topic      string                `json:"topic"`
	Events     []TimelineEvent       `json:"events"` // chronological
	YearFrom   int                   `json:"year_from"`
	YearTo     int                   `json:"year_to"`
	Periods    []TimelinePeriod      `json:"periods,omitempty"`
	Milestones map[MilestoneType]int `json:"milestones,omitempty"`
}

// ResearchBranch is one thematic branch of a research tree. Branches may
// carry ordered sub-branches (e.g. Clinical Development splits into early
// and late phase).
type ResearchBranch struct {
	ID       string           `json:"id"`
	Label    string           `json:"label"`
	Icon     string           `json:"icon,omitempty"`
	Events   []TimelineEvent  `json:"events"`
	Branches []ResearchBranch `json:"branches,omitempty"`
}

// ResearchTree groups a topic's timeline events by branch category.
type ResearchTree struct {
	Topic    string           `json:"topic"`
	Branches []ResearchBranch `json:"branches"`
}
