package timeline

import (
	"github.com/litfuse/litfuse/internal/models"
)

var branchLabels = map[models.BranchCategory]struct {
	label string
	icon  string
	order int
}{
	models.BranchDiscovery:   {"Discovery & Mechanism", "microscope", 0},
	models.BranchClinicalDev: {"Clinical Development", "stethoscope", 1},
	models.BranchRegulatory:  {"Regulatory", "stamp", 2},
	models.BranchSynthesis:   {"Evidence Synthesis", "books", 3},
	models.BranchGuidelines:  {"Guidelines & Practice", "clipboard", 4},
	models.BranchSafety:      {"Safety", "warning", 5},
	models.BranchLandmark:    {"Landmark Studies", "star", 6},
	models.BranchOther:       {"Other", "dot", 7},
}

var branchOrder = []models.BranchCategory{
	models.BranchDiscovery,
	models.BranchClinicalDev,
	models.BranchRegulatory,
	models.BranchSynthesis,
	models.BranchGuidelines,
	models.BranchSafety,
	models.BranchLandmark,
	models.BranchOther,
}

// BuildTree buckets timeline events into the eight branch categories.
// Empty branches are omitted. Clinical Development splits into Phase I/II
// and Phase III/IV sub-branches only when both sub-populations are
// non-empty.
func BuildTree(tl *models.ResearchTimeline) *models.ResearchTree {
	tree := &models.ResearchTree{Topic: tl.Topic}

	byCategory := make(map[models.BranchCategory][]models.TimelineEvent)
	for _, e := range tl.Events {
		cat := models.BranchOf(e.Milestone)
		byCategory[cat] = append(byCategory[cat], e)
	}

	for _, cat := range branchOrder {
		events := byCategory[cat]
		if len(events) == 0 {
			continue
		}
		meta := branchLabels[cat]
		branch := models.ResearchBranch{
			ID:     string(cat),
			Label:  meta.label,
			Icon:   meta.icon,
			Events: events,
		}
		if cat == models.BranchClinicalDev {
			branch.Branches = splitClinicalPhases(events)
			if len(branch.Branches) > 0 {
				branch.Events = nil
			}
		}
		tree.Branches = append(tree.Branches, branch)
	}
	return tree
}

// splitClinicalPhases returns the early/late sub-branches, or nil when one
// side is empty.
func splitClinicalPhases(events []models.TimelineEvent) []models.ResearchBranch {
	var early, late []models.TimelineEvent
	for _, e := range events {
		if models.EarlyPhase(e.Milestone) {
			early = append(early, e)
		} else {
			late = append(late, e)
		}
	}
	if len(early) == 0 || len(late) == 0 {
		return nil
	}
	return []models.ResearchBranch{
		{ID: "clinical_development/early", Label: "Phase I/II", Events: early},
		{ID: "clinical_development/late", Label: "Phase III/IV", Events: late},
	}
}
