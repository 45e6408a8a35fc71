package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litfuse/litfuse/internal/models"
)

func TestDetectPatterns(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		abstract  string
		milestone models.MilestoneType
	}{
		{"first report", "First report of carbapenem resistance in K. pneumoniae", "", models.MilestoneFirstReport},
		{"first in human", "First-in-human study of compound X", "", models.MilestoneFirstInHuman},
		{"discovery", "Discovery of the NLRP3 inflammasome", "", models.MilestoneDiscovery},
		{"mechanism", "On the mechanism of action of metformin", "", models.MilestoneMechanism},
		{"animal model", "A murine model of acute lung injury", "", models.MilestoneAnimalModel},
		{"phase one", "Phase I dose-escalation study of drug Y", "", models.MilestonePhase1},
		{"phase two", "A Phase 2 study in refractory disease", "", models.MilestonePhase2},
		{"phase three", "Phase III randomized evaluation of drug Y", "", models.MilestonePhase3},
		{"approval", "FDA approval of drug Y for sepsis", "", models.MilestoneApproval},
		{"meta analysis", "Meta-analysis of early goal-directed therapy", "", models.MilestoneMetaAnalysis},
		{"safety signal", "", "A new safety signal emerged in post-marketing data.", models.MilestoneSafetySignal},
		{"practice changing", "A practice-changing result in stroke care", "", models.MilestonePracticeChanging},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := models.UnifiedArticle{Title: tt.title, Abstract: tt.abstract}
			d := Detect(&a)
			require.NotNil(t, d)
			assert.Equal(t, tt.milestone, d.Milestone)
		})
	}
}

func TestDetectNoMatch(t *testing.T) {
	a := models.UnifiedArticle{
		Title:    "Serum lactate in adult patients",
		Abstract: "A retrospective cohort without notable findings.",
	}
	assert.Nil(t, Detect(&a))
}

func TestDetectTitleHitOutweighsAbstractHit(t *testing.T) {
	inTitle := models.UnifiedArticle{Title: "Meta-analysis of statin trials"}
	inAbstract := models.UnifiedArticle{
		Title:    "Statins and mortality",
		Abstract: "We performed a meta-analysis of twelve trials.",
	}
	dt := Detect(&inTitle)
	da := Detect(&inAbstract)
	require.NotNil(t, dt)
	require.NotNil(t, da)
	assert.Greater(t, dt.Confidence, da.Confidence)
}

func TestDetectStrongestPatternWins(t *testing.T) {
	a := models.UnifiedArticle{
		Title:    "Adverse events of drug Y",
		Abstract: "A meta-analysis pooling safety outcomes.",
	}
	d := Detect(&a)
	require.NotNil(t, d)
	assert.Equal(t, models.MilestoneMetaAnalysis, d.Milestone)
}

func TestDetectFallsBackToArticleTypes(t *testing.T) {
	a := models.UnifiedArticle{
		Title:        "Statins for primary prevention",
		ArticleTypes: []string{"Systematic Review"},
	}
	d := Detect(&a)
	require.NotNil(t, d)
	assert.Equal(t, models.MilestoneSystematicReview, d.Milestone)
	assert.InDelta(t, 0.7, d.Confidence, 1e-9)
}

func TestEvidenceLevel(t *testing.T) {
	tests := []struct {
		types []string
		want  string
	}{
		{[]string{"Meta-Analysis"}, "1a"},
		{[]string{"Randomized Controlled Trial"}, "1b"},
		{[]string{"Clinical Trial"}, "2a"},
		{[]string{"Observational Study"}, "2b"},
		{[]string{"Case Reports"}, "4"},
		{[]string{"Journal Article"}, ""},
		{nil, ""},
	}
	for _, tt := range tests {
		a := models.UnifiedArticle{ArticleTypes: tt.types}
		assert.Equal(t, tt.want, evidenceLevel(&a))
	}
}

func timelineFixture() []models.UnifiedArticle {
	return []models.UnifiedArticle{
		{ID: "1", Year: 1995, Title: "Discovery of protein X in septic shock"},
		{ID: "2", Year: 2003, Title: "First-in-human study of drug Y"},
		{ID: "3", Year: 2010, Title: "Phase III randomized evaluation of drug Y",
			Citations: &models.CitationMetrics{CitationCount: 2400}},
		{ID: "4", Year: 2012, Title: "Phase I dose-escalation study of drug Y analog"},
		{ID: "5", Year: 2018, Title: "Meta-analysis of drug Y trials"},
		{ID: "6", Year: 2021, Title: "FDA approval of drug Y"},
		{ID: "7", Year: 0, Title: "Meta-analysis with no publication year"},
		{ID: "8", Year: 2015, Title: "Serum lactate in adult patients"},
	}
}

func TestBuildTimeline(t *testing.T) {
	b := NewBuilder()
	tl := b.Build("drug Y", timelineFixture())

	assert.Equal(t, "drug Y", tl.Topic)
	require.Len(t, tl.Events, 6) // no-year and no-milestone records dropped
	assert.Equal(t, 1995, tl.YearFrom)
	assert.Equal(t, 2021, tl.YearTo)

	years := make([]int, len(tl.Events))
	for i, e := range tl.Events {
		years[i] = e.Year
	}
	assert.Equal(t, []int{1995, 2003, 2010, 2012, 2018, 2021}, years)

	assert.Equal(t, 2400, tl.Events[2].CitationCount)
	assert.Equal(t, 1, tl.Milestones[models.MilestoneDiscovery])
	assert.Equal(t, 1, tl.Milestones[models.MilestonePhase3])

	require.Len(t, tl.Periods, 4)
	assert.Equal(t, "1990s", tl.Periods[0].Label)
	assert.Equal(t, []string{"1"}, tl.Periods[0].EventIDs)
	assert.Equal(t, "2010s", tl.Periods[2].Label)
	assert.Equal(t, []string{"3", "4", "5"}, tl.Periods[2].EventIDs)
	assert.Equal(t, 2010, tl.Periods[2].YearFrom)
	assert.Equal(t, 2019, tl.Periods[2].YearTo)
}

func TestBuildEmptyTimeline(t *testing.T) {
	b := NewBuilder()
	tl := b.Build("nothing", []models.UnifiedArticle{
		{ID: "1", Year: 2020, Title: "Serum lactate in adult patients"},
	})
	assert.Empty(t, tl.Events)
	assert.Empty(t, tl.Periods)
	assert.Zero(t, tl.YearFrom)
}

func TestBuildTreeBranches(t *testing.T) {
	b := NewBuilder()
	tl := b.Build("drug Y", timelineFixture())
	tree := BuildTree(tl)

	require.Len(t, tree.Branches, 4)
	assert.Equal(t, "discovery_mechanism", tree.Branches[0].ID)
	assert.Equal(t, "clinical_development", tree.Branches[1].ID)
	assert.Equal(t, "regulatory", tree.Branches[2].ID)
	assert.Equal(t, "evidence_synthesis", tree.Branches[3].ID)

	// Both early and late phases exist, so clinical development splits.
	clinical := tree.Branches[1]
	assert.Empty(t, clinical.Events)
	require.Len(t, clinical.Branches, 2)
	assert.Equal(t, "Phase I/II", clinical.Branches[0].Label)
	assert.Len(t, clinical.Branches[0].Events, 2) // first-in-human + phase I
	assert.Equal(t, "Phase III/IV", clinical.Branches[1].Label)
	assert.Len(t, clinical.Branches[1].Events, 1)
}

func TestBuildTreeNoPhaseSplitWhenOneSided(t *testing.T) {
	b := NewBuilder()
	tl := b.Build("drug Z", []models.UnifiedArticle{
		{ID: "1", Year: 2010, Title: "Phase III randomized evaluation of drug Z"},
		{ID: "2", Year: 2014, Title: "Phase III confirmatory study of drug Z"},
	})
	tree := BuildTree(tl)

	require.Len(t, tree.Branches, 1)
	clinical := tree.Branches[0]
	assert.Empty(t, clinical.Branches)
	assert.Len(t, clinical.Events, 2)
}
