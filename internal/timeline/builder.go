package timeline

import (
	"fmt"
	"sort"

	"github.com/litfuse/litfuse/internal/models"
)

// Builder constructs research timelines from enriched article batches.
type Builder struct{}

// NewBuilder creates the timeline builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build filters the batch to milestone articles with a known year, sorts
// them chronologically and segments them into decade periods.
func (b *Builder) Build(topic string, articles []models.UnifiedArticle) *models.ResearchTimeline {
	tl := &models.ResearchTimeline{
		Topic:      topic,
		Milestones: make(map[models.MilestoneType]int),
	}

	for i := range articles {
		a := &articles[i]
		if !a.YearValid() {
			continue
		}
		detection := Detect(a)
		if detection == nil {
			continue
		}
		event := models.TimelineEvent{
			ID:            a.ID,
			Year:          a.Year,
			Title:         a.Title,
			Milestone:     detection.Milestone,
			Label:         detection.Label,
			EvidenceLevel: evidenceLevel(a),
		}
		if a.Citations != nil {
			event.CitationCount = a.Citations.CitationCount
		}
		tl.Events = append(tl.Events, event)
		tl.Milestones[detection.Milestone]++
	}

	if len(tl.Events) == 0 {
		return tl
	}

	sort.SliceStable(tl.Events, func(i, j int) bool {
		if tl.Events[i].Year != tl.Events[j].Year {
			return tl.Events[i].Year < tl.Events[j].Year
		}
		return tl.Events[i].ID < tl.Events[j].ID
	})
	tl.YearFrom = tl.Events[0].Year
	tl.YearTo = tl.Events[len(tl.Events)-1].Year
	tl.Periods = decadePeriods(tl.Events)
	return tl
}

// decadePeriods buckets events by decade; empty decades are omitted.
func decadePeriods(events []models.TimelineEvent) []models.TimelinePeriod {
	byDecade := make(map[int][]string)
	for _, e := range events {
		decade := e.Year / 10 * 10
		byDecade[decade] = append(byDecade[decade], e.ID)
	}
	decades := make([]int, 0, len(byDecade))
	for d := range byDecade {
		decades = append(decades, d)
	}
	sort.Ints(decades)

	periods := make([]models.TimelinePeriod, 0, len(decades))
	for _, d := range decades {
		periods = append(periods, models.TimelinePeriod{
			Label:    fmt.Sprintf("%ds", d),
			YearFrom: d,
			YearTo:   d + 9,
			EventIDs: byDecade[d],
		})
	}
	return periods
}
