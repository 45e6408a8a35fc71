// Package enrich decorates aggregated records with citation metrics,
// journal metrics and open-access links. Enrichment is strictly additive
// and failure tolerant: an article that cannot be enriched passes through
// untouched.
package enrich

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/litfuse/litfuse/internal/models"
	"github.com/litfuse/litfuse/internal/providers"
)

var pmidOnly = regexp.MustCompile(`^\d{1,8}$`)

// journalTable maps normalized journal names to impact signals. A small
// built-in table covers the venues that dominate biomedical result sets;
// everything else simply gets no journal metrics.
var journalTable = map[string]models.JournalMetrics{
	"the new england journal of medicine": {JournalID: "nejm", ImpactScore: 96.2, Percentile: 99.9, Quartile: 1},
	"n engl j med":                        {JournalID: "nejm", ImpactScore: 96.2, Percentile: 99.9, Quartile: 1},
	"the lancet":                          {JournalID: "lancet", ImpactScore: 98.4, Percentile: 99.9, Quartile: 1},
	"lancet":                              {JournalID: "lancet", ImpactScore: 98.4, Percentile: 99.9, Quartile: 1},
	"jama":                                {JournalID: "jama", ImpactScore: 63.1, Percentile: 99.8, Quartile: 1},
	"bmj":                                 {JournalID: "bmj", ImpactScore: 42.7, Percentile: 99.5, Quartile: 1},
	"nature":                              {JournalID: "nature", ImpactScore: 50.5, Percentile: 99.9, Quartile: 1},
	"science":                             {JournalID: "science", ImpactScore: 44.7, Percentile: 99.9, Quartile: 1},
	"cell":                                {JournalID: "cell", ImpactScore: 45.5, Percentile: 99.8, Quartile: 1},
	"nature medicine":                     {JournalID: "nat-med", ImpactScore: 58.7, Percentile: 99.8, Quartile: 1},
	"plos one":                            {JournalID: "plos-one", ImpactScore: 2.9, Percentile: 60.0, Quartile: 2},
	"annals of internal medicine":         {JournalID: "annals-im", ImpactScore: 19.6, Percentile: 98.0, Quartile: 1},
	"critical care medicine":              {JournalID: "ccm", ImpactScore: 7.7, Percentile: 92.0, Quartile: 1},
	"anesthesiology":                      {JournalID: "anesthesiology", ImpactScore: 8.8, Percentile: 94.0, Quartile: 1},
}

// Options toggles individual enrichment passes.
type Options struct {
	SkipMetrics bool
	SkipOA      bool
}

// Enricher runs the enrichment passes over a ranked batch.
type Enricher struct {
	metrics   providers.MetricsProvider
	unpaywall *providers.Unpaywall
}

// NewEnricher creates the enricher. Either dependency may be nil; the
// corresponding pass is skipped.
func NewEnricher(metrics providers.MetricsProvider, unpaywall *providers.Unpaywall) *Enricher {
	return &Enricher{metrics: metrics, unpaywall: unpaywall}
}

// Enrich mutates the batch in place. Per-article failures are logged and
// swallowed; the batch always comes back whole.
func (e *Enricher) Enrich(ctx context.Context, articles []models.UnifiedArticle, opts Options) {
	if !opts.SkipMetrics {
		e.addCitationMetrics(ctx, articles)
	}
	for i := range articles {
		addJournalMetrics(&articles[i])
		flagPreprint(&articles[i])
	}
	if !opts.SkipOA {
		e.addOpenAccess(ctx, articles)
	}
}

// addCitationMetrics batches all PMIDs into one metrics lookup.
func (e *Enricher) addCitationMetrics(ctx context.Context, articles []models.UnifiedArticle) {
	if e.metrics == nil {
		return
	}
	pmids := make([]string, 0, len(articles))
	index := make(map[string][]int)
	for i := range articles {
		if pmid := articlePMID(&articles[i]); pmid != "" {
			if _, seen := index[pmid]; !seen {
				pmids = append(pmids, pmid)
			}
			index[pmid] = append(index[pmid], i)
		}
	}
	if len(pmids) == 0 {
		return
	}

	metrics, err := e.metrics.Metrics(ctx, pmids)
	if err != nil {
		log.Debug().Err(err).Int("pmids", len(pmids)).Msg("Citation metrics lookup failed")
		return
	}
	for pmid, m := range metrics {
		for _, i := range index[pmid] {
			if articles[i].Citations == nil {
				cm := m
				articles[i].Citations = &cm
			}
		}
	}
}

// addOpenAccess resolves OA status per DOI, skipping records that already
// carry links from a provider payload.
func (e *Enricher) addOpenAccess(ctx context.Context, articles []models.UnifiedArticle) {
	if e.unpaywall == nil {
		return
	}
	for i := range articles {
		a := &articles[i]
		if a.DOI == "" || (a.OAStatus != "" && len(a.OALinks) > 0) {
			continue
		}
		oa, err := e.unpaywall.Lookup(ctx, a.DOI)
		if err != nil {
			log.Debug().Str("doi", a.DOI).Err(err).Msg("OA lookup failed")
			continue
		}
		if a.OAStatus == "" {
			a.OAStatus = oa.Status
		}
		if len(a.OALinks) == 0 {
			a.OALinks = oa.Links
		}
	}
}

func addJournalMetrics(a *models.UnifiedArticle) {
	if a.JournalMetrics != nil || a.Journal == "" {
		return
	}
	if jm, ok := journalTable[strings.ToLower(strings.TrimSpace(a.Journal))]; ok {
		copied := jm
		a.JournalMetrics = &copied
	}
}

func flagPreprint(a *models.UnifiedArticle) {
	if a.IsPreprint {
		return
	}
	for _, t := range a.ArticleTypes {
		if strings.EqualFold(t, "preprint") {
			a.IsPreprint = true
			return
		}
	}
}

// articlePMID extracts a bare PMID when the record has one.
func articlePMID(a *models.UnifiedArticle) string {
	if pmidOnly.MatchString(a.ID) {
		return a.ID
	}
	if v, ok := a.AltIDs["pubmed"]; ok && pmidOnly.MatchString(v) {
		return v
	}
	return ""
}
