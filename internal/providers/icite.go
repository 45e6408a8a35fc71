package providers

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/litfuse/litfuse/internal/models"
)

const iciteDefaultBase = "https://icite.od.nih.gov/api"

// ICite is the citation-metrics service. It is not a search index: it only
// implements the MetricsProvider capability, batched by PMID.
type ICite struct {
	baseURL string
	req     *requester
}

// NewICite creates the iCite adapter.
func NewICite(deps Deps) *ICite {
	return &ICite{
		baseURL: iciteDefaultBase,
		req:     newRequester(string(models.ProviderICite), deps, 100*time.Millisecond),
	}
}

// SetBaseURL overrides the endpoint, for tests.
func (i *ICite) SetBaseURL(u string) { i.baseURL = strings.TrimSuffix(u, "/") }

func (i *ICite) Key() models.ProviderKey { return models.ProviderICite }

// Search is unsupported; iCite participates only through Metrics.
func (i *ICite) Search(ctx context.Context, query string, limit int, filters models.SearchFilters) (SearchResult, error) {
	return SearchResult{}, nil
}

type icitePub struct {
	PMID                  int     `json:"pmid"`
	Year                  int     `json:"year"`
	CitationCount         int     `json:"citation_count"`
	RelativeCitationRatio float64 `json:"relative_citation_ratio"`
	NIHPercentile         float64 `json:"nih_percentile"`
	CitationsPerYear      float64 `json:"citations_per_year"`
	APT                   float64 `json:"apt"` // approximate potential to translate
	IsClinical            string  `json:"is_clinical"`
}

// Metrics fetches citation metrics for a batch of PMIDs (max 1000 per call
// upstream; we chunk at 100 to keep URLs short).
func (i *ICite) Metrics(ctx context.Context, ids []string) (map[string]models.CitationMetrics, error) {
	out := make(map[string]models.CitationMetrics, len(ids))

	pmids := make([]string, 0, len(ids))
	for _, id := range ids {
		p := normalizePMID(id)
		if _, err := strconv.Atoi(p); err == nil {
			pmids = append(pmids, p)
		}
	}

	for start := 0; start < len(pmids); start += 100 {
		end := min(start+100, len(pmids))
		chunk := pmids[start:end]

		params := url.Values{}
		params.Set("pmids", strings.Join(chunk, ","))

		var payload struct {
			Data []icitePub `json:"data"`
		}
		if err := i.req.getJSON(ctx, "metrics", buildURL(i.baseURL+"/pubs", params), &payload); err != nil {
			return out, err
		}
		for _, pub := range payload.Data {
			out[strconv.Itoa(pub.PMID)] = models.CitationMetrics{
				CitationCount:    pub.CitationCount,
				RelativeCitation: pub.RelativeCitationRatio,
				Percentile:       pub.NIHPercentile,
				CitationsPerYear: pub.CitationsPerYear,
				ClinicalScore:    pub.APT,
				IsClinical:       strings.EqualFold(pub.IsClinical, "yes"),
			}
		}
	}
	return out, nil
}
