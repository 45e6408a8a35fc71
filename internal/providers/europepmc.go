package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/litfuse/litfuse/internal/models"
)

const europePMCDefaultBase = "https://www.ebi.ac.uk/europepmc/webservices/rest"

// EuropePMC is a secondary bibliographic index. It contributes abstracts and
// MeSH terms that the primary index's summary endpoint does not carry, which
// makes it the main fill-in source during dedup merging.
type EuropePMC struct {
	baseURL string
	req     *requester
}

// NewEuropePMC creates the Europe PMC adapter.
func NewEuropePMC(deps Deps) *EuropePMC {
	return &EuropePMC{
		baseURL: europePMCDefaultBase,
		req:     newRequester(string(models.ProviderEuropePMC), deps, 100*time.Millisecond),
	}
}

// SetBaseURL overrides the endpoint, for tests.
func (e *EuropePMC) SetBaseURL(u string) { e.baseURL = strings.TrimSuffix(u, "/") }

func (e *EuropePMC) Key() models.ProviderKey { return models.ProviderEuropePMC }

type epmcSearchResponse struct {
	HitCount   int `json:"hitCount"`
	ResultList struct {
		Result []epmcResult `json:"result"`
	} `json:"resultList"`
}

type epmcResult struct {
	ID           string `json:"id"`
	Source       string `json:"source"` // MED, PMC, PPR, ...
	PMID         string `json:"pmid"`
	PMCID        string `json:"pmcid"`
	DOI          string `json:"doi"`
	Title        string `json:"title"`
	AuthorString string `json:"authorString"`
	JournalTitle string `json:"journalTitle"`
	PubYear      string `json:"pubYear"`
	AbstractText string `json:"abstractText"`
	Language     string `json:"language"`
	PubTypeList  struct {
		PubType []string `json:"pubType"`
	} `json:"pubTypeList"`
	MeshHeadingList struct {
		MeshHeading []struct {
			DescriptorName string `json:"descriptorName"`
		} `json:"meshHeading"`
	} `json:"meshHeadingList"`
}

// Search queries the Europe PMC REST search endpoint.
func (e *EuropePMC) Search(ctx context.Context, query string, limit int, filters models.SearchFilters) (SearchResult, error) {
	params := url.Values{}
	params.Set("query", applyEuropePMCFilters(query, filters))
	params.Set("format", "json")
	params.Set("resultType", "core")
	params.Set("pageSize", strconv.Itoa(limit))

	var sr epmcSearchResponse
	if err := e.req.getJSON(ctx, "search", buildURL(e.baseURL+"/search", params), &sr); err != nil {
		return SearchResult{}, err
	}

	articles := make([]models.UnifiedArticle, 0, len(sr.ResultList.Result))
	for _, res := range sr.ResultList.Result {
		articles = append(articles, e.normalize(res))
	}
	return SearchResult{Articles: articles, TotalCount: sr.HitCount, HasTotal: true}, nil
}

// Citing returns articles citing the given PMID.
func (e *EuropePMC) Citing(ctx context.Context, id string, limit int) ([]models.UnifiedArticle, error) {
	return e.linked(ctx, id, "citations", limit)
}

// References returns the reference list of the given PMID.
func (e *EuropePMC) References(ctx context.Context, id string, limit int) ([]models.UnifiedArticle, error) {
	return e.linked(ctx, id, "references", limit)
}

func (e *EuropePMC) linked(ctx context.Context, id, kind string, limit int) ([]models.UnifiedArticle, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("pageSize", strconv.Itoa(limit))

	u := fmt.Sprintf("%s/MED/%s/%s", e.baseURL, normalizePMID(id), kind)
	var payload struct {
		CitationList struct {
			Citation []epmcResult `json:"citation"`
		} `json:"citationList"`
		ReferenceList struct {
			Reference []epmcResult `json:"reference"`
		} `json:"referenceList"`
	}
	if err := e.req.getJSON(ctx, kind, buildURL(u, params), &payload); err != nil {
		return nil, err
	}

	results := payload.CitationList.Citation
	if kind == "references" {
		results = payload.ReferenceList.Reference
	}
	articles := make([]models.UnifiedArticle, 0, len(results))
	for _, res := range results {
		articles = append(articles, e.normalize(res))
	}
	return articles, nil
}

func (e *EuropePMC) normalize(res epmcResult) models.UnifiedArticle {
	id := res.PMID
	if id == "" {
		id = res.Source + ":" + res.ID
	}
	a := models.UnifiedArticle{
		ID:            id,
		DOI:           res.DOI,
		PMCID:         res.PMCID,
		Title:         strings.TrimSuffix(res.Title, "."),
		Journal:       res.JournalTitle,
		Abstract:      res.AbstractText,
		Language:      strings.ToLower(res.Language),
		ArticleTypes:  res.PubTypeList.PubType,
		PrimarySource: models.ProviderEuropePMC,
		Provenance:    []models.ProviderKey{models.ProviderEuropePMC},
		IsPreprint:    res.Source == "PPR",
	}
	if year, err := strconv.Atoi(res.PubYear); err == nil {
		a.Year = year
	}
	for i, name := range splitAuthorString(res.AuthorString) {
		a.Authors = append(a.Authors, models.Author{Position: i + 1, Name: name})
	}
	for _, mh := range res.MeshHeadingList.MeshHeading {
		a.MeshTerms = append(a.MeshTerms, mh.DescriptorName)
	}
	a.SourceMetadata = map[models.ProviderKey]map[string]any{
		models.ProviderEuropePMC: {"source": res.Source, "epmc_id": res.ID},
	}
	return a
}

func applyEuropePMCFilters(query string, f models.SearchFilters) string {
	clauses := []string{query}
	if f.YearFrom > 0 || f.YearTo > 0 {
		from, to := f.YearFrom, f.YearTo
		if from == 0 {
			from = 1800
		}
		if to == 0 {
			to = time.Now().Year()
		}
		clauses = append(clauses, fmt.Sprintf("PUB_YEAR:[%d TO %d]", from, to))
	}
	if f.Language != "" {
		clauses = append(clauses, fmt.Sprintf(`LANG:"%s"`, strings.ToLower(f.Language[:min(3, len(f.Language))])))
	}
	return strings.Join(clauses, " AND ")
}

func splitAuthorString(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, ".")
	parts := strings.Split(s, ", ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
