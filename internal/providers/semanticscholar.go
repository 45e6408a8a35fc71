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

const semanticScholarDefaultBase = "https://api.semanticscholar.org/graph/v1"

const s2Fields = "title,abstract,year,venue,externalIds,authors,publicationTypes,citationCount,isOpenAccess,openAccessPdf"

// SemanticScholar is a secondary index that contributes abstracts,
// citation counts and recommendation-based related articles.
type SemanticScholar struct {
	baseURL string
	req     *requester
}

// NewSemanticScholar creates the Semantic Scholar adapter. The anonymous
// pool is tightly limited (about 1 req/s); an API key raises that.
func NewSemanticScholar(deps Deps, apiKey string) *SemanticScholar {
	s := &SemanticScholar{
		baseURL: semanticScholarDefaultBase,
		req:     newRequester(string(models.ProviderSemanticScholar), deps, time.Second),
	}
	if apiKey != "" {
		s.req.setHeader("x-api-key", apiKey)
		s.req.minInterval = 100 * time.Millisecond
	}
	return s
}

// SetBaseURL overrides the endpoint, for tests.
func (s *SemanticScholar) SetBaseURL(u string) { s.baseURL = strings.TrimSuffix(u, "/") }

func (s *SemanticScholar) Key() models.ProviderKey { return models.ProviderSemanticScholar }

type s2Paper struct {
	PaperID     string `json:"paperId"`
	Title       string `json:"title"`
	Abstract    string `json:"abstract"`
	Year        int    `json:"year"`
	Venue       string `json:"venue"`
	ExternalIDs struct {
		PubMed     string `json:"PubMed"`
		DOI        string `json:"DOI"`
		PMCID      string `json:"PubMedCentral"`
	} `json:"externalIds"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	PublicationTypes []string `json:"publicationTypes"`
	CitationCount    int      `json:"citationCount"`
	IsOpenAccess     bool     `json:"isOpenAccess"`
	OpenAccessPdf    struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

type s2SearchResponse struct {
	Total int       `json:"total"`
	Data  []s2Paper `json:"data"`
}

// Search queries /paper/search.
func (s *SemanticScholar) Search(ctx context.Context, query string, limit int, filters models.SearchFilters) (SearchResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("fields", s2Fields)
	if filters.YearFrom > 0 || filters.YearTo > 0 {
		params.Set("year", s2YearRange(filters))
	}

	var sr s2SearchResponse
	if err := s.req.getJSON(ctx, "search", buildURL(s.baseURL+"/paper/search", params), &sr); err != nil {
		return SearchResult{}, err
	}
	return SearchResult{
		Articles:   s.normalizeAll(sr.Data),
		TotalCount: sr.Total,
		HasTotal:   true,
	}, nil
}

// Related uses the recommendations endpoint.
func (s *SemanticScholar) Related(ctx context.Context, id string, limit int) ([]models.UnifiedArticle, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("fields", s2Fields)

	u := fmt.Sprintf("%s/paper/%s/related", s.baseURL, s.paperID(id))
	var payload struct {
		Data []s2Paper `json:"data"`
	}
	if err := s.req.getJSON(ctx, "related", buildURL(u, params), &payload); err != nil {
		return nil, err
	}
	return s.normalizeAll(payload.Data), nil
}

// Citing returns citing papers.
func (s *SemanticScholar) Citing(ctx context.Context, id string, limit int) ([]models.UnifiedArticle, error) {
	return s.linked(ctx, id, "citations", "citingPaper", limit)
}

// References returns the reference list.
func (s *SemanticScholar) References(ctx context.Context, id string, limit int) ([]models.UnifiedArticle, error) {
	return s.linked(ctx, id, "references", "citedPaper", limit)
}

func (s *SemanticScholar) linked(ctx context.Context, id, kind, wrapper string, limit int) ([]models.UnifiedArticle, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("fields", s2Fields)

	u := fmt.Sprintf("%s/paper/%s/%s", s.baseURL, s.paperID(id), kind)
	var payload struct {
		Data []map[string]s2Paper `json:"data"`
	}
	if err := s.req.getJSON(ctx, kind, buildURL(u, params), &payload); err != nil {
		return nil, err
	}

	papers := make([]s2Paper, 0, len(payload.Data))
	for _, entry := range payload.Data {
		if p, ok := entry[wrapper]; ok {
			papers = append(papers, p)
		}
	}
	return s.normalizeAll(papers), nil
}

// paperID maps our IDs onto Semantic Scholar's prefixed scheme.
func (s *SemanticScholar) paperID(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "10.") {
		return "DOI:" + id
	}
	return "PMID:" + normalizePMID(id)
}

func (s *SemanticScholar) normalizeAll(papers []s2Paper) []models.UnifiedArticle {
	articles := make([]models.UnifiedArticle, 0, len(papers))
	for _, p := range papers {
		if p.PaperID == "" {
			continue
		}
		articles = append(articles, s.normalize(p))
	}
	return articles
}

func (s *SemanticScholar) normalize(p s2Paper) models.UnifiedArticle {
	id := p.ExternalIDs.PubMed
	if id == "" {
		id = "S2:" + p.PaperID
	}
	a := models.UnifiedArticle{
		ID:            id,
		DOI:           p.ExternalIDs.DOI,
		PMCID:         p.ExternalIDs.PMCID,
		Title:         p.Title,
		Journal:       p.Venue,
		Year:          p.Year,
		Abstract:      p.Abstract,
		ArticleTypes:  p.PublicationTypes,
		PrimarySource: models.ProviderSemanticScholar,
		Provenance:    []models.ProviderKey{models.ProviderSemanticScholar},
		AltIDs:        map[string]string{"semanticscholar": p.PaperID},
	}
	for i, au := range p.Authors {
		a.Authors = append(a.Authors, models.Author{Position: i + 1, Name: au.Name})
	}
	if p.CitationCount > 0 {
		a.Citations = &models.CitationMetrics{CitationCount: p.CitationCount}
	}
	if p.IsOpenAccess && p.OpenAccessPdf.URL != "" {
		a.OALinks = append(a.OALinks, models.OpenAccessLink{
			URL:      p.OpenAccessPdf.URL,
			HostType: "repository",
			Version:  "unknown",
			IsPDF:    true,
		})
	}
	return a
}

func s2YearRange(f models.SearchFilters) string {
	switch {
	case f.YearFrom > 0 && f.YearTo > 0:
		return fmt.Sprintf("%d-%d", f.YearFrom, f.YearTo)
	case f.YearFrom > 0:
		return fmt.Sprintf("%d-", f.YearFrom)
	default:
		return fmt.Sprintf("-%d", f.YearTo)
	}
}
