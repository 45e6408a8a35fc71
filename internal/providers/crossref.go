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

const crossrefDefaultBase = "https://api.crossref.org"

// Crossref is a secondary bibliographic index keyed by DOI. It mostly
// contributes DOIs and publisher metadata to merged records.
type Crossref struct {
	baseURL string
	mailto  string
	req     *requester
}

// NewCrossref creates the Crossref adapter. A mailto joins the polite pool.
func NewCrossref(deps Deps, mailto string) *Crossref {
	return &Crossref{
		baseURL: crossrefDefaultBase,
		mailto:  mailto,
		req:     newRequester(string(models.ProviderCrossref), deps, 100*time.Millisecond),
	}
}

// SetBaseURL overrides the endpoint, for tests.
func (c *Crossref) SetBaseURL(u string) { c.baseURL = strings.TrimSuffix(u, "/") }

func (c *Crossref) Key() models.ProviderKey { return models.ProviderCrossref }

type crossrefWork struct {
	DOI   string     `json:"DOI"`
	Title []string   `json:"title"`
	Type  string     `json:"type"`
	ContainerTitle []string `json:"container-title"`
	Author []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
		ORCID  string `json:"ORCID"`
	} `json:"author"`
	Issued struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"issued"`
	IsReferencedByCount int    `json:"is-referenced-by-count"`
	Language            string `json:"language"`
	Abstract            string `json:"abstract"`
}

type crossrefListResponse struct {
	Message struct {
		TotalResults int            `json:"total-results"`
		Items        []crossrefWork `json:"items"`
	} `json:"message"`
}

// Search queries /works with a bibliographic query.
func (c *Crossref) Search(ctx context.Context, query string, limit int, filters models.SearchFilters) (SearchResult, error) {
	params := url.Values{}
	params.Set("query.bibliographic", query)
	params.Set("rows", strconv.Itoa(limit))
	if filter := crossrefFilter(filters); filter != "" {
		params.Set("filter", filter)
	}
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}

	var lr crossrefListResponse
	if err := c.req.getJSON(ctx, "search", buildURL(c.baseURL+"/works", params), &lr); err != nil {
		return SearchResult{}, err
	}

	articles := make([]models.UnifiedArticle, 0, len(lr.Message.Items))
	for _, w := range lr.Message.Items {
		articles = append(articles, c.normalize(w))
	}
	return SearchResult{
		Articles:   articles,
		TotalCount: lr.Message.TotalResults,
		HasTotal:   true,
	}, nil
}

// Fetch resolves a single DOI.
func (c *Crossref) Fetch(ctx context.Context, id string) (*models.UnifiedArticle, error) {
	var payload struct {
		Message crossrefWork `json:"message"`
	}
	u := c.baseURL + "/works/" + url.PathEscape(strings.TrimSpace(id))
	if err := c.req.getJSON(ctx, "fetch", u, &payload); err != nil {
		return nil, err
	}
	a := c.normalize(payload.Message)
	return &a, nil
}

func (c *Crossref) normalize(w crossrefWork) models.UnifiedArticle {
	a := models.UnifiedArticle{
		ID:            "doi:" + strings.ToLower(w.DOI),
		DOI:           w.DOI,
		Language:      w.Language,
		PrimarySource: models.ProviderCrossref,
		Provenance:    []models.ProviderKey{models.ProviderCrossref},
	}
	if len(w.Title) > 0 {
		a.Title = w.Title[0]
	}
	if len(w.ContainerTitle) > 0 {
		a.Journal = w.ContainerTitle[0]
	}
	if w.Type != "" {
		a.ArticleTypes = []string{w.Type}
	}
	if len(w.Issued.DateParts) > 0 && len(w.Issued.DateParts[0]) > 0 {
		a.Year = w.Issued.DateParts[0][0]
	}
	for i, au := range w.Author {
		name := strings.TrimSpace(au.Given + " " + au.Family)
		a.Authors = append(a.Authors, models.Author{
			Position: i + 1,
			Name:     name,
			ORCID:    strings.TrimPrefix(au.ORCID, "http://orcid.org/"),
		})
	}
	if w.IsReferencedByCount > 0 {
		a.Citations = &models.CitationMetrics{CitationCount: w.IsReferencedByCount}
	}
	// Crossref abstracts arrive as JATS XML; strip tags crudely.
	if w.Abstract != "" {
		a.Abstract = stripTags(w.Abstract)
	}
	return a
}

func crossrefFilter(f models.SearchFilters) string {
	var parts []string
	if f.YearFrom > 0 {
		parts = append(parts, fmt.Sprintf("from-pub-date:%d-01-01", f.YearFrom))
	}
	if f.YearTo > 0 {
		parts = append(parts, fmt.Sprintf("until-pub-date:%d-12-31", f.YearTo))
	}
	return strings.Join(parts, ",")
}

func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
