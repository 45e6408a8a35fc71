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

const openAlexDefaultBase = "https://api.openalex.org"

// OpenAlex is a secondary bibliographic index with good citation linkage.
// Providing a contact email joins the polite pool with higher limits.
type OpenAlex struct {
	baseURL string
	mailto  string
	req     *requester
}

// NewOpenAlex creates the OpenAlex adapter.
func NewOpenAlex(deps Deps, mailto string) *OpenAlex {
	return &OpenAlex{
		baseURL: openAlexDefaultBase,
		mailto:  mailto,
		req:     newRequester(string(models.ProviderOpenAlex), deps, 100*time.Millisecond),
	}
}

// SetBaseURL overrides the endpoint, for tests.
func (o *OpenAlex) SetBaseURL(u string) { o.baseURL = strings.TrimSuffix(u, "/") }

func (o *OpenAlex) Key() models.ProviderKey { return models.ProviderOpenAlex }

type openAlexListResponse struct {
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID          string `json:"id"`
	DOI         string `json:"doi"`
	Title       string `json:"title"`
	PublicationYear int `json:"publication_year"`
	Language    string `json:"language"`
	Type        string `json:"type"`
	CitedByCount int   `json:"cited_by_count"`
	IDs         struct {
		PMID  string `json:"pmid"`
		PMCID string `json:"pmcid"`
	} `json:"ids"`
	PrimaryLocation struct {
		Source struct {
			DisplayName string `json:"display_name"`
		} `json:"source"`
	} `json:"primary_location"`
	Authorships []struct {
		Author struct {
			DisplayName string `json:"display_name"`
			ORCID       string `json:"orcid"`
		} `json:"author"`
	} `json:"authorships"`
	OpenAccess struct {
		IsOA     bool   `json:"is_oa"`
		OAStatus string `json:"oa_status"`
		OAURL    string `json:"oa_url"`
	} `json:"open_access"`
	MeshAnnotations []struct {
		DescriptorName string `json:"descriptor_name"`
	} `json:"mesh"`
}

// Search queries /works with full-text search.
func (o *OpenAlex) Search(ctx context.Context, query string, limit int, filters models.SearchFilters) (SearchResult, error) {
	params := url.Values{}
	params.Set("search", query)
	params.Set("per-page", strconv.Itoa(limit))
	if filter := openAlexFilter(filters); filter != "" {
		params.Set("filter", filter)
	}
	if o.mailto != "" {
		params.Set("mailto", o.mailto)
	}

	var lr openAlexListResponse
	if err := o.req.getJSON(ctx, "search", buildURL(o.baseURL+"/works", params), &lr); err != nil {
		return SearchResult{}, err
	}
	return SearchResult{
		Articles:   o.normalizeAll(lr.Results),
		TotalCount: lr.Meta.Count,
		HasTotal:   true,
	}, nil
}

// Citing returns works whose references include the given one.
func (o *OpenAlex) Citing(ctx context.Context, id string, limit int) ([]models.UnifiedArticle, error) {
	params := url.Values{}
	params.Set("filter", "cites:"+o.workID(id))
	params.Set("per-page", strconv.Itoa(limit))
	if o.mailto != "" {
		params.Set("mailto", o.mailto)
	}

	var lr openAlexListResponse
	if err := o.req.getJSON(ctx, "citing", buildURL(o.baseURL+"/works", params), &lr); err != nil {
		return nil, err
	}
	return o.normalizeAll(lr.Results), nil
}

// Related returns conceptually related works.
func (o *OpenAlex) Related(ctx context.Context, id string, limit int) ([]models.UnifiedArticle, error) {
	params := url.Values{}
	params.Set("filter", "related_to:"+o.workID(id))
	params.Set("per-page", strconv.Itoa(limit))
	if o.mailto != "" {
		params.Set("mailto", o.mailto)
	}

	var lr openAlexListResponse
	if err := o.req.getJSON(ctx, "related", buildURL(o.baseURL+"/works", params), &lr); err != nil {
		return nil, err
	}
	return o.normalizeAll(lr.Results), nil
}

// workID maps a PMID or DOI to an OpenAlex filter value.
func (o *OpenAlex) workID(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "10.") {
		return "doi:" + id
	}
	return "pmid:" + normalizePMID(id)
}

func (o *OpenAlex) normalizeAll(works []openAlexWork) []models.UnifiedArticle {
	articles := make([]models.UnifiedArticle, 0, len(works))
	for _, w := range works {
		articles = append(articles, o.normalize(w))
	}
	return articles
}

func (o *OpenAlex) normalize(w openAlexWork) models.UnifiedArticle {
	pmid := strings.TrimPrefix(w.IDs.PMID, "https://pubmed.ncbi.nlm.nih.gov/")
	pmid = strings.TrimSuffix(pmid, "/")

	id := pmid
	if id == "" {
		id = shortOpenAlexID(w.ID)
	}
	a := models.UnifiedArticle{
		ID:            id,
		DOI:           strings.TrimPrefix(w.DOI, "https://doi.org/"),
		PMCID:         strings.TrimPrefix(w.IDs.PMCID, "https://www.ncbi.nlm.nih.gov/pmc/articles/"),
		Title:         w.Title,
		Journal:       w.PrimaryLocation.Source.DisplayName,
		Year:          w.PublicationYear,
		Language:      w.Language,
		PrimarySource: models.ProviderOpenAlex,
		Provenance:    []models.ProviderKey{models.ProviderOpenAlex},
	}
	a.PMCID = strings.TrimSuffix(a.PMCID, "/")
	if w.Type != "" {
		a.ArticleTypes = []string{w.Type}
	}
	for i, au := range w.Authorships {
		a.Authors = append(a.Authors, models.Author{
			Position: i + 1,
			Name:     au.Author.DisplayName,
			ORCID:    strings.TrimPrefix(au.Author.ORCID, "https://orcid.org/"),
		})
	}
	for _, mh := range w.MeshAnnotations {
		a.MeshTerms = append(a.MeshTerms, mh.DescriptorName)
	}
	if w.OpenAccess.IsOA {
		a.OAStatus = w.OpenAccess.OAStatus
		if w.OpenAccess.OAURL != "" {
			a.OALinks = append(a.OALinks, models.OpenAccessLink{
				URL:      w.OpenAccess.OAURL,
				HostType: "aggregator",
				Version:  "unknown",
				IsBest:   true,
			})
		}
	}
	if w.CitedByCount > 0 {
		a.Citations = &models.CitationMetrics{CitationCount: w.CitedByCount}
	}
	a.AltIDs = map[string]string{"openalex": shortOpenAlexID(w.ID)}
	return a
}

func shortOpenAlexID(full string) string {
	return strings.TrimPrefix(full, "https://openalex.org/")
}

func openAlexFilter(f models.SearchFilters) string {
	var parts []string
	if f.YearFrom > 0 {
		parts = append(parts, fmt.Sprintf("from_publication_date:%d-01-01", f.YearFrom))
	}
	if f.YearTo > 0 {
		parts = append(parts, fmt.Sprintf("to_publication_date:%d-12-31", f.YearTo))
	}
	if f.Language != "" {
		parts = append(parts, "language:"+langCode(f.Language))
	}
	return strings.Join(parts, ",")
}

func langCode(lang string) string {
	switch strings.ToLower(lang) {
	case "english", "eng", "en":
		return "en"
	case "german", "ger", "de":
		return "de"
	case "french", "fre", "fr":
		return "fr"
	case "spanish", "spa", "es":
		return "es"
	case "chinese", "chi", "zh":
		return "zh"
	default:
		if len(lang) == 2 {
			return strings.ToLower(lang)
		}
		return strings.ToLower(lang)
	}
}
