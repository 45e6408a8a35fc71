package providers

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/litfuse/litfuse/internal/models"
)

const biorxivDefaultBase = "https://api.biorxiv.org"

// BioRxiv is the preprint index. It is only dispatched when the caller opts
// into preprints; every record it emits carries IsPreprint.
type BioRxiv struct {
	baseURL string
	req     *requester
}

// NewBioRxiv creates the bioRxiv adapter.
func NewBioRxiv(deps Deps) *BioRxiv {
	return &BioRxiv{
		baseURL: biorxivDefaultBase,
		req:     newRequester(string(models.ProviderBioRxiv), deps, 200*time.Millisecond),
	}
}

// SetBaseURL overrides the endpoint, for tests.
func (b *BioRxiv) SetBaseURL(u string) { b.baseURL = strings.TrimSuffix(u, "/") }

func (b *BioRxiv) Key() models.ProviderKey { return models.ProviderBioRxiv }

type biorxivEntry struct {
	DOI      string `json:"doi"`
	Title    string `json:"title"`
	Authors  string `json:"authors"`
	Date     string `json:"date"`
	Category string `json:"category"`
	Abstract string `json:"abstract"`
	Version  string `json:"version"`
	Server   string `json:"server"`
}

type biorxivResponse struct {
	Messages []struct {
		Total int `json:"total"`
	} `json:"messages"`
	Collection []biorxivEntry `json:"collection"`
}

// Search queries the preprint fulltext search endpoint.
func (b *BioRxiv) Search(ctx context.Context, query string, limit int, filters models.SearchFilters) (SearchResult, error) {
	params := url.Values{}
	params.Set("terms", query)
	params.Set("limit", strconv.Itoa(limit))

	var resp biorxivResponse
	u := buildURL(b.baseURL+"/fulltext/biorxiv", params)
	if err := b.req.getJSON(ctx, "search", u, &resp); err != nil {
		return SearchResult{}, err
	}

	articles := make([]models.UnifiedArticle, 0, len(resp.Collection))
	for _, entry := range resp.Collection {
		a := b.normalize(entry)
		if inYearRange(a.Year, filters) {
			articles = append(articles, a)
		}
	}
	result := SearchResult{Articles: articles}
	if len(resp.Messages) > 0 {
		result.TotalCount = resp.Messages[0].Total
		result.HasTotal = true
	}
	return result, nil
}

// Fetch resolves a preprint DOI.
func (b *BioRxiv) Fetch(ctx context.Context, id string) (*models.UnifiedArticle, error) {
	var resp biorxivResponse
	u := b.baseURL + "/details/biorxiv/" + url.PathEscape(strings.TrimSpace(id))
	if err := b.req.getJSON(ctx, "fetch", u, &resp); err != nil {
		return nil, err
	}
	if len(resp.Collection) == 0 {
		return nil, nil
	}
	// The collection lists all versions; the last entry is the newest.
	a := b.normalize(resp.Collection[len(resp.Collection)-1])
	return &a, nil
}

func (b *BioRxiv) normalize(entry biorxivEntry) models.UnifiedArticle {
	a := models.UnifiedArticle{
		ID:            "doi:" + strings.ToLower(entry.DOI),
		DOI:           entry.DOI,
		Title:         entry.Title,
		Journal:       firstNonEmpty(entry.Server, "bioRxiv"),
		Abstract:      entry.Abstract,
		ArticleTypes:  []string{"preprint"},
		PrimarySource: models.ProviderBioRxiv,
		Provenance:    []models.ProviderKey{models.ProviderBioRxiv},
		IsPreprint:    true,
	}
	if len(entry.Date) >= 4 {
		if year, err := strconv.Atoi(entry.Date[:4]); err == nil {
			a.Year = year
		}
	}
	for i, name := range strings.Split(entry.Authors, "; ") {
		if name = strings.TrimSpace(name); name != "" {
			a.Authors = append(a.Authors, models.Author{Position: i + 1, Name: name})
		}
	}
	if entry.Category != "" {
		a.SourceMetadata = map[models.ProviderKey]map[string]any{
			models.ProviderBioRxiv: {"category": entry.Category, "version": entry.Version},
		}
	}
	return a
}

func inYearRange(year int, f models.SearchFilters) bool {
	if year == 0 {
		return f.YearFrom == 0 && f.YearTo == 0
	}
	if f.YearFrom > 0 && year < f.YearFrom {
		return false
	}
	if f.YearTo > 0 && year > f.YearTo {
		return false
	}
	return true
}
