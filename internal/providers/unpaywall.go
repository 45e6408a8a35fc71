package providers

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/litfuse/litfuse/internal/models"
)

const unpaywallDefaultBase = "https://api.unpaywall.org/v2"

// Unpaywall is the open-access locator. It resolves a DOI to OA status and
// a set of full-text locations. It requires a contact email.
type Unpaywall struct {
	baseURL string
	email   string
	req     *requester
}

// NewUnpaywall creates the Unpaywall adapter.
func NewUnpaywall(deps Deps, email string) *Unpaywall {
	return &Unpaywall{
		baseURL: unpaywallDefaultBase,
		email:   email,
		req:     newRequester(string(models.ProviderUnpaywall), deps, 100*time.Millisecond),
	}
}

// SetBaseURL overrides the endpoint, for tests.
func (u *Unpaywall) SetBaseURL(base string) { u.baseURL = strings.TrimSuffix(base, "/") }

func (u *Unpaywall) Key() models.ProviderKey { return models.ProviderUnpaywall }

// Search is unsupported; Unpaywall participates through Lookup during
// enrichment.
func (u *Unpaywall) Search(ctx context.Context, query string, limit int, filters models.SearchFilters) (SearchResult, error) {
	return SearchResult{}, nil
}

type unpaywallLocation struct {
	URL            string `json:"url"`
	URLForPDF      string `json:"url_for_pdf"`
	HostType       string `json:"host_type"` // publisher | repository
	Version        string `json:"version"`   // submittedVersion | acceptedVersion | publishedVersion
	License        string `json:"license"`
}

type unpaywallResponse struct {
	DOI          string              `json:"doi"`
	IsOA         bool                `json:"is_oa"`
	OAStatus     string              `json:"oa_status"` // gold | green | hybrid | bronze | closed
	BestLocation *unpaywallLocation  `json:"best_oa_location"`
	Locations    []unpaywallLocation `json:"oa_locations"`
}

// OAResult is the normalized open-access lookup result.
type OAResult struct {
	Status string
	Links  []models.OpenAccessLink
}

// Lookup resolves a DOI's open-access status and locations.
func (u *Unpaywall) Lookup(ctx context.Context, doi string) (*OAResult, error) {
	params := url.Values{}
	if u.email != "" {
		params.Set("email", u.email)
	}

	endpoint := u.baseURL + "/" + url.PathEscape(strings.TrimSpace(doi))
	var resp unpaywallResponse
	if err := u.req.getJSON(ctx, "oa_lookup", buildURL(endpoint, params), &resp); err != nil {
		return nil, err
	}

	result := &OAResult{Status: resp.OAStatus}
	if !resp.IsOA {
		if result.Status == "" {
			result.Status = "closed"
		}
		return result, nil
	}

	bestURL := ""
	if resp.BestLocation != nil {
		bestURL = firstNonEmpty(resp.BestLocation.URLForPDF, resp.BestLocation.URL)
	}
	for _, loc := range resp.Locations {
		link := normalizeOALocation(loc)
		link.IsBest = link.URL != "" && link.URL == bestURL
		result.Links = append(result.Links, link)
	}
	return result, nil
}

func normalizeOALocation(loc unpaywallLocation) models.OpenAccessLink {
	link := models.OpenAccessLink{
		URL:      firstNonEmpty(loc.URLForPDF, loc.URL),
		HostType: loc.HostType,
		License:  loc.License,
		IsPDF:    loc.URLForPDF != "",
	}
	switch loc.Version {
	case "submittedVersion":
		link.Version = "submitted"
	case "acceptedVersion":
		link.Version = "accepted"
	case "publishedVersion":
		link.Version = "published"
	default:
		link.Version = "unknown"
	}
	return link
}
