package providers

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/litfuse/litfuse/internal/models"
)

const ctgovDefaultBase = "https://clinicaltrials.gov/api/v2"

// ClinicalTrials is the trials registry adapter. Registry entries are not
// articles, but they merge cleanly into the unified record shape: the NCT ID
// is the primary ID and the brief summary stands in for the abstract.
type ClinicalTrials struct {
	baseURL string
	req     *requester
}

// NewClinicalTrials creates the ClinicalTrials.gov adapter.
func NewClinicalTrials(deps Deps) *ClinicalTrials {
	return &ClinicalTrials{
		baseURL: ctgovDefaultBase,
		req:     newRequester(string(models.ProviderClinicalTrials), deps, 200*time.Millisecond),
	}
}

// SetBaseURL overrides the endpoint, for tests.
func (c *ClinicalTrials) SetBaseURL(u string) { c.baseURL = strings.TrimSuffix(u, "/") }

func (c *ClinicalTrials) Key() models.ProviderKey { return models.ProviderClinicalTrials }

type ctgovStudy struct {
	ProtocolSection struct {
		IdentificationModule struct {
			NCTID      string `json:"nctId"`
			BriefTitle string `json:"briefTitle"`
		} `json:"identificationModule"`
		StatusModule struct {
			StartDateStruct struct {
				Date string `json:"date"`
			} `json:"startDateStruct"`
			OverallStatus string `json:"overallStatus"`
		} `json:"statusModule"`
		DescriptionModule struct {
			BriefSummary string `json:"briefSummary"`
		} `json:"descriptionModule"`
		DesignModule struct {
			Phases    []string `json:"phases"`
			StudyType string   `json:"studyType"`
		} `json:"designModule"`
		SponsorCollaboratorsModule struct {
			LeadSponsor struct {
				Name string `json:"name"`
			} `json:"leadSponsor"`
		} `json:"sponsorCollaboratorsModule"`
	} `json:"protocolSection"`
}

type ctgovResponse struct {
	TotalCount int          `json:"totalCount"`
	Studies    []ctgovStudy `json:"studies"`
}

// Search queries /studies with a term query.
func (c *ClinicalTrials) Search(ctx context.Context, query string, limit int, filters models.SearchFilters) (SearchResult, error) {
	params := url.Values{}
	params.Set("query.term", query)
	params.Set("pageSize", strconv.Itoa(limit))
	params.Set("countTotal", "true")
	if filters.Sex != "" {
		params.Set("query.patient", "AREA[Sex]"+strings.ToUpper(filters.Sex))
	}

	var resp ctgovResponse
	if err := c.req.getJSON(ctx, "search", buildURL(c.baseURL+"/studies", params), &resp); err != nil {
		return SearchResult{}, err
	}

	articles := make([]models.UnifiedArticle, 0, len(resp.Studies))
	for _, study := range resp.Studies {
		a := c.normalize(study)
		if inYearRange(a.Year, filters) {
			articles = append(articles, a)
		}
	}
	return SearchResult{Articles: articles, TotalCount: resp.TotalCount, HasTotal: true}, nil
}

// Fetch resolves a single NCT ID.
func (c *ClinicalTrials) Fetch(ctx context.Context, id string) (*models.UnifiedArticle, error) {
	var study ctgovStudy
	u := c.baseURL + "/studies/" + url.PathEscape(strings.ToUpper(strings.TrimSpace(id)))
	if err := c.req.getJSON(ctx, "fetch", u, &study); err != nil {
		return nil, err
	}
	if study.ProtocolSection.IdentificationModule.NCTID == "" {
		return nil, nil
	}
	a := c.normalize(study)
	return &a, nil
}

func (c *ClinicalTrials) normalize(study ctgovStudy) models.UnifiedArticle {
	ps := study.ProtocolSection
	a := models.UnifiedArticle{
		ID:            ps.IdentificationModule.NCTID,
		Title:         ps.IdentificationModule.BriefTitle,
		Journal:       "ClinicalTrials.gov",
		Abstract:      ps.DescriptionModule.BriefSummary,
		ArticleTypes:  []string{"clinical trial registration"},
		PrimarySource: models.ProviderClinicalTrials,
		Provenance:    []models.ProviderKey{models.ProviderClinicalTrials},
	}
	if date := ps.StatusModule.StartDateStruct.Date; len(date) >= 4 {
		if year, err := strconv.Atoi(date[:4]); err == nil {
			a.Year = year
		}
	}
	if sponsor := ps.SponsorCollaboratorsModule.LeadSponsor.Name; sponsor != "" {
		a.Authors = []models.Author{{Position: 1, Name: sponsor}}
	}
	a.SourceMetadata = map[models.ProviderKey]map[string]any{
		models.ProviderClinicalTrials: {
			"phases":     ps.DesignModule.Phases,
			"study_type": ps.DesignModule.StudyType,
			"status":     ps.StatusModule.OverallStatus,
		},
	}
	return a
}
