package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/litfuse/litfuse/internal/models"
)

const pubmedDefaultBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// PubMed is the primary bibliographic index, backed by the NCBI E-utilities.
// Without an API key NCBI allows 3 req/s; with one, 10 req/s. The registry
// limit is configured accordingly by the caller.
type PubMed struct {
	baseURL string
	apiKey  string
	req     *requester
}

// NewPubMed creates the PubMed adapter.
func NewPubMed(deps Deps, apiKey string) *PubMed {
	return &PubMed{
		baseURL: pubmedDefaultBase,
		apiKey:  apiKey,
		req:     newRequester(string(models.ProviderPubMed), deps, 110*time.Millisecond),
	}
}

// SetBaseURL overrides the endpoint, for tests.
func (p *PubMed) SetBaseURL(u string) { p.baseURL = strings.TrimSuffix(u, "/") }

func (p *PubMed) Key() models.ProviderKey { return models.ProviderPubMed }

type esearchResponse struct {
	ESearchResult struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// esummaryResponse keeps DocSums raw: the result object mixes per-ID
// documents with a "uids" array entry.
type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

// docSum mirrors the fields of an esummary DocSum we consume.
type docSum struct {
	UID             string `json:"uid"`
	Title           string `json:"title"`
	FullJournalName string `json:"fulljournalname"`
	Source          string `json:"source"`
	PubDate         string `json:"pubdate"`
	Authors         []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ArticleIDs []struct {
		IDType string `json:"idtype"`
		Value  string `json:"value"`
	} `json:"articleids"`
	PubType []string `json:"pubtype"`
	Lang    []string `json:"lang"`
}

// Search runs esearch then hydrates the ID list via esummary.
func (p *PubMed) Search(ctx context.Context, query string, limit int, filters models.SearchFilters) (SearchResult, error) {
	term := applyPubMedFilters(query, filters)

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retmode", "json")
	params.Set("retmax", strconv.Itoa(limit))
	params.Set("sort", "relevance")
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}

	var sr esearchResponse
	if err := p.req.getJSON(ctx, "search", buildURL(p.baseURL+"/esearch.fcgi", params), &sr); err != nil {
		return SearchResult{}, err
	}

	total, _ := strconv.Atoi(sr.ESearchResult.Count)
	if len(sr.ESearchResult.IDList) == 0 {
		return SearchResult{TotalCount: total, HasTotal: true}, nil
	}

	articles, err := p.summaries(ctx, sr.ESearchResult.IDList)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Articles: articles, TotalCount: total, HasTotal: true}, nil
}

// Fetch hydrates a single PMID.
func (p *PubMed) Fetch(ctx context.Context, id string) (*models.UnifiedArticle, error) {
	articles, err := p.summaries(ctx, []string{normalizePMID(id)})
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, nil
	}
	return &articles[0], nil
}

// Related uses elink neighbor links.
func (p *PubMed) Related(ctx context.Context, id string, limit int) ([]models.UnifiedArticle, error) {
	return p.linked(ctx, id, "pubmed_pubmed", limit)
}

// Citing uses elink cited-in links.
func (p *PubMed) Citing(ctx context.Context, id string, limit int) ([]models.UnifiedArticle, error) {
	return p.linked(ctx, id, "pubmed_pubmed_citedin", limit)
}

// References uses elink reference links.
func (p *PubMed) References(ctx context.Context, id string, limit int) ([]models.UnifiedArticle, error) {
	return p.linked(ctx, id, "pubmed_pubmed_refs", limit)
}

type elinkResponse struct {
	LinkSets []struct {
		LinkSetDBs []struct {
			LinkName string   `json:"linkname"`
			Links    []string `json:"links"`
		} `json:"linksetdbs"`
	} `json:"linksets"`
}

func (p *PubMed) linked(ctx context.Context, id, linkName string, limit int) ([]models.UnifiedArticle, error) {
	params := url.Values{}
	params.Set("dbfrom", "pubmed")
	params.Set("db", "pubmed")
	params.Set("id", normalizePMID(id))
	params.Set("cmd", "neighbor")
	params.Set("retmode", "json")
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}

	var lr elinkResponse
	if err := p.req.getJSON(ctx, "elink_"+linkName, buildURL(p.baseURL+"/elink.fcgi", params), &lr); err != nil {
		return nil, err
	}

	var ids []string
	for _, set := range lr.LinkSets {
		for _, db := range set.LinkSetDBs {
			if db.LinkName == linkName {
				ids = append(ids, db.Links...)
			}
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return p.summaries(ctx, ids)
}

func (p *PubMed) summaries(ctx context.Context, ids []string) ([]models.UnifiedArticle, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "json")
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}

	var sr esummaryResponse
	if err := p.req.getJSON(ctx, "summary", buildURL(p.baseURL+"/esummary.fcgi", params), &sr); err != nil {
		return nil, err
	}

	articles := make([]models.UnifiedArticle, 0, len(ids))
	for _, id := range ids {
		raw, ok := sr.Result[id]
		if !ok {
			continue
		}
		var doc docSum
		if err := json.Unmarshal(raw, &doc); err != nil || doc.UID == "" {
			continue
		}
		articles = append(articles, p.normalize(doc))
	}
	return articles, nil
}

func (p *PubMed) normalize(doc docSum) models.UnifiedArticle {
	a := models.UnifiedArticle{
		ID:            doc.UID,
		Title:         strings.TrimSuffix(doc.Title, "."),
		Journal:       firstNonEmpty(doc.FullJournalName, doc.Source),
		Year:          parseYear(doc.PubDate),
		ArticleTypes:  doc.PubType,
		PrimarySource: models.ProviderPubMed,
		Provenance:    []models.ProviderKey{models.ProviderPubMed},
	}
	for i, au := range doc.Authors {
		a.Authors = append(a.Authors, models.Author{Position: i + 1, Name: au.Name})
	}
	for _, aid := range doc.ArticleIDs {
		switch aid.IDType {
		case "doi":
			a.DOI = aid.Value
		case "pmc", "pmcid":
			a.PMCID = strings.TrimPrefix(aid.Value, "pmc-id: ")
		}
	}
	if len(doc.Lang) > 0 {
		a.Language = strings.ToLower(doc.Lang[0])
	}
	a.SourceMetadata = map[models.ProviderKey]map[string]any{
		models.ProviderPubMed: {"pubdate": doc.PubDate},
	}
	return a
}

// applyPubMedFilters rewrites the search term with E-utilities field tags.
func applyPubMedFilters(query string, f models.SearchFilters) string {
	var clauses []string
	clauses = append(clauses, query)

	if f.YearFrom > 0 || f.YearTo > 0 {
		from, to := f.YearFrom, f.YearTo
		if from == 0 {
			from = 1800
		}
		if to == 0 {
			to = time.Now().Year()
		}
		clauses = append(clauses, fmt.Sprintf(`("%d"[dp] : "%d"[dp])`, from, to))
	}
	if f.Language != "" {
		clauses = append(clauses, f.Language+"[lang]")
	}
	if f.Species != "" {
		clauses = append(clauses, f.Species+"[mh]")
	}
	if f.Sex != "" {
		switch strings.ToLower(f.Sex) {
		case "f", "female":
			clauses = append(clauses, "female[mh]")
		case "m", "male":
			clauses = append(clauses, "male[mh]")
		}
	}
	if f.AgeGroup != "" {
		if tag, ok := pubmedAgeTags[strings.ToLower(f.AgeGroup)]; ok {
			clauses = append(clauses, tag)
		}
	}
	if f.ClinicalQuery != "" {
		if tag, ok := pubmedClinicalFilters[strings.ToLower(f.ClinicalQuery)]; ok {
			clauses = append(clauses, tag)
		}
	}
	for _, t := range f.ArticleTypes {
		clauses = append(clauses, t+"[pt]")
	}
	return strings.Join(clauses, " AND ")
}

var pubmedAgeTags = map[string]string{
	"child":      `"child"[mh]`,
	"infant":     `"infant"[mh]`,
	"adolescent": `"adolescent"[mh]`,
	"adult":      `"adult"[mh]`,
	"aged":       `"aged"[mh]`,
	"elderly":    `"aged"[mh]`,
}

var pubmedClinicalFilters = map[string]string{
	"therapy":   `(Therapy/Broad[filter])`,
	"diagnosis": `(Diagnosis/Broad[filter])`,
	"prognosis": `(Prognosis/Broad[filter])`,
	"etiology":  `(Etiology/Broad[filter])`,
}

func normalizePMID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(strings.ToUpper(id), "PMID:")
	return strings.TrimSpace(id)
}

func parseYear(pubdate string) int {
	fields := strings.Fields(pubdate)
	if len(fields) == 0 {
		return 0
	}
	year, err := strconv.Atoi(fields[0])
	if err != nil || year < 1800 {
		return 0
	}
	return year
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
