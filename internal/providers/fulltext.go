package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	literrors "github.com/litfuse/litfuse/internal/errors"
	"github.com/litfuse/litfuse/internal/models"
)

const (
	pmcArticleBase  = "https://www.ncbi.nlm.nih.gov/pmc/articles"
	epmcFulltextFmt = "https://www.ebi.ac.uk/europepmc/webservices/rest/%s/fullTextXML"
	maxFulltextBody = 4 << 20
)

// FulltextResult is the outcome of the PDF/fulltext retrieval chain.
type FulltextResult struct {
	Chain []models.OpenAccessLink `json:"chain"` // attempted links in order
	Text  string                  `json:"text,omitempty"`
}

// Fulltext walks the retrieval chain for an article: PMC first, then the
// best Unpaywall location, then the DOI landing page. Text extraction is
// best effort; an empty Text with a non-empty Chain is a valid outcome.
type Fulltext struct {
	unpaywall *Unpaywall
	req       *requester
	epmcBase  string
}

// NewFulltext creates the fulltext retrieval chain.
func NewFulltext(deps Deps, unpaywall *Unpaywall) *Fulltext {
	return &Fulltext{
		unpaywall: unpaywall,
		req:       newRequester("fulltext", deps, 200*time.Millisecond),
		epmcBase:  "",
	}
}

// SetEuropePMCBase overrides the fulltext XML endpoint, for tests.
func (f *Fulltext) SetEuropePMCBase(u string) { f.epmcBase = strings.TrimSuffix(u, "/") }

// Resolve builds the link chain for the article and attempts extraction.
func (f *Fulltext) Resolve(ctx context.Context, article *models.UnifiedArticle) (*FulltextResult, error) {
	result := &FulltextResult{}

	if article.PMCID != "" {
		pmcid := strings.ToUpper(article.PMCID)
		if !strings.HasPrefix(pmcid, "PMC") {
			pmcid = "PMC" + pmcid
		}
		result.Chain = append(result.Chain, models.OpenAccessLink{
			URL:      fmt.Sprintf("%s/%s/pdf/", pmcArticleBase, pmcid),
			HostType: "repository",
			Version:  "published",
			IsPDF:    true,
			IsBest:   true,
		})
		if text, err := f.pmcFulltext(ctx, pmcid); err == nil && text != "" {
			result.Text = text
			return result, nil
		} else if err != nil {
			log.Debug().Str("pmcid", pmcid).Err(err).Msg("PMC fulltext extraction failed, continuing chain")
		}
	}

	if article.DOI != "" && f.unpaywall != nil {
		oa, err := f.unpaywall.Lookup(ctx, article.DOI)
		if err != nil && !literrors.IsNotFound(err) {
			return result, err
		}
		if oa != nil {
			for _, link := range oa.Links {
				result.Chain = append(result.Chain, link)
			}
		}
	}

	if article.DOI != "" {
		result.Chain = append(result.Chain, models.OpenAccessLink{
			URL:      "https://doi.org/" + article.DOI,
			HostType: "publisher",
			Version:  "published",
		})
	}

	if len(result.Chain) == 0 {
		return nil, literrors.WrapNotFound("fulltext", "", literrors.ErrNotFound)
	}
	return result, nil
}

// pmcFulltext pulls the Europe PMC full-text XML and strips it to plain text.
func (f *Fulltext) pmcFulltext(ctx context.Context, pmcid string) (string, error) {
	u := fmt.Sprintf(epmcFulltextFmt, pmcid)
	if f.epmcBase != "" {
		u = fmt.Sprintf("%s/%s/fullTextXML", f.epmcBase, pmcid)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", literrors.WrapPermanent("fulltext", "fulltext", err)
	}
	resp, err := f.req.deps.HTTPClient.Do(req)
	if err != nil {
		return "", literrors.WrapTransient("fulltext", "fulltext", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", literrors.WrapNotFound("fulltext", "fulltext", literrors.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return "", literrors.WrapTransient("fulltext", "fulltext",
			fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFulltextBody))
	if err != nil {
		return "", literrors.WrapTransient("fulltext", "fulltext", err)
	}
	return collapseWhitespace(stripTags(string(body))), nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
