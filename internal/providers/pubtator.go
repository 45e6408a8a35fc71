package providers

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/litfuse/litfuse/internal/models"
)

const pubtatorDefaultBase = "https://www.ncbi.nlm.nih.gov/research/pubtator3-api"

// PubTator is the entity-annotation service: free text to canonical
// biomedical entities, entity relations, and per-document annotations.
// The entity resolver wraps this adapter with its cache; callers should not
// hit it directly on hot paths.
type PubTator struct {
	baseURL string
	req     *requester
}

// NewPubTator creates the PubTator adapter.
func NewPubTator(deps Deps) *PubTator {
	return &PubTator{
		baseURL: pubtatorDefaultBase,
		req:     newRequester(string(models.ProviderPubTator), deps, 350*time.Millisecond),
	}
}

// SetBaseURL overrides the endpoint, for tests.
func (p *PubTator) SetBaseURL(u string) { p.baseURL = strings.TrimSuffix(u, "/") }

func (p *PubTator) Key() models.ProviderKey { return models.ProviderPubTator }

// Search is unsupported; PubTator participates through the entity resolver.
func (p *PubTator) Search(ctx context.Context, query string, limit int, filters models.SearchFilters) (SearchResult, error) {
	return SearchResult{}, nil
}

type pubtatorEntity struct {
	ID    string  `json:"_id"`
	Name  string  `json:"name"`
	Type  string  `json:"biotype"`
	Score float64 `json:"score"`
}

// Autocomplete resolves free text to candidate entities, best match first.
func (p *PubTator) Autocomplete(ctx context.Context, text string, limit int) ([]models.ResolvedEntity, error) {
	params := url.Values{}
	params.Set("query", text)
	params.Set("limit", strconv.Itoa(limit))

	var raw []pubtatorEntity
	if err := p.req.getJSON(ctx, "autocomplete", buildURL(p.baseURL+"/entity/autocomplete/", params), &raw); err != nil {
		return nil, err
	}

	entities := make([]models.ResolvedEntity, 0, len(raw))
	for _, e := range raw {
		entities = append(entities, models.ResolvedEntity{
			Text:       text,
			Name:       e.Name,
			Type:       mapBiotype(e.Type),
			ExternalID: e.ID,
			Score:      e.Score,
		})
	}
	return entities, nil
}

// Relation is one edge between two canonical entities.
type Relation struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Type   string  `json:"type"` // treat | cause | interact | associate | ...
	Score  float64 `json:"score"`
}

// Relations lists relations of the given type from a source entity.
func (p *PubTator) Relations(ctx context.Context, entityID, relationType string, limit int) ([]Relation, error) {
	params := url.Values{}
	params.Set("e1", entityID)
	if relationType != "" {
		params.Set("type", relationType)
	}
	params.Set("limit", strconv.Itoa(limit))

	var raw []struct {
		Source string  `json:"source"`
		Target string  `json:"target"`
		Type   string  `json:"type"`
		Score  float64 `json:"publications"`
	}
	if err := p.req.getJSON(ctx, "relations", buildURL(p.baseURL+"/relations", params), &raw); err != nil {
		return nil, err
	}

	relations := make([]Relation, 0, len(raw))
	for _, r := range raw {
		relations = append(relations, Relation{
			Source: r.Source,
			Target: r.Target,
			Type:   r.Type,
			Score:  r.Score,
		})
	}
	return relations, nil
}

// Annotations returns the entities annotated in a document.
func (p *PubTator) Annotations(ctx context.Context, pmid string) ([]models.ResolvedEntity, error) {
	params := url.Values{}
	params.Set("pmids", normalizePMID(pmid))

	var payload struct {
		Documents []struct {
			Passages []struct {
				Annotations []struct {
					Text  string `json:"text"`
					Infons struct {
						Identifier string `json:"identifier"`
						Type       string `json:"type"`
					} `json:"infons"`
				} `json:"annotations"`
			} `json:"passages"`
		} `json:"PubTator3"`
	}
	u := buildURL(p.baseURL+"/publications/export/biocjson", params)
	if err := p.req.getJSON(ctx, "annotations", u, &payload); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var entities []models.ResolvedEntity
	for _, doc := range payload.Documents {
		for _, passage := range doc.Passages {
			for _, ann := range passage.Annotations {
				key := ann.Infons.Identifier + "|" + ann.Text
				if ann.Infons.Identifier == "" || seen[key] {
					continue
				}
				seen[key] = true
				entities = append(entities, models.ResolvedEntity{
					Text:       ann.Text,
					Name:       ann.Text,
					Type:       mapBiotype(ann.Infons.Type),
					ExternalID: ann.Infons.Identifier,
					Score:      1,
				})
			}
		}
	}
	return entities, nil
}

func mapBiotype(t string) models.EntityType {
	switch strings.ToLower(t) {
	case "gene":
		return models.EntityGene
	case "disease":
		return models.EntityDisease
	case "chemical", "drug":
		return models.EntityChemical
	case "species":
		return models.EntitySpecies
	case "variant", "mutation", "dnamutation", "proteinmutation", "snp":
		return models.EntityVariant
	default:
		return models.EntityType(strings.ToLower(t))
	}
}
