package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/litfuse/litfuse/internal/models"
)

// entityWeights rank how much each entity type contributes to expansion
// ordering. Diseases and chemicals carry the query's meaning more often
// than species qualifiers.
var entityWeights = map[models.EntityType]float64{
	models.EntityDisease:  1.0,
	models.EntityChemical: 1.0,
	models.EntityGene:     0.9,
	models.EntityVariant:  0.8,
	models.EntitySpecies:  0.5,
}

// Enhancer expands an analyzed query using its resolved entities. Best
// effort: an analysis with no entities passes through unchanged.
type Enhancer struct{}

// NewEnhancer creates the semantic enhancer.
func NewEnhancer() *Enhancer {
	return &Enhancer{}
}

// Enhance derives ranked expansion terms and provider-specific query
// strings from the analysis.
func (e *Enhancer) Enhance(ctx context.Context, analyzed models.AnalyzedQuery) models.EnhancedQuery {
	enhanced := models.EnhancedQuery{Base: analyzed}
	if len(analyzed.Entities) == 0 {
		return enhanced
	}

	for _, ent := range analyzed.Entities {
		weight := entityWeights[ent.Type]
		if weight == 0 {
			weight = 0.6
		}
		for _, term := range expansionTerms(ent) {
			enhanced.Expansions = append(enhanced.Expansions, models.Expansion{
				Entity: ent,
				Term:   term,
				Weight: ent.Score * weight,
			})
		}
	}
	sort.SliceStable(enhanced.Expansions, func(i, j int) bool {
		return enhanced.Expansions[i].Weight > enhanced.Expansions[j].Weight
	})

	enhanced.ProviderQueries = map[models.ProviderKey]string{
		models.ProviderPubMed:    pubmedQuery(analyzed),
		models.ProviderEuropePMC: europePMCQuery(analyzed),
	}
	return enhanced
}

// expansionTerms lists the variants one entity contributes: its canonical
// name, and the controlled-vocabulary handle when one exists.
func expansionTerms(ent models.ResolvedEntity) []string {
	terms := []string{}
	if ent.Name != "" && !strings.EqualFold(ent.Name, ent.Text) {
		terms = append(terms, ent.Name)
	}
	if strings.HasPrefix(ent.ExternalID, "MESH:") {
		terms = append(terms, strings.TrimPrefix(ent.ExternalID, "MESH:"))
	}
	return terms
}

// pubmedQuery rewrites the query with MeSH-tagged entity clauses ORed with
// the surface form, preserving the remaining free text.
func pubmedQuery(analyzed models.AnalyzedQuery) string {
	clauses := make([]string, 0, len(analyzed.Entities))
	for _, ent := range analyzed.Entities {
		if strings.HasPrefix(ent.ExternalID, "MESH:") {
			clauses = append(clauses, fmt.Sprintf("(%q[MeSH Terms] OR %q[All Fields])", ent.Name, ent.Text))
		} else {
			clauses = append(clauses, fmt.Sprintf("%q[All Fields]", ent.Text))
		}
	}
	if len(clauses) == 0 {
		return analyzed.Normalized
	}
	return strings.Join(clauses, " AND ")
}

// europePMCQuery uses the same clause structure with Europe PMC field names.
func europePMCQuery(analyzed models.AnalyzedQuery) string {
	clauses := make([]string, 0, len(analyzed.Entities))
	for _, ent := range analyzed.Entities {
		if strings.HasPrefix(ent.ExternalID, "MESH:") {
			clauses = append(clauses, fmt.Sprintf("(MESH:%q OR %q)", ent.Name, ent.Text))
		} else {
			clauses = append(clauses, fmt.Sprintf("%q", ent.Text))
		}
	}
	if len(clauses) == 0 {
		return analyzed.Normalized
	}
	return strings.Join(clauses, " AND ")
}
