// Package query classifies free-text queries and optionally expands them
// using resolved biomedical entities. The analyzer is rule based: no model,
// deterministic for a given input.
package query

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/litfuse/litfuse/internal/entity"
	"github.com/litfuse/litfuse/internal/models"
)

var (
	pmidPattern    = regexp.MustCompile(`(?i)^(?:pmid:?\s*)?(\d{7,8})$`)
	doiPattern     = regexp.MustCompile(`(?i)^(?:doi:?\s*)?(10\.\d{4,9}/\S+)$`)
	pmcPattern     = regexp.MustCompile(`(?i)^(?:pmcid:?\s*)?(pmc\d+)$`)
	nctPattern     = regexp.MustCompile(`(?i)^(nct\d{8})$`)
	fieldTag       = regexp.MustCompile(`\[[a-z ]+\]`)
	comparisonCue  = regexp.MustCompile(`(?i)\b(vs\.?|versus|compared (?:to|with)|comparison)\b`)
	mechanismCue   = regexp.MustCompile(`(?i)\b(mechanism|pathway|signaling|signalling|receptor|binding|expression|regulation|inhibition)\b`)
	clinicalCue    = regexp.MustCompile(`(?i)\b(treatment|therapy|trial|efficacy|safety|outcome|prognosis|diagnosis|dose|dosing|sedation|mortality)\b`)
	questionCue    = regexp.MustCompile(`(?i)^(what|which|how|does|do|is|are|can|why|when)\b|\?\s*$`)
	explorationCue = regexp.MustCompile(`(?i)\b(overview|review of|state of the art|landscape|recent advances|emerging)\b`)
	imageCue       = regexp.MustCompile(`(?i)\b(figure|image|imaging|histology|radiograph|x-ray|mri|ct scan|micrograph|photo)\b`)
	booleanOp      = regexp.MustCompile(`\b(AND|OR|NOT)\b`)
)

// Analyzer produces an AnalyzedQuery from free text. The entity resolver is
// optional; without it, entity signals are simply absent.
type Analyzer struct {
	resolver *entity.Resolver
}

// NewAnalyzer creates the rule-based query analyzer.
func NewAnalyzer(resolver *entity.Resolver) *Analyzer {
	return &Analyzer{resolver: resolver}
}

// IDKind classifies an explicit external identifier in a query.
type IDKind string

const (
	IDNone IDKind = ""
	IDPMID IDKind = "pmid"
	IDDOI  IDKind = "doi"
	IDPMC  IDKind = "pmc"
	IDNCT  IDKind = "nct"
)

// DetectID reports whether the query is a bare external identifier and
// returns its normalized form.
func DetectID(query string) (IDKind, string) {
	q := strings.TrimSpace(query)
	if m := pmidPattern.FindStringSubmatch(q); m != nil {
		return IDPMID, m[1]
	}
	if m := doiPattern.FindStringSubmatch(q); m != nil {
		return IDDOI, strings.ToLower(m[1])
	}
	if m := pmcPattern.FindStringSubmatch(q); m != nil {
		return IDPMC, strings.ToUpper(m[1])
	}
	if m := nctPattern.FindStringSubmatch(q); m != nil {
		return IDNCT, strings.ToUpper(m[1])
	}
	return IDNone, ""
}

// Analyze classifies the query and recommends a provider subset and ranking
// profile. Entity resolution failures degrade to an entity-free analysis.
func (a *Analyzer) Analyze(ctx context.Context, query string) models.AnalyzedQuery {
	normalized := strings.Join(strings.Fields(query), " ")
	analyzed := models.AnalyzedQuery{
		Original:   query,
		Normalized: normalized,
	}

	if kind, id := DetectID(normalized); kind != IDNone {
		analyzed.Complexity = models.ComplexitySimple
		analyzed.Intent = models.IntentLookup
		switch kind {
		case IDNCT:
			analyzed.Providers = []models.ProviderKey{models.ProviderClinicalTrials}
		case IDDOI:
			analyzed.Providers = []models.ProviderKey{models.ProviderPubMed, models.ProviderCrossref}
		default:
			analyzed.Providers = []models.ProviderKey{models.ProviderPubMed}
		}
		analyzed.Profile = models.ProfileBalanced
		analyzed.Normalized = id
		return analyzed
	}

	if a.resolver != nil {
		analyzed.Entities = a.resolveTerms(ctx, normalized)
	}

	analyzed.Complexity = classifyComplexity(normalized, analyzed.Entities)
	analyzed.Intent = classifyIntent(normalized)
	analyzed.ImageSearch = imageCue.MatchString(normalized)
	analyzed.Providers = recommendProviders(analyzed.Complexity, analyzed.Intent)
	analyzed.Profile = recommendProfile(analyzed.Intent)
	return analyzed
}

func classifyComplexity(q string, entities []models.ResolvedEntity) models.Complexity {
	words := len(strings.Fields(q))
	signals := 0
	if booleanOp.MatchString(q) {
		signals++
	}
	if fieldTag.MatchString(strings.ToLower(q)) {
		signals++
	}
	if comparisonCue.MatchString(q) {
		signals++
	}
	if len(entities) >= 3 {
		signals++
	}
	if words > 12 {
		signals++
	}

	switch {
	case signals >= 2 || comparisonCue.MatchString(q):
		return models.ComplexityComplex
	case signals == 1 || words > 6:
		return models.ComplexityModerate
	default:
		return models.ComplexitySimple
	}
}

func classifyIntent(q string) models.Intent {
	switch {
	case comparisonCue.MatchString(q):
		return models.IntentComparison
	case mechanismCue.MatchString(q):
		return models.IntentMechanism
	case clinicalCue.MatchString(q):
		return models.IntentClinical
	case explorationCue.MatchString(q) || questionCue.MatchString(q):
		return models.IntentExploration
	default:
		return models.IntentTopic
	}
}

// recommendProviders maps (complexity, intent) to a dispatch subset. The
// primary index is always present.
func recommendProviders(c models.Complexity, i models.Intent) []models.ProviderKey {
	providers := []models.ProviderKey{models.ProviderPubMed}
	switch c {
	case models.ComplexitySimple:
		// primary only
	case models.ComplexityModerate:
		providers = append(providers, models.ProviderEuropePMC)
	default:
		providers = append(providers, models.ProviderEuropePMC, models.ProviderOpenAlex, models.ProviderSemanticScholar)
	}
	if i == models.IntentClinical {
		providers = append(providers, models.ProviderClinicalTrials)
	}
	return providers
}

func recommendProfile(i models.Intent) models.RankingProfile {
	switch i {
	case models.IntentComparison:
		return models.ProfileImpact
	case models.IntentClinical:
		return models.ProfileClinical
	case models.IntentExploration:
		return models.ProfileRecency
	case models.IntentMechanism:
		return models.ProfileQuality
	default:
		return models.ProfileBalanced
	}
}

// resolveTerms resolves candidate noun phrases against the entity service.
// Keeps the best hit per term; errors are logged and skipped.
func (a *Analyzer) resolveTerms(ctx context.Context, q string) []models.ResolvedEntity {
	var entities []models.ResolvedEntity
	seen := make(map[string]bool)
	for _, term := range candidateTerms(q) {
		if seen[term] {
			continue
		}
		seen[term] = true
		best, err := a.resolver.Best(ctx, term)
		if err != nil {
			log.Debug().Str("term", term).Err(err).Msg("Entity resolution failed")
			continue
		}
		if best != nil && best.Score >= 0.5 {
			entities = append(entities, *best)
		}
	}
	return entities
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "does": true, "do": true, "for": true, "from": true,
	"how": true, "in": true, "is": true, "it": true, "of": true, "on": true,
	"or": true, "not": true, "the": true, "to": true, "vs": true, "versus": true,
	"what": true, "which": true, "with": true, "why": true, "when": true,
	"compared": true, "can": true,
}

// candidateTerms splits a query into resolvable fragments: boolean operators
// and comparison words act as separators, stopwords are dropped from the
// fragment edges.
func candidateTerms(q string) []string {
	lowered := strings.ToLower(fieldTag.ReplaceAllString(q, " "))
	lowered = comparisonCue.ReplaceAllString(lowered, "|")
	lowered = booleanOp.ReplaceAllString(strings.ToUpper(lowered), "|")
	lowered = strings.ToLower(lowered)

	var terms []string
	for _, fragment := range strings.Split(lowered, "|") {
		words := strings.Fields(strings.Map(keepWordRunes, fragment))
		for len(words) > 0 && stopwords[words[0]] {
			words = words[1:]
		}
		for len(words) > 0 && stopwords[words[len(words)-1]] {
			words = words[:len(words)-1]
		}
		if len(words) == 0 {
			continue
		}
		// Cap fragment length; autocomplete works on short phrases.
		if len(words) > 4 {
			words = words[:4]
		}
		terms = append(terms, strings.Join(words, " "))
	}
	return terms
}

func keepWordRunes(r rune) rune {
	if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == ' ' {
		return r
	}
	return ' '
}
