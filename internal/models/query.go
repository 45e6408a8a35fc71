package models

// Complexity buckets a query by structural difficulty.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Intent classifies what the user is trying to do with a query.
type Intent string

const (
	IntentLookup      Intent = "lookup"
	IntentTopic       Intent = "topic"
	IntentComparison  Intent = "comparison"
	IntentMechanism   Intent = "mechanism"
	IntentClinical    Intent = "clinical"
	IntentExploration Intent = "exploration"
)

// RankingProfile names a preset weight vector for the aggregator.
type RankingProfile string

const (
	ProfileBalanced   RankingProfile = "balanced"
	ProfileImpact     RankingProfile = "impact"
	ProfileRecency    RankingProfile = "recency"
	ProfileQuality    RankingProfile = "quality"
	ProfileClinical   RankingProfile = "clinical"
	ProfileComparison RankingProfile = "comparison"
)

// EntityType classifies a resolved biomedical entity.
type EntityType string

const (
	EntityGene     EntityType = "gene"
	EntityDisease  EntityType = "disease"
	EntityChemical EntityType = "chemical"
	EntitySpecies  EntityType = "species"
	EntityVariant  EntityType = "variant"
)

// ResolvedEntity is a canonical biomedical entity with an external ID,
// produced by the entity resolver.
type ResolvedEntity struct {
	Text       string     `json:"text"` // surface form in the query
	Name       string     `json:"name"` // canonical name
	Type       EntityType `json:"type"`
	ExternalID string     `json:"external_id,omitempty"` // e.g. MESH:D003924, @GENE_673
	Score      float64    `json:"score"`                 // match confidence [0,1]
}

// AnalyzedQuery is the query analyzer's verdict on a free-text query.
type AnalyzedQuery struct {
	Original    string           `json:"original"`
	Normalized  string           `json:"normalized"`
	Entities    []ResolvedEntity `json:"entities,omitempty"`
	Complexity  Complexity       `json:"complexity"`
	Intent      Intent           `json:"intent"`
	Providers   []ProviderKey    `json:"providers"`
	Profile     RankingProfile   `json:"ranking_profile"`
	ImageSearch bool             `json:"image_search_recommended"`
}

// Expansion is one synonym or controlled-vocabulary variant derived from a
// resolved entity.
type Expansion struct {
	Entity ResolvedEntity `json:"entity"`
	Term   string         `json:"term"`
	Weight float64        `json:"weight"` // confidence x entity weight
}

// EnhancedQuery is the semantic enhancer's output: ranked expansion terms
// plus provider-specific query strings. An empty expansion list is valid.
type EnhancedQuery struct {
	Base            AnalyzedQuery          `json:"base"`
	Expansions      []Expansion            `json:"expansions,omitempty"`
	ProviderQueries map[ProviderKey]string `json:"provider_queries,omitempty"`
}

// SearchFilters narrows a provider search.
type SearchFilters struct {
	YearFrom      int      `json:"year_from,omitempty"`
	YearTo        int      `json:"year_to,omitempty"`
	AgeGroup      string   `json:"age_group,omitempty"`
	Sex           string   `json:"sex,omitempty"`
	Species       string   `json:"species,omitempty"`
	Language      string   `json:"language,omitempty"`
	ClinicalQuery string   `json:"clinical_query,omitempty"` // therapy | diagnosis | prognosis | etiology
	ArticleTypes  []string `json:"article_types,omitempty"`
	MinCitations  int      `json:"min_citations,omitempty"`
}

// IsZero reports whether no filter is set.
func (f SearchFilters) IsZero() bool {
	return f.YearFrom == 0 && f.YearTo == 0 && f.AgeGroup == "" && f.Sex == "" &&
		f.Species == "" && f.Language == "" && f.ClinicalQuery == "" &&
		len(f.ArticleTypes) == 0 && f.MinCitations == 0
}

// SearchOptions tunes a unified search.
type SearchOptions struct {
	Preprints  bool `json:"preprints,omitempty"`   // include preprint index
	Shallow    bool `json:"shallow,omitempty"`     // skip enrichment
	AllTypes   bool `json:"all_types,omitempty"`   // disable peer-review filter
	NoOA       bool `json:"no_oa,omitempty"`       // skip OA lookup
	NoAnalysis bool `json:"no_analysis,omitempty"` // skip query analysis extras in output
	NoScores   bool `json:"no_scores,omitempty"`   // hide similarity scores
	NoRelax    bool `json:"no_relax,omitempty"`    // disable auto relaxation
}
