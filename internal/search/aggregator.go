package search

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/litfuse/litfuse/internal/models"
)

// DedupStrategy controls how aggressively near-duplicate records merge.
type DedupStrategy string

const (
	DedupStrict     DedupStrategy = "strict"
	DedupModerate   DedupStrategy = "moderate"
	DedupAggressive DedupStrategy = "aggressive"
)

const (
	bm25K1      = 1.5
	bm25B       = 0.75
	titleWeight = 3.0
	maxRCR      = 5.0
	mmrLambda   = 0.7
	rrfK        = 60
)

// AggregationStats summarizes one aggregation pass.
type AggregationStats struct {
	TotalInput        int                        `json:"total_input"`
	UniqueArticles    int                        `json:"unique_articles"`
	DuplicatesRemoved int                        `json:"duplicates_removed"`
	PerProvider       map[models.ProviderKey]int `json:"per_provider"`
}

// AggregateConfig tunes one aggregation pass.
type AggregateConfig struct {
	Strategy  DedupStrategy
	Profile   models.RankingProfile
	Query     string
	Entities  []models.ResolvedEntity
	Limit     int
	Diversify bool // apply MMR after scoring
}

// Aggregator merges provider-tagged record lists into one ranked list.
type Aggregator struct{}

// NewAggregator creates the aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate deduplicates, merges and ranks the input records.
func (ag *Aggregator) Aggregate(records map[models.ProviderKey][]models.UnifiedArticle, cfg AggregateConfig) ([]models.UnifiedArticle, AggregationStats) {
	stats := AggregationStats{PerProvider: make(map[models.ProviderKey]int)}

	var flat []models.UnifiedArticle
	for key, list := range records {
		stats.PerProvider[key] = len(list)
		for _, a := range list {
			if a.ID == "" {
				continue
			}
			a.AddProvenance(key)
			if a.PrimarySource == "" {
				a.PrimarySource = key
			}
			flat = append(flat, a)
		}
	}
	stats.TotalInput = len(flat)
	if len(flat) == 0 {
		return nil, stats
	}

	merged := dedup(flat, cfg.Strategy)
	stats.UniqueArticles = len(merged)
	stats.DuplicatesRemoved = stats.TotalInput - stats.UniqueArticles

	ranked := ag.rank(merged, cfg)
	if cfg.Diversify && len(ranked) > 2 {
		ranked = mmrDiversify(ranked)
	}
	if cfg.Limit > 0 && len(ranked) > cfg.Limit {
		ranked = ranked[:cfg.Limit]
	}
	return ranked, stats
}

// unionFind with path compression and union by size.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
}

// dedup groups records into equivalence classes and merges each class into
// its most complete member.
func dedup(articles []models.UnifiedArticle, strategy DedupStrategy) []models.UnifiedArticle {
	uf := newUnionFind(len(articles))

	// STRICT: shared external ID.
	byID := make(map[string]int)
	for i := range articles {
		for _, id := range articles[i].ExternalIDs() {
			key := strings.ToLower(id)
			if j, ok := byID[key]; ok {
				uf.union(i, j)
			} else {
				byID[key] = i
			}
		}
	}

	if strategy != DedupStrict {
		threshold := 0.9
		yearTolerance := 0
		if strategy == DedupAggressive {
			threshold = 0.75
			yearTolerance = 1
		}
		tokens := make([][]string, len(articles))
		for i := range articles {
			tokens[i] = titleTokens(articles[i].Title)
		}
		for i := 0; i < len(articles); i++ {
			for j := i + 1; j < len(articles); j++ {
				if uf.find(i) == uf.find(j) {
					continue
				}
				yi, yj := articles[i].Year, articles[j].Year
				if yi == 0 || yj == 0 {
					continue
				}
				if abs(yi-yj) > yearTolerance {
					continue
				}
				if jaccard(tokens[i], tokens[j]) >= threshold {
					uf.union(i, j)
				}
			}
		}
	}

	classes := make(map[int][]int)
	for i := range articles {
		root := uf.find(i)
		classes[root] = append(classes[root], i)
	}

	merged := make([]models.UnifiedArticle, 0, len(classes))
	for _, members := range classes {
		merged = append(merged, mergeClass(articles, members))
	}
	return merged
}

// mergeClass picks the most complete member as representative and fills its
// gaps from the others. Provenance is the union.
func mergeClass(articles []models.UnifiedArticle, members []int) models.UnifiedArticle {
	best := members[0]
	for _, i := range members[1:] {
		bi, bb := &articles[i], &articles[best]
		si, sb := bi.CompletenessScore(), bb.CompletenessScore()
		if si > sb || (si == sb && trustRank(bi.PrimarySource) < trustRank(bb.PrimarySource)) {
			best = i
		}
	}

	rep := articles[best]
	for _, i := range members {
		if i == best {
			continue
		}
		other := &articles[i]
		fillFrom(&rep, other)
		for _, p := range other.Provenance {
			rep.AddProvenance(p)
		}
		for key, meta := range other.SourceMetadata {
			if rep.SourceMetadata == nil {
				rep.SourceMetadata = make(map[models.ProviderKey]map[string]any)
			}
			if _, exists := rep.SourceMetadata[key]; !exists {
				rep.SourceMetadata[key] = meta
			}
		}
	}
	return rep
}

// fillFrom copies fields the representative is missing.
func fillFrom(rep *models.UnifiedArticle, other *models.UnifiedArticle) {
	if rep.DOI == "" {
		rep.DOI = other.DOI
	}
	if rep.PMCID == "" {
		rep.PMCID = other.PMCID
	}
	if rep.Abstract == "" {
		rep.Abstract = other.Abstract
	}
	if rep.Journal == "" {
		rep.Journal = other.Journal
	}
	if rep.Year == 0 {
		rep.Year = other.Year
	}
	if rep.Language == "" {
		rep.Language = other.Language
	}
	if len(rep.Authors) == 0 {
		rep.Authors = other.Authors
	}
	if len(rep.MeshTerms) == 0 {
		rep.MeshTerms = other.MeshTerms
	}
	if len(rep.ArticleTypes) == 0 {
		rep.ArticleTypes = other.ArticleTypes
	}
	if rep.Citations == nil {
		rep.Citations = other.Citations
	}
	if rep.OAStatus == "" {
		rep.OAStatus = other.OAStatus
	}
	if len(rep.OALinks) == 0 {
		rep.OALinks = other.OALinks
	}
	rep.IsPreprint = rep.IsPreprint || other.IsPreprint
	for k, v := range other.AltIDs {
		if rep.AltIDs == nil {
			rep.AltIDs = make(map[string]string)
		}
		if _, exists := rep.AltIDs[k]; !exists {
			rep.AltIDs[k] = v
		}
	}
}

func trustRank(key models.ProviderKey) int {
	if rank, ok := models.TrustRank[key]; ok {
		return rank
	}
	return len(models.TrustRank)
}

// rankWeights is a preset weight vector over the six ranking dimensions:
// relevance, quality, recency, impact, source_trust, entity_match.
type rankWeights struct {
	relevance, quality, recency, impact, trust, entity float64
}

var profileWeights = map[models.RankingProfile]rankWeights{
	models.ProfileBalanced:   {0.35, 0.15, 0.15, 0.15, 0.10, 0.10},
	models.ProfileImpact:     {0.25, 0.10, 0.05, 0.40, 0.10, 0.10},
	models.ProfileRecency:    {0.25, 0.10, 0.40, 0.10, 0.05, 0.10},
	models.ProfileQuality:    {0.25, 0.35, 0.10, 0.15, 0.10, 0.05},
	models.ProfileClinical:   {0.25, 0.30, 0.15, 0.15, 0.05, 0.10},
	models.ProfileComparison: {0.30, 0.20, 0.10, 0.20, 0.05, 0.15},
}

// articleTypeQuality weights study designs by evidence strength.
var articleTypeQuality = map[string]float64{
	"systematic review":             1.0,
	"meta-analysis":                 1.0,
	"practice guideline":            0.95,
	"randomized controlled trial":   0.9,
	"clinical trial":                0.8,
	"clinical trial, phase iii":     0.85,
	"clinical trial, phase ii":      0.75,
	"clinical trial, phase i":       0.7,
	"multicenter study":             0.7,
	"observational study":           0.6,
	"comparative study":             0.6,
	"review":                        0.5,
	"case reports":                  0.3,
	"clinical trial registration":   0.4,
	"preprint":                      0.3,
	"editorial":                     0.1,
	"letter":                        0.1,
	"comment":                       0.1,
}

// rank computes the weighted score for each record and sorts. Deterministic
// for a given input multiset: stable sort with explicit tie-breaks.
func (ag *Aggregator) rank(articles []models.UnifiedArticle, cfg AggregateConfig) []models.UnifiedArticle {
	weights, ok := profileWeights[cfg.Profile]
	if !ok {
		weights = profileWeights[models.ProfileBalanced]
	}

	relevance := bm25Scores(articles, cfg.Query)
	currentYear := time.Now().Year()

	type scored struct {
		article models.UnifiedArticle
		score   float64
	}
	out := make([]scored, len(articles))
	for i, a := range articles {
		s := weights.relevance*relevance[i] +
			weights.quality*qualityScore(&a) +
			weights.recency*recencyScore(a.Year, currentYear) +
			weights.impact*impactScore(a.Citations) +
			weights.trust*trustScore(a.PrimarySource) +
			weights.entity*entityMatchScore(&a, cfg.Entities)
		sim := relevance[i]
		a.Similarity = &sim
		out[i] = scored{article: a, score: s}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		ai, aj := &out[i].article, &out[j].article
		if ai.Year != aj.Year {
			return ai.Year > aj.Year
		}
		ci, cj := citationCount(ai), citationCount(aj)
		if ci != cj {
			return ci > cj
		}
		return ai.ID < aj.ID
	})

	ranked := make([]models.UnifiedArticle, len(out))
	for i, s := range out {
		ranked[i] = s.article
	}
	return ranked
}

func citationCount(a *models.UnifiedArticle) int {
	if a.Citations == nil {
		return 0
	}
	return a.Citations.CitationCount
}

func qualityScore(a *models.UnifiedArticle) float64 {
	best := 0.0
	for _, t := range a.ArticleTypes {
		if w, ok := articleTypeQuality[strings.ToLower(t)]; ok && w > best {
			best = w
		}
	}
	if best == 0 && len(a.ArticleTypes) > 0 {
		best = 0.4
	}
	if a.IsPreprint {
		// Not peer reviewed.
		best = math.Min(best, 0.3)
	}
	return best
}

func recencyScore(year, currentYear int) float64 {
	if year == 0 {
		return 0
	}
	return math.Min(1, math.Max(0, float64(year-(currentYear-10))/10))
}

func impactScore(m *models.CitationMetrics) float64 {
	if m == nil {
		return 0
	}
	rcr := math.Min(m.RelativeCitation, maxRCR)
	return math.Max(0, rcr) / maxRCR
}

func trustScore(key models.ProviderKey) float64 {
	rank := trustRank(key)
	return 1 - float64(rank)/float64(len(models.TrustRank))
}

// entityMatchScore is the fraction of query entities present in the
// record's MeSH terms or title.
func entityMatchScore(a *models.UnifiedArticle, entities []models.ResolvedEntity) float64 {
	if len(entities) == 0 {
		return 0
	}
	haystack := strings.ToLower(a.Title + " " + strings.Join(a.MeshTerms, " "))
	matched := 0
	for _, e := range entities {
		name := strings.ToLower(e.Name)
		if name != "" && strings.Contains(haystack, name) {
			matched++
			continue
		}
		if text := strings.ToLower(e.Text); text != "" && strings.Contains(haystack, text) {
			matched++
		}
	}
	return float64(matched) / float64(len(entities))
}

// bm25Scores computes Okapi BM25 for each record against the query, with
// the title field weighted 3x, normalized by the batch maximum.
func bm25Scores(articles []models.UnifiedArticle, query string) []float64 {
	scores := make([]float64, len(articles))
	queryTerms := titleTokens(query)
	if len(queryTerms) == 0 || len(articles) == 0 {
		return scores
	}

	docs := make([]map[string]float64, len(articles))
	lengths := make([]float64, len(articles))
	var totalLen float64
	for i, a := range articles {
		tf := make(map[string]float64)
		for _, t := range titleTokens(a.Title) {
			tf[t] += titleWeight
			lengths[i] += titleWeight
		}
		for _, t := range titleTokens(a.Abstract) {
			tf[t]++
			lengths[i]++
		}
		docs[i] = tf
		totalLen += lengths[i]
	}
	avgLen := totalLen / float64(len(articles))
	if avgLen == 0 {
		return scores
	}

	n := float64(len(articles))
	idf := make(map[string]float64)
	for _, term := range queryTerms {
		if _, done := idf[term]; done {
			continue
		}
		df := 0.0
		for _, doc := range docs {
			if doc[term] > 0 {
				df++
			}
		}
		idf[term] = math.Log(1 + (n-df+0.5)/(df+0.5))
	}

	maxScore := 0.0
	for i := range articles {
		s := 0.0
		for _, term := range queryTerms {
			tf := docs[i][term]
			if tf == 0 {
				continue
			}
			s += idf[term] * tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*lengths[i]/avgLen))
		}
		scores[i] = s
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore > 0 {
		for i := range scores {
			scores[i] /= maxScore
		}
	}
	return scores
}

// mmrDiversify reorders a score-sorted list: each pick maximizes
// lambda*rank_position_score - (1-lambda)*max_prior_title_similarity.
func mmrDiversify(ranked []models.UnifiedArticle) []models.UnifiedArticle {
	n := len(ranked)
	tokens := make([][]string, n)
	for i := range ranked {
		tokens[i] = titleTokens(ranked[i].Title)
	}
	// Positional score preserves the ranking order as the relevance input.
	posScore := func(i int) float64 { return 1 - float64(i)/float64(n) }

	selected := make([]int, 0, n)
	used := make([]bool, n)
	selected = append(selected, 0)
	used[0] = true

	for len(selected) < n {
		bestIdx, bestVal := -1, math.Inf(-1)
		for i := 0; i < n; i++ {
			if used[i] {
				continue
			}
			maxSim := 0.0
			for _, j := range selected {
				if sim := jaccard(tokens[i], tokens[j]); sim > maxSim {
					maxSim = sim
				}
			}
			val := mmrLambda*posScore(i) - (1-mmrLambda)*maxSim
			if val > bestVal {
				bestIdx, bestVal = i, val
			}
		}
		selected = append(selected, bestIdx)
		used[bestIdx] = true
	}

	out := make([]models.UnifiedArticle, n)
	for i, idx := range selected {
		out[i] = ranked[idx]
	}
	return out
}

// FuseRRF combines per-provider rank lists with Reciprocal Rank Fusion,
// score(r) = sum over lists of 1/(k + rank). Records are keyed by primary
// ID; ties break lexicographically.
func FuseRRF(lists [][]models.UnifiedArticle) []models.UnifiedArticle {
	type fused struct {
		article models.UnifiedArticle
		score   float64
	}
	byID := make(map[string]*fused)
	var order []string
	for _, list := range lists {
		for rank, a := range list {
			if a.ID == "" {
				continue
			}
			f, ok := byID[a.ID]
			if !ok {
				f = &fused{article: a}
				byID[a.ID] = f
				order = append(order, a.ID)
			} else {
				for _, p := range a.Provenance {
					f.article.AddProvenance(p)
				}
			}
			f.score += 1.0 / float64(rrfK+rank+1)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		fi, fj := byID[order[i]], byID[order[j]]
		if fi.score != fj.score {
			return fi.score > fj.score
		}
		return order[i] < order[j]
	})

	out := make([]models.UnifiedArticle, len(order))
	for i, id := range order {
		out[i] = byID[id].article
	}
	return out
}

var titleStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "the": true, "to": true,
	"with": true,
}

// titleTokens lowercases, strips punctuation and drops stopwords.
func titleTokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if !titleStopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

// jaccard computes set similarity over token slices.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	inter := 0
	seen := make(map[string]bool, len(b))
	for _, t := range b {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			inter++
		}
	}
	union := len(set) + len(seen) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
