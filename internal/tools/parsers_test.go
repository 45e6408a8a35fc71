package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFiltersString(t *testing.T) {
	filters, warnings := ParseFilters("year:2015-2024, sex:f, species:humans, type:randomized controlled trial;review, min_citations:10, clinical:therapy, lang:en")
	assert.Empty(t, warnings)

	assert.Equal(t, 2015, filters.YearFrom)
	assert.Equal(t, 2024, filters.YearTo)
	assert.Equal(t, "f", filters.Sex)
	assert.Equal(t, "humans", filters.Species)
	assert.Equal(t, []string{"randomized controlled trial", "review"}, filters.ArticleTypes)
	assert.Equal(t, 10, filters.MinCitations)
	assert.Equal(t, "therapy", filters.ClinicalQuery)
	assert.Equal(t, "en", filters.Language)
}

func TestParseFiltersYearForms(t *testing.T) {
	single, warnings := ParseFilters("year:2019")
	assert.Empty(t, warnings)
	assert.Equal(t, 2019, single.YearFrom)
	assert.Equal(t, 2019, single.YearTo)

	open, warnings := ParseFilters("year:2019-")
	assert.Empty(t, warnings)
	assert.Equal(t, 2019, open.YearFrom)
	assert.Zero(t, open.YearTo)

	bad, warnings := ParseFilters("year:abc")
	require.Len(t, warnings, 1)
	assert.Zero(t, bad.YearFrom)

	_, warnings = ParseFilters("year:2024-2015")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "precedes")
}

func TestParseFiltersWarnings(t *testing.T) {
	filters, warnings := ParseFilters("age:elderly, nonsense, color:blue, min_citations:lots")
	assert.Equal(t, "elderly", filters.AgeGroup)
	require.Len(t, warnings, 3)
	assert.Contains(t, warnings[0], "expected key:value")
	assert.Contains(t, warnings[1], `unknown filter key "color"`)
	assert.Contains(t, warnings[2], "not an integer")
}

func TestParseFiltersMap(t *testing.T) {
	filters, warnings := ParseFilters(map[string]any{
		"year_from":     2020,
		"year_to":       2024,
		"age_group":     "adult",
		"article_types": "meta-analysis",
		"bogus":         true,
	})
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "bogus")

	assert.Equal(t, 2020, filters.YearFrom)
	assert.Equal(t, 2024, filters.YearTo)
	assert.Equal(t, "adult", filters.AgeGroup)
	assert.Equal(t, []string{"meta-analysis"}, filters.ArticleTypes)
}

func TestParseFiltersNilAndUnknownType(t *testing.T) {
	filters, warnings := ParseFilters(nil)
	assert.Empty(t, warnings)
	assert.Zero(t, filters.YearFrom)

	_, warnings = ParseFilters(42)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "unrecognized filters type")
}

func TestParseOptionsString(t *testing.T) {
	opts, warnings := ParseOptions("preprints, shallow,no_relax")
	assert.Empty(t, warnings)
	assert.True(t, opts.Preprints)
	assert.True(t, opts.Shallow)
	assert.True(t, opts.NoRelax)
	assert.False(t, opts.AllTypes)

	_, warnings = ParseOptions("warp_speed")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "warp_speed")
}

func TestParseOptionsMap(t *testing.T) {
	opts, warnings := ParseOptions(map[string]any{
		"preprints": true,
		"no_oa":     false,
		"all_types": true,
	})
	assert.Empty(t, warnings)
	assert.True(t, opts.Preprints)
	assert.False(t, opts.NoOA)
	assert.True(t, opts.AllTypes)
}

func TestParseOptionsAliases(t *testing.T) {
	opts, warnings := ParseOptions("no_peer_review")
	assert.Empty(t, warnings)
	assert.True(t, opts.AllTypes)
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{
		"s":    "hello",
		"n":    float64(7), // JSON numbers decode as float64
		"ns":   "12",
		"list": []any{"a", "b", 3},
		"csv":  "x, y",
	}

	assert.Equal(t, "hello", argString(args, "s"))
	assert.Equal(t, "7", argString(args, "n"))
	assert.Equal(t, "", argString(args, "missing"))

	assert.Equal(t, 7, argInt(args, "n", 0))
	assert.Equal(t, 12, argInt(args, "ns", 0))
	assert.Equal(t, 9, argInt(args, "missing", 9))

	assert.Equal(t, []string{"a", "b"}, argStrings(args, "list"))
	assert.Equal(t, []string{"x", "y"}, argStrings(args, "csv"))
	assert.Nil(t, argStrings(args, "missing"))
}
