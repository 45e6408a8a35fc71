package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litfuse/litfuse/internal/models"
)

const epmcSearchFixture = `{
	"hitCount": 87,
	"resultList": {
		"result": [
			{
				"id": "37654670",
				"source": "MED",
				"pmid": "37654670",
				"pmcid": "PMC10565790",
				"doi": "10.1056/NEJMoa2212663",
				"title": "Early restrictive fluid strategy in sepsis.",
				"authorString": "Shapiro NI, Douglas IS, Brower RG.",
				"journalTitle": "N Engl J Med",
				"pubYear": "2023",
				"abstractText": "Intravenous fluids are a mainstay of sepsis care.",
				"language": "ENG",
				"pubTypeList": {"pubType": ["research-article"]},
				"meshHeadingList": {"meshHeading": [
					{"descriptorName": "Sepsis"},
					{"descriptorName": "Fluid Therapy"}
				]}
			},
			{
				"id": "PPR123456",
				"source": "PPR",
				"doi": "10.1101/2023.01.01.522334",
				"title": "Fluid strategies in septic shock: a preprint",
				"authorString": "Doe J.",
				"pubYear": "2023"
			}
		]
	}
}`

func TestEuropePMCSearchNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "core", r.URL.Query().Get("resultType"))
		w.Write([]byte(epmcSearchFixture))
	}))
	defer srv.Close()

	e := NewEuropePMC(testDeps())
	e.SetBaseURL(srv.URL)

	res, err := e.Search(context.Background(), "sepsis fluids", 20, models.SearchFilters{})
	require.NoError(t, err)

	assert.True(t, res.HasTotal)
	assert.Equal(t, 87, res.TotalCount)
	require.Len(t, res.Articles, 2)

	a := res.Articles[0]
	assert.Equal(t, "37654670", a.ID)
	assert.Equal(t, "Early restrictive fluid strategy in sepsis", a.Title)
	assert.Equal(t, "Intravenous fluids are a mainstay of sepsis care.", a.Abstract)
	assert.Equal(t, 2023, a.Year)
	assert.Equal(t, "eng", a.Language)
	assert.Equal(t, []string{"Sepsis", "Fluid Therapy"}, a.MeshTerms)
	assert.False(t, a.IsPreprint)
	require.Len(t, a.Authors, 3)
	assert.Equal(t, "Brower RG", a.Authors[2].Name)

	pre := res.Articles[1]
	assert.Equal(t, "PPR:PPR123456", pre.ID)
	assert.True(t, pre.IsPreprint)
	assert.Equal(t, models.ProviderEuropePMC, pre.PrimarySource)
}

func TestEuropePMCCitingAndReferences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/MED/37654670/citations":
			w.Write([]byte(`{"citationList": {"citation": [
				{"id": "39000001", "source": "MED", "pmid": "39000001", "title": "Citing article", "pubYear": "2024"}
			]}}`))
		case "/MED/37654670/references":
			w.Write([]byte(`{"referenceList": {"reference": [
				{"id": "31978945", "source": "MED", "pmid": "31978945", "title": "Referenced article", "pubYear": "2020"}
			]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	e := NewEuropePMC(testDeps())
	e.SetBaseURL(srv.URL)
	ctx := context.Background()

	citing, err := e.Citing(ctx, "PMID:37654670", 10)
	require.NoError(t, err)
	require.Len(t, citing, 1)
	assert.Equal(t, "39000001", citing[0].ID)

	refs, err := e.References(ctx, "37654670", 10)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "31978945", refs[0].ID)
}

func TestApplyEuropePMCFilters(t *testing.T) {
	q := applyEuropePMCFilters("sepsis", models.SearchFilters{YearFrom: 2015, YearTo: 2020, Language: "english"})
	assert.Contains(t, q, "PUB_YEAR:[2015 TO 2020]")
	assert.Contains(t, q, `LANG:"eng"`)
}

func TestSplitAuthorString(t *testing.T) {
	assert.Equal(t, []string{"Shapiro NI", "Douglas IS"}, splitAuthorString("Shapiro NI, Douglas IS."))
	assert.Nil(t, splitAuthorString(""))
}
