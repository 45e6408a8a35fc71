package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestICiteMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pubs", r.URL.Path)
		assert.Equal(t, "37654670,31978945", r.URL.Query().Get("pmids"))
		w.Write([]byte(`{"data": [
			{"pmid": 37654670, "year": 2023, "citation_count": 210, "relative_citation_ratio": 4.2,
			 "nih_percentile": 97.5, "citations_per_year": 105, "apt": 0.95, "is_clinical": "Yes"},
			{"pmid": 31978945, "year": 2020, "citation_count": 18000, "relative_citation_ratio": 0,
			 "nih_percentile": 0, "citations_per_year": 3600, "apt": 0.5, "is_clinical": "No"}
		]}`))
	}))
	defer srv.Close()

	i := NewICite(testDeps())
	i.SetBaseURL(srv.URL)

	// Non-numeric IDs are dropped before the request.
	metrics, err := i.Metrics(context.Background(), []string{"37654670", "10.1056/NEJMoa2212663", "PMID:31978945"})
	require.NoError(t, err)
	require.Len(t, metrics, 2)

	m := metrics["37654670"]
	assert.Equal(t, 210, m.CitationCount)
	assert.Equal(t, 4.2, m.RelativeCitation)
	assert.Equal(t, 97.5, m.Percentile)
	assert.Equal(t, 105.0, m.CitationsPerYear)
	assert.True(t, m.IsClinical)
	assert.False(t, metrics["31978945"].IsClinical)
}

func TestICiteMetricsChunksBatches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		n := len(strings.Split(r.URL.Query().Get("pmids"), ","))
		assert.LessOrEqual(t, n, 100)
		w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	i := NewICite(testDeps())
	i.SetBaseURL(srv.URL)

	ids := make([]string, 150)
	for n := range ids {
		ids[n] = fmt.Sprintf("%d", 30000000+n)
	}
	_, err := i.Metrics(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
