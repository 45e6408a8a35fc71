package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	literrors "github.com/litfuse/litfuse/internal/errors"
	"github.com/litfuse/litfuse/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), t.TempDir())
}

func sampleConfig(name string, scope Scope) Config {
	return Config{
		Name:  name,
		Scope: scope,
		Steps: []Step{
			{ID: "scan", Action: ActionSearch, Params: map[string]any{"query": "sepsis"}},
		},
		Output: Output{Format: "markdown", Limit: 10},
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"My Review", "my-review"},
		{"  spaced out  ", "spaced-out"},
		{"weird!@#chars", "weirdchars"},
		{"under_score-ok", "under_score-ok"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in))
	}

	long := NormalizeName(strings.Repeat("a", 100))
	assert.Len(t, long, 64)
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	name, err := s.Save(sampleConfig("My Sepsis Review", ScopeWorkspace))
	require.NoError(t, err)
	assert.Equal(t, "my-sepsis-review", name)

	loaded, scope, err := s.Load("My Sepsis Review")
	require.NoError(t, err)
	assert.Equal(t, ScopeWorkspace, scope)
	assert.Equal(t, "my-sepsis-review", loaded.Name)
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, ActionSearch, loaded.Steps[0].Action)
	assert.Equal(t, "sepsis", loaded.Steps[0].Params["query"])

	// The config lands as YAML under pipelines/.
	_, statErr := os.Stat(filepath.Join(s.workspace.pipelinesDir(), "my-sepsis-review.yaml"))
	assert.NoError(t, statErr)
}

func TestStoreSaveRequiresName(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Save(sampleConfig("", ScopeWorkspace))
	require.Error(t, err)
	assert.ErrorIs(t, err, literrors.ErrInvalidInput)
}

func TestStoreLoadWorkspaceShadowsGlobal(t *testing.T) {
	s := newTestStore(t)

	global := sampleConfig("shared", ScopeGlobal)
	global.Output.Limit = 99
	_, err := s.Save(global)
	require.NoError(t, err)

	ws := sampleConfig("shared", ScopeWorkspace)
	ws.Output.Limit = 5
	_, err = s.Save(ws)
	require.NoError(t, err)

	loaded, scope, err := s.Load("shared")
	require.NoError(t, err)
	assert.Equal(t, ScopeWorkspace, scope)
	assert.Equal(t, 5, loaded.Output.Limit)
}

func TestStoreLoadNotFound(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.Load("nope")
	require.Error(t, err)
	assert.True(t, literrors.IsNotFound(err))
}

func TestStoreListMergesScopes(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Save(sampleConfig("alpha", ScopeWorkspace))
	require.NoError(t, err)
	_, err = s.Save(sampleConfig("beta", ScopeGlobal))
	require.NoError(t, err)
	_, err = s.Save(sampleConfig("alpha", ScopeGlobal)) // shadowed
	require.NoError(t, err)

	entries := s.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "alpha", entries[0].Name)
	assert.Equal(t, "beta", entries[1].Name)
	assert.Equal(t, 1, entries[0].Steps)
}

func TestStoreSaveUpdatesExistingEntry(t *testing.T) {
	s := newTestStore(t)

	cfg := sampleConfig("review", ScopeWorkspace)
	_, err := s.Save(cfg)
	require.NoError(t, err)

	cfg.Steps = append(cfg.Steps, Step{ID: "extra", Action: ActionMetrics, Inputs: []string{"scan"}})
	_, err = s.Save(cfg)
	require.NoError(t, err)

	entries := s.List()
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Steps)
}

func TestStoreDelete(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Save(sampleConfig("doomed", ScopeWorkspace))
	require.NoError(t, err)
	require.NoError(t, s.Delete("doomed"))

	_, _, err = s.Load("doomed")
	assert.True(t, literrors.IsNotFound(err))
	assert.Empty(t, s.List())

	err = s.Delete("doomed")
	require.Error(t, err)
	assert.True(t, literrors.IsNotFound(err))
}

func TestStoreRunHistory(t *testing.T) {
	s := newTestStore(t)
	hash := "abc123def456"

	for i, started := range []time.Time{
		time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC),
	} {
		run := &Run{
			ID:         "01J" + string(rune('A'+i)),
			ConfigHash: hash,
			StartedAt:  started,
			Steps:      []StepResult{{StepID: "scan", Action: ActionSearch, OutCount: 3}},
		}
		require.NoError(t, s.RecordRun(ScopeWorkspace, run))
	}

	runs, err := s.History(hash, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	// Newest first.
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))
	assert.True(t, runs[1].StartedAt.After(runs[2].StartedAt))
	require.Len(t, runs[0].Steps, 1)
	assert.Equal(t, 3, runs[0].Steps[0].OutCount)

	limited, err := s.History(hash, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	empty, err := s.History("unknownhash", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStoreHistoryDropsBulkOutput(t *testing.T) {
	s := newTestStore(t)
	full := &Run{
		ID:         "01JRUN",
		ConfigHash: "feed",
		StartedAt:  time.Now().UTC(),
		Output:     []models.UnifiedArticle{{ID: "1", Title: "kept on disk only"}},
	}
	require.NoError(t, s.RecordRun(ScopeWorkspace, full))

	runs, err := s.History("feed", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].Output)
}
