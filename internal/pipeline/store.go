package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	literrors "github.com/litfuse/litfuse/internal/errors"
)

const maxNameLength = 64

var nameCleaner = regexp.MustCompile(`[^a-z0-9_-]`)

// NormalizeName canonicalizes a pipeline name: lowercase, spaces to
// hyphens, stripped of everything else, capped at 64 characters.
func NormalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, " ", "-")
	n = nameCleaner.ReplaceAllString(n, "")
	if len(n) > maxNameLength {
		n = n[:maxNameLength]
	}
	return n
}

// IndexEntry is one pipeline's metadata in index.json.
type IndexEntry struct {
	Name       string    `json:"name"`
	Hash       string    `json:"hash"`
	Template   string    `json:"template,omitempty"`
	Steps      int       `json:"steps"`
	SavedAt    time.Time `json:"saved_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// scopeDir is one persistence root: configs under pipelines/, history
// under runs/<hash>/.
type scopeDir struct {
	root string
}

func (d scopeDir) pipelinesDir() string { return filepath.Join(d.root, "pipelines") }
func (d scopeDir) runsDir() string      { return filepath.Join(d.root, "runs") }
func (d scopeDir) configPath(name string) string {
	return filepath.Join(d.pipelinesDir(), name+".yaml")
}
func (d scopeDir) indexPath() string {
	return filepath.Join(d.pipelinesDir(), "index.json")
}

// Store persists pipeline configs and run history across the workspace
// and global scopes. File writes are serialized; an fsnotify watcher
// invalidates the in-memory index when configs change on disk.
type Store struct {
	workspace scopeDir
	global    scopeDir

	mu      sync.Mutex
	indexes map[Scope][]IndexEntry // nil = needs reload
	watcher *fsnotify.Watcher
}

// NewStore creates a store over the two scope roots. Directories are
// created lazily on first write.
func NewStore(workspaceRoot, globalRoot string) *Store {
	return &Store{
		workspace: scopeDir{root: workspaceRoot},
		global:    scopeDir{root: globalRoot},
		indexes:   make(map[Scope][]IndexEntry),
	}
}

// Watch starts invalidating cached indexes when pipeline files change.
// Missing directories are skipped; call again after the first save to pick
// them up.
func (s *Store) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range []string{s.workspace.pipelinesDir(), s.global.pipelinesDir()} {
		if _, statErr := os.Stat(dir); statErr == nil {
			if addErr := w.Add(dir); addErr != nil {
				log.Warn().Str("dir", dir).Err(addErr).Msg("Pipeline watch failed")
			}
		}
	}
	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					s.mu.Lock()
					s.indexes = make(map[Scope][]IndexEntry)
					s.mu.Unlock()
					log.Debug().Str("file", event.Name).Msg("Pipeline store invalidated")
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("Pipeline watcher error")
			}
		}
	}()
	return nil
}

// Close stops the watcher.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *Store) dir(scope Scope) scopeDir {
	if scope == ScopeWorkspace {
		return s.workspace
	}
	return s.global
}

// Save writes the config YAML and updates the scope index.
func (s *Store) Save(cfg Config) (string, error) {
	name := NormalizeName(cfg.Name)
	if name == "" {
		return "", literrors.WrapValidation("save_pipeline", fmt.Errorf("pipeline name is required"))
	}
	cfg.Name = name
	scope := cfg.Scope
	if scope == "" {
		scope = ScopeWorkspace
	}
	dir := s.dir(scope)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dir.pipelinesDir(), 0o755); err != nil {
		return "", literrors.WrapConfig("save_pipeline", err)
	}
	raw, err := yaml.Marshal(&cfg)
	if err != nil {
		return "", literrors.WrapPermanent("save_pipeline", "", err)
	}
	if err := os.WriteFile(dir.configPath(name), raw, 0o644); err != nil {
		return "", literrors.WrapConfig("save_pipeline", err)
	}

	entries := s.loadIndexLocked(scope)
	now := time.Now().UTC()
	entry := IndexEntry{
		Name:       name,
		Hash:       cfg.Hash(),
		Template:   cfg.Template,
		Steps:      len(cfg.Steps),
		SavedAt:    now,
		ModifiedAt: now,
	}
	replaced := false
	for i := range entries {
		if entries[i].Name == name {
			entry.SavedAt = entries[i].SavedAt
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	if err := s.writeIndexLocked(scope, entries); err != nil {
		return "", err
	}
	return name, nil
}

// Load resolves a name: workspace first, then global.
func (s *Store) Load(name string) (*Config, Scope, error) {
	name = NormalizeName(name)
	for _, scope := range []Scope{ScopeWorkspace, ScopeGlobal} {
		raw, err := os.ReadFile(s.dir(scope).configPath(name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, "", literrors.WrapConfig("load_pipeline", err)
		}
		var cfg Config
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, "", literrors.WrapPermanent("load_pipeline", "", err)
		}
		cfg.Scope = scope
		return &cfg, scope, nil
	}
	return nil, "", literrors.WrapNotFound("load_pipeline", "",
		fmt.Errorf("pipeline %q: %w", name, literrors.ErrNotFound))
}

// List returns the merged index, workspace entries shadowing global ones.
func (s *Store) List() []IndexEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	workspace := s.loadIndexLocked(ScopeWorkspace)
	global := s.loadIndexLocked(ScopeGlobal)

	seen := make(map[string]bool, len(workspace))
	out := make([]IndexEntry, 0, len(workspace)+len(global))
	for _, e := range workspace {
		seen[e.Name] = true
		out = append(out, e)
	}
	for _, e := range global {
		if !seen[e.Name] {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Delete removes a config from the first scope that has it.
func (s *Store) Delete(name string) error {
	name = NormalizeName(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, scope := range []Scope{ScopeWorkspace, ScopeGlobal} {
		path := s.dir(scope).configPath(name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := os.Remove(path); err != nil {
			return literrors.WrapConfig("delete_pipeline", err)
		}
		entries := s.loadIndexLocked(scope)
		kept := entries[:0]
		for _, e := range entries {
			if e.Name != name {
				kept = append(kept, e)
			}
		}
		return s.writeIndexLocked(scope, kept)
	}
	return literrors.WrapNotFound("delete_pipeline", "",
		fmt.Errorf("pipeline %q: %w", name, literrors.ErrNotFound))
}

// RecordRun appends a run to the history of its config hash.
func (s *Store) RecordRun(scope Scope, run *Run) error {
	if scope == "" {
		scope = ScopeWorkspace
	}
	dir := filepath.Join(s.dir(scope).runsDir(), run.ConfigHash)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return literrors.WrapConfig("record_run", err)
	}
	raw, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return literrors.WrapPermanent("record_run", "", err)
	}
	path := filepath.Join(dir, run.StartedAt.UTC().Format("20060102T150405.000Z")+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return literrors.WrapConfig("record_run", err)
	}
	return nil
}

// History lists runs for a config hash, newest first, across both scopes.
func (s *Store) History(hash string, limit int) ([]Run, error) {
	var runs []Run
	for _, scope := range []Scope{ScopeWorkspace, ScopeGlobal} {
		dir := filepath.Join(s.dir(scope).runsDir(), hash)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, literrors.WrapConfig("pipeline_history", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				continue
			}
			var run Run
			if err := json.Unmarshal(raw, &run); err != nil {
				log.Debug().Str("file", entry.Name()).Err(err).Msg("Skipping unreadable run record")
				continue
			}
			// Final outputs are bulky; history carries step summaries only.
			run.Output = nil
			runs = append(runs, run)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *Store) loadIndexLocked(scope Scope) []IndexEntry {
	if cached, ok := s.indexes[scope]; ok && cached != nil {
		return cached
	}
	raw, err := os.ReadFile(s.dir(scope).indexPath())
	if err != nil {
		s.indexes[scope] = []IndexEntry{}
		return nil
	}
	var entries []IndexEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		log.Warn().Str("scope", string(scope)).Err(err).Msg("Corrupt pipeline index, rebuilding")
		entries = nil
	}
	s.indexes[scope] = entries
	return entries
}

func (s *Store) writeIndexLocked(scope Scope, entries []IndexEntry) error {
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return literrors.WrapPermanent("write_index", "", err)
	}
	if err := os.WriteFile(s.dir(scope).indexPath(), raw, 0o644); err != nil {
		return literrors.WrapConfig("write_index", err)
	}
	s.indexes[scope] = entries
	return nil
}
