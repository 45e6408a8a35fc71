// Package pipeline implements the declarative DAG workflow engine: a
// validated list of steps, each running one action over upstream outputs,
// plus YAML persistence and run history.
package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/litfuse/litfuse/internal/models"
)

// Action is one of the ten step verbs.
type Action string

const (
	ActionSearch     Action = "search"
	ActionPICO       Action = "pico"
	ActionExpand     Action = "expand"
	ActionDetails    Action = "details"
	ActionRelated    Action = "related"
	ActionCiting     Action = "citing"
	ActionReferences Action = "references"
	ActionMetrics    Action = "metrics"
	ActionMerge      Action = "merge"
	ActionFilter     Action = "filter"
)

// Actions lists every valid verb.
func Actions() []Action {
	return []Action{
		ActionSearch, ActionPICO, ActionExpand, ActionDetails, ActionRelated,
		ActionCiting, ActionReferences, ActionMetrics, ActionMerge, ActionFilter,
	}
}

// OnError selects the step failure policy.
type OnError string

const (
	OnErrorSkip  OnError = "skip"  // pass empty output downstream, continue
	OnErrorAbort OnError = "abort" // terminate with a partial report
)

// MaxSteps caps the pipeline length.
const MaxSteps = 20

// Step is one node of the pipeline DAG.
type Step struct {
	ID      string         `yaml:"id" json:"id"`
	Action  Action         `yaml:"action" json:"action"`
	Params  map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
	Inputs  []string       `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	OnError OnError        `yaml:"on_error,omitempty" json:"on_error,omitempty"`
}

// Output configures the pipeline's final rendering.
type Output struct {
	Format  string                `yaml:"format,omitempty" json:"format,omitempty"` // markdown | json
	Limit   int                   `yaml:"limit,omitempty" json:"limit,omitempty"`
	Ranking models.RankingProfile `yaml:"ranking,omitempty" json:"ranking,omitempty"`
}

// Scope selects the persistence store.
type Scope string

const (
	ScopeWorkspace Scope = "workspace"
	ScopeGlobal    Scope = "global"
)

// Config is a complete pipeline definition.
type Config struct {
	Name           string            `yaml:"name,omitempty" json:"name,omitempty"`
	Template       string            `yaml:"template,omitempty" json:"template,omitempty"`
	TemplateParams map[string]string `yaml:"template_params,omitempty" json:"template_params,omitempty"`
	Steps          []Step            `yaml:"steps,omitempty" json:"steps,omitempty"`
	Output         Output            `yaml:"output,omitempty" json:"output,omitempty"`
	Scope          Scope             `yaml:"scope,omitempty" json:"scope,omitempty"`
}

// Hash returns the SHA-256 content hash linking configs to run history.
// Name and scope are excluded; two identical workflows share history.
func (c *Config) Hash() string {
	clone := *c
	clone.Name = ""
	clone.Scope = ""
	raw, err := yaml.Marshal(&clone)
	if err != nil {
		raw = []byte(c.Name)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}

// StepResult is the output of one executed step.
type StepResult struct {
	StepID   string                  `json:"step_id"`
	Action   Action                  `json:"action"`
	Articles []models.UnifiedArticle `json:"articles,omitempty"`
	IDs      []string                `json:"ids,omitempty"`
	Metadata map[string]any          `json:"metadata,omitempty"`
	Err      string                  `json:"error,omitempty"`
	Duration time.Duration           `json:"duration"`
	InCount  int                     `json:"input_count"`
	OutCount int                     `json:"output_count"`
}

// Run is the record of one pipeline execution.
type Run struct {
	ID         string                  `json:"id"` // ULID
	ConfigHash string                  `json:"config_hash"`
	Name       string                  `json:"name,omitempty"`
	StartedAt  time.Time               `json:"started_at"`
	Duration   time.Duration           `json:"duration"`
	Steps      []StepResult            `json:"steps"`
	Output     []models.UnifiedArticle `json:"output,omitempty"`
	Aborted    bool                    `json:"aborted,omitempty"`
	AbortStep  string                  `json:"abort_step,omitempty"`
}
