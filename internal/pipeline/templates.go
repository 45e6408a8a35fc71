package pipeline

import (
	"fmt"
	"strings"

	literrors "github.com/litfuse/litfuse/internal/errors"
	"github.com/litfuse/litfuse/internal/models"
)

// TemplateParam describes one template parameter for describe_template.
type TemplateParam struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     string `json:"default,omitempty"`
}

// Template is a named pipeline generator.
type Template struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Params      []TemplateParam `json:"params"`
	expand      func(params map[string]string) ([]Step, Output)
}

var templates = map[string]Template{
	"pico": {
		Name:        "pico",
		Description: "Clinical-question decomposition: parallel searches on Population, Intervention, Comparison and Outcome fragments, fused by reciprocal rank.",
		Params: []TemplateParam{
			{Name: "P", Description: "Population", Required: true},
			{Name: "I", Description: "Intervention", Required: true},
			{Name: "C", Description: "Comparison", Required: false},
			{Name: "O", Description: "Outcome", Required: false},
		},
		expand: expandPICO,
	},
	"evidence": {
		Name:        "evidence",
		Description: "Evidence scan: topic search restricted to high-evidence article types plus a citation-metrics pass.",
		Params: []TemplateParam{
			{Name: "topic", Description: "Search topic", Required: true},
			{Name: "year_from", Description: "Earliest publication year", Required: false, Default: "2000"},
		},
		expand: expandEvidence,
	},
	"citation_context": {
		Name:        "citation_context",
		Description: "Citation context: fetch a seed article, list citing articles and references, merge into one ranked view.",
		Params: []TemplateParam{
			{Name: "id", Description: "Seed article ID", Required: true},
			{Name: "limit", Description: "Per-direction fan-out", Required: false, Default: "20"},
		},
		expand: expandCitationContext,
	},
}

// TemplateNames lists the known templates.
func TemplateNames() []string {
	return []string{"pico", "evidence", "citation_context"}
}

// DescribeTemplate surfaces a template's parameters and defaults.
func DescribeTemplate(name string) (*Template, error) {
	t, ok := templates[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, literrors.WrapValidation("describe_template",
			fmt.Errorf("unknown template %q, expected one of %v", name, TemplateNames()))
	}
	return &t, nil
}

// ExpandTemplate materializes a config's template reference into concrete
// steps. Configs without a template, or already expanded, pass through;
// expansion is idempotent.
func ExpandTemplate(cfg Config) (Config, error) {
	if cfg.Template == "" || len(cfg.Steps) > 0 {
		return cfg, nil
	}
	t, err := DescribeTemplate(cfg.Template)
	if err != nil {
		return cfg, err
	}
	for _, p := range t.Params {
		if p.Required && cfg.TemplateParams[p.Name] == "" {
			return cfg, literrors.WrapValidation("expand_template",
				fmt.Errorf("template %s requires param %q", t.Name, p.Name))
		}
	}
	params := make(map[string]string, len(cfg.TemplateParams))
	for _, p := range t.Params {
		if v := cfg.TemplateParams[p.Name]; v != "" {
			params[p.Name] = v
		} else if p.Default != "" {
			params[p.Name] = p.Default
		}
	}

	steps, output := t.expand(params)
	cfg.Steps = steps
	if cfg.Output.Format == "" {
		cfg.Output.Format = output.Format
	}
	if cfg.Output.Limit == 0 {
		cfg.Output.Limit = output.Limit
	}
	if cfg.Output.Ranking == "" {
		cfg.Output.Ranking = output.Ranking
	}
	return cfg, nil
}

func expandPICO(params map[string]string) ([]Step, Output) {
	fragments := []struct{ key, id string }{
		{"P", "population"},
		{"I", "intervention"},
		{"C", "comparison"},
		{"O", "outcome"},
	}
	var steps []Step
	var inputs []string
	for _, f := range fragments {
		term := params[f.key]
		if term == "" {
			continue
		}
		steps = append(steps, Step{
			ID:      f.id,
			Action:  ActionSearch,
			Params:  map[string]any{"query": term},
			OnError: OnErrorSkip,
		})
		inputs = append(inputs, f.id)
	}
	steps = append(steps, Step{
		ID:     "fuse",
		Action: ActionMerge,
		Params: map[string]any{"fusion": "rrf"},
		Inputs: inputs,
	})
	return steps, Output{Format: "markdown", Limit: 20, Ranking: models.ProfileClinical}
}

func expandEvidence(params map[string]string) ([]Step, Output) {
	steps := []Step{
		{
			ID:     "scan",
			Action: ActionSearch,
			Params: map[string]any{
				"query":     params["topic"],
				"year_from": params["year_from"],
				"article_types": []string{
					"systematic review", "meta-analysis", "randomized controlled trial",
				},
			},
		},
		{
			ID:      "enrich",
			Action:  ActionMetrics,
			Inputs:  []string{"scan"},
			OnError: OnErrorSkip,
		},
	}
	return steps, Output{Format: "markdown", Limit: 20, Ranking: models.ProfileQuality}
}

func expandCitationContext(params map[string]string) ([]Step, Output) {
	limit := params["limit"]
	steps := []Step{
		{
			ID:     "seed",
			Action: ActionDetails,
			Params: map[string]any{"ids": params["id"]},
		},
		{
			ID:      "citing",
			Action:  ActionCiting,
			Params:  map[string]any{"limit": limit},
			Inputs:  []string{"seed"},
			OnError: OnErrorSkip,
		},
		{
			ID:      "references",
			Action:  ActionReferences,
			Params:  map[string]any{"limit": limit},
			Inputs:  []string{"seed"},
			OnError: OnErrorSkip,
		},
		{
			ID:     "context",
			Action: ActionMerge,
			Inputs: []string{"seed", "citing", "references"},
		},
	}
	return steps, Output{Format: "markdown", Limit: 30, Ranking: models.ProfileImpact}
}
