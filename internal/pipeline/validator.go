package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// FixSeverity grades an auto-fix.
type FixSeverity string

const (
	SeverityInfo    FixSeverity = "info"
	SeverityWarning FixSeverity = "warning"
)

// ValidationFix records one auto-repair the validator applied.
type ValidationFix struct {
	StepID   string      `json:"step_id,omitempty"`
	Severity FixSeverity `json:"severity"`
	Message  string      `json:"message"`
	Before   string      `json:"before,omitempty"`
	After    string      `json:"after,omitempty"`
}

// ValidationError is an unfixable config problem.
type ValidationError struct {
	StepID  string `json:"step_id,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("step %s: %s", e.StepID, e.Message)
	}
	return e.Message
}

// actionAliases maps common synonyms onto canonical verbs before fuzzy
// matching kicks in.
var actionAliases = map[string]Action{
	"find":         ActionSearch,
	"query":        ActionSearch,
	"lookup":       ActionDetails,
	"fetch":        ActionDetails,
	"get":          ActionDetails,
	"similar":      ActionRelated,
	"cited_by":     ActionCiting,
	"citedby":      ActionCiting,
	"refs":         ActionReferences,
	"reference":    ActionReferences,
	"cite":         ActionCiting,
	"combine":      ActionMerge,
	"union":        ActionMerge,
	"dedupe":       ActionMerge,
	"enrich":       ActionMetrics,
	"score":        ActionMetrics,
	"expand_query": ActionExpand,
	"where":        ActionFilter,
	"select":       ActionFilter,
}

// paramsRequired lists the parameter each action cannot run without.
var paramsRequired = map[Action]string{
	ActionSearch: "query",
	ActionPICO:   "", // template params checked separately
	ActionExpand: "query",
}

// Validate repairs what it can and reports what it cannot. A returned
// config is guaranteed to execute without validation-class errors.
func Validate(cfg Config, knownTemplates []string) (Config, []ValidationFix, []ValidationError) {
	var fixes []ValidationFix
	var errs []ValidationError

	if cfg.Template != "" {
		if fixed, fix, ok := fuzzyResolve(cfg.Template, knownTemplates); ok {
			if fix != nil {
				fixes = append(fixes, *fix)
			}
			cfg.Template = fixed
		} else {
			errs = append(errs, ValidationError{Message: fmt.Sprintf("unknown template %q", cfg.Template)})
			return cfg, fixes, errs
		}
	}

	if len(cfg.Steps) > MaxSteps {
		errs = append(errs, ValidationError{Message: fmt.Sprintf("pipeline has %d steps, limit is %d", len(cfg.Steps), MaxSteps)})
		return cfg, fixes, errs
	}

	fixes = append(fixes, fixIDs(&cfg)...)
	actionFixes, actionErrs := fixActions(&cfg)
	fixes = append(fixes, actionFixes...)
	errs = append(errs, actionErrs...)
	if len(errs) > 0 {
		return cfg, fixes, errs
	}

	fixes = append(fixes, fixDependencies(&cfg)...)
	cycleFixes, cycleErrs := breakCycles(&cfg)
	fixes = append(fixes, cycleFixes...)
	errs = append(errs, cycleErrs...)
	if len(errs) > 0 {
		return cfg, fixes, errs
	}

	errs = append(errs, checkParams(&cfg)...)
	return cfg, fixes, errs
}

// fixIDs generates missing step IDs and dedupes collisions by suffixing.
func fixIDs(cfg *Config) []ValidationFix {
	var fixes []ValidationFix
	seen := make(map[string]int)
	for i := range cfg.Steps {
		step := &cfg.Steps[i]
		if step.ID == "" {
			step.ID = fmt.Sprintf("step_%d", i+1)
			fixes = append(fixes, ValidationFix{
				StepID:   step.ID,
				Severity: SeverityInfo,
				Message:  "generated missing step id",
				After:    step.ID,
			})
		}
		if n := seen[step.ID]; n > 0 {
			before := step.ID
			step.ID = fmt.Sprintf("%s_%d", step.ID, n+1)
			fixes = append(fixes, ValidationFix{
				StepID:   step.ID,
				Severity: SeverityWarning,
				Message:  "duplicate step id renamed",
				Before:   before,
				After:    step.ID,
			})
		}
		seen[step.ID]++
	}
	return fixes
}

// fixActions resolves aliases and fuzzy-matches unknown verbs.
func fixActions(cfg *Config) ([]ValidationFix, []ValidationError) {
	var fixes []ValidationFix
	var errs []ValidationError
	canonical := make([]string, 0, len(Actions()))
	for _, a := range Actions() {
		canonical = append(canonical, string(a))
	}

	for i := range cfg.Steps {
		step := &cfg.Steps[i]
		name := strings.ToLower(strings.TrimSpace(string(step.Action)))
		if isAction(name) {
			step.Action = Action(name)
			continue
		}
		if alias, ok := actionAliases[name]; ok {
			fixes = append(fixes, ValidationFix{
				StepID:   step.ID,
				Severity: SeverityInfo,
				Message:  "resolved action alias",
				Before:   name,
				After:    string(alias),
			})
			step.Action = alias
			continue
		}
		if fixed, fix, ok := fuzzyResolve(name, canonical); ok {
			if fix != nil {
				fix.StepID = step.ID
				fixes = append(fixes, *fix)
			}
			step.Action = Action(fixed)
			continue
		}
		errs = append(errs, ValidationError{
			StepID:  step.ID,
			Message: fmt.Sprintf("unknown action %q", step.Action),
		})
	}
	return fixes, errs
}

func isAction(name string) bool {
	for _, a := range Actions() {
		if string(a) == name {
			return true
		}
	}
	return false
}

// fixDependencies repairs broken input references by fuzzy matching to
// existing earlier step IDs; unrepairable references are dropped.
func fixDependencies(cfg *Config) []ValidationFix {
	var fixes []ValidationFix
	for i := range cfg.Steps {
		step := &cfg.Steps[i]
		prior := make([]string, 0, i)
		for j := 0; j < i; j++ {
			prior = append(prior, cfg.Steps[j].ID)
		}

		kept := step.Inputs[:0]
		for _, input := range step.Inputs {
			if contains(prior, input) {
				kept = append(kept, input)
				continue
			}
			if fixed, fix, ok := fuzzyResolve(input, prior); ok {
				if fix != nil {
					fix.StepID = step.ID
					fix.Message = "repaired dependency reference"
					fixes = append(fixes, *fix)
				}
				kept = append(kept, fixed)
				continue
			}
			fixes = append(fixes, ValidationFix{
				StepID:   step.ID,
				Severity: SeverityWarning,
				Message:  "dropped unresolvable dependency reference",
				Before:   input,
			})
		}
		step.Inputs = kept
	}
	return fixes
}

// breakCycles drops back-edges until the step graph is a DAG. Among the
// back-edges of a cycle, the one with the highest lexicographic source id
// goes first. Fails when breaking would leave no steps.
func breakCycles(cfg *Config) ([]ValidationFix, []ValidationError) {
	var fixes []ValidationFix
	for {
		backEdges := findBackEdges(cfg.Steps)
		if len(backEdges) == 0 {
			return fixes, nil
		}
		sort.Slice(backEdges, func(i, j int) bool {
			if backEdges[i].from != backEdges[j].from {
				return backEdges[i].from > backEdges[j].from
			}
			return backEdges[i].to > backEdges[j].to
		})
		drop := backEdges[0]

		dropped := false
		for i := range cfg.Steps {
			step := &cfg.Steps[i]
			if step.ID != drop.from {
				continue
			}
			kept := step.Inputs[:0]
			for _, input := range step.Inputs {
				if input == drop.to && !dropped {
					dropped = true
					continue
				}
				kept = append(kept, input)
			}
			step.Inputs = kept
		}
		if !dropped {
			return fixes, []ValidationError{{Message: "cycle could not be broken"}}
		}
		fixes = append(fixes, ValidationFix{
			StepID:   drop.from,
			Severity: SeverityWarning,
			Message:  "dropped cyclic dependency",
			Before:   drop.to,
		})
	}
}

type edge struct{ from, to string }

// findBackEdges DFS-colors the dependency graph and collects edges into
// gray nodes.
func findBackEdges(steps []Step) []edge {
	adj := make(map[string][]string, len(steps))
	for _, s := range steps {
		adj[s.ID] = s.Inputs
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(steps))
	var backEdges []edge

	var visit func(id string)
	visit = func(id string) {
		color[id] = gray
		for _, dep := range adj[id] {
			switch color[dep] {
			case white:
				visit(dep)
			case gray:
				backEdges = append(backEdges, edge{from: id, to: dep})
			}
		}
		color[id] = black
	}
	for _, s := range steps {
		if color[s.ID] == white {
			visit(s.ID)
		}
	}
	return backEdges
}

// checkParams verifies required parameters after all structural repair.
func checkParams(cfg *Config) []ValidationError {
	var errs []ValidationError
	for _, step := range cfg.Steps {
		required := paramsRequired[step.Action]
		if required == "" {
			continue
		}
		if v, ok := step.Params[required]; !ok || v == "" {
			// Steps fed by upstream outputs may derive the parameter.
			if len(step.Inputs) > 0 {
				continue
			}
			errs = append(errs, ValidationError{
				StepID:  step.ID,
				Message: fmt.Sprintf("action %s requires param %q", step.Action, required),
			})
		}
	}
	return errs
}

// fuzzyResolve matches a name against candidates with edit distance <= 2.
// Exact matches return without a fix record.
func fuzzyResolve(name string, candidates []string) (string, *ValidationFix, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if contains(candidates, name) {
		return name, nil, true
	}
	best, bestDist := "", 3
	for _, c := range candidates {
		if d := levenshtein(name, strings.ToLower(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	if best == "" {
		return "", nil, false
	}
	return best, &ValidationFix{
		Severity: SeverityWarning,
		Message:  "fuzzy-matched name",
		Before:   name,
		After:    best,
	}, true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minOf(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minOf(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
