package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	literrors "github.com/litfuse/litfuse/internal/errors"
	"github.com/litfuse/litfuse/internal/pipeline"
)

func (e *Executor) registerPipelineTools() {
	e.registry.Register(Tool{
		Name:        "run_pipeline",
		Description: "Execute a declarative pipeline: a DAG of search, lookup, merge and filter steps, inline or loaded by saved name. Configs are auto-repaired before execution.",
		InputSchema: objectSchema(map[string]PropertySchema{
			"config": PropertySchema{Type: "object", Description: "Inline pipeline config (steps, template, output)"},
			"name":   stringProp("Saved pipeline name, used when no inline config is given"),
		}),
	}, e.handleRunPipeline)

	e.registry.Register(Tool{
		Name:        "save_pipeline",
		Description: "Persist a pipeline config to the workspace or global store.",
		InputSchema: objectSchema(map[string]PropertySchema{
			"config": PropertySchema{Type: "object", Description: "Pipeline config to save; must carry a name"},
			"scope":  enumProp("Persistence scope", "workspace", "global"),
		}, "config"),
	}, e.handleSavePipeline)

	e.registry.Register(Tool{
		Name:        "list_pipelines",
		Description: "List saved pipelines across both scopes; workspace entries shadow global ones.",
		InputSchema: objectSchema(map[string]PropertySchema{}),
	}, e.handleListPipelines)

	e.registry.Register(Tool{
		Name:        "load_pipeline",
		Description: "Load a saved pipeline config, resolving workspace first, then global.",
		InputSchema: objectSchema(map[string]PropertySchema{
			"name": stringProp("Saved pipeline name"),
		}, "name"),
	}, e.handleLoadPipeline)

	e.registry.Register(Tool{
		Name:        "delete_pipeline",
		Description: "Delete a saved pipeline from the first scope that has it.",
		InputSchema: objectSchema(map[string]PropertySchema{
			"name": stringProp("Saved pipeline name"),
		}, "name"),
	}, e.handleDeletePipeline)

	e.registry.Register(Tool{
		Name:        "get_pipeline_history",
		Description: "List past runs of a pipeline, newest first, keyed by its content hash.",
		InputSchema: objectSchema(map[string]PropertySchema{
			"name":  stringProp("Saved pipeline name"),
			"hash":  stringProp("Config hash, used when no name is given"),
			"limit": intProp("Maximum runs", 10),
		}),
	}, e.handlePipelineHistory)

	e.registry.Register(Tool{
		Name:        "describe_template",
		Description: "Describe a pipeline template: its parameters, defaults and generated steps.",
		InputSchema: objectSchema(map[string]PropertySchema{
			"name": enumProp("Template name", pipeline.TemplateNames()...),
		}, "name"),
	}, e.handleDescribeTemplate)
}

// decodeConfig converts a loosely typed args object into a Config.
func decodeConfig(v any) (pipeline.Config, error) {
	var cfg pipeline.Config
	raw, err := json.Marshal(v)
	if err != nil {
		return cfg, literrors.WrapValidation("pipeline_config", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, literrors.WrapValidation("pipeline_config", fmt.Errorf("malformed pipeline config: %w", err))
	}
	return cfg, nil
}

func (e *Executor) handleRunPipeline(ctx context.Context, args map[string]any) CallToolResult {
	var cfg pipeline.Config
	switch {
	case args["config"] != nil:
		decoded, err := decodeConfig(args["config"])
		if err != nil {
			return NewErrorResult(err)
		}
		cfg = decoded
	case argString(args, "name") != "":
		loaded, _, err := e.deps.Store.Load(argString(args, "name"))
		if err != nil {
			return NewErrorResult(err)
		}
		cfg = *loaded
	default:
		return NewValidationError("config or name is required",
			"Pass an inline config or the name of a saved pipeline.",
			`{"config": {"template": "pico", "template_params": {"P": "adults with sepsis", "I": "early antibiotics"}}}`)
	}

	expanded, err := pipeline.ExpandTemplate(cfg)
	if err != nil {
		return NewErrorResult(err)
	}
	validated, fixes, errs := pipeline.Validate(expanded, pipeline.TemplateNames())
	if len(errs) > 0 {
		return NewJSONResult(map[string]any{
			"errors": errs,
			"fixes":  fixes,
		})
	}

	run, err := e.deps.Pipelines.Execute(ctx, validated)
	if err != nil {
		return NewErrorResult(err)
	}
	if serr := e.deps.Store.RecordRun(validated.Scope, run); serr != nil {
		// History is best effort; the run result still stands.
		run.Steps = append(run.Steps, pipeline.StepResult{
			StepID: "history",
			Err:    serr.Error(),
		})
	}

	if strings.EqualFold(validated.Output.Format, "json") || validated.Output.Format == "" {
		return NewJSONResult(map[string]any{"run": run, "fixes": fixes})
	}
	return NewTextResult(renderRunMarkdown(run, fixes))
}

func (e *Executor) handleSavePipeline(ctx context.Context, args map[string]any) CallToolResult {
	cfg, err := decodeConfig(args["config"])
	if err != nil {
		return NewErrorResult(err)
	}
	if scope := argString(args, "scope"); scope != "" {
		cfg.Scope = pipeline.Scope(scope)
	}

	validated, fixes, errs := pipeline.Validate(cfg, pipeline.TemplateNames())
	if len(errs) > 0 {
		return NewJSONResult(map[string]any{"errors": errs, "fixes": fixes})
	}
	name, err := e.deps.Store.Save(validated)
	if err != nil {
		return NewErrorResult(err)
	}
	return NewJSONResult(map[string]any{
		"name":  name,
		"hash":  validated.Hash(),
		"scope": validated.Scope,
		"fixes": fixes,
	})
}

func (e *Executor) handleListPipelines(ctx context.Context, args map[string]any) CallToolResult {
	return NewJSONResult(map[string]any{"pipelines": e.deps.Store.List()})
}

func (e *Executor) handleLoadPipeline(ctx context.Context, args map[string]any) CallToolResult {
	name := argString(args, "name")
	if name == "" {
		return NewValidationError("name is required", "Provide the saved pipeline name.", `{"name": "sepsis-evidence"}`)
	}
	cfg, scope, err := e.deps.Store.Load(name)
	if err != nil {
		return NewErrorResult(err)
	}
	return NewJSONResult(map[string]any{"config": cfg, "scope": scope, "hash": cfg.Hash()})
}

func (e *Executor) handleDeletePipeline(ctx context.Context, args map[string]any) CallToolResult {
	name := argString(args, "name")
	if name == "" {
		return NewValidationError("name is required", "Provide the saved pipeline name.", `{"name": "sepsis-evidence"}`)
	}
	if err := e.deps.Store.Delete(name); err != nil {
		return NewErrorResult(err)
	}
	return NewJSONResult(map[string]any{"deleted": pipeline.NormalizeName(name)})
}

func (e *Executor) handlePipelineHistory(ctx context.Context, args map[string]any) CallToolResult {
	hash := argString(args, "hash")
	if name := argString(args, "name"); hash == "" && name != "" {
		cfg, _, err := e.deps.Store.Load(name)
		if err != nil {
			return NewErrorResult(err)
		}
		hash = cfg.Hash()
	}
	if hash == "" {
		return NewValidationError("name or hash is required",
			"Identify the pipeline by saved name or config hash.",
			`{"name": "sepsis-evidence"}`)
	}
	runs, err := e.deps.Store.History(hash, argInt(args, "limit", 10))
	if err != nil {
		return NewErrorResult(err)
	}
	return NewJSONResult(map[string]any{"hash": hash, "runs": runs})
}

func (e *Executor) handleDescribeTemplate(ctx context.Context, args map[string]any) CallToolResult {
	name := argString(args, "name")
	if name == "" {
		return NewValidationError("name is required",
			fmt.Sprintf("Known templates: %s", strings.Join(pipeline.TemplateNames(), ", ")),
			`{"name": "pico"}`)
	}
	t, err := pipeline.DescribeTemplate(name)
	if err != nil {
		return NewErrorResult(err)
	}
	return NewJSONResult(t)
}

func renderRunMarkdown(run *pipeline.Run, fixes []pipeline.ValidationFix) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Pipeline run %s\n\n", run.ID)
	for _, step := range run.Steps {
		status := "ok"
		if step.Err != "" {
			status = "failed: " + step.Err
		}
		fmt.Fprintf(&b, "- `%s` (%s) in=%d out=%d %s [%s]\n",
			step.StepID, step.Action, step.InCount, step.OutCount, status, step.Duration.Round(1e6))
	}
	if run.Aborted {
		fmt.Fprintf(&b, "\nAborted at step `%s`.\n", run.AbortStep)
	}
	for _, fix := range fixes {
		fmt.Fprintf(&b, "- fix (%s): %s\n", fix.Severity, fix.Message)
	}
	b.WriteString("\n")
	b.WriteString(RenderArticleList("Final output", run.Output))
	return b.String()
}
