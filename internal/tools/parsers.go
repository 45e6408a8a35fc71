package tools

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/litfuse/litfuse/internal/models"
)

// ParseFilters accepts either a structured map or a comma-separated string
// like "year:2015-2024,sex:f,species:humans". Unknown keys produce
// warnings, never errors.
func ParseFilters(v any) (models.SearchFilters, []string) {
	switch t := v.(type) {
	case nil:
		return models.SearchFilters{}, nil
	case string:
		return parseFilterString(t)
	case map[string]any:
		return parseFilterMap(t)
	default:
		return models.SearchFilters{}, []string{fmt.Sprintf("unrecognized filters type %T", v)}
	}
}

func parseFilterString(s string) (models.SearchFilters, []string) {
	var filters models.SearchFilters
	var warnings []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, ":")
		if !found {
			warnings = append(warnings, fmt.Sprintf("ignored filter %q, expected key:value", part))
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "year":
			from, to, err := parseYearRange(value)
			if err != nil {
				warnings = append(warnings, err.Error())
				continue
			}
			filters.YearFrom, filters.YearTo = from, to
		case "age":
			filters.AgeGroup = value
		case "sex":
			filters.Sex = value
		case "species":
			filters.Species = value
		case "lang", "language":
			filters.Language = value
		case "clinical":
			filters.ClinicalQuery = value
		case "type", "types":
			filters.ArticleTypes = splitList(value)
		case "min_citations":
			if n, err := strconv.Atoi(value); err == nil {
				filters.MinCitations = n
			} else {
				warnings = append(warnings, fmt.Sprintf("ignored min_citations %q, not an integer", value))
			}
		default:
			warnings = append(warnings, fmt.Sprintf("unknown filter key %q", key))
		}
	}
	return filters, warnings
}

func parseFilterMap(m map[string]any) (models.SearchFilters, []string) {
	var filters models.SearchFilters
	var warnings []string
	for key, raw := range m {
		value := fmt.Sprintf("%v", raw)
		switch strings.ToLower(key) {
		case "year", "year_range":
			from, to, err := parseYearRange(value)
			if err != nil {
				warnings = append(warnings, err.Error())
				continue
			}
			filters.YearFrom, filters.YearTo = from, to
		case "year_from":
			filters.YearFrom = atoiOr(value, 0)
		case "year_to":
			filters.YearTo = atoiOr(value, 0)
		case "age", "age_group":
			filters.AgeGroup = value
		case "sex":
			filters.Sex = value
		case "species":
			filters.Species = value
		case "lang", "language":
			filters.Language = value
		case "clinical", "clinical_query":
			filters.ClinicalQuery = value
		case "article_types", "types":
			filters.ArticleTypes = splitList(value)
		case "min_citations":
			filters.MinCitations = atoiOr(value, 0)
		default:
			warnings = append(warnings, fmt.Sprintf("unknown filter key %q", key))
		}
	}
	return filters, warnings
}

// parseYearRange accepts "Y", "Y-Y" and "Y-" forms.
func parseYearRange(v string) (int, int, error) {
	from, to, found := strings.Cut(v, "-")
	fromYear := atoiOr(strings.TrimSpace(from), 0)
	if fromYear == 0 {
		return 0, 0, fmt.Errorf("ignored year filter %q, expected YYYY or YYYY-YYYY", v)
	}
	if !found {
		return fromYear, fromYear, nil
	}
	toYear := atoiOr(strings.TrimSpace(to), 0)
	if toYear != 0 && toYear < fromYear {
		return 0, 0, fmt.Errorf("ignored year filter %q, range end precedes start", v)
	}
	return fromYear, toYear, nil
}

// ParseOptions accepts a structured map or a comma-separated flag string
// like "preprints,shallow,no_oa". Unknown flags produce warnings.
func ParseOptions(v any) (models.SearchOptions, []string) {
	var opts models.SearchOptions
	var warnings []string

	setFlag := func(name string, value bool) {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "preprints":
			opts.Preprints = value
		case "shallow":
			opts.Shallow = value
		case "all_types", "no_peer_review":
			opts.AllTypes = value
		case "no_oa":
			opts.NoOA = value
		case "no_analysis":
			opts.NoAnalysis = value
		case "no_scores":
			opts.NoScores = value
		case "no_relax":
			opts.NoRelax = value
		case "":
		default:
			warnings = append(warnings, fmt.Sprintf("unknown option %q", name))
		}
	}

	switch t := v.(type) {
	case nil:
	case string:
		for _, flag := range strings.Split(t, ",") {
			setFlag(flag, true)
		}
	case map[string]any:
		for name, raw := range t {
			enabled := true
			if b, ok := raw.(bool); ok {
				enabled = b
			}
			setFlag(name, enabled)
		}
	default:
		warnings = append(warnings, fmt.Sprintf("unrecognized options type %T", v))
	}
	return opts, warnings
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func atoiOr(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Argument accessors for the loosely typed tool args.

func argString(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		switch t := v.(type) {
		case string:
			return t
		case float64:
			return strconv.Itoa(int(t))
		}
	}
	return ""
}

func argInt(args map[string]any, key string, def int) int {
	if v, ok := args[key]; ok {
		switch t := v.(type) {
		case float64:
			return int(t)
		case int:
			return t
		case string:
			if n, err := strconv.Atoi(t); err == nil {
				return n
			}
		}
	}
	return def
}

func argStrings(args map[string]any, key string) []string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	case string:
		var out []string
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return nil
}
