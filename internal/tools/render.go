package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/litfuse/litfuse/internal/models"
	"github.com/litfuse/litfuse/internal/search"
)

const abstractExcerptLen = 280

// RenderMarkdown renders a search response as markdown. The Sources line
// format `provider (N_returned/N_total)` is a stable contract consumed by
// downstream agents; change it and they break.
func RenderMarkdown(resp *search.Response) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Results for %q\n\n", resp.Query)
	if len(resp.Articles) == 0 {
		b.WriteString("No articles found.\n\n")
	}
	for i, a := range resp.Articles {
		renderArticle(&b, i+1, &a)
	}

	b.WriteString(sourcesLine(resp.Outcomes))
	b.WriteString("\n")

	if resp.Relaxed || len(resp.RelaxTrail) > 0 || len(resp.Degraded) > 0 {
		b.WriteString(degradedSection(resp))
	}
	return b.String()
}

func renderArticle(b *strings.Builder, position int, a *models.UnifiedArticle) {
	fmt.Fprintf(b, "%d. **%s**\n", position, a.Title)

	if line := authorLine(a.Authors); line != "" {
		fmt.Fprintf(b, "   %s\n", line)
	}
	venue := a.Journal
	if a.Year > 0 {
		if venue != "" {
			venue += " "
		}
		venue += fmt.Sprintf("(%d)", a.Year)
	}
	if venue != "" {
		fmt.Fprintf(b, "   *%s*\n", venue)
	}
	fmt.Fprintf(b, "   %s\n", deepLink(a))

	var badges []string
	if a.OAStatus != "" && a.OAStatus != "closed" {
		badges = append(badges, "`OA:"+a.OAStatus+"`")
	}
	if a.IsPreprint {
		badges = append(badges, "`preprint`")
	}
	if a.Similarity != nil {
		badges = append(badges, fmt.Sprintf("`score:%.2f`", *a.Similarity))
	}
	if len(badges) > 0 {
		fmt.Fprintf(b, "   %s\n", strings.Join(badges, " "))
	}

	if a.Abstract != "" {
		fmt.Fprintf(b, "   %s\n", excerpt(a.Abstract, abstractExcerptLen))
	}
	b.WriteString("\n")
}

// authorLine renders the first three authors plus et al.
func authorLine(authors []models.Author) string {
	if len(authors) == 0 {
		return ""
	}
	names := make([]string, 0, 3)
	for i, author := range authors {
		if i == 3 {
			break
		}
		names = append(names, author.Name)
	}
	line := strings.Join(names, ", ")
	if len(authors) > 3 {
		line += ", et al."
	}
	return line
}

func deepLink(a *models.UnifiedArticle) string {
	switch {
	case strings.HasPrefix(a.ID, "doi:"):
		return fmt.Sprintf("[%s](https://doi.org/%s)", a.ID, strings.TrimPrefix(a.ID, "doi:"))
	case strings.HasPrefix(strings.ToUpper(a.ID), "NCT"):
		return fmt.Sprintf("[%s](https://clinicaltrials.gov/study/%s)", a.ID, a.ID)
	case a.DOI != "":
		return fmt.Sprintf("[%s](https://doi.org/%s)", a.ID, a.DOI)
	default:
		return fmt.Sprintf("[PMID:%s](https://pubmed.ncbi.nlm.nih.gov/%s/)", a.ID, a.ID)
	}
}

// sourcesLine renders the hard-contract per-provider counts:
// `provider (N_returned/N_total)` when the total is known, else
// `provider (N_returned)`.
func sourcesLine(outcomes []search.ProviderOutcome) string {
	succeeded := make([]search.ProviderOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == "" {
			succeeded = append(succeeded, o)
		}
	}
	sort.Slice(succeeded, func(i, j int) bool { return succeeded[i].Provider < succeeded[j].Provider })

	parts := make([]string, 0, len(succeeded))
	for _, o := range succeeded {
		if o.HasTotal {
			parts = append(parts, fmt.Sprintf("%s (%d/%d)", o.Provider, o.Returned, o.Total))
		} else {
			parts = append(parts, fmt.Sprintf("%s (%d)", o.Provider, o.Returned))
		}
	}
	return "**Sources**: " + strings.Join(parts, ", ") + "\n"
}

func degradedSection(resp *search.Response) string {
	var b strings.Builder
	b.WriteString("\n### Degraded\n\n")
	for _, o := range resp.Outcomes {
		if o.Err != "" {
			fmt.Fprintf(&b, "- %s failed after %s: %s\n", o.Provider, o.Duration.Round(1e6), o.Err)
		}
	}
	for _, step := range resp.RelaxTrail {
		fmt.Fprintf(&b, "- relaxation `%s` using %q returned %d\n", step.Label, step.Query, step.Results)
	}
	return b.String()
}

func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	cut := strings.LastIndex(s[:n], " ")
	if cut <= 0 {
		cut = n
	}
	return s[:cut] + "…"
}

// RenderArticleList renders a plain article list (related/citing/references
// tools) without the dispatch stats.
func RenderArticleList(title string, articles []models.UnifiedArticle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", title)
	if len(articles) == 0 {
		b.WriteString("No articles found.\n")
		return b.String()
	}
	for i, a := range articles {
		renderArticle(&b, i+1, &a)
	}
	return b.String()
}
