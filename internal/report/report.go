// Package report renders the markdown summary of a transform run.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/signalize/signalize/internal/inventory"
)

// Run aggregates what one generate pass did.
type Run struct {
	Root        string    `json:"root"`
	GeneratedAt string    `json:"generated_at"`
	Duration    string    `json:"duration"`
	Seen        int       `json:"files_seen"`
	Skipped     int       `json:"files_skipped"`
	Changed     []string  `json:"files_changed,omitempty"`
	Failed      []Failure `json:"files_failed,omitempty"`
	Converted   []string  `json:"converted,omitempty"`
	Problems    []string  `json:"problems,omitempty"`
}

// Failure records a file that could not be transformed.
type Failure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Render produces the markdown run report.
func Render(run *Run, inv *inventory.Store) []byte {
	var sb strings.Builder
	sb.WriteString("# Signalize Run Report\n\n")
	sb.WriteString(renderSummary(run))
	sb.WriteString(renderDeclarations(inv))
	sb.WriteString(renderConversions(run))
	sb.WriteString(renderFailures(run))
	sb.WriteString(renderDiagnostics(run))
	sb.WriteString(renderWarnings(inv))
	sb.WriteString(renderMeta(run, inv))
	return []byte(sb.String())
}

func renderSummary(run *Run) string {
	var sb strings.Builder
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Files seen | Skipped | Rewritten | Failed |\n")
	sb.WriteString("|------------|---------|-----------|--------|\n")
	sb.WriteString(fmt.Sprintf("| %d | %d | %d | %d |\n\n",
		run.Seen, run.Skipped, len(run.Changed), len(run.Failed)))

	if len(run.Changed) > 0 {
		changed := append([]string(nil), run.Changed...)
		sort.Strings(changed)
		sb.WriteString("### Rewritten Files\n\n")
		for _, f := range changed {
			sb.WriteString(fmt.Sprintf("- `%s`\n", f))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderDeclarations(inv *inventory.Store) string {
	var sb strings.Builder
	sb.WriteString("## Declarations\n\n")

	counts := inv.CountByKind()
	if len(counts) == 0 {
		sb.WriteString("_No reactive members discovered._\n\n")
		return sb.String()
	}

	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	sb.WriteString("| Kind | Count |\n")
	sb.WriteString("|------|-------|\n")
	for _, k := range kinds {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", k, counts[k]))
	}
	sb.WriteString("\n")
	return sb.String()
}

func renderConversions(run *Run) string {
	if len(run.Converted) == 0 {
		return ""
	}

	converted := append([]string(nil), run.Converted...)
	sort.Strings(converted)

	var sb strings.Builder
	sb.WriteString("## Widget Conversions\n\n")
	for _, c := range converted {
		sb.WriteString(fmt.Sprintf("- %s\n", c))
	}
	sb.WriteString("\n")
	return sb.String()
}

func renderFailures(run *Run) string {
	if len(run.Failed) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Failures\n\n")
	sb.WriteString("| File | Error |\n")
	sb.WriteString("|------|-------|\n")
	for _, f := range run.Failed {
		sb.WriteString(fmt.Sprintf("| `%s` | %s |\n", f.File, f.Error))
	}
	sb.WriteString("\n")
	return sb.String()
}

func renderDiagnostics(run *Run) string {
	if len(run.Problems) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Skipped Members\n\n")
	for _, p := range run.Problems {
		sb.WriteString(fmt.Sprintf("- %s\n", p))
	}
	sb.WriteString("\n")
	return sb.String()
}

func renderWarnings(inv *inventory.Store) string {
	warnings := inv.Cycles()
	if len(warnings) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Warnings\n\n")
	for _, w := range warnings {
		sb.WriteString(fmt.Sprintf("- **%s**: %s\n", w.Title, w.Detail))
	}
	sb.WriteString("\n")
	return sb.String()
}

func renderMeta(run *Run, inv *inventory.Store) string {
	return fmt.Sprintf("---\n\n*Generated at %s in %s. %d files seen, %d declarations.*\n",
		run.GeneratedAt, run.Duration, run.Seen, inv.Count())
}
