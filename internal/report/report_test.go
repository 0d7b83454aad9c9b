package report

import (
	"strings"
	"testing"

	"github.com/signalize/signalize/internal/inventory"
	"github.com/signalize/signalize/internal/transform"
)

func sampleRun() *Run {
	return &Run{
		Root:        "/app",
		GeneratedAt: "2025-11-02T10:00:00Z",
		Duration:    "120ms",
		Seen:        4,
		Skipped:     1,
		Changed:     []string{"lib/search.dart", "lib/counter.dart"},
		Failed:      []Failure{{File: "lib/broken.dart", Error: "parse failed"}},
		Converted:   []string{"CounterView"},
		Problems:    []string{"lib/counter.dart: bad: query must return Future or Stream"},
	}
}

func sampleInventory() *inventory.Store {
	inv := inventory.NewStore()
	inv.Add(
		transform.ReactiveDecl{File: "lib/counter.dart", Class: "_CounterState", Member: "count", Kind: "state", Name: "count", Line: 5},
		transform.ReactiveDecl{File: "lib/search.dart", Class: "_SearchState", Member: "search", Kind: "query", Name: "results", Line: 9},
	)
	return inv
}

func TestRender(t *testing.T) {
	out := string(Render(sampleRun(), sampleInventory()))

	wantParts := []string{
		"# Signalize Run Report",
		"## Summary",
		"| Files seen | Skipped | Rewritten | Failed |",
		"| 4 | 1 | 2 | 1 |",
		"### Rewritten Files",
		"- `lib/counter.dart`",
		"- `lib/search.dart`",
		"## Declarations",
		"| query | 1 |",
		"| state | 1 |",
		"## Widget Conversions",
		"- CounterView",
		"## Failures",
		"| `lib/broken.dart` | parse failed |",
		"## Skipped Members",
		"- lib/counter.dart: bad: query must return Future or Stream",
		"*Generated at 2025-11-02T10:00:00Z in 120ms. 4 files seen, 2 declarations.*",
	}
	for _, part := range wantParts {
		if !strings.Contains(out, part) {
			t.Errorf("report missing %q\n%s", part, out)
		}
	}

	// rewritten files are listed sorted
	if strings.Index(out, "lib/counter.dart") > strings.Index(out, "lib/search.dart") {
		t.Error("rewritten files not sorted")
	}
}

func TestRender_EmptyInventory(t *testing.T) {
	run := &Run{Root: "/app", Seen: 0}
	out := string(Render(run, inventory.NewStore()))
	if !strings.Contains(out, "_No reactive members discovered._") {
		t.Errorf("report missing empty-inventory note:\n%s", out)
	}
	for _, absent := range []string{"## Widget Conversions", "## Failures", "## Skipped Members", "## Warnings"} {
		if strings.Contains(out, absent) {
			t.Errorf("report has %q for an empty run:\n%s", absent, out)
		}
	}
}

func TestRender_CycleWarning(t *testing.T) {
	inv := inventory.NewStore()
	inv.Add(
		transform.ReactiveDecl{File: "lib/a.dart", Class: "C", Member: "a", Kind: "derived", Name: "a", Line: 1, Deps: []string{"b"}},
		transform.ReactiveDecl{File: "lib/a.dart", Class: "C", Member: "b", Kind: "derived", Name: "b", Line: 2, Deps: []string{"a"}},
	)
	out := string(Render(&Run{Seen: 1}, inv))
	if !strings.Contains(out, "## Warnings") {
		t.Fatalf("report missing warnings section:\n%s", out)
	}
	if !strings.Contains(out, "**Dependency cycle (2 declarations)**") {
		t.Errorf("report missing cycle warning:\n%s", out)
	}
}
