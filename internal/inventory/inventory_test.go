package inventory

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/signalize/signalize/internal/transform"
)

// --- helpers ---

func decl(file, class, member, kind, name string, line int, deps ...string) transform.ReactiveDecl {
	return transform.ReactiveDecl{
		File:   file,
		Class:  class,
		Member: member,
		Kind:   kind,
		Name:   name,
		Deps:   deps,
		Line:   line,
	}
}

func seeded() *Store {
	s := NewStore()
	s.Add(
		decl("lib/counter.dart", "_CounterState", "count", "state", "count", 5),
		decl("lib/counter.dart", "_CounterState", "doubled", "derived", "doubled", 8, "count"),
		decl("lib/search.dart", "_SearchState", "search", "query", "results", 12, "query"),
	)
	return s
}

// --- store ---

func TestStore_Query(t *testing.T) {
	s := seeded()

	tests := []struct {
		name        string
		file, class string
		kind        string
		wantMembers []string
	}{
		{"all", "", "", "", []string{"count", "doubled", "search"}},
		{"by file", "lib/counter.dart", "", "", []string{"count", "doubled"}},
		{"by class", "", "_SearchState", "", []string{"search"}},
		{"by kind", "", "", "derived", []string{"doubled"}},
		{"combined", "lib/counter.dart", "_CounterState", "state", []string{"count"}},
		{"no match", "lib/missing.dart", "", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Query(tt.file, tt.class, tt.kind)
			var members []string
			for _, d := range got {
				members = append(members, d.Member)
			}
			if !reflect.DeepEqual(members, tt.wantMembers) {
				t.Errorf("Query members = %v, want %v", members, tt.wantMembers)
			}
		})
	}
}

func TestStore_CountByKind(t *testing.T) {
	s := seeded()
	if s.Count() != 3 {
		t.Errorf("Count = %d, want 3", s.Count())
	}
	want := map[string]int{"state": 1, "derived": 1, "query": 1}
	if got := s.CountByKind(); !reflect.DeepEqual(got, want) {
		t.Errorf("CountByKind = %v, want %v", got, want)
	}
}

func TestStore_ReplaceFile(t *testing.T) {
	s := seeded()
	s.ReplaceFile("lib/counter.dart", []transform.ReactiveDecl{
		decl("lib/counter.dart", "_CounterState", "total", "state", "total", 7),
	})

	if s.Count() != 2 {
		t.Fatalf("Count = %d, want 2", s.Count())
	}
	if got := s.Query("lib/counter.dart", "", ""); len(got) != 1 || got[0].Member != "total" {
		t.Errorf("counter.dart entries = %+v, want the replacement only", got)
	}
	if got := s.Query("lib/search.dart", "", ""); len(got) != 1 {
		t.Errorf("search.dart entries = %+v, want untouched", got)
	}
}

func TestStore_Retain(t *testing.T) {
	s := seeded()

	if dropped := s.Retain(map[string]bool{"lib/counter.dart": true}); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if s.Count() != 2 {
		t.Fatalf("Count = %d, want 2", s.Count())
	}
	if got := s.Query("lib/search.dart", "", ""); len(got) != 0 {
		t.Errorf("search.dart entries = %+v, want none", got)
	}
	if got := s.Query("", "", "derived"); len(got) != 1 || got[0].Member != "doubled" {
		t.Errorf("derived entries = %+v, want doubled only", got)
	}
	if dropped := s.Retain(map[string]bool{"lib/counter.dart": true}); dropped != 0 {
		t.Errorf("dropped on repeat = %d, want 0", dropped)
	}
}

func TestStore_AllSortsByFileThenLine(t *testing.T) {
	s := NewStore()
	s.Add(
		decl("lib/b.dart", "B", "x", "state", "x", 9),
		decl("lib/a.dart", "A", "late", "state", "late", 20),
		decl("lib/a.dart", "A", "early", "state", "early", 3),
	)
	var got []string
	for _, d := range s.All() {
		got = append(got, d.File+":"+d.Member)
	}
	want := []string{"lib/a.dart:early", "lib/a.dart:late", "lib/b.dart:x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("All order = %v, want %v", got, want)
	}
}

func TestStore_Clear(t *testing.T) {
	s := seeded()
	s.Clear()
	if s.Count() != 0 {
		t.Errorf("Count after Clear = %d, want 0", s.Count())
	}
}

// --- persistence ---

func TestStore_JSONLRoundTrip(t *testing.T) {
	s := seeded()
	var buf bytes.Buffer
	if err := s.WriteJSONL(&buf); err != nil {
		t.Fatalf("WriteJSONL: %v", err)
	}

	loaded := NewStore()
	if err := loaded.ReadJSONL(&buf); err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	if !reflect.DeepEqual(loaded.All(), s.All()) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", loaded.All(), s.All())
	}
}

func TestStore_ReadJSONLSkipsBlankLines(t *testing.T) {
	in := `{"file":"lib/a.dart","class":"A","member":"x","kind":"state","name":"x","line":1}

{"file":"lib/a.dart","class":"A","member":"y","kind":"state","name":"y","line":2}
`
	s := NewStore()
	if err := s.ReadJSONL(strings.NewReader(in)); err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	if s.Count() != 2 {
		t.Errorf("Count = %d, want 2", s.Count())
	}
}

func TestStore_WriteJSONLFile(t *testing.T) {
	s := seeded()
	path := t.TempDir() + "/inventory.jsonl"
	if err := s.WriteJSONLFile(path); err != nil {
		t.Fatalf("WriteJSONLFile: %v", err)
	}
	loaded := NewStore()
	if err := loaded.ReadJSONLFile(path); err != nil {
		t.Fatalf("ReadJSONLFile: %v", err)
	}
	if loaded.Count() != s.Count() {
		t.Errorf("Count = %d, want %d", loaded.Count(), s.Count())
	}
}

// --- cycle detection ---

func TestStore_Cycles(t *testing.T) {
	tests := []struct {
		name      string
		decls     []transform.ReactiveDecl
		wantNames [][]string
	}{
		{
			"two derived values reading each other",
			[]transform.ReactiveDecl{
				decl("lib/a.dart", "C", "a", "derived", "a", 1, "b"),
				decl("lib/a.dart", "C", "b", "derived", "b", 2, "a"),
			},
			[][]string{{"C.a", "C.b"}},
		},
		{
			"self reference",
			[]transform.ReactiveDecl{
				decl("lib/a.dart", "C", "x", "derived", "x", 1, "x"),
			},
			[][]string{{"C.x"}},
		},
		{
			"acyclic chain",
			[]transform.ReactiveDecl{
				decl("lib/a.dart", "C", "a", "derived", "a", 1, "b"),
				decl("lib/a.dart", "C", "b", "state", "b", 2),
			},
			nil,
		},
		{
			"same names in different classes do not connect",
			[]transform.ReactiveDecl{
				decl("lib/a.dart", "A", "a", "derived", "a", 1, "b"),
				decl("lib/b.dart", "B", "b", "derived", "b", 1, "a"),
			},
			nil,
		},
		{
			"generated query name resolves to its member",
			[]transform.ReactiveDecl{
				decl("lib/a.dart", "C", "search", "query", "results", 1, "g"),
				decl("lib/a.dart", "C", "g", "derived", "g", 2, "results"),
			},
			[][]string{{"C.g", "C.search"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			s.Add(tt.decls...)
			warnings := s.Cycles()
			if len(warnings) != len(tt.wantNames) {
				t.Fatalf("got %d warnings, want %d: %+v", len(warnings), len(tt.wantNames), warnings)
			}
			for i, w := range warnings {
				if !reflect.DeepEqual(w.Names, tt.wantNames[i]) {
					t.Errorf("warning[%d].Names = %v, want %v", i, w.Names, tt.wantNames[i])
				}
			}
		})
	}
}

func TestStore_CycleWarningText(t *testing.T) {
	s := NewStore()
	s.Add(
		decl("lib/a.dart", "C", "a", "derived", "a", 1, "b"),
		decl("lib/a.dart", "C", "b", "derived", "b", 2, "a"),
	)
	warnings := s.Cycles()
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}
	w := warnings[0]
	if w.Title != "Dependency cycle (2 declarations)" {
		t.Errorf("Title = %q", w.Title)
	}
	if !strings.Contains(w.Detail, "C.a -> C.b -> C.a") {
		t.Errorf("Detail = %q, want the cycle path", w.Detail)
	}
}
