// Package inventory stores the reactive declarations discovered across a
// run and answers queries over them. Entries persist as JSONL under the
// cache directory between runs, so the MCP tools and the report see
// files the last pass skipped.
package inventory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/signalize/signalize/internal/transform"
)

// Store provides in-memory storage and querying of reactive declarations
// with JSONL persistence.
type Store struct {
	mu      sync.RWMutex
	entries []transform.ReactiveDecl

	// Indexes for fast lookups
	byFile  map[string][]int // file -> indices into entries
	byClass map[string][]int // class -> indices into entries
	byKind  map[string][]int // kind -> indices into entries
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byFile:  make(map[string][]int),
		byClass: make(map[string][]int),
		byKind:  make(map[string][]int),
	}
}

// Add appends declarations to the store.
func (s *Store) Add(dd ...transform.ReactiveDecl) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(dd)
}

func (s *Store) add(dd []transform.ReactiveDecl) {
	for _, d := range dd {
		idx := len(s.entries)
		s.entries = append(s.entries, d)
		s.byFile[d.File] = append(s.byFile[d.File], idx)
		s.byClass[d.Class] = append(s.byClass[d.Class], idx)
		s.byKind[d.Kind] = append(s.byKind[d.Kind], idx)
	}
}

// ReplaceFile swaps all entries of one file for the given set, keeping
// every other file's entries. Used when a file is re-transformed.
func (s *Store) ReplaceFile(file string, dd []transform.ReactiveDecl) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []transform.ReactiveDecl
	for _, e := range s.entries {
		if e.File != file {
			kept = append(kept, e)
		}
	}
	s.entries = nil
	s.byFile = make(map[string][]int)
	s.byClass = make(map[string][]int)
	s.byKind = make(map[string][]int)
	s.add(kept)
	s.add(dd)
}

// Retain drops every entry whose file is not in the kept set, returning
// how many entries were removed. A full walk uses it to reconcile the
// store with the files that still exist on disk.
func (s *Store) Retain(files map[string]bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []transform.ReactiveDecl
	for _, e := range s.entries {
		if files[e.File] {
			kept = append(kept, e)
		}
	}
	dropped := len(s.entries) - len(kept)
	if dropped == 0 {
		return 0
	}
	s.entries = nil
	s.byFile = make(map[string][]int)
	s.byClass = make(map[string][]int)
	s.byKind = make(map[string][]int)
	s.add(kept)
	return dropped
}

// All returns all declarations ordered by file, then line.
func (s *Store) All() []transform.ReactiveDecl {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]transform.ReactiveDecl, len(s.entries))
	copy(result, s.entries)
	sort.Slice(result, func(i, j int) bool {
		if result[i].File != result[j].File {
			return result[i].File < result[j].File
		}
		return result[i].Line < result[j].Line
	})
	return result
}

// Count returns the number of declarations in the store.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Query returns declarations matching all provided filter criteria.
// Empty filter values are ignored (match all).
func (s *Store) Query(file, class, kind string) []transform.ReactiveDecl {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []transform.ReactiveDecl
	for _, d := range s.entries {
		if file != "" && d.File != file {
			continue
		}
		if class != "" && d.Class != class {
			continue
		}
		if kind != "" && d.Kind != kind {
			continue
		}
		result = append(result, d)
	}
	return result
}

// CountByKind returns declaration counts keyed by kind.
func (s *Store) CountByKind() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int, len(s.byKind))
	for kind, idx := range s.byKind {
		counts[kind] = len(idx)
	}
	return counts
}

// Clear removes all declarations from the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.byFile = make(map[string][]int)
	s.byClass = make(map[string][]int)
	s.byKind = make(map[string][]int)
}

// WriteJSONL writes all declarations as JSONL to the given writer.
func (s *Store) WriteJSONL(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enc := json.NewEncoder(w)
	for _, d := range s.entries {
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("encoding declaration %q: %w", d.Name, err)
		}
	}
	return nil
}

// WriteJSONLFile writes all declarations as JSONL to the given file path.
func (s *Store) WriteJSONLFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	if err := s.WriteJSONL(bw); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadJSONL reads declarations from a JSONL reader and adds them to the
// store.
func (s *Store) ReadJSONL(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var d transform.ReactiveDecl
		if err := json.Unmarshal(line, &d); err != nil {
			return fmt.Errorf("decoding declaration: %w", err)
		}
		s.Add(d)
	}
	return scanner.Err()
}

// ReadJSONLFile reads declarations from a JSONL file and adds them to
// the store.
func (s *Store) ReadJSONLFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return s.ReadJSONL(f)
}
