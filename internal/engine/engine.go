// Package engine drives the transform pipeline over a configured source
// tree: walk, hash-gate, transform, write back, format, and record the
// run in the inventory and the report.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/signalize/signalize/internal/config"
	"github.com/signalize/signalize/internal/inventory"
	"github.com/signalize/signalize/internal/logging"
	"github.com/signalize/signalize/internal/report"
	"github.com/signalize/signalize/internal/transform"
)

// Options adjust a run without touching the config file.
type Options struct {
	DryRun   bool      // print transformed units instead of writing
	Check    bool      // record would-be changes, write nothing
	NoFormat bool      // skip the formatter after writing
	Out      io.Writer // dry-run sink, stdout when nil
}

// Engine orchestrates the transform pipeline.
type Engine struct {
	cfg  *config.Config
	opts Options
	inv  *inventory.Store
	log  *zap.SugaredLogger

	mu          sync.Mutex
	lastWritten map[string]string // rel path -> hash of last written output
}

// New creates an engine with the given config and run options.
func New(cfg *config.Config, opts Options) *Engine {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Engine{
		cfg:         cfg,
		opts:        opts,
		inv:         inventory.NewStore(),
		log:         logging.Named("engine"),
		lastWritten: make(map[string]string),
	}
}

// Inventory returns the declaration store.
func (e *Engine) Inventory() *inventory.Store {
	return e.inv
}

// Config returns the engine config.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Run transforms the configured tree, or only the given paths when
// non-empty. Explicit paths bypass the hash cache; a cached file whose
// content hash is unchanged since the previous run is skipped.
func (e *Engine) Run(ctx context.Context, paths []string) (*report.Run, error) {
	start := time.Now()

	root, err := filepath.Abs(e.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	explicit := len(paths) > 0
	var files []string
	if explicit {
		files, err = e.relPaths(root, paths)
	} else {
		files, err = e.walkRoot(root)
	}
	if err != nil {
		return nil, fmt.Errorf("collecting files: %w", err)
	}
	sort.Strings(files)
	e.log.Infow("run started", "root", root, "files", len(files))

	prev := e.loadHashCache(root)
	if e.inv.Count() == 0 {
		if err := e.inv.ReadJSONLFile(e.inventoryPath(root)); err == nil {
			e.log.Debugw("loaded previous inventory", "declarations", e.inv.Count())
		}
	}

	run := &report.Run{
		Root:        root,
		GeneratedAt: start.UTC().Format(time.RFC3339),
		Seen:        len(files),
	}
	current := make(map[string]string, len(files))

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		abs := filepath.Join(root, rel)
		src, err := os.ReadFile(abs)
		if err != nil {
			run.Failed = append(run.Failed, report.Failure{File: rel, Error: err.Error()})
			e.log.Errorw("read failed", "file", rel, "error", err)
			continue
		}

		hash := hashBytes(src)
		if !explicit && prev[rel] == hash {
			current[rel] = hash
			run.Skipped++
			continue
		}

		res, err := transform.File(rel, src)
		if err != nil {
			run.Failed = append(run.Failed, report.Failure{File: rel, Error: err.Error()})
			e.log.Errorw("transform failed", "file", rel, "error", err)
			continue
		}
		if res.SyntaxErrors {
			e.log.Warnw("source has syntax errors, best-effort transform", "file", rel)
		}
		for _, p := range res.Problems {
			run.Problems = append(run.Problems, fmt.Sprintf("%s: %v", rel, p))
			e.log.Warnw("member left untouched", "file", rel, "error", p)
		}
		e.inv.ReplaceFile(rel, res.Decls)
		for _, class := range res.Converted {
			run.Converted = append(run.Converted, fmt.Sprintf("%s (`%s`)", class, rel))
		}

		if !res.Changed {
			current[rel] = hash
			continue
		}
		run.Changed = append(run.Changed, rel)

		switch {
		case e.opts.DryRun:
			fmt.Fprintf(e.opts.Out, "--- %s\n%s", rel, res.Output)
		case e.opts.Check:
		default:
			final, err := e.writeBack(ctx, abs, res.Output)
			if err != nil {
				run.Failed = append(run.Failed, report.Failure{File: rel, Error: err.Error()})
				e.log.Errorw("write failed", "file", rel, "error", err)
				continue
			}
			current[rel] = final
			e.setWritten(rel, final)
			e.log.Infow("rewritten", "file", rel, "declarations", len(res.Decls))
		}
	}

	// A full walk reconciles the inventory with the files that still
	// exist; explicit runs touch only the files they were given.
	if !explicit {
		walked := make(map[string]bool, len(files))
		for _, rel := range files {
			walked[rel] = true
		}
		if dropped := e.inv.Retain(walked); dropped > 0 {
			e.log.Debugw("dropped declarations of deleted files", "declarations", dropped)
		}
	}

	run.Duration = time.Since(start).String()

	// Dry and check runs leave the cache, inventory, and report alone.
	if !e.opts.DryRun && !e.opts.Check {
		if err := e.persist(root, prev, current, explicit, run); err != nil {
			e.log.Warnw("persisting run artifacts failed", "error", err)
		}
	}

	e.log.Infow("run complete",
		"seen", run.Seen,
		"skipped", run.Skipped,
		"changed", len(run.Changed),
		"failed", len(run.Failed),
		"duration", run.Duration,
	)
	return run, nil
}

// Preview transforms one file and returns the result without writing.
func (e *Engine) Preview(ctx context.Context, path string) (*transform.Result, error) {
	root, err := filepath.Abs(e.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	rels, err := e.relPaths(root, []string{path})
	if err != nil {
		return nil, err
	}
	rel := rels[0]
	src, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	return transform.File(rel, src)
}

// LoadInventory reads the previous run's inventory so queries work
// before the first transform.
func (e *Engine) LoadInventory() error {
	root, err := filepath.Abs(e.cfg.Root)
	if err != nil {
		return err
	}
	return e.inv.ReadJSONLFile(e.inventoryPath(root))
}

// Report returns the last written run report.
func (e *Engine) Report() ([]byte, error) {
	root, err := filepath.Abs(e.cfg.Root)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(e.reportPath(root))
	if err != nil {
		return nil, fmt.Errorf("no report available: %w (run a transform first)", err)
	}
	return data, nil
}

// WroteHash reports the hash of the content the engine last wrote for
// the file, letting the watcher drop self-triggered events.
func (e *Engine) WroteHash(rel string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.lastWritten[rel]
	return h, ok
}

func (e *Engine) setWritten(rel, hash string) {
	e.mu.Lock()
	e.lastWritten[rel] = hash
	e.mu.Unlock()
}

// writeBack writes the transformed source and runs the formatter on it,
// returning the hash of the final on-disk content.
func (e *Engine) writeBack(ctx context.Context, abs string, out []byte) (string, error) {
	if err := os.WriteFile(abs, out, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", abs, err)
	}
	if e.cfg.Format && !e.opts.NoFormat {
		cmd := exec.CommandContext(ctx, e.cfg.Formatter, "format", abs)
		if msg, err := cmd.CombinedOutput(); err != nil {
			e.log.Warnw("formatter failed", "file", abs, "error", err, "output", strings.TrimSpace(string(msg)))
		} else if data, err := os.ReadFile(abs); err == nil {
			return hashBytes(data), nil
		}
	}
	return hashBytes(out), nil
}

// persist writes the hash cache, the inventory JSONL, and the report.
// Walk-based runs replace the cache wholly so deleted files drop out;
// explicit runs overlay it.
func (e *Engine) persist(root string, prev, current map[string]string, explicit bool, run *report.Run) error {
	dir := filepath.Join(root, e.cfg.CacheDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	merged := current
	if explicit {
		merged = prev
		if merged == nil {
			merged = make(map[string]string)
		}
		for k, v := range current {
			merged[k] = v
		}
	}
	if err := e.writeHashCache(root, merged); err != nil {
		return err
	}

	if err := e.inv.WriteJSONLFile(e.inventoryPath(root)); err != nil {
		return err
	}

	content := report.Render(run, e.inv)
	if err := os.WriteFile(e.reportPath(root), content, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func (e *Engine) inventoryPath(root string) string {
	return filepath.Join(root, e.cfg.CacheDir, "inventory.jsonl")
}

func (e *Engine) reportPath(root string) string {
	return filepath.Join(root, e.cfg.CacheDir, "report.md")
}

// loadHashCache reads file hashes from the previous run.
func (e *Engine) loadHashCache(root string) map[string]string {
	data, err := os.ReadFile(filepath.Join(root, e.cfg.CacheDir, "cache.json"))
	if err != nil {
		return nil
	}
	var hashes map[string]string
	if err := json.Unmarshal(data, &hashes); err != nil {
		e.log.Warnw("hash cache unreadable, transforming everything", "error", err)
		return nil
	}
	return hashes
}

func (e *Engine) writeHashCache(root string, hashes map[string]string) error {
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling hash cache: %w", err)
	}
	path := filepath.Join(root, e.cfg.CacheDir, "cache.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing hash cache: %w", err)
	}
	return nil
}

// walkRoot collects files matching the include globs, pruning excluded
// directories.
func (e *Engine) walkRoot(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if e.Excluded(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && e.Included(rel) {
			files = append(files, rel)
		}
		return nil
	})
	return files, err
}

// relPaths normalizes explicit paths to root-relative form.
func (e *Engine) relPaths(root string, paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil, fmt.Errorf("%s is outside the configured root %s", p, root)
		}
		out = append(out, rel)
	}
	return out, nil
}

// Included reports whether the path matches an include glob.
func (e *Engine) Included(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range e.cfg.Include {
		if matchGlob(pattern, rel) {
			return true
		}
	}
	return false
}

// Excluded reports whether the path matches an exclude glob. Directory
// patterns like "build/**" prune the whole subtree.
func (e *Engine) Excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range e.cfg.Exclude {
		if strings.HasSuffix(pattern, "/**") {
			dir := strings.TrimSuffix(pattern, "/**")
			if rel == dir || strings.HasPrefix(rel, dir+"/") {
				return true
			}
			continue
		}
		if matchGlob(pattern, rel) {
			return true
		}
	}
	return false
}

// matchGlob matches rel against a pattern, giving ** the any-depth
// meaning filepath.Match lacks.
func matchGlob(pattern, rel string) bool {
	if ok, err := filepath.Match(pattern, rel); err == nil && ok {
		return true
	}
	if strings.HasPrefix(pattern, "**/") {
		sub := strings.TrimPrefix(pattern, "**/")
		if ok, err := filepath.Match(sub, filepath.Base(rel)); err == nil && ok {
			return true
		}
		if ok, err := filepath.Match(sub, rel); err == nil && ok {
			return true
		}
		return false
	}
	if i := strings.Index(pattern, "/**/"); i >= 0 {
		prefix, suffix := pattern[:i], pattern[i+4:]
		if !strings.HasPrefix(rel, prefix+"/") {
			return false
		}
		rest := rel[len(prefix)+1:]
		if ok, err := filepath.Match(suffix, rest); err == nil && ok {
			return true
		}
		if ok, err := filepath.Match(suffix, filepath.Base(rest)); err == nil && ok {
			return true
		}
	}
	return false
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
