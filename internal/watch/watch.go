// Package watch regenerates transformed files as they change on disk.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/signalize/signalize/internal/config"
	"github.com/signalize/signalize/internal/engine"
	"github.com/signalize/signalize/internal/logging"
)

// settlePolls bounds how long a changed file may keep growing before
// the watcher gives up on it for this round.
const settlePolls = 40

// Watcher reruns the engine on batches of changed source files.
type Watcher struct {
	cfg *config.Config
	eng *engine.Engine
	log *zap.SugaredLogger
}

// New creates a watcher driving the given engine.
func New(cfg *config.Config, eng *engine.Engine) *Watcher {
	return &Watcher{cfg: cfg, eng: eng, log: logging.Named("watch")}
}

// Run watches the configured root until the context is canceled.
// Events are debounced so editor save bursts produce one run; a new
// batch cancels the run still in flight.
func (w *Watcher) Run(ctx context.Context) error {
	root, err := filepath.Abs(w.cfg.Root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.addTree(watcher, root, root); err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}
	w.log.Infow("watching", "root", root, "debounce_ms", w.cfg.Watch.DebounceMs)

	pending := make(map[string]struct{})
	var debounce <-chan time.Time
	cancelRun := func() {}
	defer func() { cancelRun() }()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if evt.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					if err := w.addTree(watcher, root, evt.Name); err != nil {
						w.log.Warnw("watching new directory failed", "dir", evt.Name, "error", err)
					}
					continue
				}
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			rel := w.relevant(root, evt.Name)
			if rel == "" {
				continue
			}
			if w.selfEvent(root, rel) {
				w.log.Debugw("own write, ignoring", "file", rel)
				continue
			}
			pending[rel] = struct{}{}
			debounce = time.After(time.Duration(w.cfg.Watch.DebounceMs) * time.Millisecond)

		case <-debounce:
			files := make([]string, 0, len(pending))
			for rel := range pending {
				files = append(files, rel)
			}
			pending = make(map[string]struct{})
			debounce = nil

			cancelRun()
			runCtx, cancel := context.WithCancel(ctx)
			cancelRun = cancel
			go w.regenerate(runCtx, root, files)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warnw("watch error", "error", err)
		}
	}
}

// regenerate waits for each file to stop growing, then runs the engine
// on the batch.
func (w *Watcher) regenerate(ctx context.Context, root string, files []string) {
	abs := make([]string, 0, len(files))
	for _, rel := range files {
		if ctx.Err() != nil {
			return
		}
		path := filepath.Join(root, rel)
		if err := w.settle(ctx, path); err != nil {
			w.log.Warnw("file never settled, skipping", "file", rel, "error", err)
			continue
		}
		abs = append(abs, path)
	}
	if len(abs) == 0 {
		return
	}
	if _, err := w.eng.Run(ctx, abs); err != nil {
		if ctx.Err() != nil {
			w.log.Debugw("regeneration canceled", "files", len(abs))
			return
		}
		w.log.Errorw("regeneration failed", "files", len(abs), "error", err)
	}
}

// settle polls the file size until two consecutive reads agree, so a
// save still streaming to disk is not transformed half-written.
func (w *Watcher) settle(ctx context.Context, abs string) error {
	last := int64(-1)
	for i := 0; i < settlePolls; i++ {
		info, err := os.Stat(abs)
		if err != nil {
			return err
		}
		if info.Size() == last {
			return nil
		}
		last = info.Size()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(w.cfg.Watch.SettleMs) * time.Millisecond):
		}
	}
	return fmt.Errorf("size still changing after %d polls", settlePolls)
}

// relevant maps an event path to a root-relative source path, or ""
// when the file is not one the engine would transform.
func (w *Watcher) relevant(root, name string) string {
	if !strings.HasSuffix(name, ".dart") {
		return ""
	}
	rel, err := filepath.Rel(root, name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	rel = filepath.ToSlash(rel)
	if w.eng.Excluded(rel) || !w.eng.Included(rel) {
		return ""
	}
	return rel
}

// selfEvent reports whether the file currently holds exactly what the
// engine last wrote, meaning the event is an echo of our own write.
func (w *Watcher) selfEvent(root, rel string) bool {
	want, ok := w.eng.WroteHash(rel)
	if !ok {
		return false
	}
	data, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		return false
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]) == want
}

// addTree registers dir and every non-excluded subdirectory.
func (w *Watcher) addTree(watcher *fsnotify.Watcher, root, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel != "." && w.eng.Excluded(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
