// Package scaffold writes the starter files a project needs before its
// first transform: the annotation stub and a default config.
package scaffold

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/signalize/signalize/internal/logging"
)

//go:embed assets/annotations.dart
var annotationsStub []byte

//go:embed assets/signalize.yaml
var defaultConfig []byte

// Init writes signalize.yaml and lib/annotations.dart under dir.
// Existing files are kept unless force is set.
func Init(dir string, force bool) error {
	log := logging.Named("init")
	targets := []struct {
		path string
		data []byte
	}{
		{filepath.Join(dir, "signalize.yaml"), defaultConfig},
		{filepath.Join(dir, "lib", "annotations.dart"), annotationsStub},
	}
	for _, t := range targets {
		if _, err := os.Stat(t.path); err == nil && !force {
			log.Warnw("exists, keeping (use --force to overwrite)", "file", t.path)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(t.path), err)
		}
		if err := os.WriteFile(t.path, t.data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", t.path, err)
		}
		log.Infow("wrote", "file", t.path)
	}
	return nil
}
