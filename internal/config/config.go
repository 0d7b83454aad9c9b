package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the signalize.yaml configuration.
type Config struct {
	Root      string      `yaml:"root"`
	Include   []string    `yaml:"include"`
	Exclude   []string    `yaml:"exclude"`
	Format    bool        `yaml:"format"`
	Formatter string      `yaml:"formatter"`
	CacheDir  string      `yaml:"cache_dir"`
	Watch     WatchConfig `yaml:"watch"`
	LogLevel  string      `yaml:"log_level"`
}

// WatchConfig controls the watch-mode timing knobs.
type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms"`
	SettleMs   int `yaml:"settle_ms"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Root:    ".",
		Include: []string{"lib/**/*.dart"},
		Exclude: []string{
			"**/*.g.dart",
			"**/*.freezed.dart",
			".dart_tool/**",
			"build/**",
			".signalize/**",
		},
		Format:    true,
		Formatter: "dart",
		CacheDir:  ".signalize",
		Watch: WatchConfig{
			DebounceMs: 200,
			SettleMs:   75,
		},
		LogLevel: "info",
	}
}

// Load reads a configuration file from the given path.
// Missing fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Ensure required defaults
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if len(cfg.Include) == 0 {
		cfg.Include = []string{"lib/**/*.dart"}
	}
	if cfg.Formatter == "" {
		cfg.Formatter = "dart"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = ".signalize"
	}
	if cfg.Watch.DebounceMs <= 0 {
		cfg.Watch.DebounceMs = 200
	}
	if cfg.Watch.SettleMs <= 0 {
		cfg.Watch.SettleMs = 75
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}
