// Command signalize rewrites annotated Dart source into solid_signals
// reactive declarations. It runs one-shot, in watch mode, or as an MCP
// stdio server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/signalize/signalize/internal/config"
	"github.com/signalize/signalize/internal/engine"
	"github.com/signalize/signalize/internal/logging"
	"github.com/signalize/signalize/internal/scaffold"
	"github.com/signalize/signalize/internal/server"
	"github.com/signalize/signalize/internal/watch"
)

const version = "0.1.0"

func main() {
	cmd, args := "generate", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		switch args[0] {
		case "generate", "watch", "init", "mcp", "version", "help":
			cmd, args = args[0], args[1:]
		}
	}

	var err error
	switch cmd {
	case "generate":
		err = generateCommand(args)
	case "watch":
		err = watchCommand(args)
	case "init":
		err = initCommand(args)
	case "mcp":
		err = mcpCommand(args)
	case "version":
		fmt.Printf("signalize %s\n", version)
	case "help":
		usage()
	}
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "signalize %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `signalize %s

Usage:
  signalize [generate] [flags] [paths...]   transform configured (or listed) files
  signalize watch [flags]                   transform continuously as files change
  signalize init [flags]                    scaffold signalize.yaml and the annotation stub
  signalize mcp [flags]                     serve the transform tools over MCP stdio
  signalize version                         print the version

Run any subcommand with -h for its flags.
`, version)
}

func generateCommand(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", "signalize.yaml", "path to the config file")
	dryRun := fs.Bool("dry-run", false, "print transformed files to stdout instead of writing")
	check := fs.Bool("check", false, "exit 1 when any file would change, write nothing")
	noFormat := fs.Bool("no-format", false, "skip the formatter after writing")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, *verbose)
	if err != nil {
		return err
	}

	eng := engine.New(cfg, engine.Options{
		DryRun:   *dryRun,
		Check:    *check,
		NoFormat: *noFormat,
	})
	run, err := eng.Run(context.Background(), fs.Args())
	if err != nil {
		return err
	}

	if *check && len(run.Changed) > 0 {
		for _, rel := range run.Changed {
			fmt.Printf("would rewrite %s\n", rel)
		}
		return fmt.Errorf("%d file(s) need transforming", len(run.Changed))
	}
	if len(run.Failed) > 0 {
		return fmt.Errorf("%d file(s) failed", len(run.Failed))
	}
	return nil
}

func watchCommand(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "signalize.yaml", "path to the config file")
	noFormat := fs.Bool("no-format", false, "skip the formatter after writing")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, *verbose)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(cfg, engine.Options{NoFormat: *noFormat})
	if _, err := eng.Run(ctx, nil); err != nil {
		return fmt.Errorf("initial transform: %w", err)
	}
	return watch.New(cfg, eng).Run(ctx)
}

func initCommand(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dir := fs.String("dir", ".", "project directory to scaffold into")
	force := fs.Bool("force", false, "overwrite existing files")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	if err := logging.Setup(level); err != nil {
		return err
	}
	return scaffold.Init(*dir, *force)
}

func mcpCommand(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", "signalize.yaml", "path to the config file")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, *verbose)
	if err != nil {
		return err
	}

	eng := engine.New(cfg, engine.Options{})
	if err := eng.LoadInventory(); err == nil {
		logging.Named("main").Debugw("loaded inventory", "declarations", eng.Inventory().Count())
	}

	srv, err := server.New(eng, cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

// loadConfig reads the config, falling back to defaults when the file
// is missing, and installs the logger at the configured level.
func loadConfig(path string, verbose bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	missing := false
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = config.Default()
		missing = true
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	if err := logging.Setup(level); err != nil {
		return nil, err
	}
	if missing {
		logging.Named("main").Warnw("config not found, using defaults", "path", path)
	}
	return cfg, nil
}
