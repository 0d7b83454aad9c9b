// Package logging owns the process logger. Components take named
// sub-loggers; everything goes to stderr so stdout stays free for
// transformed source and MCP traffic.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.Mutex
	logger *zap.SugaredLogger
	syncFn = func() error { return nil }
)

// Setup installs the process logger with console encoding on stderr at
// the given level.
func Setup(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parsing log level %q: %w", level, err)
	}
	mu.Lock()
	defer mu.Unlock()
	install(lvl)
	return nil
}

func install(lvl zapcore.Level) {
	enc := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), lvl)
	base := zap.New(core)
	logger = base.Sugar()
	syncFn = base.Sync
}

// Named returns a component logger. An info-level logger is installed on
// first use when Setup was never called.
func Named(name string) *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		install(zapcore.InfoLevel)
	}
	return logger.Named(name)
}

// Sync flushes any buffered log entries.
func Sync() error {
	mu.Lock()
	fn := syncFn
	mu.Unlock()
	if err := fn(); err != nil {
		if strings.Contains(err.Error(), "bad file descriptor") {
			return nil
		}
		return err
	}
	return nil
}
