package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/syntrixbase/searchsync/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	mainLogFile  = "searchsync.log"
	errorLogFile = "errors.log"
)

var (
	logFiles   []*lumberjack.Logger
	logFilesMu sync.Mutex

	// stdout is swapped by tests.
	stdout io.Writer = os.Stdout
)

// Initialize builds the logger described by cfg and installs it as the slog default.
func Initialize(cfg config.LoggingConfig) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger)

	slog.Info("Logging initialized",
		"level", cfg.Level,
		"console", cfg.Console.Enabled,
		"file", cfg.File.Enabled,
		"dir", cfg.Dir,
	)
	return nil
}

// NewLogger creates a logger writing to the console and, when enabled, to two
// rotated files: searchsync.log with every record at the file level and
// errors.log with warnings and errors only.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var handlers []slog.Handler

	if cfg.Console.Enabled {
		handlers = append(handlers, createHandler(stdout, cfg.Console.Format, ParseLevel(cfg.Console.Level)))
	}

	if cfg.File.Enabled {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		mainFile := openRotated(cfg, mainLogFile)
		handlers = append(handlers, createHandler(mainFile, cfg.File.Format, ParseLevel(cfg.File.Level)))

		errorFile := openRotated(cfg, errorLogFile)
		errorHandler := createHandler(errorFile, cfg.File.Format, slog.LevelWarn)
		handlers = append(handlers, NewLevelFilter(errorHandler, slog.LevelWarn))
	}

	switch len(handlers) {
	case 0:
		return slog.New(discardHandler{}), nil
	case 1:
		return slog.New(handlers[0]), nil
	default:
		return slog.New(NewMultiHandler(handlers...)), nil
	}
}

// Shutdown closes every log file opened by NewLogger.
func Shutdown() error {
	logFilesMu.Lock()
	defer logFilesMu.Unlock()

	var firstErr error
	for _, f := range logFiles {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close log file %s: %w", f.Filename, err)
		}
	}
	logFiles = nil
	return firstErr
}

// ParseLevel maps a config level name to a slog level; unknown names are info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openRotated(cfg config.LoggingConfig, name string) *lumberjack.Logger {
	f := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, name),
		MaxSize:    cfg.Rotation.MaxSize,
		MaxBackups: cfg.Rotation.MaxBackups,
		MaxAge:     cfg.Rotation.MaxAge,
		Compress:   cfg.Rotation.Compress,
	}

	logFilesMu.Lock()
	logFiles = append(logFiles, f)
	logFilesMu.Unlock()
	return f
}

func createHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return NewConsoleHandler(w, opts)
}
