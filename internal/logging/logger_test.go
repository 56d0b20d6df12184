package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/searchsync/internal/config"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := stdout
	stdout = buf
	t.Cleanup(func() { stdout = prev })
	return buf
}

func TestNewLogger_ConsoleOnlyByDefault(t *testing.T) {
	out := captureStdout(t)
	cfg := config.DefaultLoggingConfig()
	cfg.Dir = filepath.Join(t.TempDir(), "logs")

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.Info("window loaded", "component", "pipeline", "rows", 3)

	assert.Contains(t, out.String(), "[pipeline] window loaded rows=3")
	assert.NoDirExists(t, cfg.Dir, "no log directory without file output")
}

func TestNewLogger_FileOutputs(t *testing.T) {
	captureStdout(t)
	cfg := config.DefaultLoggingConfig()
	cfg.Dir = t.TempDir()
	cfg.File.Enabled = true

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.Info("info message", "key", "value")
	logger.Warn("warning message")
	logger.Error("error message")
	require.NoError(t, Shutdown())

	main, err := os.ReadFile(filepath.Join(cfg.Dir, mainLogFile))
	require.NoError(t, err)
	assert.Contains(t, string(main), `"msg":"info message"`)
	assert.Contains(t, string(main), `"key":"value"`)
	assert.Contains(t, string(main), "warning message")

	errs, err := os.ReadFile(filepath.Join(cfg.Dir, errorLogFile))
	require.NoError(t, err)
	assert.NotContains(t, string(errs), "info message")
	assert.Contains(t, string(errs), "warning message")
	assert.Contains(t, string(errs), "error message")
}

func TestNewLogger_ConsoleLevel(t *testing.T) {
	out := captureStdout(t)
	cfg := config.DefaultLoggingConfig()
	cfg.Console.Level = "warn"

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "shown")
}

func TestNewLogger_NoOutputs(t *testing.T) {
	cfg := config.DefaultLoggingConfig()
	cfg.Console.Enabled = false

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.False(t, logger.Enabled(t.Context(), 12))
}

func TestNewLogger_BadDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	cfg := config.DefaultLoggingConfig()
	cfg.File.Enabled = true
	cfg.Dir = filepath.Join(file, "logs")

	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestInitialize(t *testing.T) {
	out := captureStdout(t)
	cfg := config.DefaultLoggingConfig()

	require.NoError(t, Initialize(cfg))
	assert.Contains(t, out.String(), "Logging initialized")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", ParseLevel("debug").String())
	assert.Equal(t, "INFO", ParseLevel("info").String())
	assert.Equal(t, "WARN", ParseLevel("warn").String())
	assert.Equal(t, "ERROR", ParseLevel("error").String())
	assert.Equal(t, "INFO", ParseLevel("bogus").String())
}
