package logging_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/headless/pkg/headless/logging"
)

// Tests in this file share the package's global state and do not run in parallel.

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"INFO", logging.LevelInfo, false},
		{"", logging.LevelInfo, false},
		{"warning", logging.LevelWarn, false},
		{" error ", logging.LevelError, false},
		{"loud", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := logging.ParseLevel(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, logging.ErrInvalidLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInit(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     logging.Config
		wantErr bool
	}{
		{
			name: "defaults",
			cfg:  logging.Config{Level: "info", Path: filepath.Join(dir, "a.log")},
		},
		{
			name: "component overrides",
			cfg: logging.Config{
				Level:      "info",
				Path:       filepath.Join(dir, "b.log"),
				Components: map[string]string{"colima": "debug", "power": "warn"},
			},
		},
		{
			name:    "invalid level",
			cfg:     logging.Config{Level: "invalid", Path: filepath.Join(dir, "c.log")},
			wantErr: true,
		},
		{
			name: "invalid component level",
			cfg: logging.Config{
				Level:      "info",
				Path:       filepath.Join(dir, "d.log"),
				Components: map[string]string{"ollama": "chatty"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := logging.Init(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, logging.Close())
		})
	}
}

func TestLoggerWritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "write.log")
	require.NoError(t, logging.Init(logging.Config{Level: "debug", Path: logPath}))

	logger := logging.Get("colima")
	logger.Info("vm started", "profile", "default")
	logger.With("step", "verify").Debug("docker reachable")

	require.NoError(t, logging.Close())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "vm started")
	assert.Contains(t, string(content), "profile=default")
	assert.Contains(t, string(content), "step=verify")
	assert.Contains(t, string(content), "colima")
}

func TestLogLevels(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "levels.log")
	require.NoError(t, logging.Init(logging.Config{
		Level:      "warn",
		Path:       logPath,
		Components: map[string]string{"power": "debug"},
	}))

	logger := logging.Get("levels")
	logger.Debug("debug hidden")
	logging.Get("levels").Info("info hidden")
	logger.Warn("warn shown")
	logger.Error("error shown")
	logging.Get("power").Debug("power debug shown")

	require.NoError(t, logging.Close())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	out := string(content)
	assert.NotContains(t, out, "debug hidden")
	assert.NotContains(t, out, "info hidden")
	assert.Contains(t, out, "warn shown")
	assert.Contains(t, out, "error shown")
	assert.Contains(t, out, "power debug shown")
}

func TestConsoleMirror(t *testing.T) {
	var console bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "console.log")
	require.NoError(t, logging.Init(logging.Config{
		Level:        "debug",
		Path:         logPath,
		ConsoleLevel: "warn",
		Console:      &console,
	}))

	logger := logging.Get("console")
	logger.Info("file only")
	logger.Warn("both")

	require.NoError(t, logging.Close())

	assert.NotContains(t, console.String(), "file only")
	assert.Contains(t, console.String(), "both")

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "file only")
}

func TestLoggerBeforeInitIsSilent(t *testing.T) {
	require.NoError(t, logging.Close())

	logger := logging.Get("early")
	assert.NotPanics(t, func() { logger.Info("nobody hears this") })

	logPath := filepath.Join(t.TempDir(), "late.log")
	require.NoError(t, logging.Init(logging.Config{Level: "info", Path: logPath}))
	logger.Info("after init")
	require.NoError(t, logging.Close())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(content), "after init"), "early logger should follow Init")
}

func TestDefaultLogPath(t *testing.T) {
	path := logging.DefaultLogPath()
	assert.Equal(t, "headless.log", filepath.Base(path))
	assert.Equal(t, "headless", filepath.Base(filepath.Dir(path)))
}
