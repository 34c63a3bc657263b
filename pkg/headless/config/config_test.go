package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultAdvisor(), cfg.Advisor)
	assert.Equal(t, DefaultHomebrewPrefix, cfg.Homebrew.Prefix)
	assert.Equal(t, DefaultOllamaHost, cfg.Ollama.Host)
	assert.Equal(t, []string{"ollama"}, cfg.Ollama.ProcessNames)
	assert.Equal(t, DefaultColimaVMType, cfg.Colima.VMType)
	assert.True(t, cfg.Colima.Rosetta)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, DefaultRetentionDays, cfg.History.RetentionDays)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.File)
}

func TestLoadFromFile(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".config", "headless")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
advisor:
  disk_gb: 200
  idle_ram_cap_gb: 24
power:
  settings:
    displaysleep: "0"
ollama:
  models:
    - llama3.2
    - nomic-embed-text
  environment:
    OLLAMA_KEEP_ALIVE: 24h
colima:
  profile: work
  record_path: ~/colima.conf
`), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Advisor.DiskGB)
	assert.Equal(t, 24, cfg.Advisor.IdleRAMCapGB)
	assert.Equal(t, 4, cfg.Advisor.OSReserveRAMGB)
	assert.Equal(t, "0", cfg.Power.Settings["displaysleep"])
	assert.Equal(t, []string{"llama3.2", "nomic-embed-text"}, cfg.Ollama.Models)
	assert.Equal(t, map[string]string{"OLLAMA_KEEP_ALIVE": "24h"}, cfg.Ollama.Env())
	assert.Equal(t, "work", cfg.Colima.Profile)
	assert.Equal(t, filepath.Join(home, "colima.conf"), cfg.ColimaRecordPath())
	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfg.File)
}

func TestLoadExplicitFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("colima:\n  arch: x86_64\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "x86_64", cfg.Colima.Arch)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	isolate(t)
	t.Setenv("HEADLESS_ADVISOR_DISK_GB", "300")
	t.Setenv("HEADLESS_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Advisor.DiskGB)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"negative advisor value", "advisor:\n  min_cpu: -1\n", "advisor.min_cpu"},
		{"bad log level", "logging:\n  level: loud\n", "logging.level"},
		{"bad rotation size", "logging:\n  rotation:\n    max_size: lots\n", "max_size"},
		{"negative retention", "history:\n  retention_days: -5\n", "retention_days"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoggingSetup(t *testing.T) {
	l := LoggingConfig{
		Level:      "warn",
		Path:       "/tmp/h.log",
		Rotation:   RotationConfig{MaxSize: "10MB", MaxAge: 7, MaxBackups: 2, Daily: true},
		Components: map[string]string{"colima": "debug"},
	}
	got, err := l.LoggingSetup()
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), got.Rotation.MaxSize)
	assert.Equal(t, 7, got.Rotation.MaxAge)
	assert.True(t, got.Rotation.Daily)
	assert.Equal(t, "debug", got.Components["colima"])

	n, err := LoggingConfig{}.RotationBytes()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWriteDefault(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "headless", "config.yaml")

	written, err := WriteDefault(path)
	require.NoError(t, err)
	assert.True(t, written)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultAdvisor(), cfg.Advisor)
	assert.Equal(t, DefaultOllamaLabel, cfg.Ollama.Label)
	size, err := cfg.Logging.RotationBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000), size)

	written, err = WriteDefault(path)
	require.NoError(t, err)
	assert.False(t, written)
}

func TestConfigDir(t *testing.T) {
	home := isolate(t)
	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "headless"), dir)

	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	dir, err = ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/xdg/headless", dir)

	file, err := DefaultFile()
	require.NoError(t, err)
	assert.Equal(t, "/xdg/headless/config.yaml", file)
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)
	p, err := ExpandPath("~/x")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x"), p)

	p, err = ExpandPath("/abs")
	require.NoError(t, err)
	assert.Equal(t, "/abs", p)
}
