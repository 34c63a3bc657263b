package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/jamesainslie/headless/pkg/headless/advisor"
	"github.com/jamesainslie/headless/pkg/headless/colima"
	"github.com/jamesainslie/headless/pkg/headless/homebrew"
	"github.com/jamesainslie/headless/pkg/headless/logging"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size" yaml:"max_size"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Daily      bool   `mapstructure:"daily" yaml:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level" yaml:"level"`
	Path       string            `mapstructure:"path" yaml:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation" yaml:"rotation"`
	Components map[string]string `mapstructure:"components" yaml:"components"`
}

// HomebrewConfig locates Homebrew and its installer scripts.
type HomebrewConfig struct {
	Prefix       string `mapstructure:"prefix" yaml:"prefix"`
	InstallURL   string `mapstructure:"install_url" yaml:"install_url"`
	UninstallURL string `mapstructure:"uninstall_url" yaml:"uninstall_url"`
}

// PowerConfig overrides entries of the headless pmset profile.
type PowerConfig struct {
	Settings   map[string]string `mapstructure:"settings" yaml:"settings"`
	BackupPath string            `mapstructure:"backup_path" yaml:"backup_path"`
}

// OllamaConfig configures the inference server and its launch agent.
type OllamaConfig struct {
	Label        string            `mapstructure:"label" yaml:"label"`
	Host         string            `mapstructure:"host" yaml:"host"`
	APIURL       string            `mapstructure:"api_url" yaml:"api_url"`
	Models       []string          `mapstructure:"models" yaml:"models"`
	Environment  map[string]string `mapstructure:"environment" yaml:"environment"`
	ProcessNames []string          `mapstructure:"process_names" yaml:"process_names"`
}

// ColimaConfig configures the VM and its login agent.
type ColimaConfig struct {
	Profile    string `mapstructure:"profile" yaml:"profile"`
	Label      string `mapstructure:"label" yaml:"label"`
	Arch       string `mapstructure:"arch" yaml:"arch"`
	VMType     string `mapstructure:"vm_type" yaml:"vm_type"`
	Rosetta    bool   `mapstructure:"rosetta" yaml:"rosetta"`
	RecordPath string `mapstructure:"record_path" yaml:"record_path"`
}

// HistoryConfig configures the operation journal.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Path          string `mapstructure:"path" yaml:"path"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	Advisor  advisor.Config `mapstructure:"advisor" yaml:"advisor"`
	Homebrew HomebrewConfig `mapstructure:"homebrew" yaml:"homebrew"`
	Power    PowerConfig    `mapstructure:"power" yaml:"power"`
	Ollama   OllamaConfig   `mapstructure:"ollama" yaml:"ollama"`
	Colima   ColimaConfig   `mapstructure:"colima" yaml:"colima"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`

	// File is the config file that was read, empty when only defaults and
	// the environment apply.
	File string `mapstructure:"-" yaml:"-"`
}

// setDefaults registers every default with v.
func setDefaults(v *viper.Viper) {
	a := DefaultAdvisor()
	v.SetDefault("advisor.os_reserve_ram_gb", a.OSReserveRAMGB)
	v.SetDefault("advisor.os_reserve_cpu", a.OSReserveCPU)
	v.SetDefault("advisor.inference_buffer_gb", a.InferenceBufferGB)
	v.SetDefault("advisor.inference_fallback_gb", a.InferenceFallbackGB)
	v.SetDefault("advisor.min_ram_gb", a.MinRAMGB)
	v.SetDefault("advisor.min_cpu", a.MinCPU)
	v.SetDefault("advisor.idle_ram_cap_gb", a.IdleRAMCapGB)
	v.SetDefault("advisor.idle_cpu_cap", a.IdleCPUCap)
	v.SetDefault("advisor.disk_gb", a.DiskGB)

	v.SetDefault("homebrew.prefix", DefaultHomebrewPrefix)
	v.SetDefault("homebrew.install_url", homebrew.DefaultInstallURL)
	v.SetDefault("homebrew.uninstall_url", homebrew.DefaultUninstallURL)

	v.SetDefault("power.settings", map[string]string{})
	v.SetDefault("power.backup_path", "") // Empty means $XDG_DATA_HOME/headless/power-backup.conf

	v.SetDefault("ollama.label", DefaultOllamaLabel)
	v.SetDefault("ollama.host", DefaultOllamaHost)
	v.SetDefault("ollama.api_url", DefaultOllamaAPIURL)
	v.SetDefault("ollama.models", []string{})
	v.SetDefault("ollama.environment", map[string]string{})
	v.SetDefault("ollama.process_names", DefaultProcessNames)

	v.SetDefault("colima.profile", DefaultColimaProfile)
	v.SetDefault("colima.label", DefaultColimaLabel)
	v.SetDefault("colima.arch", DefaultColimaArch)
	v.SetDefault("colima.vm_type", DefaultColimaVMType)
	v.SetDefault("colima.rosetta", true)
	v.SetDefault("colima.record_path", "") // Empty means $XDG_CONFIG_HOME/headless/colima.conf

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "") // Empty means $XDG_DATA_HOME/headless/history
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "") // Empty means use DefaultLogPath
	v.SetDefault("logging.rotation.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.rotation.max_age", DefaultLogMaxAge)
	v.SetDefault("logging.rotation.max_backups", DefaultLogMaxBackups)
	v.SetDefault("logging.rotation.daily", false)
	v.SetDefault("logging.components", map[string]string{})
}

// Load loads configuration from file and environment variables.
// When file is empty, the config file is searched in:
//   - $XDG_CONFIG_HOME/headless/config.yaml
//   - $HOME/.config/headless/config.yaml
//
// Environment variables are prefixed with HEADLESS_
// (e.g., HEADLESS_ADVISOR_DISK_GB=200).
func Load(file string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "headless"))
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", "headless"))
	}

	v.SetEnvPrefix("HEADLESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	for _, p := range []*string{&cfg.Logging.Path, &cfg.History.Path, &cfg.Power.BackupPath, &cfg.Colima.RecordPath} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if err := c.Advisor.Validate(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if _, err := c.Logging.RotationBytes(); err != nil {
		return err
	}
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days must not be negative, got %d", c.History.RetentionDays)
	}
	return nil
}

// RotationBytes parses Rotation.MaxSize ("5MB", "512KiB").
func (l LoggingConfig) RotationBytes() (int64, error) {
	if l.Rotation.MaxSize == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(l.Rotation.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("logging.rotation.max_size: %w", err)
	}
	return int64(n), nil
}

// LoggingSetup converts the logging section for logging.Init.
func (l LoggingConfig) LoggingSetup() (logging.Config, error) {
	size, err := l.RotationBytes()
	if err != nil {
		return logging.Config{}, err
	}
	return logging.Config{
		Level: l.Level,
		Path:  l.Path,
		Rotation: logging.RotationConfig{
			MaxSize:    size,
			MaxAge:     l.Rotation.MaxAge,
			MaxBackups: l.Rotation.MaxBackups,
			Daily:      l.Rotation.Daily,
		},
		Components: l.Components,
	}, nil
}

// Env returns Environment with upper-cased names. Viper folds map keys to
// lower case, and environment variable names are case-sensitive.
func (o OllamaConfig) Env() map[string]string {
	env := make(map[string]string, len(o.Environment))
	for k, v := range o.Environment {
		env[strings.ToUpper(k)] = v
	}
	return env
}

// ColimaRecordPath resolves the record location.
func (c *Config) ColimaRecordPath() string {
	if c.Colima.RecordPath != "" {
		return c.Colima.RecordPath
	}
	return colima.DefaultRecordPath()
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "headless"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "headless"), nil
}

// DefaultFile is config.yaml in ConfigDir.
func DefaultFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a commented default config file to path unless one
// already exists. It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	a := DefaultAdvisor()
	defaultConfig := fmt.Sprintf(`# headless configuration

# Colima VM sizing heuristics (GB and CPU cores)
advisor:
  os_reserve_ram_gb: %d
  os_reserve_cpu: %d
  inference_buffer_gb: %d    # added to the observed Ollama memory
  inference_fallback_gb: %d  # assumed when Ollama memory is unknown
  min_ram_gb: %d
  min_cpu: %d
  idle_ram_cap_gb: %d        # limits when Ollama is not running
  idle_cpu_cap: %d
  disk_gb: %d

homebrew:
  prefix: %s

# Overrides for the headless pmset profile
power:
  settings: {}
    # displaysleep: 0

ollama:
  label: %s
  host: %s
  api_url: %s
  # Models pulled by setup
  models: []
  # Extra environment for ollama serve
  environment: {}
    # OLLAMA_KEEP_ALIVE: 24h

colima:
  profile: %s
  label: %s
  arch: %s
  vm_type: %s
  rosetta: true

history:
  enabled: true
  retention_days: %d

logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means use default: $XDG_STATE_HOME/headless/headless.log)
  path: ""
  rotation:
    max_size: %s
    max_age: %d       # days
    max_backups: %d
    daily: false
  # Per-component log levels
  components: {}
`,
		a.OSReserveRAMGB, a.OSReserveCPU, a.InferenceBufferGB, a.InferenceFallbackGB,
		a.MinRAMGB, a.MinCPU, a.IdleRAMCapGB, a.IdleCPUCap, a.DiskGB,
		DefaultHomebrewPrefix,
		DefaultOllamaLabel, DefaultOllamaHost, DefaultOllamaAPIURL,
		DefaultColimaProfile, DefaultColimaLabel, DefaultColimaArch, DefaultColimaVMType,
		DefaultRetentionDays,
		DefaultLogMaxSize, DefaultLogMaxAge, DefaultLogMaxBackups)

	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return false, fmt.Errorf("failed to write default config: %w", err)
	}
	return true, nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/headless/ for the history and backups.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "headless")
}
