package main

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/headless/pkg/headless/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage headless configuration settings.

Configuration is loaded from:
  1. the file given with --config
  2. $XDG_CONFIG_HOME/headless/config.yaml (if set)
  3. ~/.config/headless/config.yaml

Environment variables can override config file settings using the HEADLESS_ prefix:
  HEADLESS_ADVISOR_DISK_GB=200
  HEADLESS_OLLAMA_HOST=127.0.0.1:11434
  HEADLESS_HISTORY_ENABLED=false`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after defaults, file and environment are merged.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	RunE:        runConfigEdit,
	Annotations: map[string]string{annotationConfigOptional: "true"},
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Create default configuration file",
	Long:        `Create a default configuration file if one doesn't exist.`,
	RunE:        runConfigInit,
	Annotations: map[string]string{annotationConfigOptional: "true"},
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Show configuration file path",
	Long:        `Display the path to the configuration file.`,
	RunE:        runConfigPath,
	Annotations: map[string]string{annotationConfigOptional: "true"},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// configPath is the --config file or the default location.
func configPath() (string, error) {
	if cfgFile != "" {
		return config.ExpandPath(cfgFile)
	}
	return config.DefaultFile()
}

// runConfigShow displays the effective configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	if cfg.File != "" {
		printInfo("Config file: %s\n", cfg.File)
	} else {
		printInfo("Config file: (using defaults, no file found)\n")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	printInfo("Current Configuration:")
	printInfo("----------------------")
	fmt.Fprint(stdout, string(data))

	printInfo("\nEnvironment Overrides:")
	printInfo("----------------------")
	overrides := environmentOverrides(os.Environ())
	if len(overrides) == 0 {
		printInfo("(none)")
	}
	for _, kv := range overrides {
		printInfo("%s", kv)
	}
	return nil
}

// environmentOverrides returns the HEADLESS_ variables in env, sorted.
func environmentOverrides(env []string) []string {
	var out []string
	for _, kv := range env {
		if strings.HasPrefix(kv, "HEADLESS_") {
			out = append(out, kv)
		}
	}
	sort.Strings(out)
	return out
}

// runConfigEdit opens the config file in an editor.
func runConfigEdit(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	// Ensure config file exists
	if _, err := config.WriteDefault(path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	// Determine editor
	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", path, editor)

	editorCmd := exec.CommandContext(cmd.Context(), editor, path)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}

	if _, err := config.Load(path); err != nil {
		printError("%v", err)
		printInfo("Run 'headless config edit' again to fix it.")
	}
	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	written, err := config.WriteDefault(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if !written {
		printInfo("Config file already exists: %s", path)
		printInfo("Use 'headless config edit' to modify it.")
		return nil
	}

	printInfo("Created default config file: %s", path)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	printInfo("%s", path)

	if _, err := os.Stat(path); err == nil {
		printVerbose("File exists")
	} else {
		printVerbose("File does not exist (run 'headless config init' to create)")
	}
	return nil
}
