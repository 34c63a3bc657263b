package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/headless/pkg/headless/colima"
	"github.com/jamesainslie/headless/pkg/headless/component"
	"github.com/jamesainslie/headless/pkg/headless/config"
	"github.com/jamesainslie/headless/pkg/headless/history"
	"github.com/jamesainslie/headless/pkg/headless/homebrew"
	"github.com/jamesainslie/headless/pkg/headless/launchd"
	"github.com/jamesainslie/headless/pkg/headless/logging"
	"github.com/jamesainslie/headless/pkg/headless/ollama"
	"github.com/jamesainslie/headless/pkg/headless/power"
	"github.com/jamesainslie/headless/pkg/headless/preflight"
	"github.com/jamesainslie/headless/pkg/headless/prompt"
	"github.com/jamesainslie/headless/pkg/headless/shell"
	"github.com/jamesainslie/headless/pkg/headless/sysinfo"
)

// annotationConfigOptional marks commands that must keep working when the
// config file is broken, so the operator can inspect and fix it.
const annotationConfigOptional = "headless/config-optional"

// initialize loads configuration and starts logging. It runs as the root
// command's PersistentPreRunE hook.
func initialize(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		if cmd != nil && cmd.Annotations[annotationConfigOptional] == "true" {
			fmt.Fprintf(stderr, "Warning: %v\n", err)
			cfg = nil
			return nil
		}
		return err
	}
	cfg = loaded

	return initializeLogging(cfg)
}

// initializeLogging starts file logging and, with --verbose, mirrors debug
// output to stderr.
func initializeLogging(c *config.Config) error {
	logCfg, err := c.Logging.LoggingSetup()
	if err != nil {
		return err
	}
	if logCfg.Path == "" {
		logCfg.Path = logging.DefaultLogPath()
	}
	if err := os.MkdirAll(filepath.Dir(logCfg.Path), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	if getVerbose() {
		logCfg.Level = "debug"
		logCfg.ConsoleLevel = "debug"
		logCfg.Console = stderr
	}
	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}

	logging.Get("cli").Debug("configuration loaded", "file", c.File)
	return nil
}

// requirePlatform refuses to touch a machine that is not an Apple Silicon Mac.
func requirePlatform() error {
	return preflight.Host()
}

// app is everything a command needs to act on the machine.
type app struct {
	dispatcher *component.Dispatcher
	journal    *history.Store

	homebrew *homebrew.Component
	power    *power.Component
	ollama   *ollama.Component
	colima   *colima.Component
}

// newApp wires the components from c. The prompter answers every question
// when yes is set; with record, runs are journaled to the history store.
func newApp(c *config.Config, yes, record bool) (*app, error) {
	log := logging.Get("cli")

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	agents, err := launchd.AgentsDir()
	if err != nil {
		return nil, err
	}

	runner := shell.Exec{}
	p := prompt.New(os.Stdin, stdout, yes)
	sup := launchd.NewLaunchctl(runner, agents)
	detector := sysinfo.NewHost(c.Ollama.ProcessNames...)

	a := &app{}

	a.homebrew = homebrew.NewComponent(runner, p, c.Homebrew.Prefix, home)
	if c.Homebrew.InstallURL != "" {
		a.homebrew.InstallURL = c.Homebrew.InstallURL
	}
	if c.Homebrew.UninstallURL != "" {
		a.homebrew.UninstallURL = c.Homebrew.UninstallURL
	}
	brew := a.homebrew.Brew

	a.power = power.NewComponent(power.PMSet{Runner: runner}, p, c.Power.Settings, c.Power.BackupPath)

	a.ollama = ollama.NewComponent(ollama.Options{
		Label:       c.Ollama.Label,
		Host:        c.Ollama.Host,
		APIURL:      c.Ollama.APIURL,
		Models:      c.Ollama.Models,
		Environment: c.Ollama.Env(),
		Home:        home,
	}, brew, sup, runner, detector, p)

	a.colima = colima.NewComponent(colima.Options{
		Profile:    c.Colima.Profile,
		Label:      c.Colima.Label,
		Arch:       c.Colima.Arch,
		VMType:     c.Colima.VMType,
		Rosetta:    c.Colima.Rosetta,
		RecordPath: c.ColimaRecordPath(),
		Home:       home,
		Advisor:    c.Advisor,
	}, brew, sup, runner, detector, p)

	var journal history.Journal = history.Discard{}
	if record && c.History.Enabled {
		store, err := openHistory(c)
		if err != nil {
			// Journaling never blocks a verb; the run proceeds unrecorded.
			log.Warn("history disabled for this run", "error", err)
			printVerbose("history unavailable: %v", err)
		} else {
			a.journal = store
			journal = store
		}
	}

	a.dispatcher = component.NewDispatcher(journal, stdout, a.homebrew, a.power, a.ollama, a.colima)
	return a, nil
}

// close releases the history store.
func (a *app) close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logging.Get("cli").Warn("closing history", "error", err)
		}
		a.journal = nil
	}
}

// logSource is implemented by components whose launch agent writes logs.
type logSource interface {
	LogPaths() []string
}

// logSources returns the components that have service logs, by name.
func (a *app) logSources() map[string]logSource {
	return map[string]logSource{
		a.ollama.Name(): a.ollama,
		a.colima.Name(): a.colima,
	}
}

// historyPath resolves the journal location.
func historyPath(c *config.Config) string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return history.DefaultPath()
}

// openHistory opens the journal, creating its directory.
func openHistory(c *config.Config) (*history.Store, error) {
	path := historyPath(c)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	return history.Open(path)
}
