package ollama

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/headless/pkg/headless/component"
	"github.com/jamesainslie/headless/pkg/headless/footprint"
	"github.com/jamesainslie/headless/pkg/headless/homebrew"
	"github.com/jamesainslie/headless/pkg/headless/launchd"
	"github.com/jamesainslie/headless/pkg/headless/logging"
	"github.com/jamesainslie/headless/pkg/headless/output"
	"github.com/jamesainslie/headless/pkg/headless/prompt"
	"github.com/jamesainslie/headless/pkg/headless/shell"
	"github.com/jamesainslie/headless/pkg/headless/sysinfo"
	"github.com/jamesainslie/headless/pkg/headless/trash"
)

const (
	name    = "ollama"
	formula = "ollama"

	// DefaultLabel identifies the launch agent.
	DefaultLabel = "com.headless.ollama"

	// DefaultHost makes the server reachable from other machines and from
	// containers in the Colima VM.
	DefaultHost = "0.0.0.0:11434"
)

// ErrNotSetUp is returned by enable before setup wrote the unit.
var ErrNotSetUp = errors.New("ollama has not been set up; run `headless setup ollama` first")

// Options configure the component.
type Options struct {
	Label       string
	Host        string
	APIURL      string
	Models      []string
	Environment map[string]string

	// Home is the operator's home directory; Ollama keeps its data in
	// ~/.ollama.
	Home string
}

// Component manages the Ollama server.
type Component struct {
	Options

	Brew       homebrew.PackageManager
	Supervisor launchd.Supervisor
	Runner     shell.Runner
	API        *Client
	Detector   sysinfo.Detector
	Prompt     *prompt.Prompter

	// ReadyTimeout bounds the wait for the API after loading the unit.
	ReadyTimeout time.Duration

	// GOOS selects how ~/.ollama is disposed of.
	GOOS string
}

// NewComponent returns the ollama component with defaults filled in.
func NewComponent(opts Options, brew homebrew.PackageManager, sup launchd.Supervisor, r shell.Runner, d sysinfo.Detector, p *prompt.Prompter) *Component {
	if opts.Label == "" {
		opts.Label = DefaultLabel
	}
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	return &Component{
		Options:      opts,
		Brew:         brew,
		Supervisor:   sup,
		Runner:       r,
		API:          NewClient(opts.APIURL),
		Detector:     d,
		Prompt:       p,
		ReadyTimeout: ReadyTimeout,
		GOOS:         runtime.GOOS,
	}
}

func (c *Component) Name() string { return name }

func (c *Component) Description() string { return "Ollama inference server" }

// DataDir is ~/.ollama.
func (c *Component) DataDir() string {
	return filepath.Join(c.Home, ".ollama")
}

// ModelsDir holds downloaded model blobs.
func (c *Component) ModelsDir() string {
	return filepath.Join(c.DataDir(), "models")
}

// LogPaths returns the server's stdout and stderr logs.
func (c *Component) LogPaths() []string {
	dir := filepath.Join(c.DataDir(), "logs")
	return []string{filepath.Join(dir, "server.log"), filepath.Join(dir, "server.err.log")}
}

// Unit is the launch agent running `ollama serve`.
func (c *Component) Unit() launchd.Unit {
	env := make(map[string]string, len(c.Environment)+1)
	for k, v := range c.Environment {
		env[k] = v
	}
	env["OLLAMA_HOST"] = c.Host

	logs := c.LogPaths()
	return launchd.Unit{
		Label:            c.Label,
		Program:          c.Brew.Bin("ollama"),
		Args:             []string{"serve"},
		WorkingDirectory: c.Home,
		Environment:      env,
		StdoutPath:       logs[0],
		StderrPath:       logs[1],
		RunAtLoad:        true,
		KeepAlive:        true,
	}
}

func (c *Component) requireBrew() error {
	if !c.Brew.Available() {
		return component.Step(name, "check homebrew", fmt.Errorf("%w; run `headless setup homebrew` first", homebrew.ErrNotInstalled))
	}
	return nil
}

// Setup installs Ollama, registers the launch agent, waits for the API and
// pulls the configured models.
func (c *Component) Setup(ctx context.Context) error {
	log := logging.Get(name)

	if err := c.requireBrew(); err != nil {
		return err
	}

	installed, err := c.Brew.IsInstalled(ctx, formula)
	if err != nil {
		return component.Step(name, "check installation", err)
	}
	if !installed {
		if err := c.Prompt.Require("Install Ollama with Homebrew?"); err != nil {
			return err
		}
		if err := c.Brew.Install(ctx, formula); err != nil {
			return component.Step(name, "install", err)
		}
	}

	unit := c.Unit()
	c.Prompt.Printf("Registering %s (listening on %s).\n", unit.Label, c.Host)

	// A loaded job keeps its old definition until it is reloaded.
	if err := c.Supervisor.Unload(ctx, unit.Label); err != nil {
		return component.Step(name, "unload service", err)
	}
	if err := c.Supervisor.Install(ctx, unit); err != nil {
		return component.Step(name, "write service", err)
	}
	if err := c.Supervisor.Load(ctx, unit.Label); err != nil {
		return component.Step(name, "load service", err)
	}

	if err := c.API.WaitForReady(ctx, c.ReadyTimeout); err != nil {
		return component.Step(name, "wait for API", err)
	}
	log.Info("ollama ready", "api", c.API.BaseURL())

	return c.pullModels(ctx)
}

func (c *Component) pullModels(ctx context.Context) error {
	if len(c.Models) == 0 {
		return nil
	}

	have, err := c.API.ListModels(ctx)
	if err != nil {
		return component.Step(name, "list models", err)
	}

	for _, model := range c.Models {
		if HasModel(have, model) {
			c.Prompt.Printf("Model %s already present.\n", model)
			continue
		}
		c.Prompt.Printf("Pulling %s...\n", model)
		cmd := shell.Cmd{
			Name:        c.Brew.Bin("ollama"),
			Args:        []string{"pull", model},
			Env:         []string{"OLLAMA_HOST=" + c.API.BaseURL()},
			Interactive: true,
		}
		if _, err := c.Runner.Run(ctx, cmd); err != nil {
			return component.Step(name, "pull "+model, err)
		}
		logging.Get(name).Info("model pulled", "model", model)
	}
	return nil
}

// Enable loads the launch agent and waits for the API.
func (c *Component) Enable(ctx context.Context) error {
	if !c.Supervisor.Installed(c.Label) {
		return component.Step(name, "load service", ErrNotSetUp)
	}

	loaded, err := c.Supervisor.IsLoaded(ctx, c.Label)
	if err != nil {
		return component.Step(name, "query service", err)
	}
	if !loaded {
		if err := c.Supervisor.Load(ctx, c.Label); err != nil {
			return component.Step(name, "load service", err)
		}
	}

	if err := c.API.WaitForReady(ctx, c.ReadyTimeout); err != nil {
		return component.Step(name, "wait for API", err)
	}
	c.Prompt.Printf("Ollama is running at %s.\n", c.API.BaseURL())
	return nil
}

// Disable unloads the launch agent, stopping the server.
func (c *Component) Disable(ctx context.Context) error {
	if err := c.Supervisor.Unload(ctx, c.Label); err != nil {
		return component.Step(name, "unload service", err)
	}
	c.Prompt.Printf("Ollama stopped.\n")
	return nil
}

// Remove unloads and deletes the launch agent and uninstalls the formula.
// Model data is only removed after a further confirmation.
func (c *Component) Remove(ctx context.Context) error {
	models, err := footprint.Measure(ctx, c.ModelsDir())
	if err != nil {
		logging.Get(name).Warn("measuring models", "error", err)
	}

	question := "Remove the Ollama service and uninstall Ollama?"
	if models.Exists {
		question = fmt.Sprintf("Remove the Ollama service and uninstall Ollama? Downloaded models use %s.", models)
	}
	if err := c.Prompt.RequireTwice(question); err != nil {
		return err
	}

	if err := c.Supervisor.Unload(ctx, c.Label); err != nil {
		return component.Step(name, "unload service", err)
	}
	if err := c.Supervisor.Uninstall(ctx, c.Label); err != nil {
		return component.Step(name, "delete service", err)
	}

	if c.Brew.Available() {
		installed, err := c.Brew.IsInstalled(ctx, formula)
		if err != nil {
			return component.Step(name, "check installation", err)
		}
		if installed {
			if err := c.Brew.Uninstall(ctx, formula); err != nil {
				return component.Step(name, "uninstall", err)
			}
		}
	}

	data, err := footprint.Measure(ctx, c.DataDir())
	if err != nil || !data.Exists {
		return nil
	}
	if c.Prompt.AssumeYes() {
		c.Prompt.Printf("Keeping %s (%s); models are only deleted when asked interactively.\n", c.DataDir(), data)
		return nil
	}
	purge, err := c.Prompt.Confirm(fmt.Sprintf("Also delete %s (%s, models and keys)?", c.DataDir(), data), false)
	if err != nil {
		return err
	}
	if !purge {
		return nil
	}
	method, err := trash.Dispose(ctx, c.Runner, c.GOOS, c.DataDir())
	if err != nil {
		return component.Step(name, "delete data", err)
	}
	c.Prompt.Printf("%s %s.\n", c.DataDir(), method)
	return nil
}

// Status reports installation, service, API and memory state.
func (c *Component) Status(ctx context.Context) (output.ComponentStatus, error) {
	st := output.ComponentStatus{Name: name, Description: c.Description()}

	if c.Brew.Available() {
		installed, err := c.Brew.IsInstalled(ctx, formula)
		if err != nil {
			return st, err
		}
		st.Installed = installed
	} else if _, err := c.Runner.LookPath("ollama"); err == nil {
		st.Installed = true
	}

	if st.Installed {
		if out, err := shell.Output(ctx, c.Runner, shell.Command(c.Brew.Bin("ollama"), "--version")); err == nil {
			st.Version = parseVersion(out)
		}
	}

	unitInstalled := c.Supervisor.Installed(c.Label)
	st.Add("service", "%s", c.Supervisor.PlistPath(c.Label))
	if unitInstalled {
		loaded, err := c.Supervisor.IsLoaded(ctx, c.Label)
		if err != nil {
			return st, err
		}
		st.Enabled = loaded
	} else if st.Installed {
		st.Warn("launch agent not installed; run setup to register it")
	}

	if c.API.IsRunning(ctx) {
		st.Add("api", "%s (reachable)", c.API.BaseURL())
		if models, err := c.API.ListModels(ctx); err == nil {
			names := make([]string, len(models))
			for i, m := range models {
				names[i] = m.Name
			}
			if len(names) == 0 {
				st.Add("models", "none")
			} else {
				st.Add("models", "%s", strings.Join(names, ", "))
			}
			for _, want := range c.Models {
				if !HasModel(models, want) {
					st.Warn("configured model %s is not pulled", want)
				}
			}
		}
	} else {
		st.Add("api", "%s (not reachable)", c.API.BaseURL())
		if st.Enabled {
			st.Warn("service is loaded but the API does not answer")
		}
	}

	if c.Detector != nil {
		if w, err := c.Detector.Inference(ctx); err == nil && w.Running() {
			st.Add("memory", "%s resident in %d process(es)", humanize.IBytes(w.RSS()), len(w.Processes))
		}
	}

	if usage, err := footprint.Measure(ctx, c.ModelsDir()); err == nil && usage.Exists {
		st.Add("models on disk", "%s", usage)
	}
	return st, nil
}

// parseVersion extracts the version from `ollama --version`, which prints
// "ollama version is 0.5.7" and possibly a client/server mismatch warning.
func parseVersion(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if i := strings.Index(line, "version is "); i >= 0 {
			return strings.TrimSpace(line[i+len("version is "):])
		}
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

var _ component.Component = (*Component)(nil)
