package homebrew

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/headless/pkg/headless/component"
	"github.com/jamesainslie/headless/pkg/headless/footprint"
	"github.com/jamesainslie/headless/pkg/headless/logging"
	"github.com/jamesainslie/headless/pkg/headless/output"
	"github.com/jamesainslie/headless/pkg/headless/prompt"
	"github.com/jamesainslie/headless/pkg/headless/shell"
)

// Official installer locations.
const (
	DefaultInstallURL   = "https://raw.githubusercontent.com/Homebrew/install/HEAD/install.sh"
	DefaultUninstallURL = "https://raw.githubusercontent.com/Homebrew/install/HEAD/uninstall.sh"
)

const name = "homebrew"

// Component installs and removes Homebrew itself.
type Component struct {
	Brew   *Brew
	Runner shell.Runner
	Prompt *prompt.Prompter

	// Home is the operator's home directory; ~/.zprofile lives there.
	Home string

	InstallURL   string
	UninstallURL string
}

// NewComponent returns the homebrew component with the official script URLs.
func NewComponent(r shell.Runner, p *prompt.Prompter, prefix, home string) *Component {
	return &Component{
		Brew:         New(r, prefix),
		Runner:       r,
		Prompt:       p,
		Home:         home,
		InstallURL:   DefaultInstallURL,
		UninstallURL: DefaultUninstallURL,
	}
}

func (c *Component) Name() string { return name }

func (c *Component) Description() string { return "Homebrew package manager" }

func (c *Component) zprofile() string {
	return filepath.Join(c.Home, ".zprofile")
}

// Setup installs Homebrew when it is missing and makes sure login shells
// have it on PATH.
func (c *Component) Setup(ctx context.Context) error {
	log := logging.Get(name)

	if path, err := c.Brew.Path(); err == nil {
		c.Prompt.Printf("Homebrew is already installed at %s.\n", path)
		return c.ensureShellenv()
	}

	if err := c.Prompt.Require(fmt.Sprintf("Install Homebrew into %s?", c.Brew.Prefix)); err != nil {
		return err
	}

	if err := c.runScript(ctx, "install", c.InstallURL); err != nil {
		return err
	}
	if !c.Brew.Available() {
		return component.Step(name, "verify install", ErrNotInstalled)
	}
	log.Info("homebrew installed", "prefix", c.Brew.Prefix)

	return c.ensureShellenv()
}

func (c *Component) ensureShellenv() error {
	changed, err := EnsureLine(c.zprofile(), ShellenvLine(c.Brew.Prefix))
	if err != nil {
		return component.Step(name, "update ~/.zprofile", err)
	}
	if changed {
		logging.Get(name).Info("shellenv added", "file", c.zprofile())
		c.Prompt.Printf("Added Homebrew to %s.\n", c.zprofile())
	}
	return nil
}

// runScript downloads one of the official scripts and runs it with the
// terminal attached so sudo can ask for a password.
func (c *Component) runScript(ctx context.Context, kind, url string) error {
	tmp, err := os.CreateTemp("", "homebrew-"+kind+"-*.sh")
	if err != nil {
		return component.Step(name, "download "+kind+" script", err)
	}
	script := tmp.Name()
	tmp.Close()
	defer os.Remove(script)

	if _, err := c.Runner.Run(ctx, shell.Command("curl", "-fsSL", "-o", script, url)); err != nil {
		return component.Step(name, "download "+kind+" script", err)
	}

	run := shell.Cmd{
		Name:        "/bin/bash",
		Args:        []string{script},
		Env:         []string{"NONINTERACTIVE=1"},
		Interactive: true,
	}
	if _, err := c.Runner.Run(ctx, run); err != nil {
		return component.Step(name, "run "+kind+" script", err)
	}
	return nil
}

// Enable is not meaningful for Homebrew.
func (c *Component) Enable(context.Context) error { return component.ErrUnsupported }

// Disable is not meaningful for Homebrew.
func (c *Component) Disable(context.Context) error { return component.ErrUnsupported }

// Remove uninstalls Homebrew and every formula with it.
func (c *Component) Remove(ctx context.Context) error {
	if !c.Brew.Available() {
		c.Prompt.Printf("Homebrew is not installed.\n")
		_, err := RemoveLine(c.zprofile(), ShellenvLine(c.Brew.Prefix))
		return err
	}

	question := fmt.Sprintf("Remove Homebrew from %s along with every installed formula?", c.Brew.Prefix)
	if formulae, err := c.Brew.Formulae(ctx); err == nil && len(formulae) > 0 {
		question = fmt.Sprintf("Remove Homebrew from %s along with %d installed formulae?", c.Brew.Prefix, len(formulae))
	}
	if err := c.Prompt.RequireTwice(question); err != nil {
		return err
	}

	if err := c.runScript(ctx, "uninstall", c.UninstallURL); err != nil {
		return err
	}
	if _, err := RemoveLine(c.zprofile(), ShellenvLine(c.Brew.Prefix)); err != nil {
		return component.Step(name, "update ~/.zprofile", err)
	}
	logging.Get(name).Info("homebrew removed", "prefix", c.Brew.Prefix)
	return nil
}

// Status reports the installed version, formula count and download cache.
func (c *Component) Status(ctx context.Context) (output.ComponentStatus, error) {
	st := output.ComponentStatus{Name: name, Description: c.Description()}

	path, err := c.Brew.Path()
	if err != nil {
		return st, nil
	}
	st.Installed = true
	st.Enabled = true
	st.Add("path", "%s", path)
	st.Add("prefix", "%s", c.Brew.Prefix)

	version, err := c.Brew.Version(ctx)
	if err != nil {
		return st, fmt.Errorf("brew --version: %w", err)
	}
	st.Version = version

	if formulae, err := c.Brew.Formulae(ctx); err == nil {
		st.Add("formulae", "%d", len(formulae))
	} else {
		st.Warn("could not list formulae: %v", err)
	}

	if cache, err := c.Brew.CacheDir(ctx); err == nil && cache != "" {
		if usage, err := footprint.Measure(ctx, cache); err == nil {
			st.Add("cache", "%s", usage)
		}
	}

	ok, err := lineExists(c.zprofile(), ShellenvLine(c.Brew.Prefix))
	if err == nil && !ok && !onPath(c.Runner) {
		st.Warn("brew is not on PATH for login shells; run setup to fix ~/.zprofile")
	}
	return st, nil
}

func onPath(r shell.Runner) bool {
	_, err := r.LookPath("brew")
	return err == nil
}

var _ component.Component = (*Component)(nil)
