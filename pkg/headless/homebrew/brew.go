// Package homebrew installs and removes Homebrew itself and provides the
// package operations the other components use to install their tools.
package homebrew

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/headless/pkg/headless/logging"
	"github.com/jamesainslie/headless/pkg/headless/shell"
)

// DefaultPrefix is Homebrew's location on Apple Silicon.
const DefaultPrefix = "/opt/homebrew"

// ErrNotInstalled is returned when brew cannot be found.
var ErrNotInstalled = errors.New("homebrew is not installed")

// PackageManager is what other components need from Homebrew.
type PackageManager interface {
	// Available reports whether brew can be run.
	Available() bool

	IsInstalled(ctx context.Context, pkg string) (bool, error)
	Install(ctx context.Context, pkgs ...string) error
	Uninstall(ctx context.Context, pkgs ...string) error

	// Bin returns the path a formula's executable is linked to.
	Bin(name string) string
}

// Brew runs the brew command.
type Brew struct {
	Runner shell.Runner
	Prefix string
}

// New returns a Brew for prefix; empty means DefaultPrefix.
func New(r shell.Runner, prefix string) *Brew {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Brew{Runner: r, Prefix: prefix}
}

// Path locates brew on PATH or under the prefix. Right after installation
// the prefix is not yet on PATH, so both are checked.
func (b *Brew) Path() (string, error) {
	if p, err := b.Runner.LookPath("brew"); err == nil {
		return p, nil
	}
	p := filepath.Join(b.Prefix, "bin", "brew")
	if info, err := os.Stat(p); err == nil && !info.IsDir() {
		return p, nil
	}
	return "", ErrNotInstalled
}

// Available implements PackageManager.
func (b *Brew) Available() bool {
	_, err := b.Path()
	return err == nil
}

// Bin implements PackageManager.
func (b *Brew) Bin(name string) string {
	return filepath.Join(b.Prefix, "bin", name)
}

func (b *Brew) cmd(args ...string) (shell.Cmd, error) {
	path, err := b.Path()
	if err != nil {
		return shell.Cmd{}, err
	}
	return shell.Cmd{
		Name: path,
		Args: args,
		Env:  []string{"HOMEBREW_NO_ENV_HINTS=1", "HOMEBREW_NO_AUTO_UPDATE=1"},
	}, nil
}

func (b *Brew) output(ctx context.Context, args ...string) (string, error) {
	cmd, err := b.cmd(args...)
	if err != nil {
		return "", err
	}
	return shell.Output(ctx, b.Runner, cmd)
}

// Version returns the first line of brew --version, e.g. "Homebrew 4.4.0".
func (b *Brew) Version(ctx context.Context) (string, error) {
	out, err := b.output(ctx, "--version")
	if err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(out, "\n")
	return strings.TrimSpace(first), nil
}

// IsInstalled implements PackageManager. brew list --versions prints nothing
// and exits non-zero for formulae that are not installed.
func (b *Brew) IsInstalled(ctx context.Context, pkg string) (bool, error) {
	cmd, err := b.cmd("list", "--versions", pkg)
	if err != nil {
		return false, err
	}
	res, err := b.Runner.Run(ctx, cmd)
	if shell.IsExit(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}

// PackageVersion returns the installed version of pkg, or "" when absent.
func (b *Brew) PackageVersion(ctx context.Context, pkg string) (string, error) {
	cmd, err := b.cmd("list", "--versions", pkg)
	if err != nil {
		return "", err
	}
	res, err := b.Runner.Run(ctx, cmd)
	if shell.IsExit(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	fields := strings.Fields(res.Stdout)
	if len(fields) < 2 {
		return "", nil
	}
	return fields[len(fields)-1], nil
}

// Install implements PackageManager. Output goes to the terminal so the
// operator sees download progress.
func (b *Brew) Install(ctx context.Context, pkgs ...string) error {
	return b.interactive(ctx, "install", pkgs)
}

// Uninstall implements PackageManager.
func (b *Brew) Uninstall(ctx context.Context, pkgs ...string) error {
	return b.interactive(ctx, "uninstall", pkgs)
}

func (b *Brew) interactive(ctx context.Context, op string, pkgs []string) error {
	if len(pkgs) == 0 {
		return nil
	}
	cmd, err := b.cmd(append([]string{op}, pkgs...)...)
	if err != nil {
		return err
	}
	cmd.Interactive = true
	if _, err := b.Runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("brew %s %s: %w", op, strings.Join(pkgs, " "), err)
	}
	logging.Get("homebrew").Info("brew "+op, "packages", strings.Join(pkgs, ","))
	return nil
}

// Formulae lists installed formulae.
func (b *Brew) Formulae(ctx context.Context) ([]string, error) {
	cmd, err := b.cmd("list", "--formula", "-1")
	if err != nil {
		return nil, err
	}
	res, err := b.Runner.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return res.Lines(), nil
}

// CacheDir returns brew --cache.
func (b *Brew) CacheDir(ctx context.Context) (string, error) {
	return b.output(ctx, "--cache")
}

var _ PackageManager = (*Brew)(nil)
