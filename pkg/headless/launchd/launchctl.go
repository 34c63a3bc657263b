package launchd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/headless/pkg/headless/logging"
	"github.com/jamesainslie/headless/pkg/headless/shell"
)

// Supervisor manages launch agents by label.
type Supervisor interface {
	// Install writes the unit's property list, replacing any existing one.
	Install(ctx context.Context, u Unit) error

	// Uninstall deletes the property list. A missing file is not an error.
	Uninstall(ctx context.Context, label string) error

	// Installed reports whether a property list exists for label.
	Installed(label string) bool

	Load(ctx context.Context, label string) error
	Unload(ctx context.Context, label string) error
	Start(ctx context.Context, label string) error
	Stop(ctx context.Context, label string) error

	// IsLoaded reports whether launchd currently knows the job.
	IsLoaded(ctx context.Context, label string) (bool, error)

	// PlistPath returns where the property list for label lives.
	PlistPath(label string) string
}

// Launchctl is the Supervisor backed by the launchctl command.
type Launchctl struct {
	Runner shell.Runner

	// Dir holds the property lists, normally ~/Library/LaunchAgents.
	Dir string
}

// AgentsDir returns ~/Library/LaunchAgents.
func AgentsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, "Library", "LaunchAgents"), nil
}

// NewLaunchctl returns a Launchctl writing to dir.
func NewLaunchctl(r shell.Runner, dir string) *Launchctl {
	return &Launchctl{Runner: r, Dir: dir}
}

// PlistPath implements Supervisor.
func (l *Launchctl) PlistPath(label string) string {
	return filepath.Join(l.Dir, label+".plist")
}

// Install implements Supervisor.
func (l *Launchctl) Install(_ context.Context, u Unit) error {
	content, err := Render(u)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", l.Dir, err)
	}
	for _, p := range []string{u.StdoutPath, u.StderrPath} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
	}

	path := l.PlistPath(u.Label)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("installing %s: %w", path, err)
	}

	logging.Get("launchd").Info("unit written", "label", u.Label, "path", path)
	return nil
}

// Uninstall implements Supervisor.
func (l *Launchctl) Uninstall(_ context.Context, label string) error {
	path := l.PlistPath(label)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("removing %s: %w", path, err)
	}
	logging.Get("launchd").Info("unit removed", "label", label, "path", path)
	return nil
}

// Installed implements Supervisor.
func (l *Launchctl) Installed(label string) bool {
	_, err := os.Stat(l.PlistPath(label))
	return err == nil
}

// Load implements Supervisor.
func (l *Launchctl) Load(ctx context.Context, label string) error {
	if !l.Installed(label) {
		return fmt.Errorf("loading %s: %s not found", label, l.PlistPath(label))
	}
	return l.run(ctx, "unit loaded", label, "load", "-w", l.PlistPath(label))
}

// Unload implements Supervisor. Unloading a job that is not loaded is a no-op.
func (l *Launchctl) Unload(ctx context.Context, label string) error {
	loaded, err := l.IsLoaded(ctx, label)
	if err != nil {
		return err
	}
	if !loaded || !l.Installed(label) {
		return nil
	}
	return l.run(ctx, "unit unloaded", label, "unload", "-w", l.PlistPath(label))
}

// Start implements Supervisor.
func (l *Launchctl) Start(ctx context.Context, label string) error {
	return l.run(ctx, "job started", label, "start", label)
}

// Stop implements Supervisor.
func (l *Launchctl) Stop(ctx context.Context, label string) error {
	return l.run(ctx, "job stopped", label, "stop", label)
}

// IsLoaded implements Supervisor. launchctl list exits non-zero for
// unknown labels.
func (l *Launchctl) IsLoaded(ctx context.Context, label string) (bool, error) {
	ok, err := shell.Succeeds(ctx, l.Runner, shell.Command("launchctl", "list", label))
	if err != nil {
		return false, fmt.Errorf("querying %s: %w", label, err)
	}
	return ok, nil
}

func (l *Launchctl) run(ctx context.Context, msg, label string, args ...string) error {
	if _, err := l.Runner.Run(ctx, shell.Command("launchctl", args...)); err != nil {
		return fmt.Errorf("launchctl %s %s: %w", args[0], label, err)
	}
	logging.Get("launchd").Info(msg, "label", label)
	return nil
}
