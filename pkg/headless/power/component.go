package power

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/adrg/xdg"

	"github.com/jamesainslie/headless/pkg/headless/component"
	"github.com/jamesainslie/headless/pkg/headless/kvfile"
	"github.com/jamesainslie/headless/pkg/headless/logging"
	"github.com/jamesainslie/headless/pkg/headless/output"
	"github.com/jamesainslie/headless/pkg/headless/prompt"
)

const name = "power"

const backupHeader = "pmset values in effect before headless changed them.\nRestored by `headless disable power`."

// DefaultBackupPath is where the replaced settings are kept.
func DefaultBackupPath() string {
	return filepath.Join(xdg.DataHome, "headless", "power-backup.conf")
}

// Component applies the headless power profile.
type Component struct {
	Controller Controller
	Prompt     *prompt.Prompter

	// Target is the profile applied by setup and enable.
	Target Profile

	BackupPath string
}

// NewComponent returns the power component targeting the headless profile
// with overrides applied.
func NewComponent(c Controller, p *prompt.Prompter, overrides map[string]string, backupPath string) *Component {
	if backupPath == "" {
		backupPath = DefaultBackupPath()
	}
	return &Component{
		Controller: c,
		Prompt:     p,
		Target:     HeadlessProfile().Merge(overrides),
		BackupPath: backupPath,
	}
}

func (c *Component) Name() string { return name }

func (c *Component) Description() string { return "pmset profile for unattended operation" }

// Setup backs up the current settings and applies the headless profile.
func (c *Component) Setup(ctx context.Context) error {
	return c.apply(ctx, true)
}

// Enable applies the headless profile without touching the backup.
func (c *Component) Enable(ctx context.Context) error {
	return c.apply(ctx, false)
}

func (c *Component) apply(ctx context.Context, backup bool) error {
	if err := c.Target.Validate(); err != nil {
		return component.Step(name, "validate profile", err)
	}

	current, err := c.Controller.Query(ctx)
	if err != nil {
		return component.Step(name, "read settings", err)
	}

	rows := Compare(current, c.Target)
	c.printRows(rows)
	if AllMatch(rows) {
		c.Prompt.Printf("The headless power profile is already in effect.\n")
		return nil
	}

	if err := c.Prompt.Require("Apply these power settings (requires sudo)?"); err != nil {
		return err
	}

	if backup && !kvfile.Exists(c.BackupPath) {
		values := kvfile.Values(current.Subset(c.Target))
		if err := kvfile.Write(c.BackupPath, backupHeader, values); err != nil {
			return component.Step(name, "back up settings", err)
		}
		logging.Get(name).Info("settings backed up", "path", c.BackupPath)
	}

	if err := c.Controller.Apply(ctx, c.Target); err != nil {
		return component.Step(name, "apply settings", err)
	}
	c.Prompt.Printf("Headless power profile applied.\n")
	return nil
}

func (c *Component) printRows(rows []Setting) {
	tw := tabwriter.NewWriter(c.Prompt.Out(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SETTING\tCURRENT\tTARGET\t")
	for _, r := range rows {
		current := r.Current
		if current == "" {
			current = "-"
		}
		mark := ""
		if !r.Matches() {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, current, r.Target, mark)
	}
	_ = tw.Flush()
}

// restoreTarget is the backup when one exists, otherwise RestoreProfile.
func (c *Component) restoreTarget() (Profile, string, error) {
	values, err := kvfile.Read(c.BackupPath)
	switch {
	case errors.Is(err, kvfile.ErrNotExist):
		return RestoreProfile(), "defaults", nil
	case err != nil:
		return nil, "", err
	case len(values) == 0:
		return RestoreProfile(), "defaults", nil
	}
	return Profile(values), c.BackupPath, nil
}

// Disable restores the settings from the backup, or desktop defaults when
// there is none.
func (c *Component) Disable(ctx context.Context) error {
	target, source, err := c.restoreTarget()
	if err != nil {
		return component.Step(name, "read backup", err)
	}

	c.Prompt.Printf("Restoring power settings from %s.\n", source)
	if err := c.Controller.Apply(ctx, target); err != nil {
		return component.Step(name, "restore settings", err)
	}
	return nil
}

// Remove restores the previous settings and deletes the backup.
func (c *Component) Remove(ctx context.Context) error {
	if err := c.Prompt.RequireTwice("Restore the previous power settings and delete the backup?"); err != nil {
		return err
	}
	if err := c.Disable(ctx); err != nil {
		return err
	}
	if err := kvfile.Remove(c.BackupPath); err != nil {
		return component.Step(name, "delete backup", err)
	}
	logging.Get(name).Info("backup removed", "path", c.BackupPath)
	return nil
}

// Status compares every target setting with the value in effect.
func (c *Component) Status(ctx context.Context) (output.ComponentStatus, error) {
	st := output.ComponentStatus{Name: name, Description: c.Description()}

	current, err := c.Controller.Query(ctx)
	if err != nil {
		return st, err
	}

	rows := Compare(current, c.Target)
	st.Enabled = AllMatch(rows)
	st.Installed = st.Enabled || kvfile.Exists(c.BackupPath)

	for _, r := range rows {
		if r.Matches() {
			st.Add(r.Name, "%s", r.Current)
			continue
		}
		current := r.Current
		if current == "" {
			current = "unset"
		}
		st.Add(r.Name, "%s (headless: %s)", current, r.Target)
	}
	if kvfile.Exists(c.BackupPath) {
		st.Add("backup", "%s", c.BackupPath)
	}
	return st, nil
}

var _ component.Component = (*Component)(nil)
