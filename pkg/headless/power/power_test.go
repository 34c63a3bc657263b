package power

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/headless/pkg/headless/component"
	"github.com/jamesainslie/headless/pkg/headless/kvfile"
	"github.com/jamesainslie/headless/pkg/headless/prompt"
	"github.com/jamesainslie/headless/pkg/headless/shell/shelltest"
)

const pmsetOutput = `System-wide power settings:
Currently in use:
 standby              1
 Sleep On Power Button 1
 womp                 1
 autorestart          0
 powernap             1
 networkoversleep     0
 disksleep            10
 sleep                1 (sleep prevented by sharingd)
 tcpkeepalive         1
 displaysleep         10
`

type fakeController struct {
	current Profile
	applied []Profile
	err     error
}

func (f *fakeController) Query(context.Context) (Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.current, nil
}

func (f *fakeController) Apply(_ context.Context, p Profile) error {
	f.applied = append(f.applied, p)
	f.current = f.current.Merge(p)
	return nil
}

func newTestComponent(t *testing.T, ctrl Controller, answers string) (*Component, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	p := prompt.New(strings.NewReader(answers), &out, false)
	return NewComponent(ctrl, p, nil, filepath.Join(t.TempDir(), "power-backup.conf")), &out
}

func TestParsePMSet(t *testing.T) {
	p := ParsePMSet(pmsetOutput)

	assert.Equal(t, "1", p["sleep"])
	assert.Equal(t, "10", p["disksleep"])
	assert.Equal(t, "0", p["autorestart"])
	assert.Equal(t, "1", p["standby"])
	assert.NotContains(t, p, "System-wide")
	assert.NotContains(t, p, "Currently")
}

func TestProfileMerge(t *testing.T) {
	base := HeadlessProfile()
	merged := base.Merge(map[string]string{" DisplaySleep ": " 0 ", "hibernatemode": "0"})

	assert.Equal(t, "0", merged["displaysleep"])
	assert.Equal(t, "0", merged["hibernatemode"])
	assert.Equal(t, "10", base["displaysleep"], "Merge must not modify the receiver")
}

func TestProfileArgs(t *testing.T) {
	p := Profile{"sleep": "0", "autorestart": "1", "womp": "1"}
	assert.Equal(t, []string{"autorestart", "1", "sleep", "0", "womp", "1"}, p.Args())
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{"headless", HeadlessProfile(), false},
		{"restore", RestoreProfile(), false},
		{"flag as name", Profile{"-a": "1"}, true},
		{"space in value", Profile{"sleep": "0 1"}, true},
		{"empty value", Profile{"sleep": ""}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	rows := Compare(Profile{"sleep": "1", "womp": "1"}, Profile{"sleep": "0", "womp": "1", "standby": "0"})

	require.Len(t, rows, 3)
	assert.Equal(t, Setting{Name: "sleep", Current: "1", Target: "0"}, rows[0])
	assert.Equal(t, Setting{Name: "standby", Current: "", Target: "0"}, rows[1])
	assert.True(t, rows[2].Matches())
	assert.False(t, AllMatch(rows))
	assert.True(t, AllMatch(rows[2:]))
}

func TestPMSetQuery(t *testing.T) {
	fake := shelltest.New().On("pmset -g", shelltest.Response{Stdout: pmsetOutput})

	p, err := PMSet{Runner: fake}.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", p["sleep"])
}

func TestPMSetApply(t *testing.T) {
	fake := shelltest.New()

	err := PMSet{Runner: fake}.Apply(context.Background(), Profile{"sleep": "0", "womp": "1"})
	require.NoError(t, err)

	cmd, ok := fake.Find("sudo pmset")
	require.True(t, ok)
	assert.Equal(t, "sudo pmset -a sleep 0 womp 1", cmd.String())
	assert.True(t, cmd.Interactive)

	require.NoError(t, PMSet{Runner: fake}.Apply(context.Background(), Profile{}))
	assert.Len(t, fake.Commands(), 1)
}

func TestPMSetApplyFailure(t *testing.T) {
	fake := shelltest.New().OnPrefix("sudo pmset", shelltest.Response{ExitCode: 1, Stderr: "sudo: a password is required"})

	err := PMSet{Runner: fake}.Apply(context.Background(), Profile{"sleep": "0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password is required")
}

func TestSetupBacksUpAndApplies(t *testing.T) {
	ctrl := &fakeController{current: ParsePMSet(pmsetOutput)}
	c, out := newTestComponent(t, ctrl, "y\n")

	require.NoError(t, c.Setup(context.Background()))

	require.Len(t, ctrl.applied, 1)
	assert.Equal(t, HeadlessProfile(), ctrl.applied[0])
	assert.Contains(t, out.String(), "SETTING")

	backup, err := kvfile.Read(c.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, "1", backup["sleep"])
	assert.Equal(t, "0", backup["autorestart"])
	assert.NotContains(t, backup, "networkoversleep")
}

func TestSetupKeepsExistingBackup(t *testing.T) {
	ctrl := &fakeController{current: ParsePMSet(pmsetOutput)}
	c, _ := newTestComponent(t, ctrl, "y\n")
	require.NoError(t, kvfile.Write(c.BackupPath, "", kvfile.Values{"sleep": "30"}))

	require.NoError(t, c.Setup(context.Background()))

	backup, err := kvfile.Read(c.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, kvfile.Values{"sleep": "30"}, backup)
}

func TestSetupAlreadyApplied(t *testing.T) {
	ctrl := &fakeController{current: HeadlessProfile()}
	c, out := newTestComponent(t, ctrl, "")

	require.NoError(t, c.Setup(context.Background()))
	assert.Empty(t, ctrl.applied)
	assert.Contains(t, out.String(), "already in effect")
	assert.False(t, kvfile.Exists(c.BackupPath))
}

func TestSetupDeclined(t *testing.T) {
	ctrl := &fakeController{current: RestoreProfile()}
	c, _ := newTestComponent(t, ctrl, "n\n")

	assert.ErrorIs(t, c.Setup(context.Background()), prompt.ErrCancelled)
	assert.Empty(t, ctrl.applied)
	assert.False(t, kvfile.Exists(c.BackupPath))
}

func TestSetupQueryFails(t *testing.T) {
	ctrl := &fakeController{err: errors.New("pmset missing")}
	c, _ := newTestComponent(t, ctrl, "")

	err := c.Setup(context.Background())
	var stepErr *component.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "read settings", stepErr.Step)
}

func TestEnableDoesNotBackUp(t *testing.T) {
	ctrl := &fakeController{current: RestoreProfile()}
	c, _ := newTestComponent(t, ctrl, "y\n")

	require.NoError(t, c.Enable(context.Background()))
	assert.Len(t, ctrl.applied, 1)
	assert.False(t, kvfile.Exists(c.BackupPath))
}

func TestDisableUsesBackup(t *testing.T) {
	ctrl := &fakeController{current: HeadlessProfile()}
	c, out := newTestComponent(t, ctrl, "")
	require.NoError(t, kvfile.Write(c.BackupPath, "", kvfile.Values{"sleep": "30", "womp": "0"}))

	require.NoError(t, c.Disable(context.Background()))

	require.Len(t, ctrl.applied, 1)
	assert.Equal(t, Profile{"sleep": "30", "womp": "0"}, ctrl.applied[0])
	assert.Contains(t, out.String(), c.BackupPath)
}

func TestDisableWithoutBackup(t *testing.T) {
	ctrl := &fakeController{current: HeadlessProfile()}
	c, _ := newTestComponent(t, ctrl, "")

	require.NoError(t, c.Disable(context.Background()))
	require.Len(t, ctrl.applied, 1)
	assert.Equal(t, RestoreProfile(), ctrl.applied[0])
}

func TestRemove(t *testing.T) {
	ctrl := &fakeController{current: HeadlessProfile()}
	c, _ := newTestComponent(t, ctrl, "y\ny\n")
	require.NoError(t, kvfile.Write(c.BackupPath, "", kvfile.Values{"sleep": "1"}))

	require.NoError(t, c.Remove(context.Background()))
	assert.False(t, kvfile.Exists(c.BackupPath))
	assert.Equal(t, "1", ctrl.current["sleep"])
}

func TestRemoveDeclined(t *testing.T) {
	ctrl := &fakeController{current: HeadlessProfile()}
	c, _ := newTestComponent(t, ctrl, "y\nn\n")
	require.NoError(t, kvfile.Write(c.BackupPath, "", kvfile.Values{"sleep": "1"}))

	assert.ErrorIs(t, c.Remove(context.Background()), prompt.ErrCancelled)
	assert.Empty(t, ctrl.applied)
	assert.True(t, kvfile.Exists(c.BackupPath))
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name          string
		current       Profile
		backup        bool
		wantInstalled bool
		wantEnabled   bool
	}{
		{"headless in effect", HeadlessProfile(), true, true, true},
		{"never set up", RestoreProfile(), false, false, false},
		{"disabled after setup", RestoreProfile(), true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestComponent(t, &fakeController{current: tt.current}, "")
			if tt.backup {
				require.NoError(t, kvfile.Write(c.BackupPath, "", kvfile.Values{"sleep": "1"}))
			}

			st, err := c.Status(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantInstalled, st.Installed)
			assert.Equal(t, tt.wantEnabled, st.Enabled)
			assert.NotEmpty(t, st.Details)
		})
	}
}

func TestOverridesChangeTarget(t *testing.T) {
	c := NewComponent(&fakeController{}, prompt.New(strings.NewReader(""), &bytes.Buffer{}, true), map[string]string{"displaysleep": "0"}, "")
	assert.Equal(t, "0", c.Target["displaysleep"])
	assert.Equal(t, DefaultBackupPath(), c.BackupPath)
}
