package colima

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/headless/pkg/headless/advisor"
	"github.com/jamesainslie/headless/pkg/headless/component"
	"github.com/jamesainslie/headless/pkg/headless/homebrew"
	"github.com/jamesainslie/headless/pkg/headless/kvfile"
	"github.com/jamesainslie/headless/pkg/headless/launchd"
	"github.com/jamesainslie/headless/pkg/headless/prompt"
	"github.com/jamesainslie/headless/pkg/headless/shell/shelltest"
	"github.com/jamesainslie/headless/pkg/headless/sysinfo"
)

const (
	colimaBin  = "/opt/homebrew/bin/colima"
	listCmd    = colimaBin + " list --json"
	dockerInfo = "/opt/homebrew/bin/docker --context colima info --format {{.ServerVersion}}"

	runningDefault = `{"name":"default","status":"Running","arch":"aarch64","cpus":6,"memory":4294967296,"disk":107374182400,"runtime":"docker","address":""}`
	stoppedDefault = `{"name":"default","status":"Stopped","arch":"aarch64","cpus":6,"memory":4294967296,"disk":107374182400,"runtime":"docker","address":""}`
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	c    *Component
	fake *shelltest.Fake
	out  *bytes.Buffer
	sup  *launchd.Launchctl
}

// newFixture models a 16 GB, 8 core machine running a 6 GB model.
func newFixture(t *testing.T, answers string) *fixture {
	t.Helper()
	fake := shelltest.New().Have("brew").
		On("/usr/local/bin/brew list --versions colima", shelltest.Response{Stdout: "colima 0.8.1\n"}).
		On("/usr/local/bin/brew list --versions docker", shelltest.Response{Stdout: "docker 27.3.1\n"}).
		On(dockerInfo, shelltest.Response{Stdout: "27.3.1\n"})

	var out bytes.Buffer
	p := prompt.New(strings.NewReader(answers), &out, false)
	sup := launchd.NewLaunchctl(fake, t.TempDir())
	d := sysinfo.Static{
		Res: sysinfo.Resources{TotalRAM: 16 << 30, CPUCores: 8},
		Inf: sysinfo.Workload{Processes: []sysinfo.Process{{PID: 42, Name: "ollama", RSS: 6 << 30}}},
	}
	opts := Options{
		Home:       t.TempDir(),
		RecordPath: filepath.Join(t.TempDir(), "colima.conf"),
		Rosetta:    true,
	}
	c := NewComponent(opts, homebrew.New(fake, "/opt/homebrew"), sup, fake, d, p)
	c.now = func() time.Time { return fixedNow }
	return &fixture{c: c, fake: fake, out: &out, sup: sup}
}

func TestSpecArgs(t *testing.T) {
	spec := Spec{Profile: "default", CPU: 6, MemoryGB: 4, DiskGB: 100, Arch: "aarch64", VMType: "vz", Rosetta: true}
	assert.Equal(t, "start --profile default --cpu 6 --memory 4 --disk 100 --arch aarch64 --vm-type vz --vz-rosetta",
		strings.Join(spec.Args(), " "))

	spec.VMType = "qemu"
	assert.NotContains(t, spec.Args(), "--vz-rosetta")
}

func TestParseList(t *testing.T) {
	states, err := ParseList(runningDefault + "\n" + `{"name":"work","status":"Stopped","cpus":2,"memory":2147483648,"disk":64424509440}` + "\n")
	require.NoError(t, err)
	require.Len(t, states, 2)

	assert.True(t, states[0].Running())
	assert.Equal(t, 4, states[0].MemoryGB())
	assert.Equal(t, 100, states[0].DiskGB())
	assert.False(t, states[1].Running())
	assert.Equal(t, 60, states[1].DiskGB())

	_, err = ParseList("not json")
	assert.Error(t, err)

	states, err = ParseList("")
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestStateMatches(t *testing.T) {
	states, err := ParseList(runningDefault)
	require.NoError(t, err)
	assert.True(t, states[0].Matches(Spec{CPU: 6, MemoryGB: 4, DiskGB: 100}))
	assert.False(t, states[0].Matches(Spec{CPU: 4, MemoryGB: 4, DiskGB: 100}))
}

func TestCLIStatus(t *testing.T) {
	fake := shelltest.New().On(listCmd, shelltest.Response{Stdout: runningDefault + "\n"})
	vm := CLI{Runner: fake, Bin: colimaBin}

	state, err := vm.Status(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, 6, state.CPUs)

	_, err = vm.Status(context.Background(), "other")
	assert.ErrorIs(t, err, ErrNoVM)
}

func TestCLIVersion(t *testing.T) {
	fake := shelltest.New().On(colimaBin+" version", shelltest.Response{Stdout: "colima version 0.8.1\ngit commit: 96598cc\n"})
	v, err := CLI{Runner: fake, Bin: colimaBin}.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.8.1", v)
}

func TestDockerContext(t *testing.T) {
	assert.Equal(t, "colima", DockerContext("default"))
	assert.Equal(t, "colima", DockerContext(""))
	assert.Equal(t, "colima-work", DockerContext("work"))
}

func TestRecordRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colima.conf")
	r := Record{CPU: 6, MemoryGB: 4, DiskGB: 100, Arch: "aarch64", VMType: "vz", UpdatedAt: fixedNow}
	require.NoError(t, r.Save(path))

	values, err := kvfile.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "6", values[KeyCPU])
	assert.Equal(t, "2026-03-01T12:00:00Z", values[KeyUpdatedAt])

	got, err := LoadRecord(path)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestLoadRecordErrors(t *testing.T) {
	_, err := LoadRecord(filepath.Join(t.TempDir(), "missing.conf"))
	assert.ErrorIs(t, err, kvfile.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.conf")
	require.NoError(t, kvfile.Write(path, "", kvfile.Values{KeyCPU: "six", KeyDisk: "100"}))
	_, err = LoadRecord(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyCPU)
	assert.Contains(t, err.Error(), KeyMemory)
}

func TestUnit(t *testing.T) {
	f := newFixture(t, "")
	u := f.c.Unit()

	assert.Equal(t, DefaultLabel, u.Label)
	assert.Equal(t, colimaBin, u.Program)
	assert.Equal(t, []string{"start", "--profile", "default"}, u.Args)
	assert.Equal(t, "/opt/homebrew/bin:/usr/bin:/bin:/usr/sbin:/sbin", u.Environment["PATH"])
	assert.True(t, u.RunAtLoad)
	assert.False(t, u.KeepAlive)
	assert.NoError(t, u.Validate())
}

func TestSetupAcceptsRecommendation(t *testing.T) {
	f := newFixture(t, "\n")

	require.NoError(t, f.c.Setup(context.Background()))

	out := f.out.String()
	assert.Contains(t, out, "Machine: 16 GB RAM, 8 CPU cores.")
	assert.Contains(t, out, "reserving 8 GB for inference")
	assert.Contains(t, out, "Recommended VM: 6 CPU, 4 GB memory, 100 GB disk.")
	assert.Contains(t, out, "Warning: ")

	record, err := LoadRecord(f.c.RecordPath)
	require.NoError(t, err)
	assert.Equal(t, Record{CPU: 6, MemoryGB: 4, DiskGB: 100, Arch: "aarch64", VMType: "vz", UpdatedAt: fixedNow}, record)

	start, ok := f.fake.Find(colimaBin + " start")
	require.True(t, ok)
	assert.Equal(t, "start --profile default --cpu 6 --memory 4 --disk 100 --arch aarch64 --vm-type vz --vz-rosetta",
		strings.Join(start.Args, " "))
	assert.True(t, start.Interactive)

	assert.True(t, f.fake.Ran(dockerInfo))
	assert.True(t, f.sup.Installed(DefaultLabel))
	assert.True(t, f.fake.Ran("launchctl load -w "+f.sup.PlistPath(DefaultLabel)))
}

func TestSetupOverride(t *testing.T) {
	f := newFixture(t, "n\n4\n8\n200\n")

	require.NoError(t, f.c.Setup(context.Background()))

	record, err := LoadRecord(f.c.RecordPath)
	require.NoError(t, err)
	assert.Equal(t, 4, record.CPU)
	assert.Equal(t, 8, record.MemoryGB)
	assert.Equal(t, 200, record.DiskGB)
}

func TestSetupOverrideRejectsTooMuch(t *testing.T) {
	f := newFixture(t, "n\n12\n4\n\n\n")

	require.NoError(t, f.c.Setup(context.Background()))

	assert.Contains(t, f.out.String(), "Must be at most 8.")
	record, err := LoadRecord(f.c.RecordPath)
	require.NoError(t, err)
	assert.Equal(t, 4, record.CPU)
}

func TestSetupKeepsLargerDisk(t *testing.T) {
	f := newFixture(t, "\n")
	require.NoError(t, Record{CPU: 2, MemoryGB: 4, DiskGB: 200}.Save(f.c.RecordPath))

	require.NoError(t, f.c.Setup(context.Background()))

	assert.Contains(t, f.out.String(), "cannot shrink")
	record, err := LoadRecord(f.c.RecordPath)
	require.NoError(t, err)
	assert.Equal(t, 200, record.DiskGB)
}

func TestSetupRestartsVMWithDifferentAllocation(t *testing.T) {
	f := newFixture(t, "n\n4\n4\n100\n")
	f.fake.On(listCmd, shelltest.Response{Stdout: runningDefault})

	require.NoError(t, f.c.Setup(context.Background()))

	assert.True(t, f.fake.Ran(colimaBin+" stop --profile default"))
	_, started := f.fake.Find(colimaBin + " start")
	assert.True(t, started)
}

func TestSetupSkipsMatchingVM(t *testing.T) {
	f := newFixture(t, "\n")
	f.fake.On(listCmd, shelltest.Response{Stdout: runningDefault})

	require.NoError(t, f.c.Setup(context.Background()))

	_, started := f.fake.Find(colimaBin + " start")
	assert.False(t, started)
	assert.Contains(t, f.out.String(), "already running")
}

func TestSetupInstallsMissingPackages(t *testing.T) {
	f := newFixture(t, "y\n\n")
	f.fake.On("/usr/local/bin/brew list --versions docker", shelltest.Response{ExitCode: 1})

	require.NoError(t, f.c.Setup(context.Background()))
	assert.True(t, f.fake.Ran("/usr/local/bin/brew install docker"))
	assert.Contains(t, f.out.String(), "Install docker with Homebrew?")
}

func TestSetupDockerUnreachable(t *testing.T) {
	f := newFixture(t, "\n")
	f.fake.On(dockerInfo, shelltest.Response{ExitCode: 1, Stderr: "Cannot connect to the Docker daemon"})

	err := f.c.Setup(context.Background())
	var stepErr *component.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "verify docker", stepErr.Step)
	assert.False(t, f.sup.Installed(DefaultLabel))
}

func TestSetupStartFails(t *testing.T) {
	f := newFixture(t, "\n")
	f.fake.OnPrefix(colimaBin+" start", shelltest.Response{ExitCode: 1, Stderr: "error starting vm"})

	err := f.c.Setup(context.Background())
	var stepErr *component.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "start vm", stepErr.Step)
	assert.Equal(t, "colima: start vm: colima start: "+colimaBin+" start --profile default --cpu 6 --memory 4 --disk 100 --arch aarch64 --vm-type vz --vz-rosetta: exit status 1: error starting vm", err.Error())
}

func TestSetupDetectionFails(t *testing.T) {
	f := newFixture(t, "\n")
	f.c.Detector = sysinfo.Static{Err: assert.AnError}

	err := f.c.Setup(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	_, started := f.fake.Find(colimaBin + " start")
	assert.False(t, started)
}

func TestSetupCustomAdvisor(t *testing.T) {
	f := newFixture(t, "\n")
	f.c.Advisor = advisor.Config{DiskGB: 250}

	require.NoError(t, f.c.Setup(context.Background()))
	record, err := LoadRecord(f.c.RecordPath)
	require.NoError(t, err)
	assert.Equal(t, 250, record.DiskGB)
}

func TestEnable(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, Record{CPU: 4, MemoryGB: 8, DiskGB: 100, Arch: "aarch64", VMType: "vz"}.Save(f.c.RecordPath))
	require.NoError(t, f.sup.Install(context.Background(), f.c.Unit()))
	f.fake.On("launchctl list "+DefaultLabel, shelltest.Response{ExitCode: 113})
	f.fake.On(listCmd, shelltest.Response{Stdout: stoppedDefault})

	require.NoError(t, f.c.Enable(context.Background()))

	assert.True(t, f.fake.Ran("launchctl load -w "+f.sup.PlistPath(DefaultLabel)))
	start, ok := f.fake.Find(colimaBin + " start")
	require.True(t, ok)
	assert.Contains(t, start.Args, "8")
}

func TestEnableBeforeSetup(t *testing.T) {
	f := newFixture(t, "")
	assert.ErrorIs(t, f.c.Enable(context.Background()), ErrNotSetUp)
}

func TestDisable(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, f.sup.Install(context.Background(), f.c.Unit()))
	f.fake.On(listCmd, shelltest.Response{Stdout: runningDefault})

	require.NoError(t, f.c.Disable(context.Background()))

	assert.True(t, f.fake.Ran(colimaBin+" stop --profile default"))
	assert.True(t, f.fake.Ran("launchctl unload -w "+f.sup.PlistPath(DefaultLabel)))
}

func TestDisableWithoutVM(t *testing.T) {
	f := newFixture(t, "")

	require.NoError(t, f.c.Disable(context.Background()))
	assert.False(t, f.fake.Ran(colimaBin+" stop --profile default"))
}

func TestRemove(t *testing.T) {
	f := newFixture(t, "y\ny\n")
	require.NoError(t, Record{CPU: 4, MemoryGB: 8, DiskGB: 100}.Save(f.c.RecordPath))
	require.NoError(t, f.sup.Install(context.Background(), f.c.Unit()))
	f.fake.On(listCmd, shelltest.Response{Stdout: stoppedDefault})

	require.NoError(t, f.c.Remove(context.Background()))

	assert.True(t, f.fake.Ran(colimaBin+" delete --force --profile default"))
	assert.False(t, f.sup.Installed(DefaultLabel))
	assert.False(t, kvfile.Exists(f.c.RecordPath))
}

func TestRemoveDeclined(t *testing.T) {
	f := newFixture(t, "y\nn\n")
	require.NoError(t, Record{CPU: 4, MemoryGB: 8, DiskGB: 100}.Save(f.c.RecordPath))

	assert.ErrorIs(t, f.c.Remove(context.Background()), prompt.ErrCancelled)
	assert.True(t, kvfile.Exists(f.c.RecordPath))
	assert.Empty(t, f.fake.Commands())
}

func TestStatus(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, Record{CPU: 4, MemoryGB: 8, DiskGB: 100}.Save(f.c.RecordPath))
	f.fake.On(listCmd, shelltest.Response{Stdout: runningDefault})
	f.fake.On(colimaBin+" version", shelltest.Response{Stdout: "colima version 0.8.1\n"})

	st, err := f.c.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Installed)
	assert.True(t, st.Enabled)
	assert.Equal(t, "0.8.1", st.Version)

	values := map[string]string{}
	for _, d := range st.Details {
		values[d.Key] = d.Value
	}
	assert.Contains(t, values["configured"], "4 CPU, 8 GB memory, 100 GB disk")
	assert.Equal(t, "default: running, 6 CPU, 4 GB memory, 100 GB disk, aarch64", values["vm"])
	assert.Equal(t, "server 27.3.1 via context colima", values["docker"])
	assert.Equal(t, "not installed", values["login agent"])
	require.Len(t, st.Warnings, 1)
	assert.Contains(t, st.Warnings[0], "differs")
}

func TestStatusNotInstalled(t *testing.T) {
	f := newFixture(t, "")
	f.fake.On("/usr/local/bin/brew list --versions colima", shelltest.Response{ExitCode: 1})

	st, err := f.c.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Installed)
	assert.Empty(t, st.Details)
}
