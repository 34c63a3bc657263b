package colima

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/headless/pkg/headless/advisor"
	"github.com/jamesainslie/headless/pkg/headless/component"
	"github.com/jamesainslie/headless/pkg/headless/footprint"
	"github.com/jamesainslie/headless/pkg/headless/homebrew"
	"github.com/jamesainslie/headless/pkg/headless/kvfile"
	"github.com/jamesainslie/headless/pkg/headless/launchd"
	"github.com/jamesainslie/headless/pkg/headless/logging"
	"github.com/jamesainslie/headless/pkg/headless/output"
	"github.com/jamesainslie/headless/pkg/headless/prompt"
	"github.com/jamesainslie/headless/pkg/headless/shell"
	"github.com/jamesainslie/headless/pkg/headless/sysinfo"
)

const name = "colima"

// Defaults for Options.
const (
	DefaultProfile = "default"
	DefaultLabel   = "com.headless.colima"
	DefaultArch    = "aarch64"
	DefaultVMType  = "vz"
)

// ErrNotSetUp is returned by enable before setup saved a record.
var ErrNotSetUp = errors.New("colima has not been set up; run `headless setup colima` first")

// Options configure the component.
type Options struct {
	Profile    string
	Label      string
	Arch       string
	VMType     string
	Rosetta    bool
	RecordPath string

	// Home is the operator's home directory; Colima keeps its VMs in
	// ~/.colima.
	Home string

	// Advisor tunes the allocation heuristics.
	Advisor advisor.Config
}

// Component manages the Colima VM and its login agent.
type Component struct {
	Options

	Brew       homebrew.PackageManager
	VM         VM
	Supervisor launchd.Supervisor
	Runner     shell.Runner
	Detector   sysinfo.Detector
	Prompt     *prompt.Prompter

	now func() time.Time
}

// NewComponent returns the colima component with defaults filled in. The VM
// is driven through the colima binary Homebrew links into its prefix.
func NewComponent(opts Options, brew homebrew.PackageManager, sup launchd.Supervisor, r shell.Runner, d sysinfo.Detector, p *prompt.Prompter) *Component {
	if opts.Profile == "" {
		opts.Profile = DefaultProfile
	}
	if opts.Label == "" {
		opts.Label = DefaultLabel
	}
	if opts.Arch == "" {
		opts.Arch = DefaultArch
	}
	if opts.VMType == "" {
		opts.VMType = DefaultVMType
	}
	if opts.RecordPath == "" {
		opts.RecordPath = DefaultRecordPath()
	}
	return &Component{
		Options:    opts,
		Brew:       brew,
		VM:         CLI{Runner: r, Bin: brew.Bin("colima")},
		Supervisor: sup,
		Runner:     r,
		Detector:   d,
		Prompt:     p,
		now:        time.Now,
	}
}

func (c *Component) Name() string { return name }

func (c *Component) Description() string { return "Colima VM running Docker" }

// DataDir is ~/.colima.
func (c *Component) DataDir() string {
	return filepath.Join(c.Home, ".colima")
}

// LogPaths returns the login agent's stdout and stderr logs.
func (c *Component) LogPaths() []string {
	dir := filepath.Join(c.DataDir(), "logs")
	return []string{filepath.Join(dir, "headless.log"), filepath.Join(dir, "headless.err.log")}
}

// Unit is the login agent that starts the VM after a reboot. colima start
// returns once the VM is up, so the job is not kept alive.
func (c *Component) Unit() launchd.Unit {
	prefixBin := filepath.Dir(c.Brew.Bin("colima"))
	logs := c.LogPaths()
	return launchd.Unit{
		Label:            c.Label,
		Program:          c.Brew.Bin("colima"),
		Args:             []string{"start", "--profile", c.Profile},
		WorkingDirectory: c.Home,
		Environment: map[string]string{
			"PATH": prefixBin + ":/usr/bin:/bin:/usr/sbin:/sbin",
		},
		StdoutPath: logs[0],
		StderrPath: logs[1],
		RunAtLoad:  true,
	}
}

func (c *Component) requireBrew() error {
	if !c.Brew.Available() {
		return component.Step(name, "check homebrew", fmt.Errorf("%w; run `headless setup homebrew` first", homebrew.ErrNotInstalled))
	}
	return nil
}

func (c *Component) ensurePackages(ctx context.Context) error {
	var missing []string
	for _, pkg := range []string{"colima", "docker"} {
		ok, err := c.Brew.IsInstalled(ctx, pkg)
		if err != nil {
			return component.Step(name, "check installation", err)
		}
		if !ok {
			missing = append(missing, pkg)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if err := c.Prompt.Require(fmt.Sprintf("Install %s with Homebrew?", strings.Join(missing, " and "))); err != nil {
		return err
	}
	if err := c.Brew.Install(ctx, missing...); err != nil {
		return component.Step(name, "install", err)
	}
	return nil
}

// Setup installs colima and docker, sizes the VM with the advisor, lets the
// operator adjust the allocation, starts the VM and registers the login
// agent.
func (c *Component) Setup(ctx context.Context) error {
	if err := c.requireBrew(); err != nil {
		return err
	}
	if err := c.ensurePackages(ctx); err != nil {
		return err
	}

	record, err := c.chooseAllocation(ctx)
	if err != nil {
		return err
	}
	if err := record.Save(c.RecordPath); err != nil {
		return component.Step(name, "save configuration", err)
	}
	logging.Get(name).Info("allocation saved", "path", c.RecordPath,
		"cpu", record.CPU, "memory_gb", record.MemoryGB, "disk_gb", record.DiskGB)

	if err := c.startVM(ctx, record); err != nil {
		return err
	}
	if err := c.verifyDocker(ctx); err != nil {
		return err
	}

	unit := c.Unit()
	if err := c.Supervisor.Unload(ctx, unit.Label); err != nil {
		return component.Step(name, "unload login agent", err)
	}
	if err := c.Supervisor.Install(ctx, unit); err != nil {
		return component.Step(name, "write login agent", err)
	}
	if err := c.Supervisor.Load(ctx, unit.Label); err != nil {
		return component.Step(name, "load login agent", err)
	}
	c.Prompt.Printf("Colima will start at login via %s.\n", unit.Label)
	return nil
}

// chooseAllocation runs the advisor, shows the result and returns the
// values the operator approved.
func (c *Component) chooseAllocation(ctx context.Context) (Record, error) {
	res, workload, err := sysinfo.Snapshot(ctx, c.Detector)
	if err != nil {
		return Record{}, component.Step(name, "detect resources", err)
	}
	inf := workload.Advisor()
	rec := advisor.Recommend(c.Advisor, res, inf)

	c.Prompt.Printf("Machine: %d GB RAM, %d CPU cores.\n", res.TotalRAMGB, res.TotalCPUCores)
	if inf.Running {
		observed := "unknown"
		if workload.RSS() > 0 {
			observed = humanize.IBytes(workload.RSS())
		}
		c.Prompt.Printf("Ollama is running (resident %s); reserving %d GB for inference.\n", observed, rec.InferenceEstimateGB)
	} else {
		c.Prompt.Printf("Ollama is not running.\n")
	}
	c.Prompt.Printf("Recommended VM: %d CPU, %d GB memory, %d GB disk.\n", rec.CPUCores, rec.RAMGB, rec.DiskGB)
	for _, w := range rec.Warnings {
		c.Prompt.Printf("Warning: %s\n", w)
	}

	cpu, ram, disk := rec.CPUCores, rec.RAMGB, rec.DiskGB
	accept, err := c.Prompt.Confirm("Use the recommended allocation?", true)
	if err != nil {
		return Record{}, err
	}
	if !accept {
		if cpu, err = c.Prompt.Int("CPU cores", cpu, 1, res.TotalCPUCores); err != nil {
			return Record{}, err
		}
		if ram, err = c.Prompt.Int("Memory (GB)", ram, 1, res.TotalRAMGB); err != nil {
			return Record{}, err
		}
		if disk, err = c.Prompt.Int("Disk (GB)", disk, 1, 0); err != nil {
			return Record{}, err
		}
	}
	if err := advisor.CheckAllocation(res, cpu, ram, disk); err != nil {
		return Record{}, component.Step(name, "validate allocation", err)
	}

	if prev, err := LoadRecord(c.RecordPath); err == nil && disk < prev.DiskGB {
		c.Prompt.Printf("Warning: colima cannot shrink a VM disk; keeping %d GB instead of %d GB.\n", prev.DiskGB, disk)
		disk = prev.DiskGB
	}

	return Record{
		CPU:       cpu,
		MemoryGB:  ram,
		DiskGB:    disk,
		Arch:      c.Arch,
		VMType:    c.VMType,
		UpdatedAt: c.now(),
	}, nil
}

// startVM starts the VM with record's resources, restarting it when it is
// already running with different ones.
func (c *Component) startVM(ctx context.Context, record Record) error {
	spec := record.Spec(c.Profile, c.Rosetta)

	state, err := c.VM.Status(ctx, c.Profile)
	switch {
	case errors.Is(err, ErrNoVM):
	case err != nil:
		return component.Step(name, "query vm", err)
	case state.Running() && state.Matches(spec):
		c.Prompt.Printf("Colima profile %s is already running with this allocation.\n", c.Profile)
		return nil
	case state.Running():
		c.Prompt.Printf("Restarting colima profile %s with the new allocation.\n", c.Profile)
		if err := c.VM.Stop(ctx, c.Profile); err != nil {
			return component.Step(name, "stop vm", err)
		}
	}

	if err := c.VM.Start(ctx, spec); err != nil {
		return component.Step(name, "start vm", err)
	}
	return nil
}

func (c *Component) verifyDocker(ctx context.Context) error {
	version, err := DockerVersion(ctx, c.Runner, c.Brew.Bin("docker"), c.Profile)
	if err != nil {
		return component.Step(name, "verify docker", err)
	}
	c.Prompt.Printf("Docker %s is reachable.\n", version)
	return nil
}

// Enable loads the login agent and starts the VM from the saved record.
func (c *Component) Enable(ctx context.Context) error {
	record, err := LoadRecord(c.RecordPath)
	if errors.Is(err, kvfile.ErrNotExist) {
		return component.Step(name, "read configuration", ErrNotSetUp)
	}
	if err != nil {
		return component.Step(name, "read configuration", err)
	}

	if c.Supervisor.Installed(c.Label) {
		loaded, err := c.Supervisor.IsLoaded(ctx, c.Label)
		if err != nil {
			return component.Step(name, "query login agent", err)
		}
		if !loaded {
			if err := c.Supervisor.Load(ctx, c.Label); err != nil {
				return component.Step(name, "load login agent", err)
			}
		}
	}

	if err := c.startVM(ctx, record); err != nil {
		return err
	}
	return c.verifyDocker(ctx)
}

// Disable stops the VM and unloads the login agent.
func (c *Component) Disable(ctx context.Context) error {
	state, err := c.VM.Status(ctx, c.Profile)
	switch {
	case errors.Is(err, ErrNoVM):
	case err != nil:
		return component.Step(name, "query vm", err)
	case state.Running():
		if err := c.VM.Stop(ctx, c.Profile); err != nil {
			return component.Step(name, "stop vm", err)
		}
	}

	if err := c.Supervisor.Unload(ctx, c.Label); err != nil {
		return component.Step(name, "unload login agent", err)
	}
	c.Prompt.Printf("Colima profile %s stopped.\n", c.Profile)
	return nil
}

// Remove deletes the VM, the login agent and the saved record. The colima
// and docker formulae stay installed.
func (c *Component) Remove(ctx context.Context) error {
	usage, err := footprint.Measure(ctx, c.DataDir())
	if err != nil {
		logging.Get(name).Warn("measuring vm data", "error", err)
	}

	question := fmt.Sprintf("Delete colima profile %s with all its containers, images and volumes?", c.Profile)
	if usage.Exists {
		question = fmt.Sprintf("Delete colima profile %s with all its containers, images and volumes (%s)?", c.Profile, usage)
	}
	if err := c.Prompt.RequireTwice(question); err != nil {
		return err
	}

	_, err = c.VM.Status(ctx, c.Profile)
	switch {
	case errors.Is(err, ErrNoVM):
	case err != nil:
		return component.Step(name, "query vm", err)
	default:
		if err := c.VM.Delete(ctx, c.Profile); err != nil {
			return component.Step(name, "delete vm", err)
		}
	}

	if err := c.Supervisor.Unload(ctx, c.Label); err != nil {
		return component.Step(name, "unload login agent", err)
	}
	if err := c.Supervisor.Uninstall(ctx, c.Label); err != nil {
		return component.Step(name, "delete login agent", err)
	}
	if err := kvfile.Remove(c.RecordPath); err != nil {
		return component.Step(name, "delete configuration", err)
	}
	return nil
}

// Status reports the saved allocation next to the live VM state.
func (c *Component) Status(ctx context.Context) (output.ComponentStatus, error) {
	st := output.ComponentStatus{Name: name, Description: c.Description()}

	if c.Brew.Available() {
		ok, err := c.Brew.IsInstalled(ctx, "colima")
		if err != nil {
			return st, err
		}
		st.Installed = ok
	}
	if !st.Installed {
		return st, nil
	}

	if v, err := c.VM.Version(ctx); err == nil {
		st.Version = v
	}

	record, err := LoadRecord(c.RecordPath)
	switch {
	case err == nil:
		st.Add("configured", "%d CPU, %d GB memory, %d GB disk (%s)", record.CPU, record.MemoryGB, record.DiskGB, c.RecordPath)
	case errors.Is(err, kvfile.ErrNotExist):
		st.Warn("no saved allocation; run setup")
	default:
		st.Warn("unreadable allocation record: %v", err)
	}

	state, err := c.VM.Status(ctx, c.Profile)
	switch {
	case errors.Is(err, ErrNoVM):
		st.Add("vm", "profile %s does not exist", c.Profile)
	case err != nil:
		return st, err
	default:
		st.Enabled = state.Running()
		st.Add("vm", "%s: %s, %d CPU, %d GB memory, %d GB disk, %s",
			c.Profile, strings.ToLower(state.Status), state.CPUs, state.MemoryGB(), state.DiskGB(), state.Arch)
		if record.CPU > 0 && state.Running() && !state.Matches(record.Spec(c.Profile, c.Rosetta)) {
			st.Warn("running VM differs from the saved allocation; run enable after a stop, or setup")
		}
	}

	if st.Enabled {
		if v, err := DockerVersion(ctx, c.Runner, c.Brew.Bin("docker"), c.Profile); err == nil {
			st.Add("docker", "server %s via context %s", v, DockerContext(c.Profile))
		} else {
			st.Warn("docker cannot reach the VM: %v", err)
		}
	}

	if c.Supervisor.Installed(c.Label) {
		loaded, err := c.Supervisor.IsLoaded(ctx, c.Label)
		if err == nil {
			st.Add("login agent", "%s (loaded: %t)", c.Label, loaded)
		}
	} else {
		st.Add("login agent", "not installed")
	}

	if usage, err := footprint.Measure(ctx, c.DataDir()); err == nil && usage.Exists {
		st.Add("data", "%s", usage)
	}
	return st, nil
}

var _ component.Component = (*Component)(nil)
