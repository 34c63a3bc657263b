// Package sysinfo reads the machine facts the advisor needs: total RAM,
// logical CPU count, and the resident memory of the inference server.
package sysinfo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/jamesainslie/headless/pkg/headless/advisor"
	"github.com/jamesainslie/headless/pkg/headless/logging"
)

const bytesPerGB = 1 << 30

// Resources contains detected system resources.
type Resources struct {
	// TotalRAM is the total physical RAM in bytes.
	TotalRAM uint64

	// CPUCores is the number of logical CPU cores.
	CPUCores int
}

// TotalRAMGB returns TotalRAM in whole GB, rounded down.
func (r Resources) TotalRAMGB() int {
	return int(r.TotalRAM / bytesPerGB)
}

// Advisor converts r to the advisor's input type.
func (r Resources) Advisor() advisor.SystemResources {
	return advisor.SystemResources{
		TotalRAMGB:    r.TotalRAMGB(),
		TotalCPUCores: r.CPUCores,
	}
}

// Process is one matching process and its resident memory.
type Process struct {
	PID  int32
	Name string
	RSS  uint64
}

// Workload summarizes the inference processes found on the machine.
type Workload struct {
	Processes []Process
}

// Running reports whether any inference process was found.
func (w Workload) Running() bool {
	return len(w.Processes) > 0
}

// RSS returns the summed resident memory of all processes, in bytes.
func (w Workload) RSS() uint64 {
	var total uint64
	for _, p := range w.Processes {
		total += p.RSS
	}
	return total
}

// Advisor converts w to the advisor's input type. Observed memory below one
// GB rounds to zero, which the advisor treats as unknown.
func (w Workload) Advisor() advisor.InferenceWorkload {
	return advisor.InferenceWorkload{
		Running:       w.Running(),
		ObservedRAMGB: int(w.RSS() / bytesPerGB),
	}
}

// Detector reads machine facts. Tests substitute a Static detector.
type Detector interface {
	Resources(ctx context.Context) (Resources, error)
	Inference(ctx context.Context) (Workload, error)
}

// Host detects facts about the running machine.
type Host struct {
	// ProcessNames are matched case-insensitively as name prefixes.
	ProcessNames []string
}

// NewHost returns a Host matching the given process name prefixes.
func NewHost(processNames ...string) *Host {
	return &Host{ProcessNames: processNames}
}

// Resources detects total RAM and logical CPU count.
func (h *Host) Resources(ctx context.Context) (Resources, error) {
	return detect(ctx)
}

// Inference lists processes whose name starts with one of ProcessNames.
// Processes that vanish or deny access while being inspected are skipped.
func (h *Host) Inference(ctx context.Context) (Workload, error) {
	log := logging.Get("sysinfo")

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return Workload{}, fmt.Errorf("listing processes: %w", err)
	}

	var w Workload
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || !h.matches(name) {
			continue
		}
		mem, err := p.MemoryInfoWithContext(ctx)
		if err != nil {
			log.Debug("skipping process", "pid", p.Pid, "name", name, "error", err)
			continue
		}
		w.Processes = append(w.Processes, Process{PID: p.Pid, Name: name, RSS: mem.RSS})
	}

	sort.Slice(w.Processes, func(i, j int) bool { return w.Processes[i].PID < w.Processes[j].PID })
	log.Debug("inference processes", "count", len(w.Processes), "rss", w.RSS())
	return w, nil
}

func (h *Host) matches(name string) bool {
	name = strings.ToLower(name)
	for _, prefix := range h.ProcessNames {
		if prefix != "" && strings.HasPrefix(name, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// Static is a Detector returning fixed values.
type Static struct {
	Res Resources
	Inf Workload
	Err error
}

// Resources returns s.Res.
func (s Static) Resources(context.Context) (Resources, error) {
	return s.Res, s.Err
}

// Inference returns s.Inf.
func (s Static) Inference(context.Context) (Workload, error) {
	return s.Inf, s.Err
}

// Snapshot detects both resources and workload. A failed process listing is
// not fatal: the workload is reported as not running.
func Snapshot(ctx context.Context, d Detector) (advisor.SystemResources, Workload, error) {
	res, err := d.Resources(ctx)
	if err != nil {
		return advisor.SystemResources{}, Workload{}, fmt.Errorf("detecting system resources: %w", err)
	}

	w, err := d.Inference(ctx)
	if err != nil {
		logging.Get("sysinfo").Warn("inference detection failed; assuming idle", "error", err)
		w = Workload{}
	}
	return res.Advisor(), w, nil
}
