// Package colima runs Docker inside a Colima VM sized by the allocation
// advisor so that it can share the machine with Ollama.
package colima

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jamesainslie/headless/pkg/headless/logging"
	"github.com/jamesainslie/headless/pkg/headless/shell"
)

// ErrNoVM is returned by Status when the profile has no VM.
var ErrNoVM = errors.New("no colima vm")

const gib = 1 << 30

// Spec is the VM configuration passed to colima start.
type Spec struct {
	Profile  string
	CPU      int
	MemoryGB int
	DiskGB   int
	Arch     string
	VMType   string
	Rosetta  bool
}

// Args renders the colima start arguments.
func (s Spec) Args() []string {
	args := []string{
		"start",
		"--profile", s.Profile,
		"--cpu", strconv.Itoa(s.CPU),
		"--memory", strconv.Itoa(s.MemoryGB),
		"--disk", strconv.Itoa(s.DiskGB),
	}
	if s.Arch != "" {
		args = append(args, "--arch", s.Arch)
	}
	if s.VMType != "" {
		args = append(args, "--vm-type", s.VMType)
	}
	if s.Rosetta && s.VMType == "vz" {
		args = append(args, "--vz-rosetta")
	}
	return args
}

// State is one entry of `colima list --json`.
type State struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Arch    string `json:"arch"`
	CPUs    int    `json:"cpus"`
	Memory  int64  `json:"memory"`
	Disk    int64  `json:"disk"`
	Runtime string `json:"runtime"`
	Address string `json:"address"`
}

// Running reports whether the VM is up.
func (s State) Running() bool {
	return strings.EqualFold(s.Status, "running")
}

// MemoryGB is Memory in whole GiB.
func (s State) MemoryGB() int { return int(s.Memory / gib) }

// DiskGB is Disk in whole GiB.
func (s State) DiskGB() int { return int(s.Disk / gib) }

// Matches reports whether the running VM already has spec's resources.
func (s State) Matches(spec Spec) bool {
	return s.CPUs == spec.CPU && s.MemoryGB() == spec.MemoryGB && s.DiskGB() == spec.DiskGB
}

// VM controls Colima profiles.
type VM interface {
	Start(ctx context.Context, spec Spec) error
	Stop(ctx context.Context, profile string) error
	Delete(ctx context.Context, profile string) error
	Status(ctx context.Context, profile string) (State, error)
	Version(ctx context.Context) (string, error)
}

// CLI is the VM backed by the colima command.
type CLI struct {
	Runner shell.Runner

	// Bin is the colima executable.
	Bin string
}

// Start implements VM. The terminal is attached so that progress and any
// first-run image download are visible.
func (c CLI) Start(ctx context.Context, spec Spec) error {
	cmd := shell.Cmd{Name: c.Bin, Args: spec.Args(), Interactive: true}
	if _, err := c.Runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("colima start: %w", err)
	}
	logging.Get("colima").Info("vm started", "profile", spec.Profile,
		"cpu", spec.CPU, "memory_gb", spec.MemoryGB, "disk_gb", spec.DiskGB)
	return nil
}

// Stop implements VM.
func (c CLI) Stop(ctx context.Context, profile string) error {
	if _, err := c.Runner.Run(ctx, shell.Command(c.Bin, "stop", "--profile", profile)); err != nil {
		return fmt.Errorf("colima stop: %w", err)
	}
	logging.Get("colima").Info("vm stopped", "profile", profile)
	return nil
}

// Delete implements VM.
func (c CLI) Delete(ctx context.Context, profile string) error {
	if _, err := c.Runner.Run(ctx, shell.Command(c.Bin, "delete", "--force", "--profile", profile)); err != nil {
		return fmt.Errorf("colima delete: %w", err)
	}
	logging.Get("colima").Info("vm deleted", "profile", profile)
	return nil
}

// Status implements VM.
func (c CLI) Status(ctx context.Context, profile string) (State, error) {
	res, err := c.Runner.Run(ctx, shell.Command(c.Bin, "list", "--json"))
	if err != nil {
		return State{}, fmt.Errorf("colima list: %w", err)
	}
	states, err := ParseList(res.Stdout)
	if err != nil {
		return State{}, err
	}
	for _, s := range states {
		if s.Name == profile {
			return s, nil
		}
	}
	return State{}, fmt.Errorf("%w for profile %s", ErrNoVM, profile)
}

// Version implements VM.
func (c CLI) Version(ctx context.Context) (string, error) {
	out, err := shell.Output(ctx, c.Runner, shell.Command(c.Bin, "version"))
	if err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(out, "\n")
	return strings.TrimSpace(strings.TrimPrefix(first, "colima version")), nil
}

// ParseList decodes `colima list --json`, which prints one JSON object per
// profile.
func ParseList(out string) ([]State, error) {
	var states []State
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var s State
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return nil, fmt.Errorf("parsing colima list: %w", err)
		}
		states = append(states, s)
	}
	return states, scanner.Err()
}

// DockerContext is the docker context colima creates for profile.
func DockerContext(profile string) string {
	if profile == "" || profile == "default" {
		return "colima"
	}
	return "colima-" + profile
}

// DockerVersion asks the daemon in profile's VM for its version. It fails
// when docker cannot reach the VM.
func DockerVersion(ctx context.Context, r shell.Runner, docker, profile string) (string, error) {
	cmd := shell.Command(docker, "--context", DockerContext(profile), "info", "--format", "{{.ServerVersion}}")
	out, err := shell.Output(ctx, r, cmd)
	if err != nil {
		return "", fmt.Errorf("docker info: %w", err)
	}
	return out, nil
}

var _ VM = CLI{}
