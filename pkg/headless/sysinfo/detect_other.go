//go:build !darwin

package sysinfo

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// detect uses gopsutil so that status and advise work on development hosts.
func detect(ctx context.Context) (Resources, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Resources{}, fmt.Errorf("reading memory: %w", err)
	}

	cores := runtime.NumCPU()
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		cores = n
	}

	return Resources{TotalRAM: vm.Total, CPUCores: cores}, nil
}
