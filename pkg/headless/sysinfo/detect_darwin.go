//go:build darwin

package sysinfo

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// detect uses sysctl: hw.memsize for RAM and hw.logicalcpu for cores.
func detect(context.Context) (Resources, error) {
	memsize, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return Resources{}, fmt.Errorf("sysctl hw.memsize: %w", err)
	}

	cores := runtime.NumCPU()
	if n, err := unix.SysctlUint32("hw.logicalcpu"); err == nil && n > 0 {
		cores = int(n)
	}

	return Resources{TotalRAM: memsize, CPUCores: cores}, nil
}
