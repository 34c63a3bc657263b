// Package advisor sizes the Colima VM for a Mac Mini that may also be
// running local inference. Given the machine's RAM and CPU and whether an
// inference workload is active, Recommend returns CPU, RAM and disk
// allocations that leave headroom for the workload and for macOS itself.
//
// The advisor is pure: it performs no I/O and returns the same result for
// the same inputs. Detection lives in package sysinfo and the prompts that
// let an operator override a recommendation live in package prompt.
package advisor

import (
	"errors"
	"fmt"
)

// SystemResources is the machine being sized, in whole GB and logical cores.
type SystemResources struct {
	TotalRAMGB    int
	TotalCPUCores int
}

// InferenceWorkload describes the inference process sharing the machine.
type InferenceWorkload struct {
	// Running reports whether the inference server process is active.
	Running bool

	// ObservedRAMGB is the resident memory of the inference process.
	// Zero means unknown; the configured fallback estimate is used instead.
	ObservedRAMGB int
}

// Recommendation is the suggested Colima allocation. It is recomputed on
// every invocation and never persisted; only operator-approved values are.
type Recommendation struct {
	CPUCores int
	RAMGB    int
	DiskGB   int

	// InferenceEstimateGB is the RAM set aside for inference. Zero when
	// inference is not running.
	InferenceEstimateGB int

	// LowResources is set when a floor or a physical limit had to be applied.
	LowResources bool

	// Warnings explain each adjustment for the operator.
	Warnings []string
}

// Recommend computes the allocation for res given the inference workload.
//
// With inference running, the estimate (observed RSS plus a buffer, or the
// fallback) and the OS reserve are subtracted from total RAM and the result
// is floored at MinRAMGB. CPU is total minus the OS reserve, floored at
// MinCPU. With inference idle, RAM and CPU are capped at IdleRAMCapGB and
// IdleCPUCap instead. Disk is always DiskGB.
//
// No result exceeds what the machine physically has and none is below one.
// A zero Config uses DefaultConfig.
func Recommend(cfg Config, res SystemResources, inf InferenceWorkload) Recommendation {
	cfg = cfg.withDefaults()

	rec := Recommendation{DiskGB: cfg.DiskGB}
	availCPU := res.TotalCPUCores - cfg.OSReserveCPU

	if inf.Running {
		estimate := EstimateInference(cfg, inf.ObservedRAMGB)
		rec.InferenceEstimateGB = estimate

		availRAM := res.TotalRAMGB - estimate - cfg.OSReserveRAMGB
		if availRAM <= cfg.MinRAMGB {
			rec.warn("only %d GB left after %d GB for inference and %d GB for macOS; using the %d GB minimum",
				max(availRAM, 0), estimate, cfg.OSReserveRAMGB, cfg.MinRAMGB)
			availRAM = cfg.MinRAMGB
		}
		rec.RAMGB = availRAM
		rec.CPUCores = max(availCPU, cfg.MinCPU)
	} else {
		availRAM := min(res.TotalRAMGB-cfg.OSReserveRAMGB, cfg.IdleRAMCapGB)
		if availRAM < cfg.MinRAMGB {
			rec.warn("only %d GB left after %d GB for macOS; using the %d GB minimum",
				max(availRAM, 0), cfg.OSReserveRAMGB, cfg.MinRAMGB)
			availRAM = cfg.MinRAMGB
		}
		rec.RAMGB = availRAM
		rec.CPUCores = max(min(availCPU, cfg.IdleCPUCap), cfg.MinCPU)
	}

	// Floors never win over the hardware.
	if res.TotalRAMGB > 0 && rec.RAMGB > res.TotalRAMGB {
		rec.warn("machine has only %d GB RAM; VM memory limited to %d GB", res.TotalRAMGB, res.TotalRAMGB)
		rec.RAMGB = res.TotalRAMGB
	}
	if res.TotalCPUCores > 0 && rec.CPUCores > res.TotalCPUCores {
		rec.warn("machine has only %d CPU cores; VM limited to %d", res.TotalCPUCores, res.TotalCPUCores)
		rec.CPUCores = res.TotalCPUCores
	}
	rec.RAMGB = max(rec.RAMGB, 1)
	rec.CPUCores = max(rec.CPUCores, 1)

	return rec
}

// EstimateInference returns the RAM reserved for a running inference
// workload: observed plus the buffer when observed is positive, otherwise
// the fallback.
func EstimateInference(cfg Config, observedGB int) int {
	cfg = cfg.withDefaults()
	if observedGB > 0 {
		return observedGB + cfg.InferenceBufferGB
	}
	return cfg.InferenceFallbackGB
}

func (r *Recommendation) warn(format string, args ...any) {
	r.LowResources = true
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ErrInvalidAllocation is returned by CheckAllocation.
var ErrInvalidAllocation = errors.New("invalid allocation")

// CheckAllocation validates operator-supplied values: every value must be at
// least one, and CPU and RAM may not exceed the machine's totals when known.
func CheckAllocation(res SystemResources, cpu, ramGB, diskGB int) error {
	switch {
	case cpu < 1:
		return fmt.Errorf("%w: cpu must be at least 1, got %d", ErrInvalidAllocation, cpu)
	case ramGB < 1:
		return fmt.Errorf("%w: memory must be at least 1 GB, got %d", ErrInvalidAllocation, ramGB)
	case diskGB < 1:
		return fmt.Errorf("%w: disk must be at least 1 GB, got %d", ErrInvalidAllocation, diskGB)
	case res.TotalCPUCores > 0 && cpu > res.TotalCPUCores:
		return fmt.Errorf("%w: cpu %d exceeds the %d cores present", ErrInvalidAllocation, cpu, res.TotalCPUCores)
	case res.TotalRAMGB > 0 && ramGB > res.TotalRAMGB:
		return fmt.Errorf("%w: memory %d GB exceeds the %d GB present", ErrInvalidAllocation, ramGB, res.TotalRAMGB)
	}
	return nil
}
