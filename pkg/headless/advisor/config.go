package advisor

import "fmt"

// Default heuristics, in GB and logical cores.
const (
	// DefaultOSReserveRAMGB is the RAM left to macOS and its services.
	DefaultOSReserveRAMGB = 4

	// DefaultOSReserveCPU is the cores left to macOS.
	DefaultOSReserveCPU = 2

	// DefaultInferenceBufferGB is added to observed inference RSS to absorb
	// model switches and context growth.
	DefaultInferenceBufferGB = 2

	// DefaultInferenceFallbackGB is assumed when inference RSS is unknown.
	DefaultInferenceFallbackGB = 8

	DefaultMinRAMGB = 4
	DefaultMinCPU   = 2

	// DefaultIdleRAMCapGB and DefaultIdleCPUCap bound the VM when no
	// inference is running so that starting a model later still fits.
	DefaultIdleRAMCapGB = 16
	DefaultIdleCPUCap   = 4

	DefaultDiskGB = 100
)

// Config holds the advisor heuristics. Fields left at zero take the
// corresponding default.
type Config struct {
	OSReserveRAMGB      int `mapstructure:"os_reserve_ram_gb" json:"os_reserve_ram_gb" yaml:"os_reserve_ram_gb"`
	OSReserveCPU        int `mapstructure:"os_reserve_cpu" json:"os_reserve_cpu" yaml:"os_reserve_cpu"`
	InferenceBufferGB   int `mapstructure:"inference_buffer_gb" json:"inference_buffer_gb" yaml:"inference_buffer_gb"`
	InferenceFallbackGB int `mapstructure:"inference_fallback_gb" json:"inference_fallback_gb" yaml:"inference_fallback_gb"`
	MinRAMGB            int `mapstructure:"min_ram_gb" json:"min_ram_gb" yaml:"min_ram_gb"`
	MinCPU              int `mapstructure:"min_cpu" json:"min_cpu" yaml:"min_cpu"`
	IdleRAMCapGB        int `mapstructure:"idle_ram_cap_gb" json:"idle_ram_cap_gb" yaml:"idle_ram_cap_gb"`
	IdleCPUCap          int `mapstructure:"idle_cpu_cap" json:"idle_cpu_cap" yaml:"idle_cpu_cap"`
	DiskGB              int `mapstructure:"disk_gb" json:"disk_gb" yaml:"disk_gb"`
}

// DefaultConfig returns the stock heuristics.
func DefaultConfig() Config {
	return Config{
		OSReserveRAMGB:      DefaultOSReserveRAMGB,
		OSReserveCPU:        DefaultOSReserveCPU,
		InferenceBufferGB:   DefaultInferenceBufferGB,
		InferenceFallbackGB: DefaultInferenceFallbackGB,
		MinRAMGB:            DefaultMinRAMGB,
		MinCPU:              DefaultMinCPU,
		IdleRAMCapGB:        DefaultIdleRAMCapGB,
		IdleCPUCap:          DefaultIdleCPUCap,
		DiskGB:              DefaultDiskGB,
	}
}

// Validate rejects negative values and caps below their floors.
func (c Config) Validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"os_reserve_ram_gb", c.OSReserveRAMGB},
		{"os_reserve_cpu", c.OSReserveCPU},
		{"inference_buffer_gb", c.InferenceBufferGB},
		{"inference_fallback_gb", c.InferenceFallbackGB},
		{"min_ram_gb", c.MinRAMGB},
		{"min_cpu", c.MinCPU},
		{"idle_ram_cap_gb", c.IdleRAMCapGB},
		{"idle_cpu_cap", c.IdleCPUCap},
		{"disk_gb", c.DiskGB},
	}
	for _, f := range fields {
		if f.value < 0 {
			return fmt.Errorf("advisor.%s must not be negative, got %d", f.name, f.value)
		}
	}

	d := c.withDefaults()
	if d.IdleRAMCapGB < d.MinRAMGB {
		return fmt.Errorf("advisor.idle_ram_cap_gb (%d) is below advisor.min_ram_gb (%d)", d.IdleRAMCapGB, d.MinRAMGB)
	}
	if d.IdleCPUCap < d.MinCPU {
		return fmt.Errorf("advisor.idle_cpu_cap (%d) is below advisor.min_cpu (%d)", d.IdleCPUCap, d.MinCPU)
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	fill := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&c.OSReserveRAMGB, d.OSReserveRAMGB)
	fill(&c.OSReserveCPU, d.OSReserveCPU)
	fill(&c.InferenceBufferGB, d.InferenceBufferGB)
	fill(&c.InferenceFallbackGB, d.InferenceFallbackGB)
	fill(&c.MinRAMGB, d.MinRAMGB)
	fill(&c.MinCPU, d.MinCPU)
	fill(&c.IdleRAMCapGB, d.IdleRAMCapGB)
	fill(&c.IdleCPUCap, d.IdleCPUCap)
	fill(&c.DiskGB, d.DiskGB)
	return c
}
