package advisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommendScenarios(t *testing.T) {
	tests := []struct {
		name     string
		res      SystemResources
		inf      InferenceWorkload
		wantRAM  int
		wantCPU  int
		wantWarn bool
		wantEst  int
	}{
		{
			name:     "16GB 8 cores running 6GB model",
			res:      SystemResources{TotalRAMGB: 16, TotalCPUCores: 8},
			inf:      InferenceWorkload{Running: true, ObservedRAMGB: 6},
			wantRAM:  4,
			wantCPU:  6,
			wantWarn: true,
			wantEst:  8,
		},
		{
			name:    "64GB 12 cores idle",
			res:     SystemResources{TotalRAMGB: 64, TotalCPUCores: 12},
			inf:     InferenceWorkload{},
			wantRAM: 16,
			wantCPU: 4,
		},
		{
			name:    "24GB 8 cores running unknown RSS",
			res:     SystemResources{TotalRAMGB: 24, TotalCPUCores: 8},
			inf:     InferenceWorkload{Running: true, ObservedRAMGB: 0},
			wantRAM: 12,
			wantCPU: 6,
			wantEst: 8,
		},
		{
			name:    "64GB 12 cores running 20GB model",
			res:     SystemResources{TotalRAMGB: 64, TotalCPUCores: 12},
			inf:     InferenceWorkload{Running: true, ObservedRAMGB: 20},
			wantRAM: 38,
			wantCPU: 10,
			wantEst: 22,
		},
		{
			name:    "16GB 10 cores idle",
			res:     SystemResources{TotalRAMGB: 16, TotalCPUCores: 10},
			wantRAM: 12,
			wantCPU: 4,
		},
		{
			name:    "observed RSS ignored when not running",
			res:     SystemResources{TotalRAMGB: 32, TotalCPUCores: 8},
			inf:     InferenceWorkload{Running: false, ObservedRAMGB: 30},
			wantRAM: 16,
			wantCPU: 4,
		},
		{
			name:     "8GB 4 cores running",
			res:      SystemResources{TotalRAMGB: 8, TotalCPUCores: 4},
			inf:      InferenceWorkload{Running: true},
			wantRAM:  4,
			wantCPU:  2,
			wantWarn: true,
			wantEst:  8,
		},
		{
			name:     "tiny machine caps at physical totals",
			res:      SystemResources{TotalRAMGB: 2, TotalCPUCores: 1},
			inf:      InferenceWorkload{},
			wantRAM:  2,
			wantCPU:  1,
			wantWarn: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Recommend(Config{}, tt.res, tt.inf)

			assert.Equal(t, tt.wantRAM, rec.RAMGB, "RAMGB")
			assert.Equal(t, tt.wantCPU, rec.CPUCores, "CPUCores")
			assert.Equal(t, DefaultDiskGB, rec.DiskGB, "DiskGB")
			assert.Equal(t, tt.wantEst, rec.InferenceEstimateGB, "InferenceEstimateGB")
			assert.Equal(t, tt.wantWarn, rec.LowResources, "LowResources")
			if tt.wantWarn {
				assert.NotEmpty(t, rec.Warnings)
			} else {
				assert.Empty(t, rec.Warnings)
			}
		})
	}
}

func TestRecommendIdleBounds(t *testing.T) {
	for ram := 8; ram <= 192; ram++ {
		for cpu := 4; cpu <= 32; cpu++ {
			rec := Recommend(Config{}, SystemResources{TotalRAMGB: ram, TotalCPUCores: cpu}, InferenceWorkload{})

			if rec.RAMGB > ram-4 || rec.RAMGB > 16 {
				t.Fatalf("ram=%d cpu=%d: RAMGB = %d, want <= min(%d, 16)", ram, cpu, rec.RAMGB, ram-4)
			}
			if rec.CPUCores > cpu-2 || rec.CPUCores > 4 {
				t.Fatalf("ram=%d cpu=%d: CPUCores = %d, want <= min(%d, 4)", ram, cpu, rec.CPUCores, cpu-2)
			}
			if rec.DiskGB != 100 {
				t.Fatalf("ram=%d cpu=%d: DiskGB = %d, want 100", ram, cpu, rec.DiskGB)
			}
		}
	}
}

func TestRecommendRunningFormula(t *testing.T) {
	for ram := 8; ram <= 192; ram += 4 {
		for observed := 0; observed <= 64; observed++ {
			res := SystemResources{TotalRAMGB: ram, TotalCPUCores: 10}
			rec := Recommend(Config{}, res, InferenceWorkload{Running: true, ObservedRAMGB: observed})

			estimate := 8
			if observed > 0 {
				estimate = observed + 2
			}
			want := min(max(4, ram-estimate-4), ram)
			if rec.RAMGB != want {
				t.Fatalf("ram=%d observed=%d: RAMGB = %d, want %d", ram, observed, rec.RAMGB, want)
			}
			if rec.CPUCores != 8 {
				t.Fatalf("ram=%d observed=%d: CPUCores = %d, want 8", ram, observed, rec.CPUCores)
			}
		}
	}
}

func TestRecommendNeverOutOfRange(t *testing.T) {
	for ram := 1; ram <= 64; ram++ {
		for cpu := 1; cpu <= 16; cpu++ {
			for _, inf := range []InferenceWorkload{{}, {Running: true}, {Running: true, ObservedRAMGB: ram}} {
				rec := Recommend(Config{}, SystemResources{TotalRAMGB: ram, TotalCPUCores: cpu}, inf)

				if rec.RAMGB < 1 || rec.RAMGB > ram {
					t.Fatalf("ram=%d cpu=%d inf=%+v: RAMGB = %d out of [1, %d]", ram, cpu, inf, rec.RAMGB, ram)
				}
				if rec.CPUCores < 1 || rec.CPUCores > cpu {
					t.Fatalf("ram=%d cpu=%d inf=%+v: CPUCores = %d out of [1, %d]", ram, cpu, inf, rec.CPUCores, cpu)
				}
				if ram >= 4 && rec.RAMGB < 4 {
					t.Fatalf("ram=%d cpu=%d inf=%+v: RAMGB = %d below the 4 GB floor", ram, cpu, inf, rec.RAMGB)
				}
				if cpu >= 2 && rec.CPUCores < 2 {
					t.Fatalf("ram=%d cpu=%d inf=%+v: CPUCores = %d below the 2 core floor", ram, cpu, inf, rec.CPUCores)
				}
			}
		}
	}
}

func TestRecommendDeterministic(t *testing.T) {
	res := SystemResources{TotalRAMGB: 32, TotalCPUCores: 10}
	inf := InferenceWorkload{Running: true, ObservedRAMGB: 5}

	first := Recommend(Config{}, res, inf)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Recommend(Config{}, res, inf))
	}
}

func TestRecommendCustomConfig(t *testing.T) {
	cfg := Config{
		OSReserveRAMGB:      6,
		InferenceFallbackGB: 12,
		IdleRAMCapGB:        24,
		IdleCPUCap:          6,
		DiskGB:              250,
	}

	idle := Recommend(cfg, SystemResources{TotalRAMGB: 64, TotalCPUCores: 12}, InferenceWorkload{})
	assert.Equal(t, 24, idle.RAMGB)
	assert.Equal(t, 6, idle.CPUCores)
	assert.Equal(t, 250, idle.DiskGB)

	running := Recommend(cfg, SystemResources{TotalRAMGB: 64, TotalCPUCores: 12}, InferenceWorkload{Running: true})
	assert.Equal(t, 64-12-6, running.RAMGB)
	assert.Equal(t, 12, running.InferenceEstimateGB)
}

func TestEstimateInference(t *testing.T) {
	assert.Equal(t, 8, EstimateInference(Config{}, 0))
	assert.Equal(t, 8, EstimateInference(Config{}, -3))
	assert.Equal(t, 7, EstimateInference(Config{}, 5))
	assert.Equal(t, 9, EstimateInference(Config{InferenceBufferGB: 4}, 5))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "zero config", cfg: Config{}},
		{name: "defaults", cfg: DefaultConfig()},
		{name: "negative disk", cfg: Config{DiskGB: -1}, wantErr: "advisor.disk_gb"},
		{name: "cap below floor", cfg: Config{IdleRAMCapGB: 2, MinRAMGB: 4}, wantErr: "idle_ram_cap_gb"},
		{name: "cpu cap below floor", cfg: Config{IdleCPUCap: 1, MinCPU: 3}, wantErr: "idle_cpu_cap"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCheckAllocation(t *testing.T) {
	res := SystemResources{TotalRAMGB: 16, TotalCPUCores: 8}

	tests := []struct {
		name           string
		cpu, ram, disk int
		wantErr        bool
	}{
		{"recommended", 6, 4, 100, false},
		{"full machine", 8, 16, 500, false},
		{"zero cpu", 0, 4, 100, true},
		{"zero ram", 2, 0, 100, true},
		{"zero disk", 2, 4, 0, true},
		{"too many cores", 9, 4, 100, true},
		{"too much ram", 2, 17, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAllocation(res, tt.cpu, tt.ram, tt.disk)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAllocation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
