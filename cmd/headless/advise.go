package main

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/headless/pkg/headless/advisor"
	"github.com/jamesainslie/headless/pkg/headless/output"
	"github.com/jamesainslie/headless/pkg/headless/sysinfo"
)

var (
	adviseRAM          int
	adviseCPU          int
	adviseInference    bool
	adviseInferenceRAM int
)

var adviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Recommend a Colima allocation",
	Long: `Print the CPU, memory and disk allocation colima setup would recommend.

Machine facts are detected unless overridden. Overriding any of them
simulates a different machine or workload; nothing is changed either way.

Examples:
  headless advise                          # This machine as it is now
  headless advise --ram 16 --cpu 8         # A 16 GB, 8 core machine
  headless advise --inference-ram 6        # With a 6 GB model loaded
  headless advise --inference -o json      # Inference running, size unknown`,
	Args: cobra.NoArgs,
	RunE: runAdvise,
}

func init() {
	adviseCmd.Flags().IntVar(&adviseRAM, "ram", 0, "total RAM in GB (default: detected)")
	adviseCmd.Flags().IntVar(&adviseCPU, "cpu", 0, "logical CPU cores (default: detected)")
	adviseCmd.Flags().BoolVar(&adviseInference, "inference", false, "assume the inference server is running")
	adviseCmd.Flags().IntVar(&adviseInferenceRAM, "inference-ram", 0, "resident memory of the inference server in GB (implies --inference)")
	rootCmd.AddCommand(adviseCmd)
}

// adviceInputs describes which advisor inputs came from flags.
type adviceInputs struct {
	ram, cpu     int
	inference    bool
	inferenceRAM int

	setRAM, setCPU, setInference bool
}

func (in adviceInputs) simulated() bool {
	return in.setRAM || in.setCPU || in.setInference
}

// buildAdvice detects what the flags leave open and runs the advisor.
func buildAdvice(ctx context.Context, d sysinfo.Detector, acfg advisor.Config, in adviceInputs) (*output.Advice, error) {
	var (
		res advisor.SystemResources
		inf advisor.InferenceWorkload
	)

	if !in.setRAM || !in.setCPU || !in.setInference {
		detected, w, err := sysinfo.Snapshot(ctx, d)
		if err != nil {
			return nil, err
		}
		res = detected
		inf = w.Advisor()
	}

	if in.setRAM {
		res.TotalRAMGB = in.ram
	}
	if in.setCPU {
		res.TotalCPUCores = in.cpu
	}
	if in.setInference {
		inf = advisor.InferenceWorkload{
			Running:       in.inference || in.inferenceRAM > 0,
			ObservedRAMGB: in.inferenceRAM,
		}
	}

	if res.TotalRAMGB < 1 || res.TotalCPUCores < 1 {
		return nil, fmt.Errorf("machine needs at least 1 GB RAM and 1 core, got %d GB and %d", res.TotalRAMGB, res.TotalCPUCores)
	}
	if inf.ObservedRAMGB < 0 {
		return nil, fmt.Errorf("--inference-ram must not be negative, got %d", inf.ObservedRAMGB)
	}

	advice := output.NewAdvice(res, inf, advisor.Recommend(acfg, res, inf))
	advice.Simulated = in.simulated()
	return advice, nil
}

// runAdvise prints the recommendation in the selected format.
func runAdvise(cmd *cobra.Command, _ []string) error {
	f, err := output.Get(outputFormat)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	in := adviceInputs{
		ram:          adviseRAM,
		cpu:          adviseCPU,
		inference:    adviseInference,
		inferenceRAM: adviseInferenceRAM,
		setRAM:       flags.Changed("ram"),
		setCPU:       flags.Changed("cpu"),
		setInference: flags.Changed("inference") || flags.Changed("inference-ram"),
	}

	advice, err := buildAdvice(cmd.Context(), sysinfo.NewHost(cfg.Ollama.ProcessNames...), cfg.Advisor, in)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := f.FormatAdvice(&buf, advice); err != nil {
		return fmt.Errorf("formatting advice: %w", err)
	}
	_, err = stdout.Write(buf.Bytes())
	return err
}
