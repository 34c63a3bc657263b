package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jamesainslie/headless/pkg/headless/history"
)

// PlainFormatter writes unstyled, tab-aligned text for scripts and pipes.
type PlainFormatter struct{}

// FormatStatus writes a component table followed by each component's details.
func (f *PlainFormatter) FormatStatus(w *bytes.Buffer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tSTATE\tVERSION")
	for _, c := range r.Components {
		version := c.Version
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, c.State(), version)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, c := range r.Components {
		if len(c.Details) == 0 && len(c.Warnings) == 0 && c.Error == "" {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", c.Name)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, d := range c.Details {
			fmt.Fprintf(tw, "  %s\t%s\n", d.Key, d.Value)
		}
		for _, warn := range c.Warnings {
			fmt.Fprintf(tw, "  warning\t%s\n", warn)
		}
		if c.Error != "" {
			fmt.Fprintf(tw, "  error\t%s\n", c.Error)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// FormatAdvice writes key/value lines.
func (f *PlainFormatter) FormatAdvice(w *bytes.Buffer, a *Advice) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "total_ram_gb\t%d\n", a.TotalRAMGB)
	fmt.Fprintf(tw, "total_cpu_cores\t%d\n", a.TotalCPUCores)
	fmt.Fprintf(tw, "inference_running\t%t\n", a.InferenceRunning)
	fmt.Fprintf(tw, "inference_observed_gb\t%d\n", a.InferenceObservedGB)
	fmt.Fprintf(tw, "inference_estimate_gb\t%d\n", a.InferenceEstimateGB)
	fmt.Fprintf(tw, "cpu_cores\t%d\n", a.CPUCores)
	fmt.Fprintf(tw, "ram_gb\t%d\n", a.RAMGB)
	fmt.Fprintf(tw, "disk_gb\t%d\n", a.DiskGB)
	fmt.Fprintf(tw, "low_resources\t%t\n", a.LowResources)
	for _, warn := range a.Warnings {
		fmt.Fprintf(tw, "warning\t%s\n", warn)
	}
	return tw.Flush()
}

// FormatHistory writes one tab-aligned row per entry.
func (f *PlainFormatter) FormatHistory(w *bytes.Buffer, entries []history.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tVERB\tCOMPONENT\tOUTCOME\tDURATION\tERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Timestamp.UTC().Format(time.RFC3339), e.Verb, e.Component,
			e.Outcome, e.Duration.Round(time.Millisecond), e.Error)
	}
	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)
