package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/headless/pkg/headless/history"
)

// PrettyFormatter renders boxed, coloured output for a terminal.
type PrettyFormatter struct{}

// FormatStatus writes one card per component.
func (f *PrettyFormatter) FormatStatus(w *bytes.Buffer, r *Report) error {
	header := TitleStyle.Render("headless status")
	if r.Hostname != "" {
		header += "  " + LabelStyle.Render("host:") + " " + ValueStyle.Render(r.Hostname)
	}
	header += "  " + MutedStyle.Render(r.GeneratedAt.Local().Format(time.DateTime))
	w.WriteString(HeaderBox.Render(header))
	w.WriteString("\n")

	for _, c := range r.Components {
		w.WriteString(CardBox.Render(f.card(c)))
		w.WriteString("\n")
	}
	return nil
}

func (f *PrettyFormatter) card(c ComponentStatus) string {
	var lines []string

	title := TitleStyle.Render(c.Name) + "  " + StateStyle(c.State()).Render(c.State())
	if c.Version != "" {
		title += "  " + MutedStyle.Render(c.Version)
	}
	lines = append(lines, title)
	if c.Description != "" {
		lines = append(lines, MutedStyle.Render(c.Description))
	}

	width := 0
	for _, d := range c.Details {
		width = max(width, lipgloss.Width(d.Key))
	}
	for _, d := range c.Details {
		lines = append(lines, LabelStyle.Render(padRight(d.Key+":", width+1))+" "+ValueStyle.Render(d.Value))
	}

	for _, warn := range c.Warnings {
		lines = append(lines, WarningStyle.Render("! "+warn))
	}
	if c.Error != "" {
		lines = append(lines, ErrorStyle.Render("error: "+c.Error))
	}
	return strings.Join(lines, "\n")
}

// FormatAdvice writes the machine summary and the recommended allocation.
func (f *PrettyFormatter) FormatAdvice(w *bytes.Buffer, a *Advice) error {
	machine := fmt.Sprintf("%s %s  %s %s",
		LabelStyle.Render("RAM:"), ValueStyle.Render(fmt.Sprintf("%d GB", a.TotalRAMGB)),
		LabelStyle.Render("CPU:"), ValueStyle.Render(fmt.Sprintf("%d cores", a.TotalCPUCores)))

	inference := MutedStyle.Render("inference idle")
	if a.InferenceRunning {
		observed := "unknown"
		if a.InferenceObservedGB > 0 {
			observed = fmt.Sprintf("%d GB", a.InferenceObservedGB)
		}
		inference = SuccessStyle.Render("inference running") + " " +
			LabelStyle.Render("observed:") + " " + ValueStyle.Render(observed) + " " +
			LabelStyle.Render("reserved:") + " " + ValueStyle.Render(fmt.Sprintf("%d GB", a.InferenceEstimateGB))
	}

	title := "Recommended Colima allocation"
	if a.Simulated {
		title += " (simulated)"
	}
	w.WriteString(HeaderBox.Render(TitleStyle.Render(title) + "\n" + machine + "\n" + inference))
	w.WriteString("\n")

	rows := []string{
		LabelStyle.Render("CPU:   ") + " " + NumberStyle.Render(fmt.Sprintf("%d cores", a.CPUCores)),
		LabelStyle.Render("Memory:") + " " + NumberStyle.Render(fmt.Sprintf("%d GB", a.RAMGB)),
		LabelStyle.Render("Disk:  ") + " " + NumberStyle.Render(fmt.Sprintf("%d GB", a.DiskGB)),
	}
	w.WriteString(CardBox.Render(strings.Join(rows, "\n")))
	w.WriteString("\n")

	for _, warn := range a.Warnings {
		w.WriteString(WarningStyle.Render("! " + warn))
		w.WriteString("\n")
	}
	return nil
}

// FormatHistory writes a table of journal entries.
func (f *PrettyFormatter) FormatHistory(w *bytes.Buffer, entries []history.Entry) error {
	if len(entries) == 0 {
		w.WriteString(MutedStyle.Render("No history recorded yet."))
		w.WriteString("\n")
		return nil
	}

	fmt.Fprintf(w, "%s  %s  %s  %s  %s  %s\n",
		TableHeaderStyle.Render(padRight("ID", 8)),
		TableHeaderStyle.Render(padRight("WHEN", 14)),
		TableHeaderStyle.Render(padRight("VERB", 7)),
		TableHeaderStyle.Render(padRight("COMPONENT", 9)),
		TableHeaderStyle.Render(padRight("OUTCOME", 9)),
		TableHeaderStyle.Render("DURATION"))

	for _, e := range entries {
		line := fmt.Sprintf("%s  %s  %s  %s  %s  %s",
			MutedStyle.Render(e.ShortID()),
			ValueStyle.Render(padRight(humanize.Time(e.Timestamp), 14)),
			ValueStyle.Render(padRight(e.Verb, 7)),
			ValueStyle.Render(padRight(e.Component, 9)),
			OutcomeStyle(string(e.Outcome)).Render(padRight(string(e.Outcome), 9)),
			MutedStyle.Render(e.Duration.Round(time.Millisecond).String()))
		w.WriteString(line)
		w.WriteString("\n")
		if e.Error != "" {
			w.WriteString(ErrorStyle.Render("          " + e.Error))
			w.WriteString("\n")
		}
	}
	return nil
}

func padRight(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
