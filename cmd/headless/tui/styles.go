// Package tui provides the interactive menu for headless: pick a component,
// then a verb. It uses Charmbracelet's Bubble Tea, Lip Gloss, and Bubbles.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/headless/pkg/headless/output"
)

// Box styles for containers.
var (
	// outerBoxStyle is the main container style.
	outerBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(output.ColorPrimary).
			Padding(0, 1)
)

// Text styles.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(output.ColorPrimary)

	mutedTextStyle = lipgloss.NewStyle().
			Foreground(output.ColorMuted)

	errorTextStyle = lipgloss.NewStyle().
			Foreground(output.ColorDanger)

	// selectedStyle highlights the row under the cursor.
	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(output.ColorPrimary)

	destructiveStyle = lipgloss.NewStyle().
				Foreground(output.ColorDanger)
)
