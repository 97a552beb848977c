// Package tui provides a bubbletea + lipgloss terminal UI for the fix loop.
package tui

import "github.com/charmbracelet/lipgloss"

// defaultAccentColor is the default accent color (indigo).
const defaultAccentColor = "#7D56F4"

// Color palette.
var (
	colorWhite  = lipgloss.Color("#FAFAFA")
	colorGray   = lipgloss.Color("#888888")
	colorBlue   = lipgloss.Color("#5B9BD5")
	colorGreen  = lipgloss.Color("#6BCB77")
	colorYellow = lipgloss.Color("#FFD93D")
	colorRed    = lipgloss.Color("#FF6B6B")
)

// Styles used across the TUI. Accent-dependent styles (header) live on the
// Model and are computed from the configured accent color at creation.
var (
	footerStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	timestampStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	buildStyle = lipgloss.NewStyle().
			Foreground(colorBlue)

	llmStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	acceptStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	rejectStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	resultStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(colorWhite)
)
