package tui

import "github.com/charmbracelet/lipgloss"

const (
	colorAccent = lipgloss.Color("62")
	colorMuted  = lipgloss.Color("240")
	colorHint   = lipgloss.Color("241")
	colorWarn   = lipgloss.Color("214")
)

var paneBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder())

// borderFor returns the pane frame, highlighted when focused.
func borderFor(focused bool) lipgloss.Style {
	if focused {
		return paneBorder.BorderForeground(colorAccent)
	}
	return paneBorder.BorderForeground(colorMuted)
}

var (
	StyleStatusRunning  = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow")).Bold(true)
	StyleStatusComplete = lipgloss.NewStyle().Foreground(lipgloss.Color("green")).Bold(true)
	StyleStatusDegraded = lipgloss.NewStyle().Foreground(colorWarn)
	StyleStatusFailed   = lipgloss.NewStyle().Foreground(lipgloss.Color("red")).Bold(true)
	StyleStatusPending  = lipgloss.NewStyle().Foreground(colorMuted)

	StyleTitle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	StyleHelp     = lipgloss.NewStyle().Foreground(colorHint)
	StyleSelected = lipgloss.NewStyle().Background(colorAccent).Foreground(lipgloss.Color("0"))
)
