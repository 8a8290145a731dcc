package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorAccent = lipgloss.Color("#F2A65A")
	ColorMuted  = lipgloss.Color("#8A8F98")
	ColorError  = lipgloss.Color("#FF5F5F")
	ColorWhite  = lipgloss.Color("#FFFFFF")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent).
			MarginBottom(1)

	breedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	urlStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Underline(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	helpStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			MarginTop(1)

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent).
			Padding(1, 2)
)
