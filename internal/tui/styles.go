// Package tui renders a game in the terminal using Bubble Tea.
package tui

import "github.com/charmbracelet/lipgloss"

const (
	primaryColor = "#7C3AED"
	seatAColor   = "#EF4444"
	seatBColor   = "#3B82F6"
	hintColor    = "#10B981"
	warningColor = "#F59E0B"
	dimColor     = "#6B7280"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	boardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(primaryColor)).
			Padding(0, 1)

	seatAStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(seatAColor)).Bold(true)
	seatBStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(seatBColor)).Bold(true)
	emptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(dimColor))

	hintStyle   = lipgloss.NewStyle().Background(lipgloss.Color(hintColor))
	cursorStyle = lipgloss.NewStyle().Reverse(true)

	selectedCardStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(primaryColor)).
				Bold(true).
				Underline(true)

	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(dimColor))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(warningColor))
)
