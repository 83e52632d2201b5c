package tui

import (
	"github.com/charmbracelet/lipgloss"
	"go.kiln.dev/kiln/internal/ui/style"
)

var (
	buildPendingStyle = lipgloss.NewStyle().
				Foreground(style.Ash)

	buildRunningStyle = lipgloss.NewStyle().
				Foreground(style.Ember).
				Bold(true)

	buildDoneStyle = lipgloss.NewStyle().
			Foreground(style.Green)

	buildErrorStyle = lipgloss.NewStyle().
			Foreground(style.Red)

	selectedStyle = lipgloss.NewStyle().
			Foreground(style.Ember).
			Bold(true)

	emptyStyle = lipgloss.NewStyle().
			Foreground(style.Ash).
			Faint(true)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Background(style.Ember).
			Foreground(style.White)

	failureTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Padding(0, 1).
				Background(style.Red).
				Foreground(style.White)

	listStyle = lipgloss.NewStyle().
			PaddingRight(1)

	logStyle = lipgloss.NewStyle().
			PaddingLeft(1)
)
