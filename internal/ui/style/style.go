// Package style holds the shared color palette and status glyphs of the
// terminal output paths.
package style

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Ember = lipgloss.Color("#D45D20")
	Ash   = lipgloss.Color("#6E7781")
	White = lipgloss.Color("#FFFFFF")
	Green = lipgloss.Color("#2DA44E")
	Red   = lipgloss.Color("#CF222E")
	Amber = lipgloss.Color("#BF8700")
)

// Status glyphs.
const (
	Cross   = "✗"
	Warning = "!"
)
