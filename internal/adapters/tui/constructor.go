// Package tui renders build progress as an interactive terminal interface,
// showing the dependency tree of planned commands next to their live logs.
package tui

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.kiln.dev/kiln/internal/ui/output"
)

const defaultTickInterval = 100

// NewModel creates a new TUI model with default settings.
func NewModel(w io.Writer) Model {
	if w == nil {
		w = os.Stderr
	}

	out := output.New(w)
	lipgloss.SetColorProfile(out.Profile)

	return Model{
		Builds:       make([]*BuildNode, 0),
		BuildMap:     make(map[string]*BuildNode),
		SpanMap:      make(map[string]*BuildNode),
		TreeRoots:    make([]*BuildNode, 0),
		FlatList:     make([]*BuildNode, 0),
		Output:       out,
		AutoScroll:   true,
		ViewMode:     ViewModeTree,
		FollowMode:   true,
		TickInterval: defaultTickInterval * time.Millisecond,
	}
}

// WithDisableTick disables the periodic re-render loop.
// This is primarily used for testing with synctest to avoid goroutine deadlocks.
func (m Model) WithDisableTick() Model {
	m.DisableTick = true
	return m
}
