package tui

import (
	"bytes"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/vito/midterm"
)

// Vterm holds one build command's streamed output in a virtual terminal,
// so ANSI escape sequences from conda render correctly in the log pane.
type Vterm struct {
	vt      *midterm.Terminal
	Offset  int
	Height  int
	Width   int
	Prefix  string
	viewBuf *bytes.Buffer
	mu      sync.Mutex
}

// NewVterm creates a new Vterm instance.
func NewVterm() *Vterm {
	return &Vterm{
		vt:      midterm.NewAutoResizingTerminal(),
		viewBuf: new(bytes.Buffer),
	}
}

// Write implements io.Writer to feed build output into the virtual terminal.
// A view scrolled to the bottom follows the new output.
func (v *Vterm) Write(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	follow := v.atBottomLocked()
	n, err := v.vt.Write(p)
	if follow {
		v.Offset = v.maxOffset()
	}
	return n, err
}

// SetHeight updates the view height and adjusts scrolling.
func (v *Vterm) SetHeight(h int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	follow := v.atBottomLocked()
	v.Height = max(h, 1)
	if follow {
		v.Offset = v.maxOffset()
	} else {
		v.clampOffsetLocked()
	}
}

// SetWidth updates the terminal width. The prefix eats into the columns
// available to the terminal itself.
func (v *Vterm) SetWidth(w int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.Width = max(w, 1)
	v.vt.ResizeX(max(v.Width-len(v.Prefix), 1))
}

// UsedHeight returns the total number of lines in the terminal buffer.
func (v *Vterm) UsedHeight() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vt.UsedHeight()
}

// View renders the visible window of the terminal buffer.
func (v *Vterm) View() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return string(v.viewBytes())
}

func (v *Vterm) viewBytes() []byte {
	v.viewBuf.Reset()
	v.clampOffsetLocked()

	for i := range v.Height {
		row := v.Offset + i
		if row >= v.vt.UsedHeight() {
			break
		}

		if i > 0 {
			_ = v.viewBuf.WriteByte('\n')
		}

		_, _ = v.viewBuf.WriteString(v.Prefix)
		_ = v.vt.RenderLine(v.viewBuf, row)
	}

	// Copy because viewBuf is reused across renders
	out := make([]byte, v.viewBuf.Len())
	copy(out, v.viewBuf.Bytes())
	return out
}

// Update handles scrolling keys.
func (v *Vterm) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			v.Offset--
		case "down", "j":
			v.Offset++
		case "pgup":
			v.Offset -= v.Height
		case "pgdown":
			v.Offset += v.Height
		case "home":
			v.Offset = 0
		case "end":
			v.Offset = v.maxOffset()
		}
	}
	v.clampOffsetLocked()

	return nil, nil
}

// atBottomLocked reports whether the view shows the end of the buffer. A
// zero height view counts as at the bottom so fresh panes start following.
func (v *Vterm) atBottomLocked() bool {
	return v.Offset >= v.maxOffset()
}

func (v *Vterm) clampOffsetLocked() {
	if v.Offset < 0 {
		v.Offset = 0
	}
	if limit := v.maxOffset(); v.Offset > limit {
		v.Offset = limit
	}
}

func (v *Vterm) maxOffset() int {
	return max(v.vt.UsedHeight()-v.Height, 0)
}
