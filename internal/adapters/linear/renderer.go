// Package linear provides a synchronous, line-buffered renderer for CI
// environments. It prints chronological build logs with per-build prefixes
// instead of the interactive TUI.
package linear

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/muesli/termenv"
	uiout "go.kiln.dev/kiln/internal/ui/output"
)

// buildPalette holds the colors cycled through for build prefixes. Red and
// green are reserved for the failure and success symbols.
var buildPalette = []termenv.Color{
	termenv.ANSIBlue,
	termenv.ANSICyan,
	termenv.ANSIMagenta,
	termenv.ANSIYellow,
	termenv.ANSIBrightBlue,
	termenv.ANSIBrightMagenta,
}

// Renderer implements ports.Renderer for CI/non-interactive environments.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	output *termenv.Output

	mu      sync.Mutex
	builds  map[string]*buildState // spanID -> build state
	buffers map[string]*bytes.Buffer
}

type buildState struct {
	name      string
	startTime time.Time
	color     termenv.Color
}

// NewRenderer creates a new linear renderer writing logs to stdout and
// status messages to stderr.
func NewRenderer(stdout, stderr io.Writer) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	return &Renderer{
		stdout:  stdout,
		stderr:  stderr,
		output:  uiout.NewWithProfile(stderr, uiout.ColorProfileANSI),
		builds:  make(map[string]*buildState),
		buffers: make(map[string]*bytes.Buffer),
	}
}

// colorFor assigns a stable palette color to a build name.
func colorFor(name string) termenv.Color {
	return buildPalette[xxhash.Sum64String(name)%uint64(len(buildPalette))]
}

// Start is a no-op for the linear renderer (synchronous).
func (r *Renderer) Start(_ context.Context) error {
	return nil
}

// Stop flushes all remaining buffers.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for spanID := range r.buffers {
		r.flushBufferLocked(spanID)
	}

	return nil
}

// Wait is a no-op for the linear renderer (synchronous).
func (r *Renderer) Wait() error {
	return nil
}

// OnPlanEmit prints the planned build commands.
func (r *Renderer) OnPlanEmit(commands []string, _ map[string][]string, targets []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(targets) > 0 {
		_, _ = fmt.Fprintf(r.stderr, "Planning %d build(s) for package(s): %s\n",
			len(commands), strings.Join(targets, ", "))
		return
	}
	_, _ = fmt.Fprintf(r.stderr, "Planning %d build(s)\n", len(commands))
}

// OnBuildStart prints a build start message.
func (r *Renderer) OnBuildStart(spanID, _ /* parentID */, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := &buildState{
		name:      name,
		startTime: startTime,
		color:     colorFor(name),
	}
	r.builds[spanID] = state
	r.buffers[spanID] = new(bytes.Buffer)

	prefix := r.prefixLocked(state)
	_, _ = fmt.Fprintf(r.stderr, "%s Starting...\n", prefix)
}

// OnBuildLog buffers log data and prints complete lines with the build prefix.
func (r *Renderer) OnBuildLog(spanID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.builds[spanID]
	if !ok {
		return
	}

	buf := r.buffers[spanID]
	buf.Write(data)

	// Process complete lines
	for {
		line, err := buf.ReadBytes('\n')
		if err != nil {
			// Incomplete line, put it back
			if len(line) > 0 {
				newBuf := new(bytes.Buffer)
				newBuf.Write(line)
				r.buffers[spanID] = newBuf
			}
			break
		}

		r.printLineLocked(state, line)
	}
}

// OnBuildComplete flushes the remaining buffer and prints the completion status.
func (r *Renderer) OnBuildComplete(spanID string, endTime time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.builds[spanID]
	if !ok {
		return
	}

	r.flushBufferLocked(spanID)

	duration := endTime.Sub(state.startTime)
	prefix := r.prefixLocked(state)

	if err != nil {
		symbol := r.output.String("✗").Foreground(termenv.ANSIRed).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Failed after %v: %v\n",
			prefix, symbol, duration, err)
	} else {
		symbol := r.output.String("✓").Foreground(termenv.ANSIGreen).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Completed in %v\n",
			prefix, symbol, duration)
	}

	delete(r.builds, spanID)
	delete(r.buffers, spanID)
}

// prefixLocked renders the colored [name] prefix for a build.
// Must be called with r.mu held.
func (r *Renderer) prefixLocked(state *buildState) string {
	return r.output.String(fmt.Sprintf("[%s]", state.name)).Foreground(state.color).String()
}

// flushBufferLocked flushes any remaining data in the buffer for a build.
// Must be called with r.mu held.
func (r *Renderer) flushBufferLocked(spanID string) {
	state, ok := r.builds[spanID]
	if !ok {
		return
	}

	buf := r.buffers[spanID]
	if buf.Len() > 0 {
		r.printLineLocked(state, buf.Bytes())
		buf.Reset()
	}
}

// printLineLocked prints a line with the build name prefix.
// Must be called with r.mu held.
func (r *Renderer) printLineLocked(state *buildState, line []byte) {
	// Trim trailing newline for cleaner output
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))

	if len(line) == 0 {
		return
	}

	_, _ = fmt.Fprintf(r.stdout, "[%s] %s\n", state.name, string(line))
}
