package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Renderer wraps the Bubble Tea model as a ports.Renderer.
type Renderer struct {
	program *tea.Program
	model   *Model
	errCh   chan error
}

// NewRenderer creates a new TUI renderer.
func NewRenderer(model *Model, opts ...tea.ProgramOption) *Renderer {
	program := tea.NewProgram(model, opts...)
	return &Renderer{
		program: program,
		model:   model,
		errCh:   make(chan error, 1),
	}
}

// Start launches the TUI in a background goroutine.
func (r *Renderer) Start(_ context.Context) error {
	go func() {
		_, err := r.program.Run()
		r.errCh <- err
	}()
	return nil
}

// Stop signals the TUI to quit.
func (r *Renderer) Stop() error {
	r.program.Quit()
	return nil
}

// Wait blocks until the TUI has terminated.
func (r *Renderer) Wait() error {
	return <-r.errCh
}

// OnPlanEmit forwards the planned build commands to the TUI.
func (r *Renderer) OnPlanEmit(commands []string, deps map[string][]string, targets []string) {
	r.program.Send(MsgPlanEmitted{
		Commands:     commands,
		Dependencies: deps,
		Targets:      targets,
	})
}

// OnBuildStart forwards build start events to the TUI.
func (r *Renderer) OnBuildStart(spanID, parentID, name string, startTime time.Time) {
	r.program.Send(MsgBuildStart{
		SpanID:    spanID,
		ParentID:  parentID,
		Name:      name,
		StartTime: startTime,
	})
}

// OnBuildLog forwards streamed build output to the TUI.
func (r *Renderer) OnBuildLog(spanID string, data []byte) {
	r.program.Send(MsgBuildLog{
		SpanID: spanID,
		Data:   data,
	})
}

// OnBuildComplete forwards build completion events to the TUI.
func (r *Renderer) OnBuildComplete(spanID string, endTime time.Time, err error) {
	r.program.Send(MsgBuildComplete{
		SpanID:  spanID,
		EndTime: endTime,
		Err:     err,
	})
}

// Program returns the underlying tea.Program for testing.
func (r *Renderer) Program() *tea.Program {
	return r.program
}
