package ports

import (
	"context"
	"time"
)

// Renderer is the abstraction for output rendering.
// It decouples telemetry collection from presentation logic,
// allowing the same event stream to drive either a rich TUI or linear CI logs.
//
//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// Start initializes the renderer and begins its lifecycle.
	// For asynchronous renderers (like TUI), this may launch background goroutines.
	Start(ctx context.Context) error

	// Stop signals the renderer to stop accepting new events and prepare for shutdown.
	// It should flush any buffered output.
	Stop() error

	// Wait blocks until the renderer has fully terminated.
	// For synchronous renderers, this may return immediately.
	Wait() error

	// OnPlanEmit is called when the scheduler has planned the build.
	// commands: list of all build command names in execution order
	// deps: dependency map (command -> list of dependencies)
	// targets: the user-requested environment files
	OnPlanEmit(commands []string, deps map[string][]string, targets []string)

	// OnBuildStart is called when a build command begins execution.
	// spanID: unique identifier for this execution
	// parentID: spanID of the parent (empty if root)
	// name: human-readable build command name
	// startTime: when the build started
	OnBuildStart(spanID, parentID, name string, startTime time.Time)

	// OnBuildLog is called when a build emits output.
	// spanID: identifier for the build
	// data: raw log bytes (may contain partial lines or ANSI sequences)
	OnBuildLog(spanID string, data []byte)

	// OnBuildComplete is called when a build command finishes execution.
	// spanID: identifier for the build
	// endTime: when the build completed
	// err: nil if successful, error otherwise
	OnBuildComplete(spanID string, endTime time.Time, err error)
}
