// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"

	"go.kiln.dev/kiln/internal/core/domain"
)

// Executor defines the interface for running external commands.
//
//go:generate mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs the given command with the specified environment and
	// separate output streams, for callers that parse stdout.
	//
	// The env parameter contains environment variables in "KEY=VALUE" format
	// appended to the inherited process environment.
	//
	// It returns an error if the command cannot be started or exits non-zero.
	Execute(ctx context.Context, cmd *domain.Command, env []string, stdout, stderr io.Writer) error

	// Stream runs the given command with stdout and stderr merged into
	// output. Interactive executors run the command under a pseudo
	// terminal, so tools that check for one keep their live progress
	// output.
	Stream(ctx context.Context, cmd *domain.Command, env []string, output io.Writer) error
}
