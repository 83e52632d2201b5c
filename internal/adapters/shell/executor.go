// Package shell runs external commands for fetches, renders and builds.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/creack/pty"
	"go.kiln.dev/kiln/internal/core/domain"
	"go.kiln.dev/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// Executor implements ports.Executor using os/exec. Interactive executors
// run streamed commands under a pseudo terminal.
type Executor struct {
	logger      ports.Logger
	interactive bool
}

// NewExecutor creates an Executor. Pass interactive when the process is
// attached to a terminal.
func NewExecutor(logger ports.Logger, interactive bool) *Executor {
	return &Executor{
		logger:      logger,
		interactive: interactive,
	}
}

// Execute runs the command with separated output streams and waits for it
// to complete.
func (e *Executor) Execute(ctx context.Context, cmd *domain.Command, env []string, stdout, stderr io.Writer) error {
	proc := newProcess(ctx, cmd, env)
	proc.Stdout = stdout
	proc.Stderr = stderr

	e.logger.Info("running " + cmd.Label)
	if err := proc.Run(); err != nil {
		return commandError(err, cmd)
	}

	return nil
}

// Stream runs the command with stdout and stderr merged into output. In
// interactive mode the command runs under a pseudo terminal: build tools
// that check for one keep their line buffered progress output instead of
// falling back to block buffering.
func (e *Executor) Stream(ctx context.Context, cmd *domain.Command, env []string, output io.Writer) error {
	proc := newProcess(ctx, cmd, env)

	e.logger.Info("running " + cmd.Label)
	if !e.interactive {
		proc.Stdout = output
		proc.Stderr = output
		if err := proc.Run(); err != nil {
			return commandError(err, cmd)
		}
		return nil
	}

	ptmx, err := pty.Start(proc)
	if err != nil {
		return commandError(err, cmd)
	}

	// The copy loop drains the terminal until the command closes its end.
	// Waiting on it keeps trailing output from being lost.
	lines := &lineWriter{out: output}
	ioDone := make(chan struct{})
	go func() {
		defer close(ioDone)
		defer func() { _ = ptmx.Close() }()
		_, _ = io.Copy(lines, ptmx)
		_ = lines.Close()
	}()

	err = proc.Wait()
	<-ioDone
	if err != nil {
		return commandError(err, cmd)
	}

	return nil
}

// newProcess builds the exec.Cmd for a command invocation. Commands inherit
// the full process environment: conda and git both depend on the ambient
// installation their activation scripts configured.
func newProcess(ctx context.Context, cmd *domain.Command, env []string) *exec.Cmd {
	proc := exec.CommandContext(ctx, cmd.Program, cmd.Args...) //nolint:gosec // Programs and arguments come from the build configuration.
	proc.Dir = cmd.Dir
	proc.Env = append(os.Environ(), env...)
	return proc
}

func commandError(err error, cmd *domain.Command) error {
	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	cmdErr := zerr.Wrap(err, domain.ErrCommandExecutionFailed.Error())
	cmdErr = zerr.With(cmdErr, "command", cmd.Label)
	return zerr.With(cmdErr, "exit_code", exitCode)
}

// lineWriter rebuffers raw terminal output into lines, dropping the
// carriage returns a pseudo terminal appends.
type lineWriter struct {
	out io.Writer
	buf []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)

	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}

		w.writeLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}

	return len(p), nil
}

func (w *lineWriter) Close() error {
	if len(w.buf) > 0 {
		w.writeLine(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *lineWriter) writeLine(line []byte) {
	msg := strings.TrimSuffix(string(line), "\r")
	_, _ = io.WriteString(w.out, msg+"\n")
}
