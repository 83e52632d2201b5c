// Package detector selects the output mode for a run by inspecting the
// terminal and the environment.
package detector

import (
	"os"

	"golang.org/x/term"
)

// OutputMode represents the rendering mode for the application.
type OutputMode int

const (
	// ModeAuto automatically detects the appropriate mode.
	ModeAuto OutputMode = iota
	// ModeTUI forces the interactive build progress renderer.
	ModeTUI
	// ModeLinear forces the plain line-oriented renderer.
	ModeLinear
)

// ciVars are the environment variables continuous integration systems set.
var ciVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "TRAVIS"}

// DetectEnvironment returns the recommended output mode. Interactive
// rendering needs a real terminal on stdout and no CI environment.
func DetectEnvironment() OutputMode {
	if !term.IsTerminal(int(os.Stdout.Fd())) || os.Getenv("TERM") == "dumb" {
		return ModeLinear
	}
	if isCI() {
		return ModeLinear
	}
	return ModeTUI
}

func isCI() bool {
	for _, name := range ciVars {
		switch os.Getenv(name) {
		case "true", "1":
			return true
		}
	}
	return false
}

// ResolveMode applies the user's output flag to the detected mode.
// Recognized values are "auto", "tui", "linear" and "ci"; anything else
// falls back to detection.
func ResolveMode(autoDetected OutputMode, userFlag string) OutputMode {
	switch userFlag {
	case "tui":
		return ModeTUI
	case "linear", "ci":
		return ModeLinear
	default:
		return autoDetected
	}
}
