// Package output constructs the termenv outputs that the renderers and the
// logger write through, honoring NO_COLOR and the terminal capabilities.
package output

import (
	"io"
	"os"

	"github.com/muesli/termenv"
)

// ColorProfile detects the richest profile the terminal supports. NO_COLOR
// disables color entirely.
func ColorProfile() termenv.Profile {
	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

// ColorProfileANSI caps the profile at basic ANSI, the safe choice for CI
// logs. NO_COLOR disables color entirely.
func ColorProfileANSI() termenv.Profile {
	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	return termenv.ANSI
}

// New creates a termenv output on w with the detected profile.
func New(w io.Writer, opts ...termenv.OutputOption) *termenv.Output {
	return NewWithProfile(w, ColorProfile, opts...)
}

// NewWithProfile creates a termenv output with an explicit profile selector.
// A nil writer falls back to stderr.
func NewWithProfile(w io.Writer, profile func() termenv.Profile, opts ...termenv.OutputOption) *termenv.Output {
	if w == nil {
		w = os.Stderr
	}

	opts = append(opts,
		termenv.WithProfile(profile()),
		termenv.WithTTY(true),
	)
	return termenv.NewOutput(w, opts...)
}
