package tui

import "time"

// MsgPlanEmitted seeds the interface with the planned build commands.
// Commands are listed in execution order; Dependencies maps each command
// name to the names of the commands it waits for.
type MsgPlanEmitted struct {
	Commands     []string
	Dependencies map[string][]string
	Targets      []string
}

// MsgBuildStart marks a build command as running.
type MsgBuildStart struct {
	SpanID    string
	ParentID  string
	Name      string
	StartTime time.Time
}

// MsgBuildLog carries streamed build output for a running command.
type MsgBuildLog struct {
	SpanID string
	Data   []byte
}

// MsgBuildComplete marks a build command as finished.
// Err is nil when the build succeeded.
type MsgBuildComplete struct {
	SpanID  string
	EndTime time.Time
	Err     error
}

// tickMsg drives the periodic re-render that keeps running durations fresh.
type tickMsg time.Time
