package domain

// Command is one external process invocation.
type Command struct {
	// Label identifies the invocation in logs and progress output.
	Label string
	// Program is the executable to run, resolved through PATH.
	Program string
	Args    []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
}

func (c *Command) String() string {
	return c.Label
}
