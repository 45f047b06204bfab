package loader

import (
	"fmt"
	"strings"
)

// ValidationError lists the problems found in a suite document.
type ValidationError struct {
	File   string
	Errors []string
}

func (e *ValidationError) Error() string {
	name := e.File
	if name == "" {
		name = "document"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s: %s", name, e.Errors[0])
	}
	return fmt.Sprintf("%s: %d problems:\n  - %s", name, len(e.Errors), strings.Join(e.Errors, "\n  - "))
}

// CommandError reports a shell command that exited non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q exited with status %d", e.Command, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}
