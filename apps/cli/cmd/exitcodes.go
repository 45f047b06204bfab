package cmd

import (
	"errors"
	"fmt"
)

// Exit codes for hitsuite CLI
const (
	// ExitSuccess indicates all specs passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more specs or hooks failed
	ExitTestFailure = 1

	// ExitParseError indicates a suite file failed to load
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries the exit code a command failed with. Silent errors have
// already been reported by a formatter.
type exitError struct {
	code   int
	err    error
	silent bool
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// exitCode maps err to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitTestFailure
}
