package suite

import (
	"errors"
	"fmt"
)

// ErrArgumentRequired is raised (as a panic) by construction calls that are
// missing a description, closure or effect.
var ErrArgumentRequired = errors.New("argument required")

// errHalted unwinds the engine when the consumer stops iterating.
var errHalted = errors.New("suite: consumer stopped iteration")

func required(what string) {
	panic(fmt.Errorf("%w: %s", ErrArgumentRequired, what))
}

// HookError is returned when a before/after hook fails. It aborts the rest
// of the hook chain and, for before-all hooks, poisons the owning group for
// the remainder of the run.
type HookError struct {
	Hook *Hook
	Err  error
}

// Error implements the error interface.
func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook failed: %v", e.Hook.Name(), e.Err)
}

// Unwrap returns the underlying error.
func (e *HookError) Unwrap() error {
	return e.Err
}

// IsHookError checks if the error is a HookError.
func IsHookError(err error) bool {
	var hookErr *HookError
	return errors.As(err, &hookErr)
}

// PanicError carries a value recovered from a panicking effect.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the recovered value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
