package process

import (
	"errors"
	"fmt"
)

// Process subsystem errors.
var (
	ErrProcessNotFound = errors.New("process not found")
	ErrProcessLimit    = errors.New("process table full")
	ErrPIDExhausted    = errors.New("no free pid")
	ErrNotStopped      = errors.New("process is not stopped")
	ErrStopped         = errors.New("process is stopped")
)

// ForkError reports a failed fork.
type ForkError struct {
	ParentPID int
	Err       error
}

func (e *ForkError) Error() string {
	return fmt.Sprintf("fork from pid %d failed: %v", e.ParentPID, e.Err)
}

func (e *ForkError) Unwrap() error { return e.Err }

// ExecError reports a failed exec.
type ExecError struct {
	PID     int
	Command string
	Err     error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("exec %q in pid %d failed: %v", e.Command, e.PID, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// TerminationError reports a failed termination.
type TerminationError struct {
	PID int
	Err error
}

func (e *TerminationError) Error() string {
	return fmt.Sprintf("terminate pid %d failed: %v", e.PID, e.Err)
}

func (e *TerminationError) Unwrap() error { return e.Err }

// StateError reports an invalid state transition.
type StateError struct {
	PID  int
	From State
	To   State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("pid %d: invalid transition %s -> %s", e.PID, e.From, e.To)
}
