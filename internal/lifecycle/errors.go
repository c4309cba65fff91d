package lifecycle

import (
	"errors"
	"fmt"
)

// LifecycleError is a typed error describing why the agent could not be
// acquired or released.
type LifecycleError struct {
	Kind    ErrorKind
	State   State
	Message string
	Cause   error
}

// ErrorKind categorizes a LifecycleError.
type ErrorKind int

const (
	ErrKindBuild ErrorKind = iota
	ErrKindLaunch
	ErrKindInvalidTransition
	ErrKindTerminate
)

func (e *LifecycleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *LifecycleError) Unwrap() error {
	return e.Cause
}

// NewBuildError wraps a failed build command.
func NewBuildError(command string, cause error) *LifecycleError {
	return &LifecycleError{
		Kind:    ErrKindBuild,
		State:   StateBuilding,
		Message: fmt.Sprintf("build command %q failed", command),
		Cause:   cause,
	}
}

// NewLaunchError wraps a failure to start the agent executable.
func NewLaunchError(path string, cause error) *LifecycleError {
	return &LifecycleError{
		Kind:    ErrKindLaunch,
		State:   StateBuilding,
		Message: fmt.Sprintf("cannot launch agent %s", path),
		Cause:   cause,
	}
}

// NewInvalidTransitionError reports a transition the state machine forbids.
func NewInvalidTransitionError(from, to State) *LifecycleError {
	return &LifecycleError{
		Kind:    ErrKindInvalidTransition,
		State:   from,
		Message: fmt.Sprintf("invalid lifecycle transition from %s to %s", from, to),
	}
}

// NewTerminateError wraps a failure to stop the agent.
func NewTerminateError(pid int, cause error) *LifecycleError {
	return &LifecycleError{
		Kind:    ErrKindTerminate,
		State:   StateTerminating,
		Message: fmt.Sprintf("cannot stop agent pid %d", pid),
		Cause:   cause,
	}
}

// AsLifecycleError attempts to convert an error to a LifecycleError.
// Returns nil if not possible.
func AsLifecycleError(err error) *LifecycleError {
	var lcErr *LifecycleError
	if errors.As(err, &lcErr) {
		return lcErr
	}
	return nil
}

// IsBuildFailure checks if the error is a build failure.
func IsBuildFailure(err error) bool {
	lcErr := AsLifecycleError(err)
	return lcErr != nil && lcErr.Kind == ErrKindBuild
}

// IsLaunchFailure checks if the error is a launch failure.
func IsLaunchFailure(err error) bool {
	lcErr := AsLifecycleError(err)
	return lcErr != nil && lcErr.Kind == ErrKindLaunch
}
