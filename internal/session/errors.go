package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState matches every StateError.
	ErrInvalidState            = errors.New("operation not allowed in current session state")
	ErrSessionClosed           = errors.New("session is closed")
	ErrAssessmentNotFound      = errors.New("assessment not found")
	ErrSubmitDeclined          = errors.New("submission was not confirmed")
	ErrSubmitSuperseded        = errors.New("submission already dispatched by another trigger")
	ErrSubmitAlreadyDispatched = errors.New("submission already dispatched")
)

// StateError rejects an operation attempted outside its valid state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: not allowed in state %s", e.Op, e.State)
}

func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

// LoadError is the reason a session could not leave LOADING.
type LoadError struct {
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return "load assessment: " + e.Reason
	}
	return fmt.Sprintf("load assessment: %s: %v", e.Reason, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SubmitError is the reason a dispatched submission failed.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit assessment: %v", e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }
