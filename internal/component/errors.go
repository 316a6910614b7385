package component

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRegistered is returned when registering a component under
	// a name that is already taken.
	ErrAlreadyRegistered = errors.New("component already registered")

	// ErrNotRegistered is returned when deregistering a component that is
	// not present in the registry.
	ErrNotRegistered = errors.New("component not registered")

	// ErrAlreadyRunning is returned by LoopingCall.Start when a timer task
	// is already present.
	ErrAlreadyRunning = errors.New("looping call already running")

	// ErrNotRunning is returned by LoopingCall.Stop when no timer task is
	// present.
	ErrNotRunning = errors.New("looping call not running")
)

// WrongStateError is returned when a transition is requested from a state
// outside the transition's accepted set.
type WrongStateError struct {
	Component string
	State     State
	Accepted  []State
}

func (e *WrongStateError) Error() string {
	return fmt.Sprintf("component %s: state %s not in accepted states %v",
		e.Component, e.State, e.Accepted)
}
