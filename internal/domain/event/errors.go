package event

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("event not found")

// ErrConflict means the stored version moved since the event was read.
var ErrConflict = errors.New("event was modified concurrently")

var ErrInvalidTransition = errors.New("invalid transition")

// TransitionError carries the attempted operation and the status it was attempted from.
type TransitionError struct {
	Op     string
	From   Status
	Reason string // optional, e.g. "event has already started"
}

func NewTransitionError(op string, from Status) *TransitionError {
	return &TransitionError{Op: op, From: from}
}

func (e *TransitionError) WithReason(reason string) *TransitionError {
	e.Reason = reason
	return e
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s an event in status %q: %s", e.Op, e.From, e.Reason)
	}
	return fmt.Sprintf("cannot %s an event in status %q", e.Op, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
