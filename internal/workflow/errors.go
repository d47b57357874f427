package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// GuardError reports a transition whose preconditions are not met. Nothing
// has been written when it is returned.
type GuardError struct {
	// Verb names the attempted operation, e.g. "approve work".
	Verb string
	// Reason says what is wrong.
	Reason string
	// Items lists the specific missing or unmet entries.
	Items []string
}

func (e *GuardError) Error() string {
	msg := fmt.Sprintf("Cannot %s: %s", e.Verb, e.Reason)
	if len(e.Items) > 0 {
		msg += ": " + strings.Join(e.Items, ", ")
	}
	return msg
}

// IsGuardViolation reports whether err is, or wraps, a *GuardError.
func IsGuardViolation(err error) bool {
	var g *GuardError
	return errors.As(err, &g)
}

// PersistenceError reports a failed save to the tracker.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
