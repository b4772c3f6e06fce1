package engine

import (
	"errors"
	"fmt"
)

// ErrCourseNotFound is returned when an operation targets a course the local
// mirror does not know about.
var ErrCourseNotFound = errors.New("course not found")

// ValidationError reports invalid user input. The operation did not start;
// nothing was persisted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// PersistenceError reports a failed remote read or write. The operation is
// not retried automatically; local state is left unchanged so the caller may
// retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
