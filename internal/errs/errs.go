// Package errs defines the error classes shared by the session, note
// repository and alert packages.
package errs

import (
	"errors"
	"fmt"
)

// ErrNotSignedIn is returned when an operation needs a session and none is active.
var ErrNotSignedIn = errors.New("not signed in")

// ValidationError reports a required field that is missing or malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a note that does not exist or is not visible to the current user.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("note %s not found", e.ID)
}

// StoreError wraps a failure reported by the hosted backend or the network.
type StoreError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("store %s: %s (status %d)", e.Op, e.Message, e.Status)
	case e.Message != "":
		return fmt.Sprintf("store %s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("store %s failed", e.Op)
	}
}

func (e *StoreError) Unwrap() error { return e.Err }

// PermissionError reports a platform permission that has not been granted.
// It is non-fatal: callers degrade silently.
type PermissionError struct {
	Permission string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s permission not granted", e.Permission)
}

// Validation builds a ValidationError.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFound builds a NotFoundError.
func NotFound(id string) error {
	return &NotFoundError{ID: id}
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsStore reports whether err is, or wraps, a StoreError.
func IsStore(err error) bool {
	var target *StoreError
	return errors.As(err, &target)
}

// IsPermission reports whether err is, or wraps, a PermissionError.
func IsPermission(err error) bool {
	var target *PermissionError
	return errors.As(err, &target)
}
