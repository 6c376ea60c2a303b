// Package errors provides the structured error type shared by the store,
// transport and sync layers.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error into the categories callers branch on.
type Kind string

const (
	// KindNotReady marks operations attempted before the local store
	// finished initializing. Callers treat this as benign.
	KindNotReady Kind = "NOT_READY"

	// KindConflict marks unique-index violations (e.g. duplicate email).
	KindConflict Kind = "CONFLICT"

	// KindUnavailable marks network or remote-store failures.
	KindUnavailable Kind = "UNAVAILABLE"

	// KindNotFound marks lookups for records that do not exist.
	KindNotFound Kind = "NOT_FOUND"

	// KindValidation marks malformed input rejected before any write.
	KindValidation Kind = "VALIDATION"

	// KindInternal is the catch-all for storage and programming faults.
	KindInternal Kind = "INTERNAL"
)

// Operation names the logical operation during which an error occurred,
// e.g. "sqlite.Add" or "syncer.SyncToCloud".
type Operation string

// Component names the subsystem that produced the error.
type Component string

// StoreError is the structured error used throughout the data layer.
type StoreError struct {
	Op        Operation
	Component Component
	Kind      Kind
	Err       error
	Retryable bool
	Metadata  map[string]interface{}
}

func (e *StoreError) Error() string {
	msg := string(e.Op)
	if msg == "" {
		msg = "operation"
	}
	if e.Component != "" {
		msg = fmt.Sprintf("%s failed in %s", msg, e.Component)
	} else {
		msg += " failed"
	}
	if e.Kind != "" {
		msg += fmt.Sprintf(" [%s]", e.Kind)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *StoreError) Unwrap() error { return e.Err }

// E builds a StoreError from a variadic list of arguments. Recognized types:
// Operation, Component, Kind, error, bool (retryable) and string (wrapped as
// a message when no error was given). Later arguments of the same type win.
func E(args ...interface{}) *StoreError {
	e := &StoreError{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Operation:
			e.Op = a
		case Component:
			e.Component = a
		case Kind:
			e.Kind = a
		case *StoreError:
			e.Err = a
		case error:
			e.Err = a
		case bool:
			e.Retryable = a
		case string:
			if e.Err == nil {
				e.Err = errors.New(a)
			} else {
				e.Err = fmt.Errorf("%s: %w", a, e.Err)
			}
		case map[string]interface{}:
			e.Metadata = a
		}
	}
	if e.Kind == "" {
		// A wrap without an explicit kind keeps the wrapped one.
		var inner *StoreError
		if errors.As(e.Err, &inner) {
			e.Kind = inner.Kind
			e.Retryable = e.Retryable || inner.Retryable
		} else {
			e.Kind = KindInternal
		}
	}
	if !e.Retryable {
		// Unavailable and not-ready conditions are transient by nature.
		e.Retryable = e.Kind == KindUnavailable || e.Kind == KindNotReady
	}
	return e
}

// KindOf returns the Kind of err if it is (or wraps) a StoreError,
// KindInternal otherwise.
func KindOf(err error) Kind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// IsRetryable reports whether err is a retryable StoreError.
func IsRetryable(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}
