// Package apperr defines the failure categories that collaborators translate
// their errors into before they reach the booking state machine.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient marks a recoverable outage of an external service.
	ErrTransient = errors.New("transient failure")
	// ErrRace marks a lost race on a shared external resource.
	ErrRace = errors.New("race condition")
	// ErrIntegrity marks stale, tampered or corrupted data.
	ErrIntegrity = errors.New("data integrity violation")
	// ErrFatal marks an unexpected failure that aborts the current flow.
	ErrFatal = errors.New("fatal failure")
)

// categorized keeps the original error chain intact while adding a category.
type categorized struct {
	category error
	op       string
	err      error
}

func (e *categorized) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.op, e.category)
	}
	return fmt.Sprintf("%s: %s: %v", e.op, e.category, e.err)
}

func (e *categorized) Unwrap() []error {
	if e.err == nil {
		return []error{e.category}
	}
	return []error{e.category, e.err}
}

func wrap(category error, op string, err error) error {
	return &categorized{category: category, op: op, err: err}
}

// Transient tags err as a recoverable external failure.
func Transient(op string, err error) error { return wrap(ErrTransient, op, err) }

// Race tags err as a lost race.
func Race(op string, err error) error { return wrap(ErrRace, op, err) }

// Integrity tags err as a data integrity violation.
func Integrity(op string, err error) error { return wrap(ErrIntegrity, op, err) }

// Fatal tags err as unexpected.
func Fatal(op string, err error) error { return wrap(ErrFatal, op, err) }

// Category returns the category sentinel carried by err. Uncategorized errors
// are reported as ErrFatal.
func Category(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRace):
		return ErrRace
	case errors.Is(err, ErrIntegrity):
		return ErrIntegrity
	case errors.Is(err, ErrTransient):
		return ErrTransient
	default:
		return ErrFatal
	}
}
