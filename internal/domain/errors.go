package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Check with errors.Is; the typed errors below unwrap to them.
var (
	ErrValidation  = errors.New("studyplan: validation failed")
	ErrNotFound    = errors.New("studyplan: not found")
	ErrPersistence = errors.New("studyplan: persistence failure")
)

// ValidationError reports malformed input. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports an unknown item for an owner.
type NotFoundError struct {
	OwnerID string
	ItemID  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v: item %q for owner %q", ErrNotFound, e.ItemID, e.OwnerID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PersistenceError wraps a failed durable write or read.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }
