package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a required record doesn't exist or is deleted.
	ErrNotFound = errors.New("strata: record not found")

	// ErrBackend is matched by every BackendError.
	ErrBackend = errors.New("strata: backend operation failed")

	// ErrNotPersistable is returned when saving or deleting an entity whose
	// type has no id field.
	ErrNotPersistable = errors.New("strata: type cannot be persisted on its own")

	// ErrMissingID is returned when deleting an entity that has no id.
	ErrMissingID = errors.New("strata: entity has no id")

	// ErrReferenceCycle is returned when a referenced save reaches an entity
	// that is already being saved further up the same reference chain.
	ErrReferenceCycle = errors.New("strata: reference cycle")

	// ErrClosed is returned by operations on a closed Store.
	ErrClosed = errors.New("strata: store is closed")
)

// BackendError wraps an opaque failure of a backend call.
type BackendError struct {
	// Op is the backend operation: "persist", "query" or "delete".
	Op   string
	Type string
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("strata: %s %s: %v", e.Op, e.Type, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) Is(target error) bool { return target == ErrBackend }
