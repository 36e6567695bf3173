package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors
	// (e.g., ErrJobNotFound, ErrPresetNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a preset with the same name for a user).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrNoPendingJobs is returned by the claim operation when no job is
	// available. This is not a failure: the worker simply has nothing to
	// do this tick.
	ErrNoPendingJobs = errors.New("no pending jobs")

	// ErrInvalidStatusTransition is returned when a job status update would
	// violate the forward-only lifecycle (e.g., completing a job that is
	// not in processing state).
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	// ErrJobNotFound indicates that the requested report job does not exist
	// in the store, or is not visible to the caller.
	ErrJobNotFound = fmt.Errorf("%w: report job", ErrNotFound)

	// ErrPresetNotFound indicates that the requested report preset does not
	// exist in the store, or is not visible to the caller.
	ErrPresetNotFound = fmt.Errorf("%w: report preset", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrPresetNameExists indicates that the user already has a preset with
	// the given name.
	ErrPresetNameExists = fmt.Errorf("%w: preset name", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
// This includes the generic ErrNotFound and all entity-specific not found errors.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "report_job", "report_preset")
	Operation string // The operation that failed (e.g., "create", "claim")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
