// Package domain defines the core reporting entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidFormat is returned when data is not in the expected format.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidReportType is returned when a report type is not one of
	// the enumerated types.
	ErrInvalidReportType = errors.New("invalid report type")

	// ErrInvalidReportFormat is returned when an output format is not one
	// of the enumerated formats.
	ErrInvalidReportFormat = errors.New("invalid report format")

	// ErrInvalidTransition is returned when a job status change would
	// violate the forward-only lifecycle.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrEmptyName is returned when a required name field is empty.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrUnauthorized is returned when an operation is not permitted for
	// the caller's scope.
	ErrUnauthorized = errors.New("unauthorized operation")
)
