package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/crewviz/reportd/internal/api/middleware"
	"github.com/crewviz/reportd/internal/domain"
	"github.com/crewviz/reportd/internal/ratelimit"
	"github.com/crewviz/reportd/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status
// codes based on the error type. This prevents leaking internal error
// types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, middleware.ErrInvalidToken),
		errors.Is(err, middleware.ErrExpiredToken):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden

	// Not found errors
	case store.IsNotFoundError(err):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Throttling
	case errors.Is(err, ratelimit.ErrThrottled):
		return http.StatusTooManyRequests

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidReportType),
		errors.Is(err, domain.ErrInvalidReportFormat),
		errors.Is(err, domain.ErrEmptyName),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, middleware.ErrInvalidToken),
		errors.Is(err, middleware.ErrExpiredToken):
		return "Invalid token"

	case errors.Is(err, domain.ErrUnauthorized):
		return "You are not authorized to access this report"

	case errors.Is(err, store.ErrJobNotFound):
		return "Report job not found"

	case errors.Is(err, store.ErrPresetNotFound):
		return "Report preset not found"

	case store.IsNotFoundError(err):
		return "Not found"

	case errors.Is(err, store.ErrPresetNameExists):
		return "A preset with this name already exists"

	case errors.Is(err, ratelimit.ErrThrottled):
		return "Too many concurrent report requests, try again shortly"

	case errors.Is(err, domain.ErrInvalidReportType):
		return "Invalid report type"

	case errors.Is(err, domain.ErrInvalidReportFormat):
		return "Invalid report format"

	case errors.Is(err, domain.ErrEmptyName):
		return "Name cannot be empty"

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		// Domain validation messages are written for end users and carry
		// no internal detail, so the wrapped message is safe to surface.
		return err.Error()

	default:
		if strings.Contains(err.Error(), "enqueue") {
			return "Failed to enqueue report job"
		}
		return "An unexpected error occurred"
	}
}
