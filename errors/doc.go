// Package errors provides standardized error handling for fingercloak-api
// components. It classifies errors into the categories the API surfaces to
// callers (invalid argument, not found, backend unavailable/transient) plus
// a fatal class for unrecoverable conditions, and offers helper functions
// for consistent wrapping and classification across the system.
package errors
