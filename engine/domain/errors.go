package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the retrieval pipeline.
var (
	// ErrExtraction: an embedding-provider response could not be parsed
	// into a numeric vector.
	ErrExtraction = errors.New("embedding extraction failed")
	// ErrNotFound: an index or metadata artifact is missing on load.
	ErrNotFound = errors.New("index not found")
	// ErrDimensionMismatch: vectors of inconsistent dimension passed to a
	// build, or a query vector disagreeing with the loaded index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrNotBuilt: search or persist attempted before build/load.
	ErrNotBuilt = errors.New("index not built")
	// ErrValidation: empty vendor source, zero valid texts, empty eval set.
	ErrValidation = errors.New("validation failed")
)

// ValidationError wraps ErrValidation (or another sentinel) with the field
// and value that failed.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError around ErrValidation.
func NewValidationError(field, value string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: ErrValidation}
}
