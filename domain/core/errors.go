package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound         = errors.New("resource not found")
	ErrRunNotFound      = fmt.Errorf("%w: run", ErrNotFound)
	ErrFeatureNotFound  = fmt.Errorf("%w: feature", ErrNotFound)
	ErrResponseNotFound = fmt.Errorf("%w: response", ErrNotFound)
	ErrArtifactNotFound = fmt.Errorf("%w: artifact", ErrNotFound)

	// Input errors
	ErrInvalidInputShape   = errors.New("invalid input shape")
	ErrInsufficientSamples = errors.New("insufficient samples")
	ErrInvalidPenalty      = errors.New("invalid penalty")
	ErrInvalidWeights      = errors.New("invalid channel weights")

	// Numeric errors
	ErrSingularSystem = errors.New("singular linear system")
	ErrDuplicateWrite = errors.New("score cell already written")

	// Determinism errors
	ErrMissingSeed = errors.New("randomized procedure requires an explicit seed")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

// NewShapeError reports a dimension mismatch for the named operand.
func NewShapeError(operand string, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInputShape, operand, fmt.Sprintf(format, args...))
}

// NewInsufficientSamplesError reports that have samples cannot support the requested statistic.
func NewInsufficientSamplesError(what string, have, need int) error {
	return fmt.Errorf("%w: %s has %d, need at least %d", ErrInsufficientSamples, what, have, need)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInputError reports whether err was caused by malformed caller input.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidInputShape) ||
		errors.Is(err, ErrInsufficientSamples) ||
		errors.Is(err, ErrInvalidPenalty) ||
		errors.Is(err, ErrInvalidWeights)
}
