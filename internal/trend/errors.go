package trend

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is matched by InsufficientDataError via errors.Is.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidInput is matched by InvalidInputError via errors.Is.
	ErrInvalidInput = errors.New("invalid input")
)

// InsufficientDataError is returned when a partition has no observations.
type InsufficientDataError struct {
	EntityID string
}

func (e *InsufficientDataError) Error() string {
	if e.EntityID == "" {
		return "insufficient data: partition has no observations"
	}
	return fmt.Sprintf("insufficient data: entity %q has no observations", e.EntityID)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// InvalidInputError reports an observation that cannot be fitted.
type InvalidInputError struct {
	Row      int
	EntityID string
	Field    string
	Reason   string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input at row %d (entity %q): %s %s", e.Row, e.EntityID, e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}
