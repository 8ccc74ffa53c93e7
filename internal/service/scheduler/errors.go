package scheduler

import (
	"errors"
	"fmt"
)

// Common error types for the scheduler.
var (
	// ErrExhausted indicates that no card can be selected under the current
	// query. It is a normal terminal state, not a failure; the two causes
	// below wrap it so callers can tell them apart.
	ErrExhausted = errors.New("deck exhausted")

	// ErrNoMatchingCards indicates that no card in the store matches the
	// language, tier and mode filters.
	ErrNoMatchingCards = fmt.Errorf("%w: no cards match the filters", ErrExhausted)

	// ErrNothingDue indicates that matching cards exist but none is due and
	// no unseen card may be introduced.
	ErrNothingDue = fmt.Errorf("%w: nothing due", ErrExhausted)

	// ErrUnknownCard indicates that an outcome was recorded for an id the
	// store does not hold.
	ErrUnknownCard = errors.New("unknown card")

	// ErrModeNotSupported indicates that an outcome names a mode the card
	// cannot be presented in.
	ErrModeNotSupported = errors.New("mode not supported by card")
)

// ServiceError wraps errors from the scheduler with additional context.
// This allows consumers to differentiate between different types of service errors
// using errors.As instead of string matching.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "next_card", "record_outcome")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError returns a new ServiceError for the given operation.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
