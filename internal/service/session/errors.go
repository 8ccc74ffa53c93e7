package session

import (
	"errors"
	"fmt"
)

// Common error types for the session controller.
var (
	// ErrInvalidConfig indicates that the session configuration was rejected.
	// The session stays NotStarted.
	ErrInvalidConfig = errors.New("invalid session configuration")

	// ErrAlreadyStarted indicates that Start was called on a started session.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrNotStarted indicates an operation that needs a running session.
	ErrNotStarted = errors.New("session not started")

	// ErrEnded indicates an operation on a session that has been ended.
	ErrEnded = fmt.Errorf("%w: session ended", ErrNotStarted)

	// ErrOutOfSequence indicates an outcome submitted without a pending
	// presentation.
	ErrOutOfSequence = errors.New("outcome submitted out of sequence")
)
