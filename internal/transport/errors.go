package transport

import (
	"context"
	"errors"
	"fmt"
)

// ErrMutationConflict marks a mutation whose target entity was not found
// or is already in a terminal state. Surfaced to the caller after
// optimistic rollback, never retried.
var ErrMutationConflict = errors.New("mutation conflict")

// ClientError is a 4xx-class failure. Never retried.
type ClientError struct {
	Status int
	Msg    string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client error: status %d: %s", e.Status, e.Msg)
}

// TransientError is a network or 5xx-class failure, retried with
// exponential backoff by the cache coordinator.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transient error: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ValidationError marks a malformed payload failing schema checks. The
// hierarchy store degrades gracefully on these; they are not retried.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Msg)
}

// Retryable reports whether a fetch failure is worth retrying. Client
// errors, validation errors, mutation conflicts and context cancellation
// are permanent; everything else is treated as transient.
func Retryable(err error) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return false
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return false
	}
	if errors.Is(err, ErrMutationConflict) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
