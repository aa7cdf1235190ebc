package broker

import (
	"errors"
	"fmt"
)

// ErrDisconnected is returned by broker calls while the session is down.
// It is always transient.
var ErrDisconnected = errors.New("broker session disconnected")

// TransientError marks a failure that is safe to retry: timeouts,
// requotes, temporary transport loss.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks a failure that must not be retried: safety-gate
// violations, malformed responses, rejected order parameters.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// Fatal wraps err as non-retryable.
func Fatal(op string, err error) error {
	return &FatalError{Op: op, Err: err}
}

// IsTransient reports whether err is retryable. Disconnection counts as
// transient even when not wrapped.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, ErrDisconnected)
}

// IsFatal reports whether err must not be retried. Fatal wins over
// transient when both appear in a chain.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
