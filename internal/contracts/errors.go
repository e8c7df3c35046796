package contracts

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoData means the provider has nothing for the symbol (delisted, unknown, no trades)
	ErrNoData = errors.New("no data available")

	// ErrRetriesExhausted means a transient failure outlived the retry budget
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrInvalidFilter is returned for malformed scan filters
	ErrInvalidFilter = errors.New("invalid scan filter")
)

// TransientError marks a failure that may succeed on retry
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is worth retrying.
// Context errors and ErrNoData are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoData) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *TransientError
	return errors.As(err, &te)
}
