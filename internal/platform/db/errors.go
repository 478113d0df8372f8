package db

import (
	"context"
	"errors"
	"fmt"
)

// ErrTimeout marks a persistence call that exceeded its deadline. Callers can
// distinguish it from validation failures with errors.Is.
var ErrTimeout = errors.New("persistence timeout")

// MapError normalizes low-level persistence errors. Deadline expiry becomes
// ErrTimeout; everything else passes through unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// IsTimeout reports whether err is (or wraps) a persistence timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
