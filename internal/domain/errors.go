package domain

import (
	"errors"
	"fmt"
)

// ErrNoBars is returned when the venue has no bars for the requested window.
var ErrNoBars = errors.New("no bars for requested window")

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// RejectionError is a venue-declined order. A 403 means a transient block
// (e.g. a short-sale restriction on the symbol) and the exit should be
// retried on the next monitor tick; anything else is terminal.
type RejectionError struct {
	Symbol string
	Code   int
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("order rejected for %s (%d): %s", e.Symbol, e.Code, e.Reason)
}

func (e *RejectionError) Retryable() bool {
	return e.Code == 403
}

// IsRetryableRejection reports whether err is a venue rejection that should
// put the symbol on the exit retry queue.
func IsRetryableRejection(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej) && rej.Retryable()
}
