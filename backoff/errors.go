package backoff

import (
	"context"
	"errors"
)

var (
	// ErrAborted may be returned by an operation to report that it stopped
	// because its context was cancelled. Such failures are never retried.
	ErrAborted = errors.New("operation aborted")

	// ErrRetriesExhausted wraps the final error when every attempt failed and
	// no FailureFunc was supplied.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// IsAborted reports whether err is abort-classified: the operation failed
// because cancellation was requested rather than on its own.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled)
}

// isAbortFor also treats the session context's own error (e.g. a parent
// deadline) as an abort once that context is done.
func isAbortFor(ctx context.Context, err error) bool {
	if IsAborted(err) {
		return true
	}
	if cause := ctx.Err(); cause != nil {
		return errors.Is(err, cause)
	}
	return false
}
