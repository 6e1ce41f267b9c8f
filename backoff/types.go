package backoff

import "context"

// Operation is the unit of work retried by a Controller.
// ctx is cancelled when the controller is cancelled or the caller's context
// ends; an operation should return promptly once it observes that.
//
// Type parameters:
//   - T: The type of result produced by a successful attempt
type Operation[T any] func(ctx context.Context) (T, error)

// SuccessFunc receives the result of the successful attempt.
type SuccessFunc[T any] func(result T)

// FailureFunc receives the final error and the number of attempts made once
// the retry budget is exhausted. Supplying one turns exhaustion into a
// non-error return.
type FailureFunc func(err error, attempts int)

// RandSource yields uniform draws in [0, 1) for jitter.
type RandSource interface {
	Float64() float64
}

// State is a consistent snapshot of a controller's retry status.
//
// Fields:
//   - IsRetrying: true only while a delay before the next attempt is pending
//   - RetryCount: failed attempts in the current execution (0 before any failure)
//   - LastError: most recent non-abort failure, nil after success or cancel
type State struct {
	IsRetrying bool
	RetryCount int
	LastError  error
}
