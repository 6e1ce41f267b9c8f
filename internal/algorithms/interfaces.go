package algorithms

import "time"

// BackoffStrategy defines how retry delays are calculated (internal only).
//
// Note: This interface is exported so the backoff package can hold a strategy,
// but implementations remain internal.
type BackoffStrategy interface {
	// NextDelay calculates the delay before the next retry attempt.
	// attemptNumber is 0-indexed (0 = the wait after the initial failure).
	// Implementations are pure: the same attempt may be asked for any number of
	// times, including after the owning session was cancelled.
	NextDelay(attemptNumber int) time.Duration
}

// RandSource yields uniform draws in [0, 1).
// *rand.Rand satisfies it; tests inject fixed sources to pin jitter.
type RandSource interface {
	Float64() float64
}

// Params are the inputs of the delay formula.
type Params struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64 // fraction in [0, 1]
}
