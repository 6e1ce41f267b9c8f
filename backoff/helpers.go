package backoff

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/utkarsh5026/retryme/internal/algorithms"
)

// sharedSource backs every controller and call that did not inject its own.
var sharedSource = algorithms.NewLockedSource()

// ComputeDelay returns the jittered delay to wait after the given 0-indexed
// attempt failed: floor(base + base*jitter*U) where
// base = min(initialDelay*multiplier^attempt, maxDelay).
// For example, with the defaults and no jitter:
//   - attempt 0: 1s
//   - attempt 1: 2s
//   - attempt 2: 4s
func ComputeDelay(attempt int, cfg Config) time.Duration {
	return ComputeDelayWith(attempt, cfg, nil)
}

// ComputeDelayWith is ComputeDelay with an explicit random source.
// A nil source falls back to a process-wide one.
func ComputeDelayWith(attempt int, cfg Config, src RandSource) time.Duration {
	if src == nil {
		src = sharedSource
	}
	return algorithms.NewBackoffStrategy(cfg.params(), src).NextDelay(attempt)
}

// DelayBounds returns the inclusive lower and exclusive upper bound of the
// delay computed for attempt.
func DelayBounds(attempt int, cfg Config) (lo, hi time.Duration) {
	lo = algorithms.BaseDelay(attempt, cfg.params())
	hi = lo + time.Duration(float64(lo)*cfg.Jitter)
	return lo, hi
}

// invokeWithRecovery runs one attempt. If a panic occurs, it's converted to
// an error so a misbehaving operation counts as an ordinary failed attempt.
func invokeWithRecovery[T any](ctx context.Context, op Operation[T]) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("operation panic: %v\nstack trace:\n%s", r, buf[:n])
		}
	}()

	return op(ctx)
}
