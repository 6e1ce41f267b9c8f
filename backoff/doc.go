// Package backoff provides a small, generic retry controller that
// re-executes an operation with exponential backoff and jitter.
//
// The primary type is Controller[T], which runs an operation returning T,
// retries failed attempts up to a bounded number of times, and exposes its
// live status (is a retry pending, how many attempts failed, the last error)
// to other goroutines. Executions can be cancelled mid-flight.
//
// # Basic Usage
//
//	c := backoff.New[string](backoff.WithMaxRetries(3))
//	defer c.Close()
//
//	body, ok, err := c.Execute(ctx, func(ctx context.Context) (string, error) {
//	    return fetch(ctx, url)
//	})
//
// ok is false when the execution ended without a value: it was cancelled,
// the operation aborted, or the retry budget ran out while a failure
// callback was registered.
//
// # Delays
//
// After the attempt with index n (starting at 0) fails, the controller waits
//
//	base  = min(InitialDelay * Multiplier^n, MaxDelay)
//	delay = floor(base + base * Jitter * U)   // U uniform in [0, 1), in ms
//
// With the defaults (1s, 30s, x2, 5 retries, 10% jitter) the waits are
// roughly 1s, 2s, 4s, 8s and 16s. ComputeDelay exposes the formula.
//
// # Callbacks
//
//	c.ExecuteWithBackoff(ctx, op,
//	    func(v string) { log.Println("done:", v) },
//	    func(err error, attempts int) { log.Println("gave up after", attempts, err) },
//	)
//
// Without a failure callback an exhausted execution returns an error that
// matches both ErrRetriesExhausted and the final attempt's error via
// errors.Is.
//
// # Cancellation
//
// Cancel (or Reset) stops a pending delay, cancels the context handed to the
// operation and clears the state. Operations should watch their context;
// an error satisfying IsAborted is treated as an abort and never retried or
// reported. Close runs Cancel exactly once and is meant for teardown.
//
// Calling ExecuteWithBackoff again while a previous execution waits for its
// next attempt ends that wait; the previous in-flight operation, if any, is
// left running but can no longer change the controller's state.
//
// # Configuration Options
//
//   - WithInitialDelay(d), WithMaxDelay(d), WithMultiplier(m)
//   - WithMaxRetries(n), WithJitter(j)
//   - WithRateLimit(attemptsPerSecond, burst): throttle attempts
//   - WithLogger(l): structured logging via log/slog
//   - WithMetrics(m): Prometheus counters, histogram and gauge
//   - WithOnRetry(fn): hook invoked whenever a retry is scheduled
//   - WithRandSource(src): deterministic jitter for tests
package backoff
