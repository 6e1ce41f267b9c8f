package backoff

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/utkarsh5026/retryme/internal/algorithms"
)

// Controller re-executes an operation with exponential backoff and exposes
// its live retry status. A Controller runs at most one current execution:
// starting a new one supersedes the previous execution's pending delay.
// All methods are safe for concurrent use.
//
// Type parameters:
//   - T: The result type produced by the retried operation
type Controller[T any] struct {
	config   Config
	strategy algorithms.BackoffStrategy
	limiter  *rate.Limiter
	logger   *slog.Logger
	metrics  *Metrics
	onRetry  func(attempt int, err error, delay time.Duration)

	mu      sync.Mutex
	state   State
	current *session

	closeOnce sync.Once
}

// New creates a Controller with the specified configuration options.
//
// Example:
//
//	c := backoff.New[*http.Response](
//	    backoff.WithInitialDelay(200*time.Millisecond),
//	    backoff.WithMaxRetries(3),
//	)
//	defer c.Close()
func New[T any](opts ...Option) *Controller[T] {
	cfg := createConfig(opts...)

	rng := cfg.rng
	if rng == nil {
		rng = sharedSource
	}

	return &Controller[T]{
		config:   cfg.Config,
		strategy: algorithms.NewBackoffStrategy(cfg.params(), rng),
		limiter:  cfg.rateLimiter,
		logger:   cfg.logger,
		metrics:  cfg.metrics,
		onRetry:  cfg.onRetry,
	}
}

// Config returns the resolved configuration, defaults applied.
func (c *Controller[T]) Config() Config {
	return c.config
}

// State returns a consistent snapshot of the retry status.
func (c *Controller[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// NextDelay computes the delay for the currently observed retry count.
// It is meant for display ("next retry in ~Xms"): the delay actually waited
// was computed from the attempt index when it was scheduled and drew its own
// jitter, so the two only approximately agree.
func (c *Controller[T]) NextDelay() time.Duration {
	return c.strategy.NextDelay(c.State().RetryCount)
}

// Execute is ExecuteWithBackoff without callbacks.
func (c *Controller[T]) Execute(ctx context.Context, op Operation[T]) (T, bool, error) {
	return c.ExecuteWithBackoff(ctx, op, nil, nil)
}

// ExecuteWithBackoff runs op, retrying failed attempts after exponentially
// growing delays until it succeeds or MaxRetries retries were used.
//
// Parameters:
//   - ctx: Parent of the execution's cancellation context
//   - op: The operation to run; receives the cancellation context
//   - onSuccess: Optional, called with the successful result
//   - onFailure: Optional, called with the final error and attempt count on exhaustion
//
// Returns:
//   - result: The operation's result when ok is true
//   - ok: false when the execution ended without a value (aborted,
//     cancelled or superseded during a delay, or exhausted with onFailure set)
//   - err: Non-nil only when retries were exhausted and onFailure is nil;
//     it wraps both ErrRetriesExhausted and the final error
//
// Starting an execution cancels the previous execution's pending delay but
// does not cancel its in-flight operation call.
func (c *Controller[T]) ExecuteWithBackoff(
	ctx context.Context,
	op Operation[T],
	onSuccess SuccessFunc[T],
	onFailure FailureFunc,
) (result T, ok bool, err error) {
	return c.run(c.begin(ctx), op, onSuccess, onFailure)
}

// Go starts ExecuteWithBackoff in a new goroutine and returns a Future for
// its outcome. The execution becomes the current one before Go returns.
func (c *Controller[T]) Go(
	ctx context.Context,
	op Operation[T],
	onSuccess SuccessFunc[T],
	onFailure FailureFunc,
) *Future[T] {
	s := c.begin(ctx)
	future := newFuture[T]()

	go func() {
		value, ok, err := c.run(s, op, onSuccess, onFailure)
		future.complete(value, ok, err)
	}()

	return future
}

// Cancel stops the pending delay, signals the current operation to abort and
// resets the observable state. It is safe to call at any time.
func (c *Controller[T]) Cancel() {
	c.mu.Lock()
	s := c.current
	c.current = nil
	c.state = State{}
	c.mu.Unlock()

	if s == nil {
		return
	}

	s.abort()
	c.metrics.cancelled()
	c.logger.Debug("retry execution cancelled", slog.String("session", s.id.String()))
}

// Reset is equivalent to Cancel.
func (c *Controller[T]) Reset() {
	c.Cancel()
}

// Close releases the controller's timer and cancellation signal. It is the
// teardown hook for the owning component; only the first call has an effect.
func (c *Controller[T]) Close() error {
	c.closeOnce.Do(c.Cancel)
	return nil
}

// begin supersedes the current session and installs a fresh one.
func (c *Controller[T]) begin(ctx context.Context) *session {
	s := newSession(ctx)

	c.mu.Lock()
	prev := c.current
	c.current = s
	c.state = State{}
	c.mu.Unlock()

	if prev != nil {
		prev.supersede()
		c.logger.Debug("retry execution superseded",
			slog.String("session", prev.id.String()),
			slog.String("by", s.id.String()))
	}

	return s
}

func (c *Controller[T]) run(
	s *session,
	op Operation[T],
	onSuccess SuccessFunc[T],
	onFailure FailureFunc,
) (result T, ok bool, err error) {
	defer s.cancel()
	defer c.release(s)

	log := c.logger.With(slog.String("session", s.id.String()))
	maxRetries := c.config.MaxRetries

	for attempt := 0; ; attempt++ {
		var opErr error
		if opErr = c.throttle(s.ctx); opErr == nil {
			result, opErr = invokeWithRecovery(s.ctx, op)
		}

		if opErr == nil {
			c.metrics.attempt(OutcomeSuccess)
			c.update(s, func(st *State) { *st = State{} })
			log.Debug("attempt succeeded", slog.Int("attempt", attempt+1))
			if onSuccess != nil {
				onSuccess(result)
			}
			return result, true, nil
		}

		var zero T
		if isAbortFor(s.ctx, opErr) {
			c.metrics.attempt(OutcomeAborted)
			log.Debug("attempt aborted", slog.Int("attempt", attempt+1))
			return zero, false, nil
		}
		c.metrics.attempt(OutcomeFailure)

		if attempt < maxRetries {
			delay := c.strategy.NextDelay(attempt)
			current := c.update(s, func(st *State) {
				st.LastError = opErr
				st.RetryCount = attempt + 1
				st.IsRetrying = true
			})
			if !current {
				return zero, false, nil
			}

			c.metrics.retryScheduled(delay)
			log.Debug("attempt failed, retry scheduled",
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.Any("error", opErr))
			if c.onRetry != nil {
				c.onRetry(attempt+1, opErr, delay)
			}

			waited := s.wait(delay)
			c.metrics.retryDone()
			if !waited {
				c.update(s, func(st *State) { st.IsRetrying = false })
				return zero, false, nil
			}
			if !c.update(s, func(st *State) { st.IsRetrying = false }) {
				return zero, false, nil
			}
			continue
		}

		current := c.update(s, func(st *State) {
			st.LastError = opErr
			st.RetryCount = attempt + 1
			st.IsRetrying = false
		})
		if !current {
			return zero, false, nil
		}

		c.metrics.exhausted()
		log.Warn("retries exhausted",
			slog.Int("attempts", attempt+1),
			slog.Any("error", opErr))

		if onFailure != nil {
			onFailure(opErr, attempt+1)
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt+1, opErr)
	}
}

// update applies fn to the state if s is still the current session and
// reports whether it was. Stale sessions never touch shared state.
func (c *Controller[T]) update(s *session, fn func(*State)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != s {
		return false
	}
	fn(&c.state)
	return true
}

// release drops the controller's reference to s once its execution ended.
func (c *Controller[T]) release(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == s {
		c.current = nil
	}
}

func (c *Controller[T]) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
