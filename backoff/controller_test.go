package backoff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestController_SuccessOnFirstAttempt(t *testing.T) {
	var failures atomic.Int32
	var successes atomic.Int32
	c := New[int](fastOpts(3)...)

	var attemptCount atomic.Int32
	result, ok, err := c.ExecuteWithBackoff(context.Background(),
		func(ctx context.Context) (int, error) {
			attemptCount.Add(1)
			return 42, nil
		},
		func(v int) { successes.Add(1) },
		func(err error, attempts int) { failures.Add(1) },
	)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || result != 42 {
		t.Errorf("expected (42, true), got (%d, %v)", result, ok)
	}
	if attemptCount.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attemptCount.Load())
	}
	if successes.Load() != 1 {
		t.Errorf("expected onSuccess once, got %d", successes.Load())
	}
	if failures.Load() != 0 {
		t.Errorf("onFailure should not be called, got %d calls", failures.Load())
	}

	st := c.State()
	if st.RetryCount != 0 || st.LastError != nil || st.IsRetrying {
		t.Errorf("expected clean state, got %+v", st)
	}
}

func TestController_SuccessAfterMaxRetries(t *testing.T) {
	const maxRetries = 3
	rec := &delayRecorder{}
	c := New[string](fastOpts(maxRetries, WithOnRetry(rec.hook))...)

	var attemptCount atomic.Int32
	result, ok, err := c.Execute(context.Background(), func(ctx context.Context) (string, error) {
		if attemptCount.Add(1) <= maxRetries {
			return "", errors.New("temporary failure")
		}
		return "done", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || result != "done" {
		t.Errorf("expected (done, true), got (%q, %v)", result, ok)
	}
	if attemptCount.Load() != maxRetries+1 {
		t.Errorf("expected %d attempts, got %d", maxRetries+1, attemptCount.Load())
	}
	if got := len(rec.Delays()); got != maxRetries {
		t.Errorf("expected %d scheduled delays, got %d", maxRetries, got)
	}
	if st := c.State(); st.RetryCount != 0 || st.LastError != nil {
		t.Errorf("expected state reset after success, got %+v", st)
	}
}

func TestController_ExhaustedWithFailureCallback(t *testing.T) {
	const maxRetries = 2
	c := New[int](fastOpts(maxRetries)...)

	var calls atomic.Int32
	var gotErr error
	var gotAttempts int
	var attemptCount atomic.Int32

	result, ok, err := c.ExecuteWithBackoff(context.Background(),
		func(ctx context.Context) (int, error) {
			n := attemptCount.Add(1)
			return 0, fmt.Errorf("failure %d", n)
		},
		nil,
		func(err error, attempts int) {
			calls.Add(1)
			gotErr = err
			gotAttempts = attempts
		},
	)

	if err != nil {
		t.Fatalf("expected no error with failure callback, got %v", err)
	}
	if ok || result != 0 {
		t.Errorf("expected no value, got (%d, %v)", result, ok)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected onFailure once, got %d", calls.Load())
	}
	if gotAttempts != maxRetries+1 {
		t.Errorf("expected %d attempts reported, got %d", maxRetries+1, gotAttempts)
	}
	if gotErr == nil || gotErr.Error() != "failure 3" {
		t.Errorf("expected last failure error, got %v", gotErr)
	}

	st := c.State()
	if st.IsRetrying {
		t.Error("expected IsRetrying false after exhaustion")
	}
	if st.RetryCount != maxRetries+1 {
		t.Errorf("expected RetryCount %d, got %d", maxRetries+1, st.RetryCount)
	}
	if st.LastError != gotErr {
		t.Errorf("expected LastError %v, got %v", gotErr, st.LastError)
	}
}

func TestController_ExhaustedWithoutFailureCallback(t *testing.T) {
	c := New[int](fastOpts(2)...)
	expectedErr := errors.New("persistent failure")

	var attemptCount atomic.Int32
	_, ok, err := c.Execute(context.Background(), func(ctx context.Context) (int, error) {
		attemptCount.Add(1)
		return 0, expectedErr
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if ok {
		t.Error("expected no value")
	}
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error wrapping %v, got %v", expectedErr, err)
	}
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("expected error wrapping ErrRetriesExhausted, got %v", err)
	}
	if attemptCount.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attemptCount.Load())
	}
}

func TestController_NoRetryWhenMaxRetriesIsZero(t *testing.T) {
	c := New[int](WithInitialDelay(time.Second), WithMaxRetries(0))

	var attemptCount atomic.Int32
	start := time.Now()
	_, _, err := c.Execute(context.Background(), func(ctx context.Context) (int, error) {
		attemptCount.Add(1)
		return 0, errors.New("failure")
	})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attemptCount.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attemptCount.Load())
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("expected no backoff delay, but took %v", elapsed)
	}
	if st := c.State(); st.RetryCount != 1 {
		t.Errorf("expected RetryCount 1, got %d", st.RetryCount)
	}
}

func TestController_DelaySequenceWithoutJitter(t *testing.T) {
	rec := &delayRecorder{}
	c := New[int](
		WithInitialDelay(100*time.Millisecond),
		WithMaxDelay(time.Second),
		WithMultiplier(2),
		WithMaxRetries(3),
		WithJitter(0),
		WithOnRetry(rec.hook),
	)

	var attemptCount atomic.Int32
	start := time.Now()
	_, _, err := c.Execute(context.Background(), func(ctx context.Context) (int, error) {
		attemptCount.Add(1)
		return 0, errors.New("failure")
	})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attemptCount.Load() != 4 {
		t.Errorf("expected 4 attempts, got %d", attemptCount.Load())
	}

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	got := rec.Delays()
	if len(got) != len(want) {
		t.Fatalf("expected delays %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, got[i], want[i])
		}
	}

	if elapsed < 700*time.Millisecond {
		t.Errorf("expected at least 700ms elapsed for backoff, got %v", elapsed)
	}
}

func TestController_JitteredDelaysStayWithinBounds(t *testing.T) {
	rec := &delayRecorder{}
	c := New[int](
		WithInitialDelay(10*time.Millisecond),
		WithMaxDelay(40*time.Millisecond),
		WithMaxRetries(5),
		WithJitter(0.5),
		WithOnRetry(rec.hook),
	)

	_, _, _ = c.Execute(context.Background(), func(ctx context.Context) (int, error) {
		return 0, errors.New("failure")
	})

	cfg := c.Config()
	for attempt, delay := range rec.Delays() {
		lo, hi := DelayBounds(attempt, cfg)
		if delay < lo || delay >= hi {
			t.Errorf("attempt %d: delay %v outside [%v, %v)", attempt, delay, lo, hi)
		}
	}
}

func TestController_StateDuringRetry(t *testing.T) {
	c := New[int](
		WithInitialDelay(100*time.Millisecond),
		WithMaxRetries(2),
		WithJitter(0),
	)
	firstErr := errors.New("first failure")

	started := make(chan struct{})
	release := make(chan struct{})
	var attemptCount atomic.Int32

	future := c.Go(context.Background(), func(ctx context.Context) (int, error) {
		if attemptCount.Add(1) == 1 {
			return 0, firstErr
		}
		close(started)
		<-release
		return 7, nil
	}, nil, nil)

	waitFor(t, time.Second, func() bool { return c.State().IsRetrying })

	st := c.State()
	if st.RetryCount != 1 {
		t.Errorf("expected RetryCount 1 while waiting, got %d", st.RetryCount)
	}
	if st.LastError != firstErr {
		t.Errorf("expected LastError %v while waiting, got %v", firstErr, st.LastError)
	}
	if got := c.NextDelay(); got != 200*time.Millisecond {
		t.Errorf("expected NextDelay 200ms for RetryCount 1, got %v", got)
	}

	<-started
	st = c.State()
	if st.IsRetrying {
		t.Error("expected IsRetrying false while the operation runs")
	}
	if st.RetryCount != 1 {
		t.Errorf("expected RetryCount 1 during second attempt, got %d", st.RetryCount)
	}

	close(release)
	value, ok, err := future.Get()
	if err != nil || !ok || value != 7 {
		t.Errorf("expected (7, true, nil), got (%d, %v, %v)", value, ok, err)
	}
}

func TestController_PanicIsRetried(t *testing.T) {
	rec := &delayRecorder{}
	c := New[int](fastOpts(2, WithOnRetry(rec.hook))...)

	var attemptCount atomic.Int32
	result, ok, err := c.Execute(context.Background(), func(ctx context.Context) (int, error) {
		if attemptCount.Add(1) == 1 {
			panic("boom")
		}
		return 1, nil
	})

	if err != nil || !ok || result != 1 {
		t.Fatalf("expected (1, true, nil), got (%d, %v, %v)", result, ok, err)
	}
	if len(rec.errs) != 1 || !strings.Contains(rec.errs[0].Error(), "operation panic: boom") {
		t.Errorf("expected recovered panic error, got %v", rec.errs)
	}
}

func TestController_AbortedErrorIsNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"sentinel", ErrAborted},
		{"wrapped sentinel", fmt.Errorf("fetch: %w", ErrAborted)},
		{"context canceled", context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var failures atomic.Int32
			c := New[int](fastOpts(3)...)

			var attemptCount atomic.Int32
			_, ok, err := c.ExecuteWithBackoff(context.Background(),
				func(ctx context.Context) (int, error) {
					attemptCount.Add(1)
					return 0, tt.err
				},
				nil,
				func(error, int) { failures.Add(1) },
			)

			if err != nil || ok {
				t.Errorf("expected silent no-value return, got (%v, %v)", ok, err)
			}
			if attemptCount.Load() != 1 {
				t.Errorf("expected 1 attempt, got %d", attemptCount.Load())
			}
			if failures.Load() != 0 {
				t.Error("onFailure must not be called for aborts")
			}
			if st := c.State(); st.LastError != nil || st.RetryCount != 0 {
				t.Errorf("expected untouched state, got %+v", st)
			}
		})
	}
}

func TestController_DeadlineExceededInsideOperationIsRetried(t *testing.T) {
	c := New[int](fastOpts(1)...)

	var attemptCount atomic.Int32
	_, _, err := c.Execute(context.Background(), func(ctx context.Context) (int, error) {
		attemptCount.Add(1)
		return 0, context.DeadlineExceeded
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error to surface, got %v", err)
	}
	if attemptCount.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attemptCount.Load())
	}
}

func TestController_RateLimitThrottlesAttempts(t *testing.T) {
	c := New[int](fastOpts(3, WithRateLimit(20, 1))...)

	var attemptCount atomic.Int32
	start := time.Now()
	_, _, _ = c.Execute(context.Background(), func(ctx context.Context) (int, error) {
		attemptCount.Add(1)
		return 0, errors.New("failure")
	})
	elapsed := time.Since(start)

	if attemptCount.Load() != 4 {
		t.Errorf("expected 4 attempts, got %d", attemptCount.Load())
	}
	// 4 attempts at 20/s with burst 1 need at least 3 refills of 50ms.
	if elapsed < 120*time.Millisecond {
		t.Errorf("expected rate limiting to slow attempts, took %v", elapsed)
	}
}

func TestController_RetryCountNeverExceedsBudget(t *testing.T) {
	const maxRetries = 4
	c := New[int](fastOpts(maxRetries)...)

	var maxSeen atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = c.Execute(context.Background(), func(ctx context.Context) (int, error) {
			return 0, errors.New("failure")
		})
	}()

	for {
		select {
		case <-done:
			if got := int(maxSeen.Load()); got > maxRetries+1 {
				t.Errorf("RetryCount reached %d, budget is %d", got, maxRetries+1)
			}
			return
		default:
			if n := int32(c.State().RetryCount); n > maxSeen.Load() {
				maxSeen.Store(n)
			}
		}
	}
}

func TestController_ConfigEcho(t *testing.T) {
	c := New[int](WithMaxRetries(7), WithJitter(0.3))
	cfg := c.Config()

	want := Config{
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   DefaultMultiplier,
		MaxRetries:   7,
		Jitter:       0.3,
	}
	if cfg != want {
		t.Errorf("Config() = %+v, want %+v", cfg, want)
	}
}

func TestController_NextDelayUsesInjectedSource(t *testing.T) {
	c := New[int](WithRandSource(fixedSource(0.5)))

	// RetryCount 0 with defaults: 1000ms + 1000ms*0.1*0.5.
	if got := c.NextDelay(); got != 1050*time.Millisecond {
		t.Errorf("NextDelay() = %v, want 1.05s", got)
	}
}
