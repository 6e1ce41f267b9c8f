package backoff

import (
	"sync"
	"testing"
	"time"
)

// fixedSource always returns the same jitter draw.
type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

// fastOpts keeps delays tiny and deterministic.
func fastOpts(maxRetries int, extra ...Option) []Option {
	opts := []Option{
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(10 * time.Millisecond),
		WithMaxRetries(maxRetries),
		WithJitter(0),
	}
	return append(opts, extra...)
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// delayRecorder collects the delays passed to the OnRetry hook.
type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	errs   []error
}

func (r *delayRecorder) hook(_ int, err error, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, delay)
	r.errs = append(r.errs, err)
}

func (r *delayRecorder) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}
