package backoff

import "context"

// Future is the pending outcome of an execution started with Controller.Go.
// Every accessor returns the same outcome once it is available.
type Future[T any] struct {
	done  chan struct{}
	value T
	ok    bool
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// complete stores the outcome; it must be called exactly once.
func (f *Future[T]) complete(value T, ok bool, err error) {
	f.value, f.ok, f.err = value, ok, err
	close(f.done)
}

// Get blocks until the execution finishes and returns its outcome, with the
// same meaning as the return values of ExecuteWithBackoff.
func (f *Future[T]) Get() (T, bool, error) {
	<-f.done
	return f.value, f.ok, f.err
}

// GetWithContext is Get bounded by ctx. When ctx ends first it returns
// ctx.Err(); the execution itself keeps running.
func (f *Future[T]) GetWithContext(ctx context.Context) (T, bool, error) {
	select {
	case <-f.done:
		return f.value, f.ok, f.err
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

// TryGet returns the outcome without blocking. ready is false while the
// execution is still running.
func (f *Future[T]) TryGet() (value T, ok bool, err error, ready bool) {
	select {
	case <-f.done:
		return f.value, f.ok, f.err, true
	default:
		var zero T
		return zero, false, nil, false
	}
}

// Done returns a channel closed once the outcome is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsReady reports whether the outcome is available.
func (f *Future[T]) IsReady() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
