package algorithms

// BackoffType defines the retry backoff algorithm to use.
type BackoffType int

const (
	// BackoffExponential uses plain exponential backoff.
	BackoffExponential BackoffType = iota
	// BackoffJittered adds random jitter to prevent thundering herd (default).
	BackoffJittered
)

// TypeFor picks the cheapest strategy able to honor p.
// A zero jitter never draws from the random source.
func TypeFor(p Params) BackoffType {
	if p.Jitter <= 0 {
		return BackoffExponential
	}
	return BackoffJittered
}

// NewBackoffStrategy creates a backoff strategy for the given parameters.
// This is the internal factory function used by the backoff package.
// rng may be nil, in which case a process-local locked source is used.
func NewBackoffStrategy(p Params, rng RandSource) BackoffStrategy {
	switch TypeFor(p) {
	case BackoffJittered:
		return newJitteredBackoff(p, rng)

	default:
		return newExponentialBackoff(p)
	}
}

func clamp[N ~int64 | ~float64](v, lo, hi N) N {
	return max(lo, min(v, hi))
}
