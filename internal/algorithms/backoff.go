package algorithms

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// lockedSource guards a *rand.Rand so one source can be shared by every
// controller in the process.
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLockedSource returns a goroutine-safe RandSource seeded from the clock.
func NewLockedSource() RandSource {
	return &lockedSource{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- crypto rand not needed for backoff jitter
	}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// jitteredBackoff adds randomization to exponential backoff to prevent thundering herd.
// Delay formula: floor(base + base * jitter * U), U uniform in [0, 1)
//
// Unlike symmetric jitter the draw is only ever added, so the computed base
// delay is a hard lower bound:
//
// Example with jitter=0.1:
// Base delay of 1s becomes a random value in [1000ms, 1100ms)
type jitteredBackoff struct {
	params Params
	rng    RandSource
}

// newJitteredBackoff creates a new jittered backoff strategy.
// jitter is clamped to [0, 1].
func newJitteredBackoff(p Params, rng RandSource) *jitteredBackoff {
	p.Jitter = clamp(p.Jitter, 0, 1)
	if rng == nil {
		rng = NewLockedSource()
	}
	return &jitteredBackoff{params: p, rng: rng}
}

// NextDelay calculates the jittered exponential backoff delay.
func (jb *jitteredBackoff) NextDelay(attemptNumber int) time.Duration {
	if attemptNumber < 0 {
		return 0
	}

	base := baseDelayMillis(attemptNumber, jb.params)
	u := clamp(jb.rng.Float64(), 0, math.Nextafter(1, 0))
	return millis(base + base*jb.params.Jitter*u)
}

// exponentialBackoff implements exponential backoff without jitter.
// Delay formula: initialDelay * multiplier^attemptNumber
//
// With the default multiplier of 2 delays grow as:
// Attempt 0: 1x initialDelay
// Attempt 1: 2x initialDelay
// Attempt 2: 4x initialDelay
// ...until maxDelay is reached
type exponentialBackoff struct {
	params Params
}

// newExponentialBackoff creates a new exponential backoff strategy.
func newExponentialBackoff(p Params) *exponentialBackoff {
	return &exponentialBackoff{params: p}
}

// NextDelay calculates the exponential backoff delay for the given attempt number.
func (eb *exponentialBackoff) NextDelay(attemptNumber int) time.Duration {
	if attemptNumber < 0 {
		return 0
	}
	return millis(baseDelayMillis(attemptNumber, eb.params))
}

// BaseDelay returns min(initialDelay * multiplier^attemptNumber, maxDelay)
// floored to whole milliseconds. It is the lower bound of every jittered draw.
func BaseDelay(attemptNumber int, p Params) time.Duration {
	if attemptNumber < 0 {
		return 0
	}
	return millis(baseDelayMillis(attemptNumber, p))
}

// baseDelayMillis works in float64 milliseconds. math.Pow saturates to +Inf
// for huge attempts, which the min against maxDelay absorbs. A multiplier
// below 1 is treated as 1 so delays never shrink.
func baseDelayMillis(attemptNumber int, p Params) float64 {
	initial := toMillis(p.InitialDelay)
	ceiling := toMillis(p.MaxDelay)
	growth := max(p.Multiplier, 1)

	base := initial * math.Pow(growth, float64(attemptNumber))
	if math.IsNaN(base) || base > ceiling {
		return ceiling
	}
	return max(base, 0)
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func millis(ms float64) time.Duration {
	return time.Duration(math.Floor(ms)) * time.Millisecond
}
