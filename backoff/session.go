package backoff

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// session is one execution of ExecuteWithBackoff: its cancellation context
// and the timer of the delay it may be waiting on. A controller references at
// most one current session; replacing it supersedes, never destroys, the old one.
type session struct {
	id     uuid.UUID
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	timer      *time.Timer
	superseded chan struct{}
	once       sync.Once
}

func newSession(parent context.Context) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		id:         uuid.New(),
		ctx:        ctx,
		cancel:     cancel,
		superseded: make(chan struct{}),
	}
}

// wait blocks for d and reports whether the next attempt may run.
// It returns false as soon as the session is cancelled or superseded.
func (s *session) wait(d time.Duration) bool {
	timer := time.NewTimer(d)

	s.mu.Lock()
	s.timer = timer
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.timer = nil
		s.mu.Unlock()
		timer.Stop()
	}()

	select {
	case <-timer.C:
		select {
		case <-s.superseded:
			return false
		default:
			return s.ctx.Err() == nil
		}
	case <-s.ctx.Done():
		return false
	case <-s.superseded:
		return false
	}
}

// stopTimer clears the pending delay, if any.
func (s *session) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// supersede releases a waiting delay without signalling the in-flight
// operation: its context stays live until its own call returns.
func (s *session) supersede() {
	s.stopTimer()
	s.once.Do(func() { close(s.superseded) })
}

// abort stops the pending delay and fires the cancellation signal.
func (s *session) abort() {
	s.stopTimer()
	s.cancel()
}
