package scheduler

import (
	"context"
	"sync"
	"time"
)

// RateLimitState is the pool-wide throttle gate. When any worker sees a
// rate-limit response it extends the gate, and every worker waits for the
// gate to clear before its next provider call. State lives for one run.
type RateLimitState struct {
	mu    sync.Mutex
	until time.Time
}

func NewRateLimitState() *RateLimitState {
	return &RateLimitState{}
}

// Throttle pauses the pool for at least d from now. Concurrent throttles
// keep the latest deadline.
func (s *RateLimitState) Throttle(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := time.Now().Add(d); t.After(s.until) {
		s.until = t
	}
}

// Throttled reports whether the gate is currently closed.
func (s *RateLimitState) Throttled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().Before(s.until)
}

// Wait blocks until the gate clears or ctx is done. The deadline is
// re-read after every sleep since another worker may have extended it.
func (s *RateLimitState) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		until := s.until
		s.mu.Unlock()

		d := time.Until(until)
		if d <= 0 {
			return ctx.Err()
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
