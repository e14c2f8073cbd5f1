package security

import (
	"fmt"
	"time"
)

// RateLimiter throttles sensitive actions with fixed-window counters
// kept in the session. It is a coarse limiter by design: the window
// resets at discrete boundaries, so a client can burst up to 2×max
// across a boundary. That trade-off is accepted for this application.
type RateLimiter struct {
	enabled bool
	now     func() time.Time
}

// NewRateLimiter creates a limiter. When enabled is false every check
// reports "not limited" and counters are never touched.
func NewRateLimiter(enabled bool) *RateLimiter {
	return &RateLimiter{enabled: enabled, now: time.Now}
}

// Enabled reports whether the limiter is active.
func (rl *RateLimiter) Enabled() bool { return rl.enabled }

// Limited records one attempt for key on the given session and reports
// whether the attempt exceeds max within the current window. The first
// use of a key, and the first use after the window has elapsed, both
// initialize the counter to 1 and report "not limited". Reset and
// increment happen inside one atomic session-store update, so no
// intermediate counter state is ever observable.
func (rl *RateLimiter) Limited(store Store, sessionID, key string, max int, period time.Duration) (bool, error) {
	if !rl.enabled {
		return false, nil
	}
	now := rl.now()
	limited := false
	err := store.Update(sessionID, func(s *Session) {
		if s.Counters == nil {
			s.Counters = make(map[string]Window)
		}
		w, ok := s.Counters[key]
		if !ok || now.Sub(w.WindowStart) > period {
			s.Counters[key] = Window{Count: 1, WindowStart: now}
			return
		}
		w.Count++
		s.Counters[key] = w
		limited = w.Count > max
	})
	if err != nil {
		return false, fmt.Errorf("updating rate limit counter: %w", err)
	}
	return limited, nil
}

// RetryAfter reports how long until the current window for key resets,
// for a Retry-After header. Zero when no counter exists or the window
// has already elapsed.
func (rl *RateLimiter) RetryAfter(store Store, sessionID, key string, period time.Duration) time.Duration {
	var d time.Duration
	_ = store.Update(sessionID, func(s *Session) {
		w, ok := s.Counters[key]
		if !ok {
			return
		}
		if remaining := period - rl.now().Sub(w.WindowStart); remaining > 0 {
			d = remaining
		}
	})
	return d
}
