// Package ratelimit provides per-actor sliding-window request admission.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits up to maxRequests events per actor within a rolling window.
// State is in-memory only; a burst right after a restart is acceptable.
type Limiter struct {
	mu          sync.Mutex
	requests    map[int64][]time.Time
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

// New creates a limiter admitting maxRequests per window for each actor.
func New(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		requests:    make(map[int64][]time.Time),
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// NewWithClock is New with an injectable clock.
func NewWithClock(maxRequests int, window time.Duration, now func() time.Time) *Limiter {
	l := New(maxRequests, window)
	l.now = now
	return l
}

// Allow reports whether a new request from the actor is admitted, recording
// it if so. Rejected requests are not recorded.
func (l *Limiter) Allow(actorID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := l.requests[actorID][:0]
	for _, t := range l.requests[actorID] {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.maxRequests {
		l.requests[actorID] = kept
		return false
	}

	l.requests[actorID] = append(kept, now)
	return true
}
