package gateway

import (
	"sync"
	"time"
)

// ClientRateLimiter caps requests per client over a sliding one-minute window
type ClientRateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	requests []time.Time
	now      func() time.Time
}

// NewClientRateLimiter allows limit requests per minute
func NewClientRateLimiter(limit int) *ClientRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	return &ClientRateLimiter{
		limit:  limit,
		window: time.Minute,
		now:    time.Now,
	}
}

// Allow records a request and reports whether it fits the window
func (r *ClientRateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.pruneLocked(now)

	if len(r.requests) >= r.limit {
		return false
	}
	r.requests = append(r.requests, now)
	return true
}

// Count returns the requests in the current window
func (r *ClientRateLimiter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked(r.now())
	return len(r.requests)
}

func (r *ClientRateLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-r.window)
	kept := r.requests[:0]
	for _, at := range r.requests {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	r.requests = kept
}
