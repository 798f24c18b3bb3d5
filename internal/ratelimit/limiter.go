package ratelimit

import (
	"sync"
	"time"
)

const (
	// WindowDuration is the sliding window size
	WindowDuration = time.Minute
)

// Limiter is a per-client sliding window rate limiter. The gateway consults
// it before a chat request reaches the pipeline.
type Limiter struct {
	limit   int                    // max requests per window (0 = disabled)
	windows map[string][]time.Time // clientID -> request timestamps
	now     func() time.Time
	mu      sync.Mutex
}

// New creates a rate limiter allowing limit requests per minute per client.
// limit <= 0 disables limiting.
func New(limit int) *Limiter {
	return &Limiter{
		limit:   limit,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// prune drops timestamps outside the window and removes empty entries.
// Caller holds the lock.
func (l *Limiter) prune(clientID string, cutoff time.Time) []time.Time {
	timestamps := l.windows[clientID]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	if len(valid) == 0 {
		delete(l.windows, clientID)
		return nil
	}
	l.windows[clientID] = valid
	return valid
}

// Allow reports whether a request from the client fits in the current
// window, counting it when it does.
func (l *Limiter) Allow(clientID string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	timestamps := l.prune(clientID, now.Add(-WindowDuration))

	if len(timestamps) >= l.limit {
		return false
	}

	l.windows[clientID] = append(timestamps, now)
	return true
}

// Remaining returns how many requests the client has left in the current
// window, or -1 when limiting is disabled.
func (l *Limiter) Remaining(clientID string) int {
	if l.limit <= 0 {
		return -1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	used := len(l.prune(clientID, l.now().Add(-WindowDuration)))
	if used >= l.limit {
		return 0
	}
	return l.limit - used
}

// Reset clears the window for a client.
func (l *Limiter) Reset(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, clientID)
}

// ResetAll clears every window.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows = make(map[string][]time.Time)
}
