package ratelimit

import (
	"sync"
	"time"
)

// Limiter gates outbound calls to one external source. Allow consumes a slot
// when it returns true; RetryAfter reports how long until the next slot opens.
type Limiter interface {
	Allow() bool
	RetryAfter() time.Duration
}

// FixedWindow is a per-source fixed-window limiter. Sources differ wildly in
// what they tolerate (some 1000/min, some 30/min), so every source gets its
// own instance. Safe for concurrent use by multiple in-flight investigations.
type FixedWindow struct {
	max    int
	window time.Duration

	mu        sync.Mutex
	remaining int
	reset     time.Time
}

// NewFixedWindow creates a limiter allowing max requests per window.
func NewFixedWindow(max int, window time.Duration) *FixedWindow {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &FixedWindow{max: max, window: window}
}

func (fw *FixedWindow) Allow() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	now := time.Now()
	if fw.reset.IsZero() || now.After(fw.reset) {
		fw.remaining = fw.max - 1
		fw.reset = now.Add(fw.window)
		return true
	}
	if fw.remaining <= 0 {
		return false
	}
	fw.remaining--
	return true
}

func (fw *FixedWindow) RetryAfter() time.Duration {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.reset.IsZero() || fw.remaining > 0 {
		return 0
	}
	d := time.Until(fw.reset)
	if d < 0 {
		return 0
	}
	return d
}

// Remaining reports slots left in the current window (for stats endpoints).
func (fw *FixedWindow) Remaining() int {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.reset.IsZero() || time.Now().After(fw.reset) {
		return fw.max
	}
	return fw.remaining
}
