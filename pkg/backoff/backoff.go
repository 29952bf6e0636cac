package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Policy is a bounded exponential backoff schedule. Delay(attempt) returns
// how long to wait before retry number attempt (0-based), capped at MaxDelay.
type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      float64 // 0..1 fraction of the delay randomized away
	MaxAttempts int     // total tries including the first
}

// DefaultPolicy matches the retry behavior expected of external intelligence
// APIs: 3 tries, 500ms base, doubling, capped at 8s.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
		MaxAttempts: 3,
	}
}

func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxDelay) {
			d = float64(p.MaxDelay)
			break
		}
	}
	if p.Jitter > 0 {
		d -= d * p.Jitter * rand.Float64()
	}
	return time.Duration(d)
}

// Sleeper abstracts waiting so retry logic is testable without real time.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper waits on the wall clock, honoring context cancellation.
type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
