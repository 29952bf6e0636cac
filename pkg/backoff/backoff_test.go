package backoff

import (
	"context"
	"testing"
	"time"
)

func TestDelayGrowsAndCaps(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2.0, MaxAttempts: 5}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for attempt, w := range want {
		if got := p.Delay(attempt); got != w {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, w)
		}
	}
}

func TestDelayJitterBounds(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 8 * time.Second, Multiplier: 2.0, Jitter: 0.5, MaxAttempts: 3}

	for i := 0; i < 100; i++ {
		d := p.Delay(0)
		if d < 500*time.Millisecond || d > time.Second {
			t.Fatalf("jittered delay %v outside [500ms, 1s]", d)
		}
	}
}

func TestDelayNegativeAttempt(t *testing.T) {
	p := DefaultPolicy()
	if got := p.Delay(-1); got > p.BaseDelay {
		t.Errorf("Delay(-1) = %v, want at most base %v", got, p.BaseDelay)
	}
}

func TestRealSleeperHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := (RealSleeper{}).Sleep(ctx, time.Minute)
	if err == nil {
		t.Fatal("expected error from canceled context")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Sleep blocked %v on canceled context", elapsed)
	}
}

func TestRealSleeperZeroDuration(t *testing.T) {
	if err := (RealSleeper{}).Sleep(context.Background(), 0); err != nil {
		t.Fatalf("Sleep(0) = %v, want nil", err)
	}
}
