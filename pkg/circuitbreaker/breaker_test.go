package circuitbreaker

import (
	"testing"
	"time"
)

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("test", Settings{FailureThreshold: 3, SuccessThreshold: 1, Cooldown: time.Hour})

	for i := 0; i < 2; i++ {
		b.Record(false)
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %v after 2 failures, want closed", b.State())
	}
	b.Record(false)
	if b.State() != StateOpen {
		t.Fatalf("state = %v after 3 failures, want open", b.State())
	}
	if b.Allow() {
		t.Error("open breaker allowed a call before cooldown")
	}
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	b := New("test", Settings{FailureThreshold: 3, SuccessThreshold: 1, Cooldown: time.Hour})

	b.Record(false)
	b.Record(false)
	b.Record(true)
	b.Record(false)
	b.Record(false)
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want closed (streak was broken)", b.State())
	}
}

func TestHalfOpenProbeAndRecovery(t *testing.T) {
	b := New("test", Settings{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: 10 * time.Millisecond})

	b.Record(false)
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("probe denied after cooldown")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open", b.State())
	}

	b.Record(true)
	if b.State() != StateHalfOpen {
		t.Fatalf("state = %v after 1/2 probe successes, want half-open", b.State())
	}
	b.Record(true)
	if b.State() != StateClosed {
		t.Fatalf("state = %v after 2/2 probe successes, want closed", b.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New("test", Settings{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: 10 * time.Millisecond})

	b.Record(false)
	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("probe denied after cooldown")
	}
	b.Record(false)
	if b.State() != StateOpen {
		t.Fatalf("state = %v after failed probe, want open", b.State())
	}
	if b.Allow() {
		t.Error("reopened breaker allowed a call immediately")
	}
}

func TestStateStrings(t *testing.T) {
	cases := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
