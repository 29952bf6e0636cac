package circuitbreaker

import (
	"sync"
	"time"
)

// State of the breaker.
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Settings control breaker behavior for one source.
type Settings struct {
	// FailureThreshold: consecutive failures that open the circuit.
	FailureThreshold uint32
	// SuccessThreshold: consecutive successes that close it from half-open.
	SuccessThreshold uint32
	// Cooldown: time spent open before a half-open probe is allowed.
	Cooldown time.Duration
	// OnStateChange fires on transitions (name, from, to).
	OnStateChange func(name string, from, to State)
}

// DefaultSettings: 5 consecutive failures open the circuit for 30s; 2
// consecutive probe successes close it.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
	}
}

// Breaker short-circuits calls to a source that keeps failing, so one dead
// provider does not burn retry budget on every investigation.
type Breaker struct {
	name     string
	settings Settings

	mu              sync.Mutex
	state           State
	consecutiveFail uint32
	consecutiveSucc uint32
	openedUntil     time.Time
}

func New(name string, settings Settings) *Breaker {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}
	if settings.SuccessThreshold == 0 {
		settings.SuccessThreshold = 2
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = 30 * time.Second
	}
	return &Breaker{name: name, settings: settings, state: StateClosed}
}

// Allow reports whether a call may proceed. In the open state it returns
// false until the cooldown elapses, then admits a half-open probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Now().After(b.openedUntil) {
			b.transition(StateHalfOpen)
			return true
		}
		return false
	}
	return true
}

// Record feeds a call outcome back into the state machine.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if success {
		b.consecutiveFail = 0
		b.consecutiveSucc++
		if b.state == StateHalfOpen && b.consecutiveSucc >= b.settings.SuccessThreshold {
			b.transition(StateClosed)
		}
		return
	}
	b.consecutiveSucc = 0
	b.consecutiveFail++
	if b.state == StateHalfOpen || b.consecutiveFail >= b.settings.FailureThreshold {
		b.openedUntil = time.Now().Add(b.settings.Cooldown)
		b.transition(StateOpen)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.consecutiveFail = 0
	b.consecutiveSucc = 0
	if b.settings.OnStateChange != nil {
		go b.settings.OnStateChange(b.name, from, to)
	}
}
