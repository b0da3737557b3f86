// Package resilience provides reliability patterns for external service calls.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker state names, as reported by State.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"
)

// Breaker protects an external collaborator from repeated failing calls.
// After maxFailures consecutive failures the circuit opens and calls are
// rejected until the cooldown elapses; the first call after cooldown probes
// the collaborator (half-open) and either closes or re-opens the circuit.
type Breaker struct {
	mu          sync.Mutex
	failures    int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
	open        bool
	now         func() time.Time // injectable for tests
}

// NewBreaker creates a circuit breaker with the given failure threshold and
// open-state cooldown.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Do runs fn unless the circuit is open, recording the outcome.
// Returns ErrCircuitOpen without calling fn when the circuit is open.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.open && b.now().Sub(b.openedAt) < b.cooldown {
		b.mu.Unlock()
		return ErrCircuitOpen
	}
	probing := b.open // past cooldown: half-open probe
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		if probing || b.failures >= b.maxFailures {
			b.open = true
			b.openedAt = b.now()
		}
		return err
	}

	b.failures = 0
	b.open = false
	return nil
}

// State reports the current breaker state for health reporting.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case !b.open:
		return StateClosed
	case b.now().Sub(b.openedAt) >= b.cooldown:
		return StateHalfOpen
	default:
		return StateOpen
	}
}
