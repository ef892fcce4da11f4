package engine

import (
	"sync"
	"time"

	"github.com/comexhq/comex/internal/domain"
)

// BreakerPhase is the circuit breaker's state.
type BreakerPhase string

const (
	BreakerNormal    BreakerPhase = "NORMAL"
	BreakerTriggered BreakerPhase = "TRIGGERED"
)

// BreakerState is a read-only snapshot of the circuit breaker.
type BreakerState struct {
	Phase       BreakerPhase
	TriggeredAt time.Time // zero unless TRIGGERED
	Cooldown    time.Duration
}

// CircuitBreaker is the global halt gate wrapping order creation. Once
// triggered it stays TRIGGERED for at least the cooldown duration.
type CircuitBreaker struct {
	mu          sync.Mutex
	phase       BreakerPhase
	triggeredAt time.Time
	cooldown    time.Duration
	now         func() time.Time
}

// NewCircuitBreaker creates a breaker in the NORMAL phase.
func NewCircuitBreaker(cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		phase:    BreakerNormal,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Trigger halts order creation. Only valid from NORMAL; triggering an
// already-triggered breaker fails with domain.ErrCircuitBreakerActive.
func (cb *CircuitBreaker) Trigger() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.phase == BreakerTriggered {
		return domain.ErrCircuitBreakerActive
	}
	cb.phase = BreakerTriggered
	cb.triggeredAt = cb.now()
	return nil
}

// Reset returns the breaker to NORMAL. Fails with domain.ErrNotPaused when
// the breaker is not triggered, and domain.ErrCooldownNotElapsed until the
// cooldown has passed since the trigger.
func (cb *CircuitBreaker) Reset() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.phase != BreakerTriggered {
		return domain.ErrNotPaused
	}
	if cb.now().Before(cb.triggeredAt.Add(cb.cooldown)) {
		return domain.ErrCooldownNotElapsed
	}
	cb.phase = BreakerNormal
	cb.triggeredAt = time.Time{}
	return nil
}

// Active reports whether the breaker is TRIGGERED.
func (cb *CircuitBreaker) Active() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.phase == BreakerTriggered
}

// State returns a snapshot of the breaker.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerState{
		Phase:       cb.phase,
		TriggeredAt: cb.triggeredAt,
		Cooldown:    cb.cooldown,
	}
}

// Restore sets the breaker state directly. Used by journal replay.
func (cb *CircuitBreaker) Restore(phase BreakerPhase, triggeredAt time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.phase = phase
	cb.triggeredAt = triggeredAt
}
