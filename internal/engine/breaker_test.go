package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/comexhq/comex/internal/domain"
)

func TestCircuitBreaker_TriggerAndReset(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(time.Hour)
	cb.now = func() time.Time { return clock }

	if cb.Active() {
		t.Fatal("new breaker should be NORMAL")
	}
	if err := cb.Trigger(); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if !cb.Active() {
		t.Fatal("breaker should be TRIGGERED after Trigger()")
	}

	// Reset before the cooldown elapses.
	clock = clock.Add(30 * time.Minute)
	if err := cb.Reset(); !errors.Is(err, domain.ErrCooldownNotElapsed) {
		t.Errorf("Reset() before cooldown error = %v, want ErrCooldownNotElapsed", err)
	}

	// Reset at exactly trigger time + cooldown.
	clock = clock.Add(30 * time.Minute)
	if err := cb.Reset(); err != nil {
		t.Errorf("Reset() after cooldown error = %v", err)
	}
	if cb.Active() {
		t.Error("breaker should be NORMAL after Reset()")
	}
}

func TestCircuitBreaker_Trigger_WhileTriggered(t *testing.T) {
	cb := NewCircuitBreaker(time.Hour)
	if err := cb.Trigger(); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if err := cb.Trigger(); !errors.Is(err, domain.ErrCircuitBreakerActive) {
		t.Errorf("second Trigger() error = %v, want ErrCircuitBreakerActive", err)
	}
}

func TestCircuitBreaker_Reset_WhileNormal(t *testing.T) {
	cb := NewCircuitBreaker(time.Hour)
	if err := cb.Reset(); !errors.Is(err, domain.ErrNotPaused) {
		t.Errorf("Reset() on NORMAL breaker error = %v, want ErrNotPaused", err)
	}
}

func TestCircuitBreaker_State(t *testing.T) {
	triggered := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(2 * time.Hour)
	cb.now = func() time.Time { return triggered }

	st := cb.State()
	if st.Phase != BreakerNormal || !st.TriggeredAt.IsZero() {
		t.Errorf("initial state = %+v, want NORMAL with zero TriggeredAt", st)
	}

	if err := cb.Trigger(); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	st = cb.State()
	if st.Phase != BreakerTriggered {
		t.Errorf("Phase = %s, want TRIGGERED", st.Phase)
	}
	if !st.TriggeredAt.Equal(triggered) {
		t.Errorf("TriggeredAt = %v, want %v", st.TriggeredAt, triggered)
	}
	if st.Cooldown != 2*time.Hour {
		t.Errorf("Cooldown = %v, want 2h", st.Cooldown)
	}
}

func TestCircuitBreaker_Restore(t *testing.T) {
	triggered := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(time.Hour)
	cb.Restore(BreakerTriggered, triggered)

	if !cb.Active() {
		t.Error("breaker should be TRIGGERED after Restore")
	}
	if got := cb.State().TriggeredAt; !got.Equal(triggered) {
		t.Errorf("TriggeredAt = %v, want %v", got, triggered)
	}
}
