package domain

import (
	"errors"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Message: "amount must be greater than 0"}
	if err.Error() != "amount must be greater than 0" {
		t.Errorf("Error() = %q, want %q", err.Error(), "amount must be greater than 0")
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	errs := []error{
		ErrNotCompliant,
		ErrInsufficientBalance,
		ErrPaused,
		ErrNotPaused,
		ErrCommodityNotFound,
		ErrCommodityExists,
		ErrPairNotFound,
		ErrPairExists,
		ErrPairInactive,
		ErrOrderSizeInvalid,
		ErrOrderNotFound,
		ErrNotAuthorized,
		ErrCircuitBreakerActive,
		ErrCooldownNotElapsed,
		ErrTerminalOrderState,
	}
	for i := 0; i < len(errs); i++ {
		for j := i + 1; j < len(errs); j++ {
			if errors.Is(errs[i], errs[j]) {
				t.Errorf("sentinel errors %d and %d should be distinct", i, j)
			}
		}
	}
}
