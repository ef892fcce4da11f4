package domain

import "errors"

// Sentinel errors for domain-level error handling. Every rejected
// precondition maps to exactly one of these kinds; the handler layer maps
// them to HTTP status codes and tests assert on kind, never message text.
var (
	ErrNotCompliant         = errors.New("not_compliant")
	ErrInsufficientBalance  = errors.New("insufficient_balance")
	ErrPaused               = errors.New("paused")
	ErrNotPaused            = errors.New("not_paused")
	ErrCommodityNotFound    = errors.New("commodity_not_found")
	ErrCommodityExists      = errors.New("commodity_already_exists")
	ErrPairNotFound         = errors.New("trading_pair_not_found")
	ErrPairExists           = errors.New("trading_pair_already_exists")
	ErrPairInactive         = errors.New("trading_pair_inactive")
	ErrOrderSizeInvalid     = errors.New("order_size_invalid")
	ErrOrderNotFound        = errors.New("order_not_found")
	ErrNotAuthorized        = errors.New("not_authorized")
	ErrCircuitBreakerActive = errors.New("circuit_breaker_active")
	ErrCooldownNotElapsed   = errors.New("cooldown_not_elapsed")
	ErrTerminalOrderState   = errors.New("terminal_order_state")
	ErrWebhookNotFound      = errors.New("webhook_not_found")
)

// ValidationError represents a bad argument (amount, price, score, role).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
