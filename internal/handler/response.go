// Package handler exposes the ledger and trading services over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/comexhq/comex/internal/domain"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) // Write error intentionally ignored in response helper
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response with the given status code,
// error code, and message.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorResponse{Error: code, Message: message})
}

// ParseJSON decodes the request body into v. Unknown fields are rejected.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Content-Type must be application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// statusFor maps a domain sentinel to its HTTP status code.
var statusFor = map[error]int{
	domain.ErrNotCompliant:         http.StatusForbidden,
	domain.ErrNotAuthorized:        http.StatusForbidden,
	domain.ErrCommodityNotFound:    http.StatusNotFound,
	domain.ErrPairNotFound:         http.StatusNotFound,
	domain.ErrOrderNotFound:        http.StatusNotFound,
	domain.ErrWebhookNotFound:      http.StatusNotFound,
	domain.ErrCommodityExists:      http.StatusConflict,
	domain.ErrPairExists:           http.StatusConflict,
	domain.ErrPairInactive:         http.StatusConflict,
	domain.ErrPaused:               http.StatusConflict,
	domain.ErrNotPaused:            http.StatusConflict,
	domain.ErrTerminalOrderState:   http.StatusConflict,
	domain.ErrCircuitBreakerActive: http.StatusConflict,
	domain.ErrCooldownNotElapsed:   http.StatusConflict,
	domain.ErrOrderSizeInvalid:     http.StatusBadRequest,
	domain.ErrInsufficientBalance:  http.StatusUnprocessableEntity,
}

// messageFor holds the human-readable message for each sentinel.
var messageFor = map[error]string{
	domain.ErrNotCompliant:         "account is not compliance-approved",
	domain.ErrNotAuthorized:        "caller lacks the required capability",
	domain.ErrCommodityNotFound:    "commodity not found",
	domain.ErrPairNotFound:         "trading pair not found",
	domain.ErrOrderNotFound:        "order not found",
	domain.ErrWebhookNotFound:      "webhook not found",
	domain.ErrCommodityExists:      "commodity already exists",
	domain.ErrPairExists:           "trading pair already exists",
	domain.ErrPairInactive:         "trading pair is inactive",
	domain.ErrPaused:               "commodity is paused",
	domain.ErrNotPaused:            "commodity is not paused",
	domain.ErrTerminalOrderState:   "order is in a terminal state",
	domain.ErrCircuitBreakerActive: "circuit breaker is active",
	domain.ErrCooldownNotElapsed:   "circuit breaker cooldown has not elapsed",
	domain.ErrOrderSizeInvalid:     "order size is outside the pair's limits",
	domain.ErrInsufficientBalance:  "insufficient balance",
}

// WriteDomainError maps a service error to an HTTP response. Validation
// errors carry their own message; sentinels use the shared tables.
func WriteDomainError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	for sentinel, status := range statusFor {
		if errors.Is(err, sentinel) {
			WriteError(w, status, sentinel.Error(), messageFor[sentinel])
			return
		}
	}
	WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
}

// callerID extracts the authenticated account from the request. Identity
// is header-based; gateway authentication happens upstream.
func callerID(r *http.Request) string {
	return r.Header.Get("X-Account-Id")
}

// requireCaller writes a 401 and returns false if the request carries no
// account identity.
func requireCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := callerID(r)
	if caller == "" {
		WriteError(w, http.StatusUnauthorized, "missing_account", "X-Account-Id header is required")
		return "", false
	}
	return caller, true
}
