// Package access implements the named-capability checks gating every
// mutating call. Capabilities are granted per account; the surrounding
// platform authenticates callers, so only the capability check happens here.
package access

import (
	"sync"

	"github.com/comexhq/comex/internal/domain"
)

// Capability represents a single named permission.
type Capability string

const (
	CapAdmin           Capability = "ADMIN"
	CapOperator        Capability = "OPERATOR"
	CapMinter          Capability = "MINTER"
	CapPauser          Capability = "PAUSER"
	CapQualityVerifier Capability = "QUALITY_VERIFIER"
	CapPriceUpdater    Capability = "PRICE_UPDATER"
	CapCircuitBreaker  Capability = "CIRCUIT_BREAKER"
)

// All lists every known capability, used for validating grant requests.
var All = []Capability{
	CapAdmin,
	CapOperator,
	CapMinter,
	CapPauser,
	CapQualityVerifier,
	CapPriceUpdater,
	CapCircuitBreaker,
}

// Valid reports whether c is a known capability.
func Valid(c Capability) bool {
	for _, known := range All {
		if c == known {
			return true
		}
	}
	return false
}

// Control holds per-account capability grants. Safe for concurrent use.
type Control struct {
	mu     sync.RWMutex
	grants map[string]map[Capability]struct{}
}

// NewControl creates a Control with the given account granted every
// capability. The initial admin comes from boot configuration.
func NewControl(initialAdmin string) *Control {
	c := &Control{
		grants: make(map[string]map[Capability]struct{}),
	}
	if initialAdmin != "" {
		for _, cap := range All {
			c.grant(initialAdmin, cap)
		}
	}
	return c
}

// Grant adds a capability to an account. Idempotent.
func (c *Control) Grant(account string, cap Capability) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grant(account, cap)
}

func (c *Control) grant(account string, cap Capability) {
	if c.grants[account] == nil {
		c.grants[account] = make(map[Capability]struct{})
	}
	c.grants[account][cap] = struct{}{}
}

// Revoke removes a capability from an account. Revoking a capability the
// account does not hold is a no-op.
func (c *Control) Revoke(account string, cap Capability) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caps, ok := c.grants[account]; ok {
		delete(caps, cap)
		if len(caps) == 0 {
			delete(c.grants, account)
		}
	}
}

// Has reports whether the account holds the capability.
func (c *Control) Has(account string, cap Capability) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	caps, ok := c.grants[account]
	if !ok {
		return false
	}
	_, ok = caps[cap]
	return ok
}

// Require returns domain.ErrNotAuthorized unless the account holds the
// capability. Every mutating service call goes through this one check.
func (c *Control) Require(account string, cap Capability) error {
	if !c.Has(account, cap) {
		return domain.ErrNotAuthorized
	}
	return nil
}

// List returns the capabilities granted to an account.
func (c *Control) List(account string) []Capability {
	c.mu.RLock()
	defer c.mu.RUnlock()

	caps := make([]Capability, 0, len(c.grants[account]))
	for _, known := range All {
		if _, ok := c.grants[account][known]; ok {
			caps = append(caps, known)
		}
	}
	return caps
}
