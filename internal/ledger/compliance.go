package ledger

import (
	"sync"

	"github.com/comexhq/comex/internal/domain"
)

// EscrowAccount is the reserved account holding tokens escrowed by the
// matching engine between sell-order creation and fill or cancellation.
// Keeping escrow inside the ledger means the conservation invariant
// (sum of balances == total supply) covers engine-held tokens too.
const EscrowAccount = "escrow"

// Registry is the per-account compliance allow/deny flag, written by the
// external KYC process and consulted before any balance-affecting call.
type Registry struct {
	mu      sync.RWMutex
	allowed map[string]bool
}

// NewRegistry creates a Registry with the escrow account pre-approved.
func NewRegistry() *Registry {
	return &Registry{
		allowed: map[string]bool{EscrowAccount: true},
	}
}

// Set updates an account's compliance flag. Idempotent.
func (r *Registry) Set(account string, allowed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if allowed {
		r.allowed[account] = true
	} else {
		delete(r.allowed, account)
	}
}

// IsAllowed reports whether the account may hold or receive balances.
func (r *Registry) IsAllowed(account string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allowed[account]
}

// RequireCompliant returns domain.ErrNotCompliant unless every given
// account is allowed. The mint and transfer paths share this one check so
// the two sites cannot drift apart.
func (r *Registry) RequireCompliant(accounts ...string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range accounts {
		if !r.allowed[a] {
			return domain.ErrNotCompliant
		}
	}
	return nil
}
