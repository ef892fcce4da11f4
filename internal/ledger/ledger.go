// Package ledger implements the compliance-gated fungible balance ledger
// for commodity tokens: per-commodity balances, supply, pause flag, quality
// score and reference price.
package ledger

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/comexhq/comex/internal/domain"
)

// commodityState is the mutable per-commodity record. Its mutex serializes
// every balance-affecting operation on the commodity, so each call is
// atomic: it either fully applies or leaves no trace.
type commodityState struct {
	mu       sync.Mutex
	info     domain.Commodity
	balances map[string]decimal.Decimal
}

// Ledger holds all commodity token state. Operations on different
// commodities proceed concurrently; operations on the same commodity are
// serialized by its state lock.
type Ledger struct {
	mu          sync.RWMutex
	compliance  *Registry
	commodities map[string]*commodityState
}

// NewLedger creates an empty Ledger backed by the given compliance registry.
func NewLedger(compliance *Registry) *Ledger {
	return &Ledger{
		compliance:  compliance,
		commodities: make(map[string]*commodityState),
	}
}

// Register creates the ledger entry for a new commodity with zero supply,
// quality 0, no reference price and trading unpaused. It returns
// domain.ErrCommodityExists if the id is already registered.
func (l *Ledger) Register(id, name, symbol string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.commodities[id]; exists {
		return domain.ErrCommodityExists
	}
	l.commodities[id] = &commodityState{
		info: domain.Commodity{
			ID:             id,
			Name:           name,
			Symbol:         symbol,
			TotalSupply:    decimal.Zero,
			ReferencePrice: decimal.Zero,
		},
		balances: make(map[string]decimal.Decimal),
	}
	return nil
}

func (l *Ledger) get(id string) (*commodityState, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, ok := l.commodities[id]
	if !ok {
		return nil, domain.ErrCommodityNotFound
	}
	return s, nil
}

// Mint increases a compliant account's balance and the commodity's total
// supply by amount, atomically. Fails with domain.ErrPaused when the
// commodity is paused and domain.ErrNotCompliant when the recipient is not
// on the compliance registry.
func (l *Ledger) Mint(to, commodity string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return &domain.ValidationError{Message: "mint amount must be greater than 0"}
	}
	s, err := l.get(commodity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.info.Paused {
		return domain.ErrPaused
	}
	if err := l.compliance.RequireCompliant(to); err != nil {
		return err
	}

	s.balances[to] = s.balances[to].Add(amount)
	s.info.TotalSupply = s.info.TotalSupply.Add(amount)
	return nil
}

// Transfer debits from and credits to atomically. Both parties must be
// compliant at call time and the commodity must not be paused. Fails with
// domain.ErrInsufficientBalance when from's balance is below amount.
func (l *Ledger) Transfer(from, to, commodity string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return &domain.ValidationError{Message: "transfer amount must be greater than 0"}
	}
	s, err := l.get(commodity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return l.move(s, from, to, amount, true)
}

// EscrowIn moves amount from the trader's balance into engine-held escrow,
// atomically with sell-order creation. The trader must be compliant and
// the commodity unpaused.
func (l *Ledger) EscrowIn(from, commodity string, amount decimal.Decimal) error {
	s, err := l.get(commodity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return l.move(s, from, EscrowAccount, amount, true)
}

// EscrowOut settles amount from escrow to the buyer. The recipient must be
// compliant; settlement is still a balance-affecting transfer.
func (l *Ledger) EscrowOut(to, commodity string, amount decimal.Decimal) error {
	s, err := l.get(commodity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return l.move(s, EscrowAccount, to, amount, true)
}

// EscrowRefund returns the unfilled remainder of a cancelled or expired
// sell order from escrow to its trader. Refunds skip the pause and
// compliance gates: the tokens were the trader's own and cancellation is a
// risk-reducing operation that must stay available during a halt.
func (l *Ledger) EscrowRefund(to, commodity string, amount decimal.Decimal) error {
	s, err := l.get(commodity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return l.move(s, EscrowAccount, to, amount, false)
}

// move performs the debit/credit under the commodity lock. All
// preconditions are checked before either balance changes, so there is no
// observable intermediate state.
func (l *Ledger) move(s *commodityState, from, to string, amount decimal.Decimal, gated bool) error {
	if gated {
		if s.info.Paused {
			return domain.ErrPaused
		}
		if err := l.compliance.RequireCompliant(from, to); err != nil {
			return err
		}
	}
	if s.balances[from].LessThan(amount) {
		return domain.ErrInsufficientBalance
	}

	s.balances[from] = s.balances[from].Sub(amount)
	s.balances[to] = s.balances[to].Add(amount)
	return nil
}

// RequireCompliant checks the given accounts against the compliance
// registry without touching balances. The matching engine uses it to
// pre-check settlement parties before committing fills.
func (l *Ledger) RequireCompliant(accounts ...string) error {
	return l.compliance.RequireCompliant(accounts...)
}

// Pause halts mint and transfer for the commodity. Fails with
// domain.ErrPaused when already paused.
func (l *Ledger) Pause(commodity string) error {
	s, err := l.get(commodity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.info.Paused {
		return domain.ErrPaused
	}
	s.info.Paused = true
	return nil
}

// Unpause resumes mint and transfer. Fails with domain.ErrNotPaused when
// the commodity is not paused.
func (l *Ledger) Unpause(commodity string) error {
	s, err := l.get(commodity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.info.Paused {
		return domain.ErrNotPaused
	}
	s.info.Paused = false
	return nil
}

// SetQuality records an externally verified quality score in [0, 100].
func (l *Ledger) SetQuality(commodity string, score int) error {
	if score < 0 || score > 100 {
		return &domain.ValidationError{Message: "quality score must be between 0 and 100"}
	}
	s, err := l.get(commodity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.info.QualityScore = score
	return nil
}

// SetPrice records an externally sourced reference price. The core stores
// but never computes this value.
func (l *Ledger) SetPrice(commodity string, price decimal.Decimal) error {
	if price.Sign() <= 0 {
		return &domain.ValidationError{Message: "price must be greater than 0"}
	}
	s, err := l.get(commodity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.info.ReferencePrice = price
	return nil
}

// BalanceOf returns the account's balance for the commodity. Balances
// exist implicitly at zero.
func (l *Ledger) BalanceOf(account, commodity string) (decimal.Decimal, error) {
	s, err := l.get(commodity)
	if err != nil {
		return decimal.Zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.balances[account], nil
}

// Info returns a copy of the commodity record.
func (l *Ledger) Info(commodity string) (domain.Commodity, error) {
	s, err := l.get(commodity)
	if err != nil {
		return domain.Commodity{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.info, nil
}

// Exists reports whether the commodity is registered.
func (l *Ledger) Exists(commodity string) bool {
	_, err := l.get(commodity)
	return err == nil
}

// Balances returns a snapshot of every non-zero balance for the commodity.
func (l *Ledger) Balances(commodity string) (map[string]decimal.Decimal, error) {
	s, err := l.get(commodity)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]decimal.Decimal, len(s.balances))
	for account, bal := range s.balances {
		if !bal.IsZero() {
			out[account] = bal
		}
	}
	return out, nil
}
