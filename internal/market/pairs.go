// Package market tracks the per-commodity trading parameters: order size
// bounds, price precision and the active flag consulted on order creation.
package market

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/comexhq/comex/internal/domain"
)

// PairRegistry is a thread-safe registry of trading pairs keyed by
// commodity id.
type PairRegistry struct {
	mu    sync.RWMutex
	pairs map[string]*domain.TradingPair
}

// NewPairRegistry creates an empty PairRegistry.
func NewPairRegistry() *PairRegistry {
	return &PairRegistry{
		pairs: make(map[string]*domain.TradingPair),
	}
}

// Add creates a trading pair with isActive=true. It validates the size
// bounds and precision and rejects duplicates.
func (r *PairRegistry) Add(commodity string, minSize, maxSize decimal.Decimal, pricePrecision int32) (*domain.TradingPair, error) {
	if minSize.Sign() <= 0 {
		return nil, &domain.ValidationError{Message: "min order size must be greater than 0"}
	}
	if maxSize.LessThan(minSize) {
		return nil, &domain.ValidationError{Message: "max order size must be >= min order size"}
	}
	if pricePrecision < 0 || pricePrecision > domain.PriceDecimals {
		return nil, &domain.ValidationError{Message: "price precision must be between 0 and 8"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pairs[commodity]; exists {
		return nil, domain.ErrPairExists
	}
	p := &domain.TradingPair{
		CommodityID:    commodity,
		MinOrderSize:   minSize,
		MaxOrderSize:   maxSize,
		PricePrecision: pricePrecision,
		Active:         true,
	}
	r.pairs[commodity] = p
	return p, nil
}

// SetActive toggles the pair's active flag.
func (r *PairRegistry) SetActive(commodity string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pairs[commodity]
	if !ok {
		return domain.ErrPairNotFound
	}
	p.Active = active
	return nil
}

// Get returns a copy of the pair for the commodity.
func (r *PairRegistry) Get(commodity string) (domain.TradingPair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pairs[commodity]
	if !ok {
		return domain.TradingPair{}, domain.ErrPairNotFound
	}
	return *p, nil
}

// List returns a copy of every registered pair.
func (r *PairRegistry) List() []domain.TradingPair {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.TradingPair, 0, len(r.pairs))
	for _, p := range r.pairs {
		out = append(out, *p)
	}
	return out
}
