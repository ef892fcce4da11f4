package store

import (
	"sync"

	"github.com/comexhq/comex/internal/domain"
)

// TradeStore is a thread-safe append-only store of executed trades,
// indexed by commodity id.
type TradeStore struct {
	mu     sync.RWMutex
	trades map[string][]*domain.Trade // commodity id → trades in execution order
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		trades: make(map[string][]*domain.Trade),
	}
}

// Append records a trade for its commodity.
func (s *TradeStore) Append(t *domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades[t.CommodityID] = append(s.trades[t.CommodityID], t)
}

// ListByCommodity returns the commodity's trades in execution order.
func (s *TradeStore) ListByCommodity(commodity string) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.trades[commodity]
	out := make([]*domain.Trade, len(all))
	copy(out, all)
	return out
}
