package store

import (
	"sync"

	"github.com/comexhq/comex/internal/domain"
)

// OrderStore is a thread-safe in-memory store for orders, with a primary
// index by order id and a secondary index by trader. It also owns order id
// issuance: ids start at 1, increase strictly and are never reused,
// including after cancellation.
type OrderStore struct {
	mu           sync.RWMutex
	nextID       uint64
	orders       map[uint64]*domain.Order
	traderOrders map[string][]*domain.Order // trader → orders (append-only)
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		nextID:       1,
		orders:       make(map[uint64]*domain.Order),
		traderOrders: make(map[string][]*domain.Order),
	}
}

// NextID issues the next order id.
func (s *OrderStore) NextID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	return id
}

// Create adds an order to the store and appends it to the trader's
// secondary index.
func (s *OrderStore) Create(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.ID] = o
	s.traderOrders[o.Trader] = append(s.traderOrders[o.Trader], o)
}

// Get retrieves an order by id. It returns domain.ErrOrderNotFound if the
// order does not exist.
func (s *OrderStore) Get(id uint64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

// ListByTrader returns the trader's orders, newest first.
func (s *OrderStore) ListByTrader(trader string) []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.traderOrders[trader]
	out := make([]*domain.Order, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	return out
}

// All returns every stored order in id order.
func (s *OrderStore) All() []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Order, 0, len(s.orders))
	for id := uint64(1); id < s.nextID; id++ {
		if o, ok := s.orders[id]; ok {
			out = append(out, o)
		}
	}
	return out
}

// Restore inserts an order rebuilt by journal replay and advances the id
// counter past it, so replayed state never reissues an id.
func (s *OrderStore) Restore(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.ID] = o
	s.traderOrders[o.Trader] = append(s.traderOrders[o.Trader], o)
	if o.ID >= s.nextID {
		s.nextID = o.ID + 1
	}
}
