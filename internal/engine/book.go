package engine

import (
	"sync"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/comexhq/comex/internal/domain"
)

// BookEntry represents a single order resting on the book.
type BookEntry struct {
	Price   decimal.Decimal
	OrderID uint64
	Order   *domain.Order
}

// bidLess defines ordering for the buy side: price descending, then order
// id ascending. Min() returns the best bid (highest price, earliest order).
func bidLess(a, b BookEntry) bool {
	if cmp := a.Price.Cmp(b.Price); cmp != 0 {
		return cmp > 0
	}
	return a.OrderID < b.OrderID
}

// askLess defines ordering for the sell side: price ascending, then order
// id ascending. Min() returns the best ask (lowest price, earliest order).
func askLess(a, b BookEntry) bool {
	if cmp := a.Price.Cmp(b.Price); cmp != 0 {
		return cmp < 0
	}
	return a.OrderID < b.OrderID
}

// OrderBook maintains the buy and sell sides for a single commodity using
// B-trees with a secondary index for O(log n) removal by order id.
type OrderBook struct {
	commodity string
	mu        sync.Mutex
	bids      *btree.BTreeG[BookEntry]
	asks      *btree.BTreeG[BookEntry]
	index     map[uint64]BookEntry // order id → entry
}

// NewOrderBook creates an order book for the given commodity.
func NewOrderBook(commodity string) *OrderBook {
	const degree = 32
	return &OrderBook{
		commodity: commodity,
		bids:      btree.NewG[BookEntry](degree, bidLess),
		asks:      btree.NewG[BookEntry](degree, askLess),
		index:     make(map[uint64]BookEntry),
	}
}

// Insert adds an order to its side of the book.
func (ob *OrderBook) Insert(o *domain.Order) {
	entry := BookEntry{Price: o.Price, OrderID: o.ID, Order: o}
	if o.Side == domain.OrderSideBuy {
		ob.bids.ReplaceOrInsert(entry)
	} else {
		ob.asks.ReplaceOrInsert(entry)
	}
	ob.index[o.ID] = entry
}

// Remove deletes an order from the book by order id using the secondary
// index. Removing an order that is not on the book is a no-op.
func (ob *OrderBook) Remove(orderID uint64) {
	entry, ok := ob.index[orderID]
	if !ok {
		return
	}
	delete(ob.index, orderID)
	if entry.Order.Side == domain.OrderSideBuy {
		ob.bids.Delete(entry)
	} else {
		ob.asks.Delete(entry)
	}
}

// Contains reports whether the order currently rests on the book.
func (ob *OrderBook) Contains(orderID uint64) bool {
	_, ok := ob.index[orderID]
	return ok
}

// WalkBids iterates bids in priority order (highest price first, then
// earliest order). The callback returns true to continue, false to stop.
func (ob *OrderBook) WalkBids(fn func(BookEntry) bool) {
	ob.bids.Ascend(fn)
}

// WalkAsks iterates asks in priority order (lowest price first, then
// earliest order). The callback returns true to continue, false to stop.
func (ob *OrderBook) WalkAsks(fn func(BookEntry) bool) {
	ob.asks.Ascend(fn)
}

// BidCount returns the number of resting buy orders.
func (ob *OrderBook) BidCount() int {
	return ob.bids.Len()
}

// AskCount returns the number of resting sell orders.
func (ob *OrderBook) AskCount() int {
	return ob.asks.Len()
}

// BookManager is a thread-safe map of commodity id → OrderBook.
type BookManager struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

// NewBookManager creates a new BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[string]*OrderBook),
	}
}

// GetOrCreate returns the order book for the given commodity, creating
// one if it doesn't already exist.
func (bm *BookManager) GetOrCreate(commodity string) *OrderBook {
	bm.mu.RLock()
	book, ok := bm.books[commodity]
	bm.mu.RUnlock()
	if ok {
		return book
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bm.books[commodity]; ok {
		return book
	}
	book = NewOrderBook(commodity)
	bm.books[commodity] = book
	return book
}
