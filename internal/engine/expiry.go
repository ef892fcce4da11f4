package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/comexhq/comex/internal/domain"
)

// ExpiryNotifier receives orders after they transition to EXPIRED. When
// a CommodityLocker is attached, the callback runs while the commodity
// lock is held, so journal appends stay ordered with the state change.
type ExpiryNotifier interface {
	DispatchOrderExpired(order domain.Order)
}

// CommodityLocker serializes balance-affecting operations per commodity.
// Satisfied by the service layer's lock set.
type CommodityLocker interface {
	Lock(commodity string) func()
}

// ExpiryManager tracks resting orders sorted by expires_at and
// periodically expires orders whose expiration time has passed.
type ExpiryManager struct {
	interval     time.Duration
	matcher      *Matcher
	notifier     ExpiryNotifier
	locks        CommodityLocker
	activeOrders []*domain.Order // sorted by expires_at ASC
	mu           sync.Mutex      // protects activeOrders slice
}

// NewExpiryManager creates a new ExpiryManager. notifier and locks may be
// nil.
func NewExpiryManager(interval time.Duration, matcher *Matcher, notifier ExpiryNotifier, locks CommodityLocker) *ExpiryManager {
	return &ExpiryManager{
		interval:     interval,
		matcher:      matcher,
		notifier:     notifier,
		locks:        locks,
		activeOrders: make([]*domain.Order, 0),
	}
}

// SetNotifier attaches the expiry callback. The notifier is usually the
// service layer, which is constructed after the manager.
func (e *ExpiryManager) SetNotifier(n ExpiryNotifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifier = n
}

// Add inserts an order into the sorted activeOrders slice, maintaining
// expires_at ASC order. Orders without an expiration are ignored.
func (e *ExpiryManager) Add(order *domain.Order) {
	if order.ExpiresAt == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	expiresAt := *order.ExpiresAt
	idx := sort.Search(len(e.activeOrders), func(i int) bool {
		return e.activeOrders[i].ExpiresAt.After(expiresAt)
	})
	e.activeOrders = append(e.activeOrders, nil)
	copy(e.activeOrders[idx+1:], e.activeOrders[idx:])
	e.activeOrders[idx] = order
}

// Remove deletes an order from the activeOrders slice by order id.
func (e *ExpiryManager) Remove(orderID uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, o := range e.activeOrders {
		if o.ID == orderID {
			e.activeOrders = append(e.activeOrders[:i], e.activeOrders[i+1:]...)
			return
		}
	}
}

// Start launches a background goroutine that ticks at the configured
// interval and expires orders. It stops when ctx is cancelled.
func (e *ExpiryManager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				e.Tick(t)
			}
		}
	}()
}

// Tick pops every order with expires_at <= now off the front of the
// sorted slice and expires it. The matcher re-checks the order's status
// under the commodity lock, so orders filled or cancelled since they were
// scheduled are skipped.
func (e *ExpiryManager) Tick(now time.Time) {
	e.mu.Lock()
	var toExpire []*domain.Order
	cutoff := 0
	for cutoff < len(e.activeOrders) {
		o := e.activeOrders[cutoff]
		if o.ExpiresAt == nil || o.ExpiresAt.After(now) {
			break
		}
		toExpire = append(toExpire, o)
		cutoff++
	}
	if cutoff > 0 {
		e.activeOrders = e.activeOrders[cutoff:]
	}
	notifier := e.notifier
	locks := e.locks
	e.mu.Unlock()

	for _, order := range toExpire {
		unlock := func() {}
		if locks != nil {
			unlock = locks.Lock(order.CommodityID)
		}
		expired, ok := e.matcher.Expire(order)
		if ok && notifier != nil {
			notifier.DispatchOrderExpired(expired)
		}
		unlock()
	}
}

// ActiveOrderCount returns the number of orders currently tracked for
// expiration. Useful for testing.
func (e *ExpiryManager) ActiveOrderCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.activeOrders)
}
