package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comexhq/comex/internal/domain"
	"github.com/comexhq/comex/internal/ledger"
	"github.com/comexhq/comex/internal/market"
	"github.com/comexhq/comex/internal/store"
)

// Matcher implements order creation, price-time-priority matching,
// escrow settlement and cancellation.
type Matcher struct {
	books    *BookManager
	ledger   *ledger.Ledger
	pairs    *market.PairRegistry
	breaker  *CircuitBreaker
	orders   *store.OrderStore
	trades   *store.TradeStore
	maxFills int
}

// NewMatcher creates a new Matcher with the given dependencies. maxFills
// bounds the number of fills per order creation call so a pathological
// book cannot produce unbounded latency.
func NewMatcher(
	books *BookManager,
	lg *ledger.Ledger,
	pairs *market.PairRegistry,
	breaker *CircuitBreaker,
	orders *store.OrderStore,
	trades *store.TradeStore,
	maxFills int,
) *Matcher {
	return &Matcher{
		books:    books,
		ledger:   lg,
		pairs:    pairs,
		breaker:  breaker,
		orders:   orders,
		trades:   trades,
		maxFills: maxFills,
	}
}

// MatchOutcome reports the result of an order creation: a copy of the
// taker order after matching, the trades executed, and copies of the maker
// orders the match touched.
type MatchOutcome struct {
	Order  domain.Order
	Trades []*domain.Trade
	Makers []domain.Order
}

// plannedFill is one fill selected during the planning pass.
type plannedFill struct {
	maker *domain.Order
	qty   decimal.Decimal
}

// CreateOrder processes an incoming limit order: pre-checks, escrow for
// sells, the match loop against the opposite side, settlement at maker
// prices, and resting any unfilled remainder.
//
// The pass is split into a read-only planning phase and a commit phase so
// that any rejected precondition (including a non-compliant counterparty
// discovered mid-match) aborts with zero effect. The per-commodity book
// lock is held for the entire pass.
func (m *Matcher) CreateOrder(trader, commodity string, side domain.OrderSide, amount, price decimal.Decimal, expiresAt *time.Time) (*MatchOutcome, error) {
	pair, err := m.pairs.Get(commodity)
	if err != nil {
		return nil, err
	}
	if !pair.Active {
		return nil, domain.ErrPairInactive
	}
	if m.breaker.Active() {
		return nil, domain.ErrCircuitBreakerActive
	}
	if amount.LessThan(pair.MinOrderSize) || amount.GreaterThan(pair.MaxOrderSize) {
		return nil, domain.ErrOrderSizeInvalid
	}
	if price.Sign() <= 0 {
		return nil, &domain.ValidationError{Message: "price must be greater than 0"}
	}
	// Truncate-and-compare so trailing zeros do not count against the
	// precision limits.
	if !price.Truncate(pair.PricePrecision).Equal(price) {
		return nil, &domain.ValidationError{Message: "price exceeds the pair's price precision"}
	}
	if !amount.Truncate(domain.AmountDecimals).Equal(amount) {
		return nil, &domain.ValidationError{Message: "amount exceeds 18 fractional digits"}
	}

	info, err := m.ledger.Info(commodity)
	if err != nil {
		return nil, err
	}
	if info.Paused {
		return nil, domain.ErrPaused
	}

	book := m.books.GetOrCreate(commodity)
	book.mu.Lock()
	defer book.mu.Unlock()

	// Sell orders escrow their full amount at creation; check the debit
	// preconditions before planning the match.
	if side == domain.OrderSideSell {
		if err := m.ledger.RequireCompliant(trader); err != nil {
			return nil, err
		}
		bal, err := m.ledger.BalanceOf(trader, commodity)
		if err != nil {
			return nil, err
		}
		if bal.LessThan(amount) {
			return nil, domain.ErrInsufficientBalance
		}
	}

	// Planning pass: select fills in price-time priority without mutating
	// anything.
	fills := make([]plannedFill, 0)
	remaining := amount

	walk := func(entry BookEntry) bool {
		if remaining.Sign() <= 0 || len(fills) >= m.maxFills {
			return false
		}
		// Stop once the best counter-order no longer crosses the limit.
		if side == domain.OrderSideBuy {
			if entry.Price.GreaterThan(price) {
				return false
			}
		} else {
			if entry.Price.LessThan(price) {
				return false
			}
		}
		qty := decimal.Min(remaining, entry.Order.Remaining())
		fills = append(fills, plannedFill{maker: entry.Order, qty: qty})
		remaining = remaining.Sub(qty)
		return true
	}
	if side == domain.OrderSideBuy {
		book.WalkAsks(walk)
	} else {
		book.WalkBids(walk)
	}

	// Settlement moves tokens from escrow to the buying party, so every
	// buyer in the plan must be compliant; any failure aborts the whole
	// operation before a single balance moves.
	if len(fills) > 0 {
		if side == domain.OrderSideBuy {
			if err := m.ledger.RequireCompliant(trader); err != nil {
				return nil, err
			}
		} else {
			for _, f := range fills {
				if err := m.ledger.RequireCompliant(f.maker.Trader); err != nil {
					return nil, err
				}
			}
		}
	}

	// Commit phase.
	now := time.Now()
	order := &domain.Order{
		ID:           m.orders.NextID(),
		Trader:       trader,
		CommodityID:  commodity,
		Side:         side,
		Amount:       amount,
		Price:        price,
		FilledAmount: decimal.Zero,
		Status:       domain.OrderStatusOpen,
		CreatedAt:    now,
		ExpiresAt:    expiresAt,
	}
	m.orders.Create(order)

	if side == domain.OrderSideSell {
		if err := m.ledger.EscrowIn(trader, commodity, amount); err != nil {
			return nil, err
		}
	}

	outcome := &MatchOutcome{}
	for _, f := range fills {
		maker := f.maker

		order.FilledAmount = order.FilledAmount.Add(f.qty)
		maker.FilledAmount = maker.FilledAmount.Add(f.qty)
		if maker.Remaining().IsZero() {
			maker.Status = domain.OrderStatusFilled
			book.Remove(maker.ID)
		}
		if order.Remaining().IsZero() {
			order.Status = domain.OrderStatusFilled
		}

		// Each fill executes at the maker's price and settles the matched
		// amount from escrow to the buyer.
		var buyer, seller string
		if side == domain.OrderSideBuy {
			buyer, seller = trader, maker.Trader
		} else {
			buyer, seller = maker.Trader, trader
		}
		if err := m.ledger.EscrowOut(buyer, commodity, f.qty); err != nil {
			return nil, err
		}

		trade := &domain.Trade{
			ID:           uuid.New().String(),
			CommodityID:  commodity,
			MakerOrderID: maker.ID,
			TakerOrderID: order.ID,
			Buyer:        buyer,
			Seller:       seller,
			Price:        maker.Price,
			Quantity:     f.qty,
			ExecutedAt:   now,
		}
		m.trades.Append(trade)
		outcome.Trades = append(outcome.Trades, trade)
		outcome.Makers = append(outcome.Makers, *maker)
	}

	// Any unfilled remainder rests as a new OPEN order.
	if order.Remaining().Sign() > 0 {
		book.Insert(order)
	}

	outcome.Order = *order
	return outcome, nil
}

// Cancel transitions an OPEN order to CANCELLED, removes it from the book
// and refunds the unfilled escrow of a sell order. The caller is assumed
// to be authorized (the order's trader or an operator).
func (m *Matcher) Cancel(orderID uint64) (domain.Order, error) {
	order, err := m.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	book := m.books.GetOrCreate(order.CommodityID)
	book.mu.Lock()
	defer book.mu.Unlock()

	if order.IsTerminal() {
		return domain.Order{}, domain.ErrTerminalOrderState
	}

	refund := order.Remaining()
	if order.Side == domain.OrderSideSell && refund.Sign() > 0 {
		if err := m.ledger.EscrowRefund(order.Trader, order.CommodityID, refund); err != nil {
			return domain.Order{}, err
		}
	}

	book.Remove(order.ID)
	now := time.Now()
	order.Status = domain.OrderStatusCancelled
	order.CancelledAt = &now

	return *order, nil
}

// Expire transitions a resting order past its expiry to EXPIRED, refunding
// sell-side escrow. Returns false when the order reached a terminal state
// since it was scheduled for expiration.
func (m *Matcher) Expire(order *domain.Order) (domain.Order, bool) {
	book := m.books.GetOrCreate(order.CommodityID)
	book.mu.Lock()
	defer book.mu.Unlock()

	if order.IsTerminal() {
		return domain.Order{}, false
	}

	refund := order.Remaining()
	if order.Side == domain.OrderSideSell && refund.Sign() > 0 {
		if err := m.ledger.EscrowRefund(order.Trader, order.CommodityID, refund); err != nil {
			return domain.Order{}, false
		}
	}

	book.Remove(order.ID)
	order.Status = domain.OrderStatusExpired
	order.ExpiredAt = order.ExpiresAt

	return *order, true
}

// GetOrder returns a copy of the order, read under the commodity lock.
func (m *Matcher) GetOrder(orderID uint64) (domain.Order, error) {
	order, err := m.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	book := m.books.GetOrCreate(order.CommodityID)
	book.mu.Lock()
	defer book.mu.Unlock()

	return *order, nil
}

// BookSnapshot is a read-only view of one commodity's order book: buys
// sorted descending by price then ascending by id, sells ascending by
// price then ascending by id.
type BookSnapshot struct {
	CommodityID string
	Bids        []domain.Order
	Asks        []domain.Order
}

// Snapshot copies the resting orders of the commodity's book.
func (m *Matcher) Snapshot(commodity string) BookSnapshot {
	book := m.books.GetOrCreate(commodity)
	book.mu.Lock()
	defer book.mu.Unlock()

	snap := BookSnapshot{
		CommodityID: commodity,
		Bids:        make([]domain.Order, 0, book.BidCount()),
		Asks:        make([]domain.Order, 0, book.AskCount()),
	}
	book.WalkBids(func(e BookEntry) bool {
		snap.Bids = append(snap.Bids, *e.Order)
		return true
	})
	book.WalkAsks(func(e BookEntry) bool {
		snap.Asks = append(snap.Asks, *e.Order)
		return true
	})
	return snap
}

// Depth returns the number of resting orders on each side of the
// commodity's book.
func (m *Matcher) Depth(commodity string) (bids, asks int) {
	book := m.books.GetOrCreate(commodity)
	book.mu.Lock()
	defer book.mu.Unlock()
	return book.BidCount(), book.AskCount()
}
