package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/comexhq/comex/internal/access"
	"github.com/comexhq/comex/internal/domain"
	"github.com/comexhq/comex/internal/engine"
	"github.com/comexhq/comex/internal/journal"
	"github.com/comexhq/comex/internal/ledger"
	"github.com/comexhq/comex/internal/market"
	"github.com/comexhq/comex/internal/metrics"
	"github.com/comexhq/comex/internal/notify"
	"github.com/comexhq/comex/internal/store"
)

// CreateOrderRequest is the input for order creation.
type CreateOrderRequest struct {
	Trader    string
	Commodity string
	Side      domain.OrderSide
	Amount    decimal.Decimal
	Price     decimal.Decimal
	ExpiresAt *time.Time
}

// TradingService wraps the matching engine with capability checks,
// per-commodity serialization, journaling, metrics and webhooks.
type TradingService struct {
	access   *access.Control
	ledger   *ledger.Ledger
	pairs    *market.PairRegistry
	matcher  *engine.Matcher
	expiry   *engine.ExpiryManager
	breaker  *engine.CircuitBreaker
	orders   *store.OrderStore
	trades   *store.TradeStore
	notifier *notify.Service
	journal  journal.Recorder
	metrics  *metrics.Metrics
	locks    *CommodityLocks
	log      zerolog.Logger
}

// NewTradingService creates a TradingService. locks must be the instance
// shared with the LedgerService.
func NewTradingService(
	ac *access.Control,
	lg *ledger.Ledger,
	pairs *market.PairRegistry,
	matcher *engine.Matcher,
	expiry *engine.ExpiryManager,
	breaker *engine.CircuitBreaker,
	orders *store.OrderStore,
	trades *store.TradeStore,
	notifier *notify.Service,
	rec journal.Recorder,
	m *metrics.Metrics,
	locks *CommodityLocks,
	log zerolog.Logger,
) *TradingService {
	return &TradingService{
		access:   ac,
		ledger:   lg,
		pairs:    pairs,
		matcher:  matcher,
		expiry:   expiry,
		breaker:  breaker,
		orders:   orders,
		trades:   trades,
		notifier: notifier,
		journal:  rec,
		metrics:  m,
		locks:    locks,
		log:      log,
	}
}

func (s *TradingService) record(ctx context.Context, typ journal.EventType, payload any) {
	if err := s.journal.Record(ctx, typ, payload); err != nil {
		s.log.Error().Err(err).Str("event", string(typ)).Msg("journal append failed")
		return
	}
	s.metrics.JournalEvents.Inc()
}

func (s *TradingService) observeDepth(commodity string) {
	bids, asks := s.matcher.Depth(commodity)
	s.metrics.BookDepth.WithLabelValues(commodity, "bid").Set(float64(bids))
	s.metrics.BookDepth.WithLabelValues(commodity, "ask").Set(float64(asks))
}

// AddTradingPair enables trading for a registered commodity. Requires
// ADMIN.
func (s *TradingService) AddTradingPair(ctx context.Context, caller, commodity string, minSize, maxSize decimal.Decimal, pricePrecision int32) (domain.TradingPair, error) {
	if err := s.access.Require(caller, access.CapAdmin); err != nil {
		return domain.TradingPair{}, err
	}
	if !s.ledger.Exists(commodity) {
		return domain.TradingPair{}, domain.ErrCommodityNotFound
	}

	pair, err := s.pairs.Add(commodity, minSize, maxSize, pricePrecision)
	if err != nil {
		return domain.TradingPair{}, err
	}
	s.record(ctx, journal.EventPairAdded, journal.PairPayload{
		Commodity:      commodity,
		MinOrderSize:   minSize,
		MaxOrderSize:   maxSize,
		PricePrecision: pricePrecision,
		Active:         pair.Active,
	})
	s.log.Info().Str("commodity", commodity).Msg("trading pair added")
	return *pair, nil
}

// SetPairActive toggles a trading pair. Requires ADMIN.
func (s *TradingService) SetPairActive(ctx context.Context, caller, commodity string, active bool) error {
	if err := s.access.Require(caller, access.CapAdmin); err != nil {
		return err
	}
	if err := s.pairs.SetActive(commodity, active); err != nil {
		return err
	}
	s.record(ctx, journal.EventPairStatusChanged, journal.PairPayload{Commodity: commodity, Active: active})
	s.log.Info().Str("commodity", commodity).Bool("active", active).Msg("trading pair status changed")
	return nil
}

// Pair returns the trading pair for a commodity.
func (s *TradingService) Pair(commodity string) (domain.TradingPair, error) {
	return s.pairs.Get(commodity)
}

// ListPairs returns every trading pair.
func (s *TradingService) ListPairs() []domain.TradingPair {
	return s.pairs.List()
}

// CreateOrder validates the request, runs the matching engine and
// journals the accepted order and every fill.
func (s *TradingService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*engine.MatchOutcome, error) {
	if err := validAccount("trader", req.Trader); err != nil {
		return nil, err
	}
	if req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell {
		return nil, &domain.ValidationError{Message: "side must be BUY or SELL"}
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return nil, &domain.ValidationError{Message: "expires_at must be a future timestamp"}
	}

	unlock := s.locks.Lock(req.Commodity)
	start := time.Now()
	out, err := s.matcher.CreateOrder(req.Trader, req.Commodity, req.Side, req.Amount, req.Price, req.ExpiresAt)
	if err != nil {
		unlock()
		return nil, err
	}

	// Journal the order as accepted, then each fill with the resulting
	// order statuses, all under the commodity lock so a concurrent
	// operation on the same commodity cannot interleave its events.
	// Replay applies these without re-matching.
	accepted := out.Order
	accepted.Status = domain.OrderStatusOpen
	accepted.FilledAmount = decimal.Zero
	s.record(ctx, journal.EventOrderCreated, journal.OrderCreatedPayload{Order: accepted})

	cumulative := decimal.Zero
	for i, tr := range out.Trades {
		cumulative = cumulative.Add(tr.Quantity)
		takerStatus := domain.OrderStatusOpen
		if cumulative.Equal(out.Order.Amount) {
			takerStatus = domain.OrderStatusFilled
		}
		s.record(ctx, journal.EventOrderFilled, journal.OrderFilledPayload{
			Trade:       *tr,
			MakerStatus: out.Makers[i].Status,
			TakerStatus: takerStatus,
		})
	}
	unlock()

	s.metrics.MatchLatency.Observe(time.Since(start).Seconds())
	s.metrics.OrdersCreated.WithLabelValues(string(req.Side)).Inc()
	s.metrics.TradesExecuted.Add(float64(len(out.Trades)))
	s.observeDepth(req.Commodity)

	if out.Order.Status == domain.OrderStatusOpen && req.ExpiresAt != nil {
		if stored, err := s.orders.Get(out.Order.ID); err == nil {
			s.expiry.Add(stored)
		}
	}
	if out.Order.Status == domain.OrderStatusFilled {
		s.metrics.OrdersClosed.WithLabelValues(string(domain.OrderStatusFilled)).Inc()
	}

	if s.notifier != nil {
		s.notifier.DispatchOrderCreated(out.Order)
		for _, tr := range out.Trades {
			s.notifier.DispatchTradeExecuted(*tr)
		}
	}

	s.log.Info().
		Uint64("order_id", out.Order.ID).
		Str("trader", req.Trader).
		Str("commodity", req.Commodity).
		Str("side", string(req.Side)).
		Int("fills", len(out.Trades)).
		Str("status", string(out.Order.Status)).
		Msg("order created")
	return out, nil
}

// CancelOrder cancels an open order. The order's trader may cancel their
// own orders; any other caller needs OPERATOR.
func (s *TradingService) CancelOrder(ctx context.Context, caller string, orderID uint64) (domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if caller != order.Trader {
		if err := s.access.Require(caller, access.CapOperator); err != nil {
			return domain.Order{}, err
		}
	}

	unlock := s.locks.Lock(order.CommodityID)
	cancelled, err := s.matcher.Cancel(orderID)
	if err != nil {
		unlock()
		return domain.Order{}, err
	}

	refund := decimal.Zero
	if cancelled.Side == domain.OrderSideSell {
		refund = cancelled.Remaining()
	}
	s.record(ctx, journal.EventOrderCancelled, journal.OrderClosedPayload{
		OrderID: orderID,
		At:      *cancelled.CancelledAt,
		Refund:  refund,
	})
	unlock()

	s.expiry.Remove(orderID)
	s.metrics.OrdersClosed.WithLabelValues(string(domain.OrderStatusCancelled)).Inc()
	s.observeDepth(order.CommodityID)

	if s.notifier != nil {
		s.notifier.DispatchOrderCancelled(cancelled)
	}
	s.log.Info().Uint64("order_id", orderID).Str("caller", caller).Msg("order cancelled")
	return cancelled, nil
}

// DispatchOrderExpired is the expiry sweeper callback: it journals the
// expiration and forwards the notification.
func (s *TradingService) DispatchOrderExpired(order domain.Order) {
	refund := decimal.Zero
	if order.Side == domain.OrderSideSell {
		refund = order.Amount.Sub(order.FilledAmount)
	}
	at := order.CreatedAt
	if order.ExpiredAt != nil {
		at = *order.ExpiredAt
	}
	s.record(context.Background(), journal.EventOrderExpired, journal.OrderClosedPayload{
		OrderID: order.ID,
		At:      at,
		Refund:  refund,
	})
	s.metrics.OrdersClosed.WithLabelValues(string(domain.OrderStatusExpired)).Inc()
	s.observeDepth(order.CommodityID)

	if s.notifier != nil {
		s.notifier.DispatchOrderExpired(order)
	}
	s.log.Info().Uint64("order_id", order.ID).Msg("order expired")
}

// GetOrder returns a copy of an order.
func (s *TradingService) GetOrder(orderID uint64) (domain.Order, error) {
	return s.matcher.GetOrder(orderID)
}

// ListOrdersByTrader returns copies of the trader's orders, newest first.
func (s *TradingService) ListOrdersByTrader(trader string) []domain.Order {
	stored := s.orders.ListByTrader(trader)
	out := make([]domain.Order, 0, len(stored))
	for _, o := range stored {
		copied, err := s.matcher.GetOrder(o.ID)
		if err != nil {
			continue
		}
		out = append(out, copied)
	}
	return out
}

// GetOrderBook returns the commodity's book snapshot, bids first by
// descending price, asks by ascending price.
func (s *TradingService) GetOrderBook(commodity string) (engine.BookSnapshot, error) {
	if _, err := s.pairs.Get(commodity); err != nil {
		return engine.BookSnapshot{}, err
	}
	return s.matcher.Snapshot(commodity), nil
}

// ListTrades returns the commodity's trades in execution order.
func (s *TradingService) ListTrades(commodity string) ([]*domain.Trade, error) {
	if !s.ledger.Exists(commodity) {
		return nil, domain.ErrCommodityNotFound
	}
	return s.trades.ListByCommodity(commodity), nil
}

// TriggerCircuitBreaker halts all order creation. Requires
// CIRCUIT_BREAKER.
func (s *TradingService) TriggerCircuitBreaker(ctx context.Context, caller string) error {
	if err := s.access.Require(caller, access.CapCircuitBreaker); err != nil {
		return err
	}
	if err := s.breaker.Trigger(); err != nil {
		return err
	}
	s.record(ctx, journal.EventBreakerTriggered, journal.BreakerPayload{At: s.breaker.State().TriggeredAt})
	s.metrics.BreakerState.Set(1)
	s.log.Warn().Str("caller", caller).Msg("circuit breaker triggered")
	return nil
}

// ResetCircuitBreaker resumes order creation after the cooldown. Requires
// CIRCUIT_BREAKER.
func (s *TradingService) ResetCircuitBreaker(ctx context.Context, caller string) error {
	if err := s.access.Require(caller, access.CapCircuitBreaker); err != nil {
		return err
	}
	if err := s.breaker.Reset(); err != nil {
		return err
	}
	s.record(ctx, journal.EventBreakerReset, journal.BreakerPayload{At: time.Now()})
	s.metrics.BreakerState.Set(0)
	s.log.Info().Str("caller", caller).Msg("circuit breaker reset")
	return nil
}

// CircuitBreakerState returns the breaker snapshot.
func (s *TradingService) CircuitBreakerState() engine.BreakerState {
	return s.breaker.State()
}
