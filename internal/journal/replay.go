package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/comexhq/comex/internal/access"
	"github.com/comexhq/comex/internal/domain"
	"github.com/comexhq/comex/internal/engine"
	"github.com/comexhq/comex/internal/ledger"
	"github.com/comexhq/comex/internal/market"
	"github.com/comexhq/comex/internal/store"
)

// State collects the components journal replay rebuilds. All of them must
// be empty (freshly constructed) when Replay is called. Expiry may be nil;
// when set, unexpired resting orders are re-scheduled after replay.
type State struct {
	Registry *ledger.Registry
	Access   *access.Control
	Ledger   *ledger.Ledger
	Pairs    *market.PairRegistry
	Orders   *store.OrderStore
	Trades   *store.TradeStore
	Books    *engine.BookManager
	Breaker  *engine.CircuitBreaker
	Expiry   *engine.ExpiryManager
}

// Replay applies the event stream in order. Replay runs single-threaded
// during boot, before any API traffic, so it mutates books without taking
// their locks.
func Replay(ctx context.Context, events []Event, st *State) error {
	for _, ev := range events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := apply(ev, st); err != nil {
			return fmt.Errorf("replay event %d (%s): %w", ev.Seq, ev.Type, err)
		}
	}

	if st.Expiry != nil {
		for _, o := range st.Orders.All() {
			if o.Status == domain.OrderStatusOpen && o.ExpiresAt != nil {
				st.Expiry.Add(o)
			}
		}
	}
	return nil
}

func apply(ev Event, st *State) error {
	switch ev.Type {
	case EventComplianceSet:
		var p CompliancePayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		st.Registry.Set(p.Account, p.Allowed)
		return nil

	case EventCapabilityGranted, EventCapabilityRevoked:
		var p CapabilityPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		cap := access.Capability(p.Capability)
		if !access.Valid(cap) {
			return fmt.Errorf("unknown capability %q", p.Capability)
		}
		if ev.Type == EventCapabilityGranted {
			st.Access.Grant(p.Account, cap)
		} else {
			st.Access.Revoke(p.Account, cap)
		}
		return nil

	case EventCommodityRegistered:
		var p CommodityPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		return st.Ledger.Register(p.ID, p.Name, p.Symbol)

	case EventMint:
		var p MintPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		return st.Ledger.Mint(p.To, p.Commodity, p.Amount)

	case EventTransfer:
		var p TransferPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		return st.Ledger.Transfer(p.From, p.To, p.Commodity, p.Amount)

	case EventQualityValidated:
		var p QualityPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		return st.Ledger.SetQuality(p.Commodity, p.Score)

	case EventPriceUpdated:
		var p PricePayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		return st.Ledger.SetPrice(p.Commodity, p.Price)

	case EventPaused:
		var p PausePayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		return st.Ledger.Pause(p.Commodity)

	case EventUnpaused:
		var p PausePayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		return st.Ledger.Unpause(p.Commodity)

	case EventPairAdded:
		var p PairPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		if _, err := st.Pairs.Add(p.Commodity, p.MinOrderSize, p.MaxOrderSize, p.PricePrecision); err != nil {
			return err
		}
		if !p.Active {
			return st.Pairs.SetActive(p.Commodity, false)
		}
		return nil

	case EventPairStatusChanged:
		var p PairPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		return st.Pairs.SetActive(p.Commodity, p.Active)

	case EventOrderCreated:
		var p OrderCreatedPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		o := p.Order
		if o.Side == domain.OrderSideSell {
			if err := st.Ledger.EscrowIn(o.Trader, o.CommodityID, o.Amount); err != nil {
				return err
			}
		}
		st.Orders.Restore(&o)
		if o.Status == domain.OrderStatusOpen {
			st.Books.GetOrCreate(o.CommodityID).Insert(&o)
		}
		return nil

	case EventOrderFilled:
		var p OrderFilledPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		maker, err := st.Orders.Get(p.Trade.MakerOrderID)
		if err != nil {
			return err
		}
		taker, err := st.Orders.Get(p.Trade.TakerOrderID)
		if err != nil {
			return err
		}
		if err := st.Ledger.EscrowOut(p.Trade.Buyer, p.Trade.CommodityID, p.Trade.Quantity); err != nil {
			return err
		}
		maker.FilledAmount = maker.FilledAmount.Add(p.Trade.Quantity)
		maker.Status = p.MakerStatus
		taker.FilledAmount = taker.FilledAmount.Add(p.Trade.Quantity)
		taker.Status = p.TakerStatus
		book := st.Books.GetOrCreate(p.Trade.CommodityID)
		if maker.IsTerminal() {
			book.Remove(maker.ID)
		}
		if taker.IsTerminal() {
			book.Remove(taker.ID)
		}
		tr := p.Trade
		st.Trades.Append(&tr)
		return nil

	case EventOrderCancelled, EventOrderExpired:
		var p OrderClosedPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		o, err := st.Orders.Get(p.OrderID)
		if err != nil {
			return err
		}
		if o.Side == domain.OrderSideSell && p.Refund.Sign() > 0 {
			if err := st.Ledger.EscrowRefund(o.Trader, o.CommodityID, p.Refund); err != nil {
				return err
			}
		}
		st.Books.GetOrCreate(o.CommodityID).Remove(o.ID)
		at := p.At
		if ev.Type == EventOrderCancelled {
			o.Status = domain.OrderStatusCancelled
			o.CancelledAt = &at
		} else {
			o.Status = domain.OrderStatusExpired
			o.ExpiredAt = &at
		}
		return nil

	case EventBreakerTriggered:
		var p BreakerPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		st.Breaker.Restore(engine.BreakerTriggered, p.At)
		return nil

	case EventBreakerReset:
		st.Breaker.Restore(engine.BreakerNormal, time.Time{})
		return nil

	default:
		return fmt.Errorf("unknown event type")
	}
}
