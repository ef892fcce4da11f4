package journal

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comexhq/comex/internal/access"
	"github.com/comexhq/comex/internal/domain"
	"github.com/comexhq/comex/internal/engine"
	"github.com/comexhq/comex/internal/ledger"
	"github.com/comexhq/comex/internal/market"
	"github.com/comexhq/comex/internal/store"
)

func newReplayState() *State {
	registry := ledger.NewRegistry()
	return &State{
		Registry: registry,
		Access:   access.NewControl(""),
		Ledger:   ledger.NewLedger(registry),
		Pairs:    market.NewPairRegistry(),
		Orders:   store.NewOrderStore(),
		Trades:   store.NewTradeStore(),
		Books:    engine.NewBookManager(),
		Breaker:  engine.NewCircuitBreaker(time.Hour),
	}
}

func record(t *testing.T, rec *MemoryRecorder, typ EventType, payload any) {
	t.Helper()
	require.NoError(t, rec.Record(context.Background(), typ, payload))
}

func TestReplay_RebuildsLedgerAndAccess(t *testing.T) {
	rec := NewMemoryRecorder()
	record(t, rec, EventComplianceSet, CompliancePayload{Account: "alice", Allowed: true})
	record(t, rec, EventComplianceSet, CompliancePayload{Account: "bob", Allowed: true})
	record(t, rec, EventCapabilityGranted, CapabilityPayload{Account: "ops", Capability: "OPERATOR"})
	record(t, rec, EventCommodityRegistered, CommodityPayload{ID: "coffee", Name: "Coffee", Symbol: "COF"})
	record(t, rec, EventMint, MintPayload{To: "alice", Commodity: "coffee", Amount: decimal.NewFromInt(100)})
	record(t, rec, EventTransfer, TransferPayload{From: "alice", To: "bob", Commodity: "coffee", Amount: decimal.NewFromInt(30)})
	record(t, rec, EventQualityValidated, QualityPayload{Commodity: "coffee", Score: 85})
	record(t, rec, EventPriceUpdated, PricePayload{Commodity: "coffee", Price: decimal.RequireFromString("51.25")})
	record(t, rec, EventPaused, PausePayload{Commodity: "coffee"})
	record(t, rec, EventUnpaused, PausePayload{Commodity: "coffee"})

	st := newReplayState()
	require.NoError(t, Replay(context.Background(), rec.Events(), st))

	assert.True(t, st.Access.Has("ops", access.CapOperator))

	aliceBal, err := st.Ledger.BalanceOf("alice", "coffee")
	require.NoError(t, err)
	assert.True(t, aliceBal.Equal(decimal.NewFromInt(70)))
	bobBal, err := st.Ledger.BalanceOf("bob", "coffee")
	require.NoError(t, err)
	assert.True(t, bobBal.Equal(decimal.NewFromInt(30)))

	info, err := st.Ledger.Info("coffee")
	require.NoError(t, err)
	assert.Equal(t, 85, info.QualityScore)
	assert.True(t, info.ReferencePrice.Equal(decimal.RequireFromString("51.25")))
	assert.False(t, info.Paused)
	assert.True(t, info.TotalSupply.Equal(decimal.NewFromInt(100)))
}

func TestReplay_RebuildsOrdersAndBooks(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := NewMemoryRecorder()
	record(t, rec, EventComplianceSet, CompliancePayload{Account: "alice", Allowed: true})
	record(t, rec, EventComplianceSet, CompliancePayload{Account: "bob", Allowed: true})
	record(t, rec, EventCommodityRegistered, CommodityPayload{ID: "coffee", Name: "Coffee", Symbol: "COF"})
	record(t, rec, EventMint, MintPayload{To: "alice", Commodity: "coffee", Amount: decimal.NewFromInt(20)})
	record(t, rec, EventPairAdded, PairPayload{
		Commodity:      "coffee",
		MinOrderSize:   decimal.NewFromInt(1),
		MaxOrderSize:   decimal.NewFromInt(1000),
		PricePrecision: 2,
		Active:         true,
	})

	// Sell 20@50 rests, then a buy for 10 crosses it.
	sell := domain.Order{
		ID: 1, Trader: "alice", CommodityID: "coffee",
		Side: domain.OrderSideSell, Amount: decimal.NewFromInt(20),
		Price: decimal.NewFromInt(50), FilledAmount: decimal.Zero,
		Status: domain.OrderStatusOpen, CreatedAt: now,
	}
	record(t, rec, EventOrderCreated, OrderCreatedPayload{Order: sell})

	buy := domain.Order{
		ID: 2, Trader: "bob", CommodityID: "coffee",
		Side: domain.OrderSideBuy, Amount: decimal.NewFromInt(10),
		Price: decimal.NewFromInt(51), FilledAmount: decimal.Zero,
		Status: domain.OrderStatusOpen, CreatedAt: now,
	}
	record(t, rec, EventOrderCreated, OrderCreatedPayload{Order: buy})
	record(t, rec, EventOrderFilled, OrderFilledPayload{
		Trade: domain.Trade{
			ID: "t1", CommodityID: "coffee",
			MakerOrderID: 1, TakerOrderID: 2,
			Buyer: "bob", Seller: "alice",
			Price: decimal.NewFromInt(50), Quantity: decimal.NewFromInt(10),
			ExecutedAt: now,
		},
		MakerStatus: domain.OrderStatusOpen,
		TakerStatus: domain.OrderStatusFilled,
	})

	st := newReplayState()
	require.NoError(t, Replay(context.Background(), rec.Events(), st))

	// Balances: alice escrowed 20, 10 settled to bob.
	aliceBal, _ := st.Ledger.BalanceOf("alice", "coffee")
	assert.True(t, aliceBal.IsZero())
	bobBal, _ := st.Ledger.BalanceOf("bob", "coffee")
	assert.True(t, bobBal.Equal(decimal.NewFromInt(10)))
	escrow, _ := st.Ledger.BalanceOf(ledger.EscrowAccount, "coffee")
	assert.True(t, escrow.Equal(decimal.NewFromInt(10)))

	// Orders: sell partially filled and resting, buy filled and off-book.
	replayedSell, err := st.Orders.Get(1)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusOpen, replayedSell.Status)
	assert.True(t, replayedSell.FilledAmount.Equal(decimal.NewFromInt(10)))

	replayedBuy, err := st.Orders.Get(2)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, replayedBuy.Status)

	book := st.Books.GetOrCreate("coffee")
	assert.True(t, book.Contains(1))
	assert.False(t, book.Contains(2))
	assert.Equal(t, 1, book.AskCount())

	trades := st.Trades.ListByCommodity("coffee")
	require.Len(t, trades, 1)
	assert.Equal(t, "t1", trades[0].ID)

	// New orders continue after the replayed ids.
	assert.Equal(t, uint64(3), st.Orders.NextID())
}

func TestReplay_CancelRefundsEscrow(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := NewMemoryRecorder()
	record(t, rec, EventComplianceSet, CompliancePayload{Account: "alice", Allowed: true})
	record(t, rec, EventCommodityRegistered, CommodityPayload{ID: "coffee", Name: "Coffee", Symbol: "COF"})
	record(t, rec, EventMint, MintPayload{To: "alice", Commodity: "coffee", Amount: decimal.NewFromInt(10)})
	record(t, rec, EventOrderCreated, OrderCreatedPayload{Order: domain.Order{
		ID: 1, Trader: "alice", CommodityID: "coffee",
		Side: domain.OrderSideSell, Amount: decimal.NewFromInt(10),
		Price: decimal.NewFromInt(50), FilledAmount: decimal.Zero,
		Status: domain.OrderStatusOpen, CreatedAt: now,
	}})
	record(t, rec, EventOrderCancelled, OrderClosedPayload{
		OrderID: 1, At: now.Add(time.Minute), Refund: decimal.NewFromInt(10),
	})

	st := newReplayState()
	require.NoError(t, Replay(context.Background(), rec.Events(), st))

	aliceBal, _ := st.Ledger.BalanceOf("alice", "coffee")
	assert.True(t, aliceBal.Equal(decimal.NewFromInt(10)))
	escrow, _ := st.Ledger.BalanceOf(ledger.EscrowAccount, "coffee")
	assert.True(t, escrow.IsZero())

	o, err := st.Orders.Get(1)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, o.Status)
	require.NotNil(t, o.CancelledAt)
	assert.False(t, st.Books.GetOrCreate("coffee").Contains(1))
}

func TestReplay_BreakerState(t *testing.T) {
	triggered := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rec := NewMemoryRecorder()
	record(t, rec, EventBreakerTriggered, BreakerPayload{At: triggered})

	st := newReplayState()
	require.NoError(t, Replay(context.Background(), rec.Events(), st))
	assert.True(t, st.Breaker.Active())
	assert.True(t, st.Breaker.State().TriggeredAt.Equal(triggered))

	record(t, rec, EventBreakerReset, BreakerPayload{At: triggered.Add(2 * time.Hour)})
	st = newReplayState()
	require.NoError(t, Replay(context.Background(), rec.Events(), st))
	assert.False(t, st.Breaker.Active())
}

func TestReplay_ExpirySchedulesOpenOrders(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	expires := now.Add(24 * time.Hour)

	rec := NewMemoryRecorder()
	record(t, rec, EventComplianceSet, CompliancePayload{Account: "alice", Allowed: true})
	record(t, rec, EventCommodityRegistered, CommodityPayload{ID: "coffee", Name: "Coffee", Symbol: "COF"})
	record(t, rec, EventMint, MintPayload{To: "alice", Commodity: "coffee", Amount: decimal.NewFromInt(10)})
	record(t, rec, EventOrderCreated, OrderCreatedPayload{Order: domain.Order{
		ID: 1, Trader: "alice", CommodityID: "coffee",
		Side: domain.OrderSideSell, Amount: decimal.NewFromInt(10),
		Price: decimal.NewFromInt(50), FilledAmount: decimal.Zero,
		Status: domain.OrderStatusOpen, CreatedAt: now, ExpiresAt: &expires,
	}})

	st := newReplayState()
	pairs := st.Pairs
	matcher := engine.NewMatcher(st.Books, st.Ledger, pairs, st.Breaker, st.Orders, st.Trades, 128)
	st.Expiry = engine.NewExpiryManager(time.Minute, matcher, nil, nil)

	require.NoError(t, Replay(context.Background(), rec.Events(), st))
	assert.Equal(t, 1, st.Expiry.ActiveOrderCount())
}

func TestReplay_UnknownEventType(t *testing.T) {
	st := newReplayState()
	err := Replay(context.Background(), []Event{{Seq: 1, Type: "bogus", Payload: []byte("{}")}}, st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}
