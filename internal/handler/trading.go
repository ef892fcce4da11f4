package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/comexhq/comex/internal/domain"
	"github.com/comexhq/comex/internal/service"
)

// TradingHandler handles HTTP requests for pairs, orders, the book and
// the circuit breaker.
type TradingHandler struct {
	tradingSvc *service.TradingService
}

// NewTradingHandler creates a new TradingHandler.
func NewTradingHandler(tradingSvc *service.TradingService) *TradingHandler {
	return &TradingHandler{tradingSvc: tradingSvc}
}

// addPairRequest is the JSON request body for POST /pairs.
type addPairRequest struct {
	Commodity      string          `json:"commodity_id"`
	MinOrderSize   decimal.Decimal `json:"min_order_size"`
	MaxOrderSize   decimal.Decimal `json:"max_order_size"`
	PricePrecision int32           `json:"price_precision"`
}

// pairResponse is the JSON representation of a trading pair.
type pairResponse struct {
	Commodity      string          `json:"commodity_id"`
	MinOrderSize   decimal.Decimal `json:"min_order_size"`
	MaxOrderSize   decimal.Decimal `json:"max_order_size"`
	PricePrecision int32           `json:"price_precision"`
	Active         bool            `json:"active"`
}

func buildPairResponse(p domain.TradingPair) pairResponse {
	return pairResponse{
		Commodity:      p.CommodityID,
		MinOrderSize:   p.MinOrderSize,
		MaxOrderSize:   p.MaxOrderSize,
		PricePrecision: p.PricePrecision,
		Active:         p.Active,
	}
}

// AddPair handles POST /pairs.
func (h *TradingHandler) AddPair(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req addPairRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	pair, err := h.tradingSvc.AddTradingPair(r.Context(), caller, req.Commodity, req.MinOrderSize, req.MaxOrderSize, req.PricePrecision)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, buildPairResponse(pair))
}

// setPairActiveRequest is the JSON request body for PATCH /pairs/{commodity}.
type setPairActiveRequest struct {
	Active bool `json:"active"`
}

// SetPairActive handles PATCH /pairs/{commodity}.
func (h *TradingHandler) SetPairActive(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	commodity := chi.URLParam(r, "commodity")

	var req setPairActiveRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.tradingSvc.SetPairActive(r.Context(), caller, commodity, req.Active); err != nil {
		WriteDomainError(w, err)
		return
	}
	pair, err := h.tradingSvc.Pair(commodity)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildPairResponse(pair))
}

// GetPair handles GET /pairs/{commodity}.
func (h *TradingHandler) GetPair(w http.ResponseWriter, r *http.Request) {
	pair, err := h.tradingSvc.Pair(chi.URLParam(r, "commodity"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildPairResponse(pair))
}

// ListPairs handles GET /pairs.
func (h *TradingHandler) ListPairs(w http.ResponseWriter, r *http.Request) {
	pairs := h.tradingSvc.ListPairs()
	out := make([]pairResponse, len(pairs))
	for i, p := range pairs {
		out[i] = buildPairResponse(p)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"pairs": out})
}

// createOrderRequest is the JSON request body for POST /orders.
type createOrderRequest struct {
	Commodity string          `json:"commodity_id"`
	Side      string          `json:"side"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	ExpiresAt *string         `json:"expires_at"`
}

// orderResponse is the JSON representation of an order.
type orderResponse struct {
	OrderID     uint64          `json:"order_id"`
	Trader      string          `json:"trader"`
	Commodity   string          `json:"commodity_id"`
	Side        string          `json:"side"`
	Amount      decimal.Decimal `json:"amount"`
	Price       decimal.Decimal `json:"price"`
	Filled      decimal.Decimal `json:"filled_amount"`
	Remaining   decimal.Decimal `json:"remaining_amount"`
	Status      string          `json:"status"`
	CreatedAt   string          `json:"created_at"`
	ExpiresAt   *string         `json:"expires_at"`
	CancelledAt *string         `json:"cancelled_at"`
	ExpiredAt   *string         `json:"expired_at"`
}

// tradeResponse is the JSON representation of a trade.
type tradeResponse struct {
	TradeID      string          `json:"trade_id"`
	Commodity    string          `json:"commodity_id"`
	MakerOrderID uint64          `json:"maker_order_id"`
	TakerOrderID uint64          `json:"taker_order_id"`
	Buyer        string          `json:"buyer"`
	Seller       string          `json:"seller"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	ExecutedAt   string          `json:"executed_at"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func buildOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		OrderID:     o.ID,
		Trader:      o.Trader,
		Commodity:   o.CommodityID,
		Side:        string(o.Side),
		Amount:      o.Amount,
		Price:       o.Price,
		Filled:      o.FilledAmount,
		Remaining:   o.Remaining(),
		Status:      string(o.Status),
		CreatedAt:   formatTime(o.CreatedAt),
		ExpiresAt:   formatTimePtr(o.ExpiresAt),
		CancelledAt: formatTimePtr(o.CancelledAt),
		ExpiredAt:   formatTimePtr(o.ExpiredAt),
	}
}

func buildTradeResponses(trades []*domain.Trade) []tradeResponse {
	out := make([]tradeResponse, len(trades))
	for i, t := range trades {
		out[i] = tradeResponse{
			TradeID:      t.ID,
			Commodity:    t.CommodityID,
			MakerOrderID: t.MakerOrderID,
			TakerOrderID: t.TakerOrderID,
			Buyer:        t.Buyer,
			Seller:       t.Seller,
			Price:        t.Price,
			Quantity:     t.Quantity,
			ExecutedAt:   formatTime(t.ExecutedAt),
		}
	}
	return out
}

// CreateOrder handles POST /orders. The trader is the authenticated
// caller.
func (h *TradingHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "expires_at must be a valid RFC 3339 timestamp")
			return
		}
		expiresAt = &t
	}

	out, err := h.tradingSvc.CreateOrder(r.Context(), service.CreateOrderRequest{
		Trader:    caller,
		Commodity: req.Commodity,
		Side:      domain.OrderSide(req.Side),
		Amount:    req.Amount,
		Price:     req.Price,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{
		"order":  buildOrderResponse(out.Order),
		"trades": buildTradeResponses(out.Trades),
	})
}

// orderIDParam parses the {order_id} path parameter.
func orderIDParam(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "order_id"), 10, 64)
}

// GetOrder handles GET /orders/{order_id}.
func (h *TradingHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "order_id must be a positive integer")
		return
	}

	order, err := h.tradingSvc.GetOrder(orderID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// CancelOrder handles DELETE /orders/{order_id}.
func (h *TradingHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	orderID, err := orderIDParam(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "order_id must be a positive integer")
		return
	}

	order, err := h.tradingSvc.CancelOrder(r.Context(), caller, orderID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// ListOrders handles GET /accounts/{account}/orders.
func (h *TradingHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	orders := h.tradingSvc.ListOrdersByTrader(account)
	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = buildOrderResponse(o)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"orders": out})
}

// bookLevel is one resting order in the book response.
type bookLevel struct {
	OrderID   uint64          `json:"order_id"`
	Price     decimal.Decimal `json:"price"`
	Remaining decimal.Decimal `json:"remaining_amount"`
}

// GetBook handles GET /commodities/{commodity}/book. Bids are sorted by
// descending price, asks by ascending price, ties by order id.
func (h *TradingHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	commodity := chi.URLParam(r, "commodity")

	snap, err := h.tradingSvc.GetOrderBook(commodity)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	toLevels := func(orders []domain.Order) []bookLevel {
		levels := make([]bookLevel, len(orders))
		for i, o := range orders {
			levels[i] = bookLevel{OrderID: o.ID, Price: o.Price, Remaining: o.Remaining()}
		}
		return levels
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"commodity_id": snap.CommodityID,
		"bids":         toLevels(snap.Bids),
		"asks":         toLevels(snap.Asks),
	})
}

// ListTrades handles GET /commodities/{commodity}/trades.
func (h *TradingHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	commodity := chi.URLParam(r, "commodity")

	trades, err := h.tradingSvc.ListTrades(commodity)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"trades": buildTradeResponses(trades)})
}

// TriggerBreaker handles POST /breaker/trigger.
func (h *TradingHandler) TriggerBreaker(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.tradingSvc.TriggerCircuitBreaker(r.Context(), caller); err != nil {
		WriteDomainError(w, err)
		return
	}
	h.writeBreakerState(w)
}

// ResetBreaker handles POST /breaker/reset.
func (h *TradingHandler) ResetBreaker(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.tradingSvc.ResetCircuitBreaker(r.Context(), caller); err != nil {
		WriteDomainError(w, err)
		return
	}
	h.writeBreakerState(w)
}

// GetBreaker handles GET /breaker.
func (h *TradingHandler) GetBreaker(w http.ResponseWriter, r *http.Request) {
	h.writeBreakerState(w)
}

func (h *TradingHandler) writeBreakerState(w http.ResponseWriter) {
	state := h.tradingSvc.CircuitBreakerState()
	resp := map[string]any{
		"phase":            string(state.Phase),
		"cooldown_seconds": int64(state.Cooldown.Seconds()),
	}
	if !state.TriggeredAt.IsZero() {
		resp["triggered_at"] = formatTime(state.TriggeredAt)
	}
	WriteJSON(w, http.StatusOK, resp)
}
