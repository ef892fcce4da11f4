// Package notify manages webhook subscriptions and delivers order and
// trade notifications to subscriber endpoints.
package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/comexhq/comex/internal/domain"
	"github.com/comexhq/comex/internal/store"
)

// Valid webhook event types.
var validEvents = map[string]bool{
	"order.created":   true,
	"trade.executed":  true,
	"order.cancelled": true,
	"order.expired":   true,
}

// UpsertRequest is the input for webhook registration.
type UpsertRequest struct {
	Account string
	URL     string
	Events  []string
}

// Service handles webhook subscription CRUD and event dispatch.
type Service struct {
	store  *store.WebhookStore
	client *http.Client
	log    zerolog.Logger
}

// NewService creates a notify Service with the given delivery timeout.
func NewService(webhookStore *store.WebhookStore, timeout time.Duration, log zerolog.Logger) *Service {
	return &Service{
		store:  webhookStore,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Upsert validates the request and creates or updates one subscription per
// requested event. Returns the resulting webhooks and whether any new
// subscription was created.
func (s *Service) Upsert(req UpsertRequest) ([]*domain.Webhook, bool, error) {
	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}
	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	seen := make(map[string]bool, len(req.Events))
	deduped := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		if !validEvents[event] {
			return nil, false, &domain.ValidationError{
				Message: "unknown event type: " + event + ", must be one of: order.created, trade.executed, order.cancelled, order.expired",
			}
		}
		if !seen[event] {
			seen[event] = true
			deduped = append(deduped, event)
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(deduped))

	for _, event := range deduped {
		w := &domain.Webhook{
			ID:        uuid.New().String(),
			Account:   req.Account,
			Event:     event,
			URL:       req.URL,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if s.store.Upsert(w) {
			anyCreated = true
			webhooks = append(webhooks, w)
		} else if existing := s.store.GetByAccountEvent(req.Account, event); existing != nil {
			webhooks = append(webhooks, existing)
		}
	}
	return webhooks, anyCreated, nil
}

// List returns the account's subscriptions.
func (s *Service) List(account string) []*domain.Webhook {
	return s.store.ListByAccount(account)
}

// Delete removes a subscription by id.
func (s *Service) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}

// orderEventPayload is the JSON body for order.* webhooks.
type orderEventPayload struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      orderEventData `json:"data"`
}

type orderEventData struct {
	OrderID   uint64          `json:"order_id"`
	Trader    string          `json:"trader"`
	Commodity string          `json:"commodity_id"`
	Side      string          `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Filled    decimal.Decimal `json:"filled_amount"`
	Remaining decimal.Decimal `json:"remaining_amount"`
	Status    string          `json:"status"`
}

// tradeEventPayload is the JSON body for trade.executed webhooks.
type tradeEventPayload struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      tradeEventData `json:"data"`
}

type tradeEventData struct {
	TradeID      string          `json:"trade_id"`
	Commodity    string          `json:"commodity_id"`
	MakerOrderID uint64          `json:"maker_order_id"`
	TakerOrderID uint64          `json:"taker_order_id"`
	Buyer        string          `json:"buyer"`
	Seller       string          `json:"seller"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// DispatchOrderCreated notifies the order's trader. Fire-and-forget.
func (s *Service) DispatchOrderCreated(order domain.Order) {
	s.dispatchOrderEvent("order.created", order)
}

// DispatchOrderCancelled notifies the order's trader. Fire-and-forget.
func (s *Service) DispatchOrderCancelled(order domain.Order) {
	s.dispatchOrderEvent("order.cancelled", order)
}

// DispatchOrderExpired notifies the order's trader. Fire-and-forget.
func (s *Service) DispatchOrderExpired(order domain.Order) {
	s.dispatchOrderEvent("order.expired", order)
}

// DispatchTradeExecuted notifies both sides of the trade. Fire-and-forget.
func (s *Service) DispatchTradeExecuted(trade domain.Trade) {
	payload := tradeEventPayload{
		Event:     "trade.executed",
		Timestamp: trade.ExecutedAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: tradeEventData{
			TradeID:      trade.ID,
			Commodity:    trade.CommodityID,
			MakerOrderID: trade.MakerOrderID,
			TakerOrderID: trade.TakerOrderID,
			Buyer:        trade.Buyer,
			Seller:       trade.Seller,
			Price:        trade.Price,
			Quantity:     trade.Quantity,
		},
	}
	for _, account := range []string{trade.Buyer, trade.Seller} {
		if wh := s.store.GetByAccountEvent(account, "trade.executed"); wh != nil {
			go s.deliver(wh, "trade.executed", payload)
		}
	}
}

func (s *Service) dispatchOrderEvent(event string, order domain.Order) {
	wh := s.store.GetByAccountEvent(order.Trader, event)
	if wh == nil {
		return
	}
	payload := orderEventPayload{
		Event:     event,
		Timestamp: time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: orderEventData{
			OrderID:   order.ID,
			Trader:    order.Trader,
			Commodity: order.CommodityID,
			Side:      string(order.Side),
			Price:     order.Price,
			Amount:    order.Amount,
			Filled:    order.FilledAmount,
			Remaining: order.Remaining(),
			Status:    string(order.Status),
		},
	}
	go s.deliver(wh, event, payload)
}

// deliver posts the payload to the subscription endpoint. Delivery is
// best-effort; failures are logged and dropped.
func (s *Service) deliver(wh *domain.Webhook, eventType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	req.Header.Set("X-Webhook-Id", wh.ID)
	req.Header.Set("X-Event-Type", eventType)

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Debug().Err(err).Str("webhook_id", wh.ID).Str("event", eventType).Msg("webhook delivery failed")
		return
	}
	resp.Body.Close()
}
