package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether an order buys or sells commodity tokens.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderStatus represents the lifecycle state of an order. Orders are
// created OPEN and move exactly once to one of the terminal states.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusExpired   OrderStatus = "EXPIRED"
)

// Order represents a buy or sell instruction submitted by a trader.
// IDs are issued once from a monotonic counter and never reused.
type Order struct {
	ID           uint64
	Trader       string
	CommodityID  string
	Side         OrderSide
	Amount       decimal.Decimal // token quantity, up to 18 fractional digits
	Price        decimal.Decimal // limit price, up to 8 fractional digits
	FilledAmount decimal.Decimal
	Status       OrderStatus
	CreatedAt    time.Time
	ExpiresAt    *time.Time // nil for good-till-cancelled orders
	CancelledAt  *time.Time
	ExpiredAt    *time.Time
}

// Remaining returns the unfilled quantity of the order.
func (o *Order) Remaining() decimal.Decimal {
	return o.Amount.Sub(o.FilledAmount)
}

// IsTerminal reports whether the order has reached a terminal state.
// Terminal orders never change amount or filled amount again.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusExpired:
		return true
	}
	return false
}
