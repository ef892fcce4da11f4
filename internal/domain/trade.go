package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade records a single fill between a resting maker order and an
// incoming taker order. The price is always the maker's price.
type Trade struct {
	ID           string
	CommodityID  string
	MakerOrderID uint64
	TakerOrderID uint64
	Buyer        string
	Seller       string
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	ExecutedAt   time.Time
}
