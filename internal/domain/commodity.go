package domain

import "github.com/shopspring/decimal"

// Precision limits for fixed-point values, matching the token's 18
// fractional digits for quantities and 8 for prices.
const (
	AmountDecimals = 18
	PriceDecimals  = 8
)

// Commodity is the per-commodity token record: identity, supply and the
// externally sourced quality score and reference price.
type Commodity struct {
	ID             string
	Name           string
	Symbol         string
	TotalSupply    decimal.Decimal
	QualityScore   int             // 0 to 100, set by a quality verifier
	ReferencePrice decimal.Decimal // set by a price updater, zero until first update
	Paused         bool
}

// TradingPair holds the trading parameters for a commodity.
type TradingPair struct {
	CommodityID    string
	MinOrderSize   decimal.Decimal
	MaxOrderSize   decimal.Decimal
	PricePrecision int32 // max fractional digits accepted in limit prices
	Active         bool
}
