package engine

import "github.com/shopspring/decimal"

// PriceCalculator derives a display price from a book. It never affects matching.
type PriceCalculator interface {
	MarketPrice(book *OrderBook, scale int32) decimal.Decimal
}

var two = decimal.NewFromInt(2)

// MidPriceCalculator quotes the mid of best bid and best ask, rounded half up
// at the instrument's scale. A one-sided or empty book quotes zero.
type MidPriceCalculator struct{}

// MarketPrice implements PriceCalculator.
func (MidPriceCalculator) MarketPrice(book *OrderBook, scale int32) decimal.Decimal {
	buy := book.bestBuy()
	sell := book.bestSell()
	if buy == nil || sell == nil {
		return decimal.Zero
	}
	return MidPrice(buy.Price, sell.Price, scale)
}

// MidPrice returns round_half_up((bid + ask) / 2) at scale decimal places.
// Prices are positive, so rounding half away from zero is rounding half up.
func MidPrice(bid, ask decimal.Decimal, scale int32) decimal.Decimal {
	return bid.Add(ask).DivRound(two, scale)
}
