package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide represents buy or sell
type OrderSide string

const (
	BUY  OrderSide = "BUY"
	SELL OrderSide = "SELL"
)

// Valid reports whether s is BUY or SELL.
func (s OrderSide) Valid() bool {
	return s == BUY || s == SELL
}

// OrderStatus represents order state
type OrderStatus string

const (
	OPEN             OrderStatus = "OPEN"
	PARTIALLY_FILLED OrderStatus = "PARTIALLY_FILLED"
	FILLED           OrderStatus = "FILLED"
	CANCELLED        OrderStatus = "CANCELLED"
)

// Active reports whether an order in this status can still trade.
func (s OrderStatus) Active() bool {
	return s == OPEN || s == PARTIALLY_FILLED
}

// DefaultPriceScale is the quoting precision used when an instrument does not set one.
const DefaultPriceScale int32 = 2

// Instrument is a tradable symbol with its cached market price.
type Instrument struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	PriceScale  int32           `json:"priceScale"`
	MarketPrice decimal.Decimal `json:"marketPrice"`
}

// Order represents a single limit order
type Order struct {
	ID           string          `json:"orderId"`
	InstrumentID string          `json:"instrumentId"`
	TraderID     string          `json:"traderId"`
	Side         OrderSide       `json:"side"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int64           `json:"quantity"`
	Remaining    int64           `json:"remainingQuantity"`
	Status       OrderStatus     `json:"status"`
	Seq          uint64          `json:"seq"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Filled returns the executed quantity so far.
func (o *Order) Filled() int64 {
	return o.Quantity - o.Remaining
}

func (o *Order) active() bool {
	return o.Remaining > 0 && o.Status.Active()
}

// execute consumes qty from the order and moves it along the status machine.
func (o *Order) execute(qty int64) {
	o.Remaining -= qty
	if o.Remaining == 0 {
		o.Status = FILLED
	} else {
		o.Status = PARTIALLY_FILLED
	}
}

// Trade represents an executed trade
type Trade struct {
	ID           string          `json:"tradeId"`
	BuyOrderID   string          `json:"buyOrderId"`
	SellOrderID  string          `json:"sellOrderId"`
	InstrumentID string          `json:"instrumentId"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int64           `json:"quantity"`
	ExecutedAt   time.Time       `json:"executedAt"`
}

// Snapshot is a point-in-time copy of the active orders on both sides,
// each side in priority order.
type Snapshot struct {
	InstrumentID string  `json:"instrumentId"`
	Buys         []Order `json:"buyOrders"`
	Sells        []Order `json:"sellOrders"`
}
