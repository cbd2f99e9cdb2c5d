package engine

import (
	"container/heap"
	"sort"
	"time"

	"github.com/google/uuid"
)

// BookConfig tunes an order book. The zero value is usable.
type BookConfig struct {
	// Capacity caps the number of active resting orders. Zero means unbounded.
	Capacity int
	// Matcher defaults to PriceTimeMatcher.
	Matcher Matcher
	// NewID generates trade ids. Defaults to uuid.NewString.
	NewID func() string
	// Now stamps trades. Defaults to time.Now.
	Now func() time.Time
}

// OrderBook manages all orders for one instrument.
//
// The book is single-writer: it does no locking of its own, callers must
// serialize every method call for a given book.
type OrderBook struct {
	InstrumentID string

	// Buy orders: highest price first, then oldest
	bids *orderHeap

	// Sell orders: lowest price first, then oldest
	asks *orderHeap

	// Quick lookup by order ID, including filled and cancelled orders
	orders  map[string]*Order
	arrival []*Order

	trades []Trade
	active int

	capacity int
	matcher  Matcher
	newID    func() string
	now      func() time.Time
}

// NewOrderBook creates a new order book
func NewOrderBook(instrumentID string, cfg BookConfig) *OrderBook {
	ob := &OrderBook{
		InstrumentID: instrumentID,
		bids:         newOrderHeap(bidLess),
		asks:         newOrderHeap(askLess),
		orders:       make(map[string]*Order),
		capacity:     cfg.Capacity,
		matcher:      cfg.Matcher,
		newID:        cfg.NewID,
		now:          cfg.Now,
	}
	if ob.matcher == nil {
		ob.matcher = PriceTimeMatcher{}
	}
	if ob.newID == nil {
		ob.newID = uuid.NewString
	}
	if ob.now == nil {
		ob.now = time.Now
	}
	return ob
}

// AddOrder rests an order on its side of the book. The book takes ownership
// of the order; callers must not mutate it afterwards.
func (ob *OrderBook) AddOrder(order *Order) error {
	if order == nil {
		return NewError(CodeSystemError, "nil order")
	}
	if order.InstrumentID != ob.InstrumentID {
		return NewError(CodeSystemError, "order %s belongs to instrument %s, not %s", order.ID, order.InstrumentID, ob.InstrumentID)
	}
	if _, exists := ob.orders[order.ID]; exists {
		return NewError(CodeSystemError, "duplicate order id %s", order.ID)
	}
	if !order.Side.Valid() || !order.Price.IsPositive() || order.Remaining <= 0 || order.Status != OPEN {
		return NewError(CodeInvalidOrder, "order %s is not an open limit order", order.ID)
	}
	if ob.capacity > 0 && ob.active >= ob.capacity {
		return NewError(CodeOrderQueueFull, "instrument %s already holds %d resting orders", ob.InstrumentID, ob.active)
	}

	ob.orders[order.ID] = order
	ob.arrival = append(ob.arrival, order)
	ob.active++

	if order.Side == BUY {
		heap.Push(ob.bids, order)
	} else {
		heap.Push(ob.asks, order)
	}
	return nil
}

// CancelOrder marks an active order cancelled. It reports false, without
// error, for orders that are already cancelled or filled. The heap entry is
// discarded lazily the next time it reaches the top.
func (ob *OrderBook) CancelOrder(orderID string) (bool, error) {
	order, exists := ob.orders[orderID]
	if !exists {
		return false, NewError(CodeOrderNotFound, "order %s not found on instrument %s", orderID, ob.InstrumentID)
	}
	if !order.Status.Active() {
		return false, nil
	}

	order.Status = CANCELLED
	ob.active--
	return true, nil
}

// BestBuy returns a copy of the highest priority active buy order.
func (ob *OrderBook) BestBuy() (Order, bool) {
	if o := ob.bids.top(); o != nil {
		return *o, true
	}
	return Order{}, false
}

// BestSell returns a copy of the highest priority active sell order.
func (ob *OrderBook) BestSell() (Order, bool) {
	if o := ob.asks.top(); o != nil {
		return *o, true
	}
	return Order{}, false
}

// MatchOrders crosses the book and returns the trades produced.
func (ob *OrderBook) MatchOrders() []Trade {
	return ob.matcher.Match(ob)
}

// Order returns a copy of any order the book has accepted, whatever its status.
func (ob *OrderBook) Order(orderID string) (Order, error) {
	order, exists := ob.orders[orderID]
	if !exists {
		return Order{}, NewError(CodeOrderNotFound, "order %s not found on instrument %s", orderID, ob.InstrumentID)
	}
	return *order, nil
}

// Orders returns copies of every accepted order in arrival order.
func (ob *OrderBook) Orders() []Order {
	out := make([]Order, 0, len(ob.arrival))
	for _, o := range ob.arrival {
		out = append(out, *o)
	}
	return out
}

// Trades returns the executed trade history in execution order.
func (ob *OrderBook) Trades() []Trade {
	out := make([]Trade, len(ob.trades))
	copy(out, ob.trades)
	return out
}

// Len returns the number of active resting orders.
func (ob *OrderBook) Len() int {
	return ob.active
}

// Snapshot returns the active orders on each side in priority order.
func (ob *OrderBook) Snapshot() Snapshot {
	return Snapshot{
		InstrumentID: ob.InstrumentID,
		Buys:         activeSorted(ob.bids),
		Sells:        activeSorted(ob.asks),
	}
}

func activeSorted(h *orderHeap) []Order {
	live := make([]*Order, 0, len(h.orders))
	for _, o := range h.orders {
		if o.active() {
			live = append(live, o)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		return h.less(live[i], live[j])
	})

	out := make([]Order, len(live))
	for i, o := range live {
		out[i] = *o
	}
	return out
}

// bestBuy and bestSell hand the live orders to the matcher.
func (ob *OrderBook) bestBuy() *Order  { return ob.bids.top() }
func (ob *OrderBook) bestSell() *Order { return ob.asks.top() }

// record appends a trade and releases capacity held by orders it filled.
func (ob *OrderBook) record(trade Trade, buy, sell *Order) {
	ob.trades = append(ob.trades, trade)
	if buy.Remaining == 0 {
		ob.active--
	}
	if sell.Remaining == 0 {
		ob.active--
	}
}
