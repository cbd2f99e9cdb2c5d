package trading

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trading-system/internal/engine"
	"trading-system/internal/sequence"
)

// Config wires the service's collaborators. Zero fields fall back to defaults.
type Config struct {
	// BookCapacity caps active resting orders per instrument. Zero means unbounded.
	BookCapacity int
	// PriceScale is the quoting precision for instruments registered without one.
	PriceScale int32

	Sequencer *sequence.Sequencer
	Pricer    engine.PriceCalculator
	Sink      Sink
	NewID     func() string
	Now       func() time.Time
}

// InstrumentSpec describes an instrument registered under a caller chosen id.
type InstrumentSpec struct {
	ID         string
	Symbol     string
	PriceScale int32
}

// PlaceOrderRequest is a new limit order.
type PlaceOrderRequest struct {
	InstrumentID string
	TraderID     string
	Side         engine.OrderSide
	Price        decimal.Decimal
	Quantity     int64
}

// PlaceResult is the outcome of PlaceOrder.
type PlaceResult struct {
	OrderID   string             `json:"orderId"`
	Status    engine.OrderStatus `json:"status"`
	Remaining int64              `json:"remainingQuantity"`
	Trades    []engine.Trade     `json:"trades"`
}

// market pairs a book with its instrument. mu is the exclusive lock for both.
type market struct {
	mu         sync.Mutex
	instrument engine.Instrument
	book       *engine.OrderBook
}

// Service is the only entry point into the engine. It owns the instrument
// registry and keeps every instrument's market price in step with its book.
type Service struct {
	mu      sync.RWMutex
	markets map[string]*market

	capacity int
	scale    int32
	seq      *sequence.Sequencer
	pricer   engine.PriceCalculator
	sink     Sink
	newID    func() string
	now      func() time.Time
}

// NewService creates a service with no instruments.
func NewService(cfg Config) *Service {
	s := &Service{
		markets:  make(map[string]*market),
		capacity: cfg.BookCapacity,
		scale:    cfg.PriceScale,
		seq:      cfg.Sequencer,
		pricer:   cfg.Pricer,
		sink:     cfg.Sink,
		newID:    cfg.NewID,
		now:      cfg.Now,
	}
	if s.scale <= 0 {
		s.scale = engine.DefaultPriceScale
	}
	if s.seq == nil {
		s.seq = sequence.New(0)
	}
	if s.pricer == nil {
		s.pricer = engine.MidPriceCalculator{}
	}
	if s.sink == nil {
		s.sink = NopSink{}
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// RegisterInstrument creates an instrument with a fresh id and an empty book.
func (s *Service) RegisterInstrument(symbol string) (engine.Instrument, error) {
	return s.Register(InstrumentSpec{ID: s.newID(), Symbol: symbol})
}

// Register adds an instrument under spec.ID. Registering an id that already
// exists returns the existing instrument untouched.
func (s *Service) Register(spec InstrumentSpec) (engine.Instrument, error) {
	if spec.ID == "" {
		return engine.Instrument{}, engine.NewError(engine.CodeInvalidInstrument, "instrument id is required")
	}
	if spec.Symbol == "" {
		return engine.Instrument{}, engine.NewError(engine.CodeInvalidInstrument, "symbol is required")
	}
	if spec.PriceScale < 0 {
		return engine.Instrument{}, engine.NewError(engine.CodeInvalidInstrument, "price scale must be >= 0, got %d", spec.PriceScale)
	}
	scale := spec.PriceScale
	if scale == 0 {
		scale = s.scale
	}

	s.mu.Lock()
	if m, exists := s.markets[spec.ID]; exists {
		s.mu.Unlock()
		return m.snapshotInstrument(), nil
	}
	m := &market{
		instrument: engine.Instrument{
			ID:          spec.ID,
			Symbol:      spec.Symbol,
			PriceScale:  scale,
			MarketPrice: decimal.Zero,
		},
		book: engine.NewOrderBook(spec.ID, engine.BookConfig{
			Capacity: s.capacity,
			NewID:    s.newID,
			Now:      s.now,
		}),
	}
	s.markets[spec.ID] = m
	inst := m.instrument
	s.mu.Unlock()

	s.sink.InstrumentRegistered(inst)
	return inst, nil
}

// PlaceOrder validates and books a limit order, matches the book and
// refreshes the market price, all inside the instrument's critical section.
func (s *Service) PlaceOrder(req PlaceOrderRequest) (PlaceResult, error) {
	if err := validate(req); err != nil {
		s.sink.OrderRejected(req, err)
		return PlaceResult{}, err
	}
	m, err := s.market(req.InstrumentID)
	if err != nil {
		s.sink.OrderRejected(req, err)
		return PlaceResult{}, err
	}

	m.mu.Lock()
	order := &engine.Order{
		ID:           s.newID(),
		InstrumentID: req.InstrumentID,
		TraderID:     req.TraderID,
		Side:         req.Side,
		Price:        req.Price,
		Quantity:     req.Quantity,
		Remaining:    req.Quantity,
		Status:       engine.OPEN,
		Seq:          s.seq.Next(),
		CreatedAt:    s.now(),
	}
	if err := m.book.AddOrder(order); err != nil {
		m.mu.Unlock()
		s.sink.OrderRejected(req, err)
		return PlaceResult{}, err
	}
	trades := m.book.MatchOrders()
	price, changed := m.refreshPrice(s.pricer)
	placed, err := m.book.Order(order.ID)
	m.mu.Unlock()

	if err != nil {
		return PlaceResult{}, engine.NewError(engine.CodeSystemError, "order %s vanished from its book: %v", order.ID, err)
	}

	s.sink.OrderAccepted(placed)
	for _, t := range trades {
		s.sink.TradeExecuted(t)
	}
	if changed {
		s.sink.MarketPriceChanged(req.InstrumentID, price)
	}

	return PlaceResult{
		OrderID:   placed.ID,
		Status:    placed.Status,
		Remaining: placed.Remaining,
		Trades:    trades,
	}, nil
}

// CancelOrder cancels a resting order. It reports false when the order was
// already cancelled or filled.
func (s *Service) CancelOrder(instrumentID, orderID string) (bool, error) {
	m, err := s.market(instrumentID)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	cancelled, err := m.book.CancelOrder(orderID)
	if err != nil {
		m.mu.Unlock()
		return false, err
	}
	price, changed := m.refreshPrice(s.pricer)
	order, _ := m.book.Order(orderID)
	m.mu.Unlock()

	if cancelled {
		s.sink.OrderCancelled(order)
	}
	if changed {
		s.sink.MarketPriceChanged(instrumentID, price)
	}
	return cancelled, nil
}

// MarketPrice returns the cached market price of an instrument.
func (s *Service) MarketPrice(instrumentID string) (decimal.Decimal, error) {
	m, err := s.market(instrumentID)
	if err != nil {
		return decimal.Zero, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instrument.MarketPrice, nil
}

// Instrument returns one registered instrument.
func (s *Service) Instrument(instrumentID string) (engine.Instrument, error) {
	m, err := s.market(instrumentID)
	if err != nil {
		return engine.Instrument{}, err
	}
	return m.snapshotInstrument(), nil
}

// OrderBookSnapshot returns the active orders of an instrument in priority order.
func (s *Service) OrderBookSnapshot(instrumentID string) (engine.Snapshot, error) {
	m, err := s.market(instrumentID)
	if err != nil {
		return engine.Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.book.Snapshot(), nil
}

// GetOrder returns an order of any status.
func (s *Service) GetOrder(instrumentID, orderID string) (engine.Order, error) {
	m, err := s.market(instrumentID)
	if err != nil {
		return engine.Order{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.book.Order(orderID)
}

// Trades returns the trade history of an instrument in execution order.
func (s *Service) Trades(instrumentID string) ([]engine.Trade, error) {
	m, err := s.market(instrumentID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.book.Trades(), nil
}

// ListInstruments returns every instrument sorted by symbol, then id.
func (s *Service) ListInstruments() []engine.Instrument {
	markets := s.allMarkets()
	out := make([]engine.Instrument, 0, len(markets))
	for _, m := range markets {
		out = append(out, m.snapshotInstrument())
	}
	return out
}

// ListOrdersByTrader scans every book for the trader's orders, any status.
// Each book is locked on its own, so the result is not a cross-book atomic view.
func (s *Service) ListOrdersByTrader(traderID string) []engine.Order {
	out := []engine.Order{}
	for _, m := range s.allMarkets() {
		m.mu.Lock()
		for _, o := range m.book.Orders() {
			if o.TraderID == traderID {
				out = append(out, o)
			}
		}
		m.mu.Unlock()
	}
	return out
}

func (s *Service) market(instrumentID string) (*market, error) {
	s.mu.RLock()
	m, exists := s.markets[instrumentID]
	s.mu.RUnlock()
	if !exists {
		return nil, engine.NewError(engine.CodeInstrumentNotFound, "instrument %s not found", instrumentID)
	}
	return m, nil
}

// allMarkets returns the registry sorted by symbol, then id.
func (s *Service) allMarkets() []*market {
	s.mu.RLock()
	out := make([]*market, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m)
	}
	s.mu.RUnlock()

	// id and symbol never change, no lock needed to read them
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].instrument, out[j].instrument
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.ID < b.ID
	})
	return out
}

func (m *market) snapshotInstrument() engine.Instrument {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instrument
}

// refreshPrice recomputes the market price. Callers hold m.mu.
func (m *market) refreshPrice(pricer engine.PriceCalculator) (decimal.Decimal, bool) {
	price := pricer.MarketPrice(m.book, m.instrument.PriceScale)
	if price.Equal(m.instrument.MarketPrice) {
		return price, false
	}
	m.instrument.MarketPrice = price
	return price, true
}

func validate(req PlaceOrderRequest) error {
	if req.TraderID == "" {
		return engine.NewError(engine.CodeInvalidOrder, "trader id is required")
	}
	if !req.Side.Valid() {
		return engine.NewError(engine.CodeInvalidOrder, "side must be BUY or SELL, got %q", req.Side)
	}
	if !req.Price.IsPositive() {
		return engine.NewError(engine.CodeInvalidOrder, "price must be positive, got %s", req.Price)
	}
	if req.Quantity <= 0 {
		return engine.NewError(engine.CodeInvalidOrder, "quantity must be positive, got %d", req.Quantity)
	}
	return nil
}
