package feed

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trading-system/internal/config"
	"trading-system/internal/engine"
	"trading-system/internal/trading"
)

// EventType names a feed event.
type EventType string

const (
	INSTRUMENT_REGISTERED EventType = "INSTRUMENT_REGISTERED"
	ORDER_ACCEPTED        EventType = "ORDER_ACCEPTED"
	ORDER_REJECTED        EventType = "ORDER_REJECTED"
	ORDER_CANCELLED       EventType = "ORDER_CANCELLED"
	TRADE_EXECUTED        EventType = "TRADE_EXECUTED"
	MARKET_PRICE_CHANGED  EventType = "MARKET_PRICE_CHANGED"
)

const (
	maxBatch     = 256
	flushTimeout = 5 * time.Second
)

// Event is the JSON payload of one Kafka message. Exactly one of the
// pointer fields is set, matching Type.
type Event struct {
	Type         EventType          `json:"type"`
	InstrumentID string             `json:"instrumentId"`
	Instrument   *engine.Instrument `json:"instrument,omitempty"`
	Order        *engine.Order      `json:"order,omitempty"`
	Trade        *engine.Trade      `json:"trade,omitempty"`
	Price        *decimal.Decimal   `json:"price,omitempty"`
	Rejection    *Rejection         `json:"rejection,omitempty"`
}

// Rejection describes a refused order request.
type Rejection struct {
	TraderID  string           `json:"traderId"`
	Side      engine.OrderSide `json:"side"`
	Price     decimal.Decimal  `json:"price"`
	Quantity  int64            `json:"quantity"`
	ErrorCode engine.Code      `json:"errorCode"`
	Message   string           `json:"message"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is a trading.Sink that streams events to a Kafka topic keyed by
// instrument id, so one instrument's events stay ordered within a partition.
// Sink calls never block: when the buffer is full the event is dropped.
type Publisher struct {
	writer  messageWriter
	events  chan Event
	logger  *zap.Logger
	dropped atomic.Uint64
}

var _ trading.Sink = (*Publisher)(nil)

// NewPublisher creates a publisher writing to cfg.Topic on cfg.Brokers.
func NewPublisher(cfg config.FeedConfig, logger *zap.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newPublisher(w, cfg.Buffer, logger)
}

func newPublisher(w messageWriter, buffer int, logger *zap.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Publisher{
		writer: w,
		events: make(chan Event, buffer),
		logger: logger.Named("feed"),
	}
}

// Run writes buffered events until ctx is done, then flushes what is left.
func (p *Publisher) Run(ctx context.Context) {
	batch := make([]Event, 0, maxBatch)
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return
		case ev := <-p.events:
			batch = append(batch[:0], ev)
			batch = p.fill(batch)
			p.write(ctx, batch)
		}
	}
}

// Dropped returns how many events were lost to a full buffer.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Close releases the Kafka writer. Call it after Run has returned.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// fill appends whatever is already queued, up to maxBatch.
func (p *Publisher) fill(batch []Event) []Event {
	for len(batch) < maxBatch {
		select {
		case ev := <-p.events:
			batch = append(batch, ev)
		default:
			return batch
		}
	}
	return batch
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	batch := make([]Event, 0, maxBatch)
	for {
		batch = p.fill(batch[:0])
		if len(batch) == 0 {
			return
		}
		p.write(ctx, batch)
	}
}

func (p *Publisher) write(ctx context.Context, batch []Event) {
	msgs := make([]kafka.Message, 0, len(batch))
	for _, ev := range batch {
		value, err := sonic.Marshal(ev)
		if err != nil {
			p.logger.Error("encode event", zap.String("type", string(ev.Type)), zap.Error(err))
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.InstrumentID),
			Value: value,
		})
	}
	if len(msgs) == 0 {
		return
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("write events", zap.Int("count", len(msgs)), zap.Error(err))
	}
}

func (p *Publisher) publish(ev Event) {
	select {
	case p.events <- ev:
	default:
		n := p.dropped.Add(1)
		p.logger.Warn("feed buffer full, event dropped",
			zap.String("type", string(ev.Type)),
			zap.String("instrument_id", ev.InstrumentID),
			zap.Uint64("dropped", n),
		)
	}
}

func (p *Publisher) InstrumentRegistered(instrument engine.Instrument) {
	p.publish(Event{Type: INSTRUMENT_REGISTERED, InstrumentID: instrument.ID, Instrument: &instrument})
}

func (p *Publisher) OrderAccepted(order engine.Order) {
	p.publish(Event{Type: ORDER_ACCEPTED, InstrumentID: order.InstrumentID, Order: &order})
}

func (p *Publisher) OrderRejected(req trading.PlaceOrderRequest, err error) {
	p.publish(Event{
		Type:         ORDER_REJECTED,
		InstrumentID: req.InstrumentID,
		Rejection: &Rejection{
			TraderID:  req.TraderID,
			Side:      req.Side,
			Price:     req.Price,
			Quantity:  req.Quantity,
			ErrorCode: engine.CodeOf(err),
			Message:   err.Error(),
		},
	})
}

func (p *Publisher) OrderCancelled(order engine.Order) {
	p.publish(Event{Type: ORDER_CANCELLED, InstrumentID: order.InstrumentID, Order: &order})
}

func (p *Publisher) TradeExecuted(trade engine.Trade) {
	p.publish(Event{Type: TRADE_EXECUTED, InstrumentID: trade.InstrumentID, Trade: &trade})
}

func (p *Publisher) MarketPriceChanged(instrumentID string, price decimal.Decimal) {
	p.publish(Event{Type: MARKET_PRICE_CHANGED, InstrumentID: instrumentID, Price: &price})
}
