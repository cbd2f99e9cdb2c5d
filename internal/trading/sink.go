package trading

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trading-system/internal/engine"
)

// Sink observes what the service did. Calls happen after the instrument's
// lock is released and always carry copies, so a sink may keep what it is given.
// Implementations must be safe for concurrent use.
type Sink interface {
	InstrumentRegistered(instrument engine.Instrument)
	OrderAccepted(order engine.Order)
	OrderRejected(req PlaceOrderRequest, err error)
	OrderCancelled(order engine.Order)
	TradeExecuted(trade engine.Trade)
	MarketPriceChanged(instrumentID string, price decimal.Decimal)
}

// NopSink ignores every event. Embed it to implement part of Sink.
type NopSink struct{}

func (NopSink) InstrumentRegistered(engine.Instrument) {}
func (NopSink) OrderAccepted(engine.Order) {}
func (NopSink) OrderRejected(PlaceOrderRequest, error) {}
func (NopSink) OrderCancelled(engine.Order) {}
func (NopSink) TradeExecuted(engine.Trade) {}
func (NopSink) MarketPriceChanged(string, decimal.Decimal) {}

// MultiSink fans every event out to each sink in order.
type MultiSink []Sink

func (m MultiSink) InstrumentRegistered(instrument engine.Instrument) {
	for _, s := range m {
		s.InstrumentRegistered(instrument)
	}
}

func (m MultiSink) OrderAccepted(order engine.Order) {
	for _, s := range m {
		s.OrderAccepted(order)
	}
}

func (m MultiSink) OrderRejected(req PlaceOrderRequest, err error) {
	for _, s := range m {
		s.OrderRejected(req, err)
	}
}

func (m MultiSink) OrderCancelled(order engine.Order) {
	for _, s := range m {
		s.OrderCancelled(order)
	}
}

func (m MultiSink) TradeExecuted(trade engine.Trade) {
	for _, s := range m {
		s.TradeExecuted(trade)
	}
}

func (m MultiSink) MarketPriceChanged(instrumentID string, price decimal.Decimal) {
	for _, s := range m {
		s.MarketPriceChanged(instrumentID, price)
	}
}

// LogSink writes events as structured log lines.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a sink logging to logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("trading")}
}

func (l *LogSink) InstrumentRegistered(instrument engine.Instrument) {
	l.logger.Info("instrument registered",
		zap.String("instrument_id", instrument.ID),
		zap.String("symbol", instrument.Symbol),
		zap.Int32("price_scale", instrument.PriceScale),
	)
}

func (l *LogSink) OrderAccepted(order engine.Order) {
	l.logger.Info("order accepted",
		zap.String("order_id", order.ID),
		zap.String("instrument_id", order.InstrumentID),
		zap.String("trader_id", order.TraderID),
		zap.String("side", string(order.Side)),
		zap.Stringer("price", order.Price),
		zap.Int64("quantity", order.Quantity),
		zap.Int64("remaining", order.Remaining),
		zap.String("status", string(order.Status)),
		zap.Uint64("seq", order.Seq),
	)
}

func (l *LogSink) OrderRejected(req PlaceOrderRequest, err error) {
	l.logger.Warn("order rejected",
		zap.String("instrument_id", req.InstrumentID),
		zap.String("trader_id", req.TraderID),
		zap.String("side", string(req.Side)),
		zap.Stringer("price", req.Price),
		zap.Int64("quantity", req.Quantity),
		zap.String("code", string(engine.CodeOf(err))),
		zap.Error(err),
	)
}

func (l *LogSink) OrderCancelled(order engine.Order) {
	l.logger.Info("order cancelled",
		zap.String("order_id", order.ID),
		zap.String("instrument_id", order.InstrumentID),
		zap.Int64("remaining", order.Remaining),
	)
}

func (l *LogSink) TradeExecuted(trade engine.Trade) {
	l.logger.Info("trade executed",
		zap.String("trade_id", trade.ID),
		zap.String("instrument_id", trade.InstrumentID),
		zap.String("buy_order_id", trade.BuyOrderID),
		zap.String("sell_order_id", trade.SellOrderID),
		zap.Stringer("price", trade.Price),
		zap.Int64("quantity", trade.Quantity),
	)
}

func (l *LogSink) MarketPriceChanged(instrumentID string, price decimal.Decimal) {
	l.logger.Debug("market price changed",
		zap.String("instrument_id", instrumentID),
		zap.Stringer("price", price),
	)
}
