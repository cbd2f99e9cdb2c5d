package api

import (
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trading-system/internal/engine"
	"trading-system/internal/trading"
)

// Server exposes the trading service over HTTP
type Server struct {
	service         *trading.Service
	router          *mux.Router
	logger          *zap.Logger
	startTime       time.Time
	ordersReceived  atomic.Int64
	ordersRejected  atomic.Int64
	ordersCancelled atomic.Int64
	tradesExecuted  atomic.Int64
}

// NewServer creates a new API server
func NewServer(service *trading.Service, logger *zap.Logger) *Server {
	s := &Server{
		service:   service,
		router:    mux.NewRouter(),
		logger:    logger.Named("api"),
		startTime: time.Now(),
	}

	s.registerRoutes()

	return s
}

// Handler returns the routed handler, for use in an http.Server
func (s *Server) Handler() http.Handler {
	return s.router
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	s.router.Use(s.logRequests)

	api := s.router.PathPrefix("/api/trading").Subrouter()

	api.HandleFunc("/instruments", s.handleRegisterInstrument).Methods("POST")
	api.HandleFunc("/instruments", s.handleListInstruments).Methods("GET")
	api.HandleFunc("/instruments/{id}/orders", s.handlePlaceOrder).Methods("POST")
	api.HandleFunc("/instruments/{id}/order", s.handlePlaceOrder).Methods("POST") // legacy path
	api.HandleFunc("/instruments/{id}/orders/{order_id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/instruments/{id}/orders/{order_id}", s.handleCancelOrder).Methods("DELETE")
	api.HandleFunc("/instruments/{id}/price", s.handleGetPrice).Methods("GET")
	api.HandleFunc("/instruments/{id}/orderbook", s.handleGetOrderBook).Methods("GET")
	api.HandleFunc("/instruments/{id}/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/orders", s.handleListTraderOrders).Methods("GET")

	// Health and metrics
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
}

// RegisterInstrumentRequest is the body of POST /instruments
type RegisterInstrumentRequest struct {
	Symbol string `json:"symbol"`
}

// PlaceOrderRequest is the body of POST /instruments/{id}/orders. Price may be
// sent as a JSON string or number.
type PlaceOrderRequest struct {
	TraderID string           `json:"traderId"`
	Side     engine.OrderSide `json:"side"`
	Price    decimal.Decimal  `json:"price"`
	Quantity int64            `json:"quantity"`
}

// CancelResponse reports the outcome of a cancel request
type CancelResponse struct {
	Cancelled bool   `json:"cancelled"`
	Message   string `json:"message"`
}

// PriceResponse is the current market price of an instrument
type PriceResponse struct {
	InstrumentID string          `json:"instrumentId"`
	Price        decimal.Decimal `json:"price"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	ErrorCode engine.Code `json:"errorCode"`
	Message   string      `json:"message"`
}

// handleRegisterInstrument handles POST /api/trading/instruments
func (s *Server) handleRegisterInstrument(w http.ResponseWriter, r *http.Request) {
	var req RegisterInstrumentRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, engine.NewError(engine.CodeInvalidInstrument, "invalid JSON: %v", err))
		return
	}

	inst, err := s.service.RegisterInstrument(req.Symbol)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, inst)
}

// handleListInstruments handles GET /api/trading/instruments
func (s *Server) handleListInstruments(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.service.ListInstruments())
}

// handlePlaceOrder handles POST /api/trading/instruments/{id}/orders
func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := decode(r, &req); err != nil {
		s.ordersRejected.Add(1)
		s.respondError(w, engine.NewError(engine.CodeInvalidOrder, "invalid JSON: %v", err))
		return
	}

	result, err := s.service.PlaceOrder(trading.PlaceOrderRequest{
		InstrumentID: mux.Vars(r)["id"],
		TraderID:     req.TraderID,
		Side:         req.Side,
		Price:        req.Price,
		Quantity:     req.Quantity,
	})
	if err != nil {
		s.ordersRejected.Add(1)
		s.respondError(w, err)
		return
	}

	s.ordersReceived.Add(1)
	s.tradesExecuted.Add(int64(len(result.Trades)))

	respondJSON(w, http.StatusCreated, result)
}

// handleGetOrder handles GET /api/trading/instruments/{id}/orders/{order_id}
func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	order, err := s.service.GetOrder(vars["id"], vars["order_id"])
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// handleCancelOrder handles DELETE /api/trading/instruments/{id}/orders/{order_id}
func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cancelled, err := s.service.CancelOrder(vars["id"], vars["order_id"])
	if err != nil {
		s.respondError(w, err)
		return
	}

	resp := CancelResponse{Cancelled: cancelled, Message: "order cancelled"}
	if cancelled {
		s.ordersCancelled.Add(1)
	} else {
		resp.Message = "order is no longer active"
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleGetPrice handles GET /api/trading/instruments/{id}/price
func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	price, err := s.service.MarketPrice(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, PriceResponse{InstrumentID: id, Price: price})
}

// handleGetOrderBook handles GET /api/trading/instruments/{id}/orderbook
func (s *Server) handleGetOrderBook(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.service.OrderBookSnapshot(mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// handleGetTrades handles GET /api/trading/instruments/{id}/trades
func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.service.Trades(mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trades)
}

// handleListTraderOrders handles GET /api/trading/orders?traderId=
func (s *Server) handleListTraderOrders(w http.ResponseWriter, r *http.Request) {
	traderID := r.URL.Query().Get("traderId")
	if traderID == "" {
		s.respondError(w, engine.NewError(engine.CodeInvalidOrder, "traderId is required"))
		return
	}
	respondJSON(w, http.StatusOK, s.service.ListOrdersByTrader(traderID))
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.startTime).Seconds()

	response := map[string]interface{}{
		"status":           "healthy",
		"uptime_seconds":   int64(uptime),
		"orders_processed": s.ordersReceived.Load(),
	}

	respondJSON(w, http.StatusOK, response)
}

// handleMetrics handles GET /metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"instruments":      len(s.service.ListInstruments()),
		"orders_received":  s.ordersReceived.Load(),
		"orders_rejected":  s.ordersRejected.Load(),
		"orders_cancelled": s.ordersCancelled.Load(),
		"trades_executed":  s.tradesExecuted.Load(),
	}

	respondJSON(w, http.StatusOK, response)
}

// Helper functions

// statusFor maps an error code to its HTTP status
func statusFor(code engine.Code) int {
	switch code {
	case engine.CodeInstrumentNotFound, engine.CodeOrderNotFound:
		return http.StatusNotFound
	case engine.CodeInvalidOrder, engine.CodeInvalidInstrument:
		return http.StatusBadRequest
	case engine.CodeOrderQueueFull:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return sonic.Unmarshal(body, v)
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	body, err := sonic.Marshal(data)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(body)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	code := engine.CodeOf(err)
	message := err.Error()
	if e, ok := err.(*engine.Error); ok {
		message = e.Message
	}

	status := statusFor(code)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	respondJSON(w, status, ErrorResponse{ErrorCode: code, Message: message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// logRequests logs one debug line per request
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
