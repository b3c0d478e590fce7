package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/eventstore"
	"market-analytics-lab/internal/observability"
)

const wsReadDeadline = 60 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Frame is one websocket ingest message: a batch of records of one kind.
type Frame struct {
	Type         string      `json:"type"` // "price_bar" | "trade" | "transaction"
	Bars         []WireBar   `json:"bars,omitempty"`
	Trades       []WireTrade `json:"trades,omitempty"`
	Transactions []WireTx    `json:"transactions,omitempty"`
}

// Ack is the reply to each frame.
type Ack struct {
	Status   string `json:"status"` // "ok" | "error"
	Inserted int    `json:"inserted,omitempty"`
	Error    string `json:"error,omitempty"`
}

// WireBar is the JSON framing of a price bar.
type WireBar struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// WireTrade is the JSON framing of a market trade.
type WireTrade struct {
	TradeID  string  `json:"trade_id"`
	Symbol   string  `json:"symbol"`
	TsMs     int64   `json:"timestamp_ms"`
	Date     string  `json:"date"`
	Side     string  `json:"side"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
	Exchange string  `json:"exchange"`
}

// WireTx is the JSON framing of a portfolio transaction.
type WireTx struct {
	TransactionID string  `json:"transaction_id"`
	PortfolioID   string  `json:"portfolio_id"`
	TsMs          int64   `json:"timestamp_ms"`
	Date          string  `json:"date"`
	Symbol        string  `json:"symbol"`
	Sector        string  `json:"sector"`
	Type          string  `json:"transaction_type"`
	Quantity      float64 `json:"quantity"`
	Price         float64 `json:"price"`
	TotalAmount   float64 `json:"total_amount"`
	Fees          float64 `json:"fees"`
}

// WSIngestor accepts websocket connections and streams JSON-framed batches
// into the event store. Each frame is acknowledged individually so a client
// can tell which batch a duplicate-key rejection belongs to.
type WSIngestor struct {
	store   *eventstore.Store
	metrics *observability.Metrics
	log     zerolog.Logger
}

// NewWSIngestor creates the ingest endpoint handler. metrics may be nil.
func NewWSIngestor(store *eventstore.Store, metrics *observability.Metrics) *WSIngestor {
	return &WSIngestor{
		store:   store,
		metrics: metrics,
		log:     observability.NewLogger("ws-ingest"),
	}
}

// ServeHTTP upgrades the connection and runs the read loop until the client
// disconnects or the request context is cancelled.
func (s *WSIngestor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.WSConnections.Inc()
		defer s.metrics.WSConnections.Dec()
	}
	s.log.Info().Str("remote", r.RemoteAddr).Msg("ingest client connected")

	ctx := r.Context()
	for {
		conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn().Err(err).Msg("ingest client dropped")
			}
			return
		}
		if s.metrics != nil {
			s.metrics.WSMessagesTotal.Inc()
		}

		ack := s.handleFrame(ctx, data)
		if err := conn.WriteJSON(ack); err != nil {
			s.log.Warn().Err(err).Msg("ack write failed")
			return
		}
	}
}

func (s *WSIngestor) handleFrame(ctx context.Context, data []byte) Ack {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.countError("frame", "decode")
		return Ack{Status: "error", Error: "malformed frame: " + err.Error()}
	}

	var inserted int
	var err error
	switch frame.Type {
	case "price_bar":
		inserted, err = s.ingestBars(ctx, frame.Bars)
	case "trade":
		inserted, err = s.ingestTrades(ctx, frame.Trades)
	case "transaction":
		inserted, err = s.ingestTransactions(ctx, frame.Transactions)
	default:
		s.countError("frame", "unknown_type")
		return Ack{Status: "error", Error: "unknown frame type " + frame.Type}
	}
	if err != nil {
		s.countError(frame.Type, errorType(err))
		return Ack{Status: "error", Error: err.Error()}
	}

	s.countIngested(frame.Type, inserted)
	return Ack{Status: "ok", Inserted: inserted}
}

func (s *WSIngestor) ingestBars(ctx context.Context, wires []WireBar) (int, error) {
	bars := make([]*domain.PriceBar, 0, len(wires))
	for i := range wires {
		bar, err := wires[i].toDomain()
		if err != nil {
			return 0, err
		}
		bars = append(bars, bar)
	}
	if err := s.store.Bars.InsertBulk(ctx, bars); err != nil {
		return 0, err
	}
	return len(bars), nil
}

func (s *WSIngestor) ingestTrades(ctx context.Context, wires []WireTrade) (int, error) {
	trades := make([]*domain.Trade, 0, len(wires))
	for i := range wires {
		trade, err := wires[i].toDomain()
		if err != nil {
			return 0, err
		}
		trades = append(trades, trade)
	}
	if err := s.store.Trades.InsertBulk(ctx, trades); err != nil {
		return 0, err
	}
	return len(trades), nil
}

func (s *WSIngestor) ingestTransactions(ctx context.Context, wires []WireTx) (int, error) {
	txs := make([]*domain.Transaction, 0, len(wires))
	for i := range wires {
		tx, err := wires[i].toDomain()
		if err != nil {
			return 0, err
		}
		txs = append(txs, tx)
	}
	if err := s.store.Transactions.InsertBulk(ctx, txs); err != nil {
		return 0, err
	}
	return len(txs), nil
}

func (s *WSIngestor) countIngested(kind string, n int) {
	if s.metrics == nil || n == 0 {
		return
	}
	s.metrics.RowsIngested.WithLabelValues(kind).Add(float64(n))
	s.metrics.LastIngestedUnix.SetToCurrentTime()
}

func (s *WSIngestor) countError(kind, errType string) {
	if s.metrics != nil {
		s.metrics.IngestErrors.WithLabelValues(kind, errType).Inc()
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, eventstore.ErrDuplicateKey):
		return "duplicate"
	case errors.Is(err, eventstore.ErrInvalidInput):
		return "invalid"
	default:
		return "store"
	}
}

func (w *WireBar) toDomain() (*domain.PriceBar, error) {
	date, err := time.ParseInLocation(domain.DateLayout, w.Date, time.UTC)
	if err != nil {
		return nil, err
	}
	bar := &domain.PriceBar{
		Symbol: w.Symbol,
		Date:   date,
		Open:   w.Open,
		High:   w.High,
		Low:    w.Low,
		Close:  w.Close,
		Volume: w.Volume,
	}
	if err := bar.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", eventstore.ErrInvalidInput, err)
	}
	return bar, nil
}

func (w *WireTrade) toDomain() (*domain.Trade, error) {
	date, err := time.ParseInLocation(domain.DateLayout, w.Date, time.UTC)
	if err != nil {
		return nil, err
	}
	trade := &domain.Trade{
		TradeID:    w.TradeID,
		Symbol:     w.Symbol,
		Timestamp:  w.TsMs,
		Date:       date,
		Side:       w.Side,
		Quantity:   w.Quantity,
		Price:      w.Price,
		TradeValue: float64(w.Quantity) * w.Price,
		Exchange:   w.Exchange,
	}
	if err := trade.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", eventstore.ErrInvalidInput, err)
	}
	return trade, nil
}

func (w *WireTx) toDomain() (*domain.Transaction, error) {
	date, err := time.ParseInLocation(domain.DateLayout, w.Date, time.UTC)
	if err != nil {
		return nil, err
	}
	tx := &domain.Transaction{
		TransactionID: w.TransactionID,
		PortfolioID:   w.PortfolioID,
		Timestamp:     w.TsMs,
		Date:          date,
		Symbol:        w.Symbol,
		Sector:        w.Sector,
		Type:          w.Type,
		Quantity:      w.Quantity,
		Price:         w.Price,
		TotalAmount:   w.TotalAmount,
		Fees:          w.Fees,
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", eventstore.ErrInvalidInput, err)
	}
	return tx, nil
}
