package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/eventstore"
)

// TradeStore implements eventstore.TradeStore using ClickHouse.
type TradeStore struct {
	conn     *Conn
	versions *eventstore.Versions
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(conn *Conn, versions *eventstore.Versions) *TradeStore {
	return &TradeStore{conn: conn, versions: versions}
}

// Compile-time interface check.
var _ eventstore.TradeStore = (*TradeStore)(nil)

// Insert adds one trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	return s.InsertBulk(ctx, []*domain.Trade{t})
}

// InsertBulk adds multiple trades. Fails the entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.TradeID == "" || t.Symbol == "" {
			return eventstore.ErrInvalidInput
		}
		if _, exists := seen[t.TradeID]; exists {
			return eventstore.ErrDuplicateKey
		}
		seen[t.TradeID] = struct{}{}
	}

	for _, t := range trades {
		exists, err := s.exists(ctx, t.TradeID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return eventstore.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trades (
			trade_id, symbol, timestamp_ms, date, side, quantity, price,
			trade_value, exchange, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range trades {
		err = batch.Append(
			t.TradeID, t.Symbol, uint64(t.Timestamp), t.Date, t.Side,
			t.Quantity, t.Price, t.TradeValue, t.Exchange, t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	for _, t := range trades {
		s.versions.Bump(t.Symbol)
	}
	return nil
}

// GetByDateRange retrieves trades for the symbols within [from, to]
// inclusive, ordered by (symbol, timestamp) ASC. Empty symbols means all.
func (s *TradeStore) GetByDateRange(ctx context.Context, symbols []string, from, to time.Time) ([]*domain.Trade, error) {
	query := `
		SELECT trade_id, symbol, timestamp_ms, date, side, quantity, price,
		       trade_value, exchange, created_at
		FROM trades
		WHERE date >= ? AND date <= ?
	`
	args := []any{from, to}
	if len(symbols) > 0 {
		marks, symArgs := symbolPlaceholders(symbols)
		query += fmt.Sprintf(" AND symbol IN (%s)", marks)
		args = append(args, symArgs...)
	}
	query += " ORDER BY symbol ASC, timestamp_ms ASC, trade_id ASC"

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (s *TradeStore) exists(ctx context.Context, tradeID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM trades WHERE trade_id = ?`, tradeID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanTrades(rows driver.Rows) ([]*domain.Trade, error) {
	var result []*domain.Trade
	for rows.Next() {
		var (
			t  domain.Trade
			ts uint64
		)
		err := rows.Scan(
			&t.TradeID, &t.Symbol, &ts, &t.Date, &t.Side, &t.Quantity,
			&t.Price, &t.TradeValue, &t.Exchange, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Timestamp = int64(ts)
		result = append(result, &t)
	}
	return result, rows.Err()
}
