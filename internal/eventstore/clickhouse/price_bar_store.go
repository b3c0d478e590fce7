package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/eventstore"
)

// PriceBarStore implements eventstore.PriceBarStore using ClickHouse.
// Versions are tracked in the shared process-local tracker: ClickHouse
// itself stores no version column.
type PriceBarStore struct {
	conn     *Conn
	versions *eventstore.Versions
}

// NewPriceBarStore creates a new PriceBarStore.
func NewPriceBarStore(conn *Conn, versions *eventstore.Versions) *PriceBarStore {
	return &PriceBarStore{conn: conn, versions: versions}
}

// Compile-time interface check.
var _ eventstore.PriceBarStore = (*PriceBarStore)(nil)

// Insert adds one bar. Returns ErrDuplicateKey if (symbol, date) exists.
func (s *PriceBarStore) Insert(ctx context.Context, b *domain.PriceBar) error {
	return s.InsertBulk(ctx, []*domain.PriceBar{b})
}

// InsertBulk adds multiple bars. Fails the entire batch on any duplicate.
func (s *PriceBarStore) InsertBulk(ctx context.Context, bars []*domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	type key struct {
		symbol string
		date   string
	}
	seen := make(map[key]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Symbol == "" {
			return eventstore.ErrInvalidInput
		}
		k := key{b.Symbol, b.Date.Format(domain.DateLayout)}
		if _, exists := seen[k]; exists {
			return eventstore.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// MergeTree does not enforce uniqueness; check before inserting.
	for _, b := range bars {
		exists, err := s.exists(ctx, b.Symbol, b.Date)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return eventstore.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_bars (
			symbol, date, seq, open, high, low, close, volume, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			b.Symbol, b.Date, uint64(b.Seq),
			b.Open, b.High, b.Low, b.Close, b.Volume, b.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	for _, b := range bars {
		s.versions.Bump(b.Symbol)
	}
	return nil
}

// GetBySymbol retrieves all bars for a symbol, ordered by (date, seq) ASC.
func (s *PriceBarStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.PriceBar, error) {
	query := `
		SELECT symbol, date, seq, open, high, low, close, volume, created_at
		FROM price_bars
		WHERE symbol = ?
		ORDER BY date ASC, seq ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetByDateRange retrieves bars for the symbols within [from, to] inclusive,
// ordered by (symbol, date, seq) ASC. Empty symbols means all.
func (s *PriceBarStore) GetByDateRange(ctx context.Context, symbols []string, from, to time.Time) ([]*domain.PriceBar, error) {
	query := `
		SELECT symbol, date, seq, open, high, low, close, volume, created_at
		FROM price_bars
		WHERE date >= ? AND date <= ?
	`
	args := []any{from, to}
	if len(symbols) > 0 {
		marks, symArgs := symbolPlaceholders(symbols)
		query += fmt.Sprintf(" AND symbol IN (%s)", marks)
		args = append(args, symArgs...)
	}
	query += " ORDER BY symbol ASC, date ASC, seq ASC"

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// Symbols lists distinct symbols in sorted order.
func (s *PriceBarStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT symbol FROM price_bars ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		result = append(result, sym)
	}
	return result, rows.Err()
}

func (s *PriceBarStore) exists(ctx context.Context, symbol string, date time.Time) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM price_bars WHERE symbol = ? AND date = ?`,
		symbol, date,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanBars(rows driver.Rows) ([]*domain.PriceBar, error) {
	var result []*domain.PriceBar
	for rows.Next() {
		var (
			b   domain.PriceBar
			seq uint64
		)
		err := rows.Scan(
			&b.Symbol, &b.Date, &seq,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Seq = int64(seq)
		result = append(result, &b)
	}
	return result, rows.Err()
}
