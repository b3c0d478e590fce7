// Package eventstore defines the storage contracts for ingested market
// rows. Rows are immutable once ingested; stores return them ordered by the
// partition's order key so downstream window computations see a total order.
package eventstore

import (
	"context"
	"time"

	"market-analytics-lab/internal/domain"
)

// PriceBarStore provides access to daily OHLC bar storage.
type PriceBarStore interface {
	// Insert adds one bar. Returns ErrDuplicateKey if (symbol, date) exists.
	Insert(ctx context.Context, b *domain.PriceBar) error

	// InsertBulk adds multiple bars. Fails the entire batch on any duplicate.
	InsertBulk(ctx context.Context, bars []*domain.PriceBar) error

	// GetBySymbol retrieves all bars for a symbol, ordered by (date, seq) ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.PriceBar, error)

	// GetByDateRange retrieves bars for the symbols within [from, to]
	// inclusive, ordered by (symbol, date, seq) ASC. Empty symbols means all.
	GetByDateRange(ctx context.Context, symbols []string, from, to time.Time) ([]*domain.PriceBar, error)

	// Symbols lists distinct symbols in ingestion-independent sorted order.
	Symbols(ctx context.Context) ([]string, error)
}

// TradeStore provides access to trade execution storage.
type TradeStore interface {
	// Insert adds one trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// InsertBulk adds multiple trades. Fails the entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.Trade) error

	// GetByDateRange retrieves trades for the symbols within [from, to]
	// inclusive, ordered by (symbol, timestamp) ASC. Empty symbols means all.
	GetByDateRange(ctx context.Context, symbols []string, from, to time.Time) ([]*domain.Trade, error)
}

// TransactionStore provides access to portfolio transaction storage.
type TransactionStore interface {
	// Insert adds one transaction. Returns ErrDuplicateKey if
	// transaction_id exists.
	Insert(ctx context.Context, x *domain.Transaction) error

	// InsertBulk adds multiple transactions. Fails the entire batch on any
	// duplicate.
	InsertBulk(ctx context.Context, txs []*domain.Transaction) error

	// GetByDateRange retrieves transactions for the portfolios within
	// [from, to] inclusive, ordered by (portfolio_id, timestamp) ASC.
	// Empty portfolios means all.
	GetByDateRange(ctx context.Context, portfolios []string, from, to time.Time) ([]*domain.Transaction, error)

	// Portfolios lists distinct portfolio ids in sorted order.
	Portfolios(ctx context.Context) ([]string, error)
}

// Store bundles the per-aggregate stores behind one ingestion surface.
type Store struct {
	Bars         PriceBarStore
	Trades       TradeStore
	Transactions TransactionStore
	Versions     *Versions
}
