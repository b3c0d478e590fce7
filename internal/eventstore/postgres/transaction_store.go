package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/eventstore"
)

// TransactionStore implements eventstore.TransactionStore using PostgreSQL.
// Versions are tracked in the shared process-local tracker.
type TransactionStore struct {
	pool     *Pool
	versions *eventstore.Versions
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool, versions *eventstore.Versions) *TransactionStore {
	return &TransactionStore{pool: pool, versions: versions}
}

// Compile-time interface check.
var _ eventstore.TransactionStore = (*TransactionStore)(nil)

// Insert adds one transaction. Returns ErrDuplicateKey if transaction_id
// exists.
func (s *TransactionStore) Insert(ctx context.Context, x *domain.Transaction) error {
	if x == nil || x.TransactionID == "" || x.PortfolioID == "" {
		return eventstore.ErrInvalidInput
	}

	query := `
		INSERT INTO portfolio_transactions (
			transaction_id, portfolio_id, timestamp_ms, date, symbol, sector,
			transaction_type, quantity, price, total_amount, fees, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.pool.Exec(ctx, query,
		x.TransactionID, x.PortfolioID, x.Timestamp, x.Date, x.Symbol,
		x.Sector, x.Type, x.Quantity, x.Price, x.TotalAmount, x.Fees,
		x.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return eventstore.ErrDuplicateKey
		}
		return fmt.Errorf("insert transaction: %w", err)
	}

	s.versions.Bump(x.PortfolioID)
	return nil
}

// InsertBulk adds multiple transactions inside one database transaction.
// Fails the entire batch on any duplicate.
func (s *TransactionStore) InsertBulk(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	for _, x := range txs {
		if x == nil || x.TransactionID == "" || x.PortfolioID == "" {
			return eventstore.ErrInvalidInput
		}
	}

	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback(ctx)

	query := `
		INSERT INTO portfolio_transactions (
			transaction_id, portfolio_id, timestamp_ms, date, symbol, sector,
			transaction_type, quantity, price, total_amount, fees, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for _, x := range txs {
		_, err := dbTx.Exec(ctx, query,
			x.TransactionID, x.PortfolioID, x.Timestamp, x.Date, x.Symbol,
			x.Sector, x.Type, x.Quantity, x.Price, x.TotalAmount, x.Fees,
			x.CreatedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return eventstore.ErrDuplicateKey
			}
			return fmt.Errorf("insert transaction %s: %w", x.TransactionID, err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction batch: %w", err)
	}

	for _, x := range txs {
		s.versions.Bump(x.PortfolioID)
	}
	return nil
}

// GetByDateRange retrieves transactions for the portfolios within [from, to]
// inclusive, ordered by (portfolio_id, timestamp) ASC. Empty portfolios
// means all.
func (s *TransactionStore) GetByDateRange(ctx context.Context, portfolios []string, from, to time.Time) ([]*domain.Transaction, error) {
	query := `
		SELECT transaction_id, portfolio_id, timestamp_ms, date, symbol,
		       sector, transaction_type, quantity, price, total_amount, fees,
		       created_at
		FROM portfolio_transactions
		WHERE date >= $1 AND date <= $2
	`
	args := []any{from, to}
	if len(portfolios) > 0 {
		query += ` AND portfolio_id = ANY($3)`
		args = append(args, portfolios)
	}
	query += ` ORDER BY portfolio_id ASC, timestamp_ms ASC, transaction_id ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions by date range: %w", err)
	}
	defer rows.Close()

	var result []*domain.Transaction
	for rows.Next() {
		x, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		result = append(result, x)
	}
	return result, rows.Err()
}

// Portfolios lists distinct portfolio ids in sorted order.
func (s *TransactionStore) Portfolios(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT portfolio_id FROM portfolio_transactions ORDER BY portfolio_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query portfolios: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan portfolio id: %w", err)
		}
		result = append(result, id)
	}
	return result, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var x domain.Transaction
	err := row.Scan(
		&x.TransactionID, &x.PortfolioID, &x.Timestamp, &x.Date, &x.Symbol,
		&x.Sector, &x.Type, &x.Quantity, &x.Price, &x.TotalAmount, &x.Fees,
		&x.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &x, nil
}
