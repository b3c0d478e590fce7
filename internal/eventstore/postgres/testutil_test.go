package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL container and applies the schema.
// Returns a cleanup function that must be called after tests complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	applySchema(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// applySchema creates the tables directly. Mirrors sql/postgres migrations.
func applySchema(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS portfolio_transactions (
			transaction_id   TEXT PRIMARY KEY,
			portfolio_id     TEXT NOT NULL,
			timestamp_ms     BIGINT NOT NULL,
			date             DATE NOT NULL,
			symbol           TEXT NOT NULL,
			sector           TEXT NOT NULL DEFAULT '',
			transaction_type TEXT NOT NULL,
			quantity         DOUBLE PRECISION NOT NULL,
			price            DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_amount     DOUBLE PRECISION NOT NULL,
			fees             DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at       BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_portfolio_transactions_portfolio_ts
			ON portfolio_transactions (portfolio_id, timestamp_ms);
		CREATE INDEX IF NOT EXISTS idx_portfolio_transactions_date
			ON portfolio_transactions (date);
	`)
	require.NoError(t, err, "failed to apply schema")
}
