// Package engine exposes the analytics query surface: a closed set of named
// query variants computed over the event store, memoized in the query cache
// and cost-checked before execution.
//
// Every failure path out of Compute and Estimate maps to a known kind:
// ErrUnknownQuery, costs.BudgetExceededError, a context error from a
// cancelled waiter, or a wrapped store error. Malformed rows never fail a
// query; they surface as result warnings.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"market-analytics-lab/internal/costs"
	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/eventstore"
	"market-analytics-lab/internal/observability"
	"market-analytics-lab/internal/querycache"
)

// ErrUnknownQuery is returned for a query name outside the closed set.
var ErrUnknownQuery = errors.New("unknown query")

// Engine computes named analytics queries against an event store.
type Engine struct {
	store     *eventstore.Store
	cache     *querycache.Cache
	estimator *costs.Estimator
	metrics   *observability.Metrics
	log       zerolog.Logger

	statsMu   sync.Mutex
	lastStats querycache.Stats
}

// New assembles an engine. metrics may be nil when no instrumentation is
// wanted (tests construct isolated instances either way).
func New(store *eventstore.Store, cache *querycache.Cache, estimator *costs.Estimator, metrics *observability.Metrics) *Engine {
	return &Engine{
		store:     store,
		cache:     cache,
		estimator: estimator,
		metrics:   metrics,
		log:       observability.NewLogger("engine"),
	}
}

// Compute executes the named query, serving from cache when a fresh entry
// exists. Synchronous: concurrent calls for the same key share one
// underlying computation, and a caller's context cancels only its own wait.
func (e *Engine) Compute(ctx context.Context, query domain.QueryName, params domain.QueryParams) (*domain.ResultTable, error) {
	if !query.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuery, query)
	}

	runID := uuid.NewString()
	version := e.version(query, params)
	key := params.CacheKey(query)
	start := time.Now()

	payload, hit, err := e.cache.GetOrCompute(ctx, key, version, func(ctx context.Context) (*domain.ResultTable, error) {
		est, err := e.estimateLocked(ctx, query, params)
		if err != nil {
			return nil, err
		}
		if err := e.estimator.CheckBudget(query, params, est); err != nil {
			if e.metrics != nil {
				e.metrics.BudgetRefusals.Inc()
			}
			return nil, err
		}
		return e.execute(ctx, query, params)
	})
	if err != nil {
		e.log.Warn().Str("run_id", runID).Str("query", string(query)).Err(err).Msg("compute failed")
		return nil, err
	}

	cacheResult := "miss"
	if hit {
		cacheResult = "hit"
	}
	if e.metrics != nil {
		e.metrics.QueriesTotal.WithLabelValues(string(query), cacheResult).Inc()
		e.metrics.QueryDuration.WithLabelValues(string(query)).Observe(time.Since(start).Seconds())
		e.syncCacheMetrics()
	}
	e.log.Info().
		Str("run_id", runID).
		Str("query", string(query)).
		Str("cache", cacheResult).
		Int("rows", payload.NumRows()).
		Dur("elapsed", time.Since(start)).
		Msg("query served")

	return payload, nil
}

// Estimate returns the cost estimate for the named query without executing
// it. The dry run never touches partition data; cancellation therefore has
// nothing to release beyond the entity listing.
func (e *Engine) Estimate(ctx context.Context, query domain.QueryName, params domain.QueryParams) (domain.CostEstimate, error) {
	if !query.Valid() {
		return domain.CostEstimate{}, fmt.Errorf("%w: %q", ErrUnknownQuery, query)
	}
	est, err := e.estimateLocked(ctx, query, params)
	if e.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		e.metrics.EstimatesTotal.WithLabelValues(string(query), outcome).Inc()
	}
	return est, err
}

// Invalidate bumps the entity's data version so the next Compute touching
// it bypasses stale cache entries.
func (e *Engine) Invalidate(entity string) {
	e.store.Versions.Bump(entity)
}

func (e *Engine) estimateLocked(ctx context.Context, query domain.QueryName, params domain.QueryParams) (domain.CostEstimate, error) {
	if err := ctx.Err(); err != nil {
		return domain.CostEstimate{}, err
	}
	total, err := e.totalEntities(ctx, query)
	if err != nil {
		return domain.CostEstimate{}, fmt.Errorf("count entities: %w", err)
	}
	return e.estimator.Estimate(params, total), nil
}

// totalEntities resolves the unfiltered entity cardinality for a query:
// portfolios for the portfolio query, symbols for everything else.
func (e *Engine) totalEntities(ctx context.Context, query domain.QueryName) (int, error) {
	if query == domain.QueryPortfolioPerf {
		ids, err := e.store.Transactions.Portfolios(ctx)
		if err != nil {
			return 0, err
		}
		return len(ids), nil
	}
	symbols, err := e.store.Bars.Symbols(ctx)
	if err != nil {
		return 0, err
	}
	return len(symbols), nil
}

// version folds the data versions of the entities a query depends on.
func (e *Engine) version(query domain.QueryName, params domain.QueryParams) uint64 {
	return e.store.Versions.Combined(params.Entities)
}

// syncCacheMetrics publishes cache counter deltas since the last sync.
func (e *Engine) syncCacheMetrics() {
	stats := e.cache.Stats()
	e.statsMu.Lock()
	evictions := stats.Evictions - e.lastStats.Evictions
	staleDrops := stats.StaleDrops - e.lastStats.StaleDrops
	e.lastStats = stats
	e.statsMu.Unlock()

	e.metrics.CacheSize.Set(float64(e.cache.Len()))
	if evictions > 0 {
		e.metrics.CacheEvictions.Add(float64(evictions))
	}
	if staleDrops > 0 {
		e.metrics.CacheStaleDrops.Add(float64(staleDrops))
	}
}
