package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// QueryName identifies one of the closed set of analytics query variants.
// Dynamic "compute whatever the caller names" dispatch is deliberately not
// supported; each name maps to a fixed computation pipeline.
type QueryName string

const (
	QueryStockTrend      QueryName = "stock_trend"
	QueryDailyMarketAgg  QueryName = "daily_market_aggregation"
	QueryVolatilityVol   QueryName = "volatility_volume"
	QueryPerformanceRank QueryName = "performance_ranking"
	QueryPortfolioPerf   QueryName = "portfolio_performance"
)

// AllQueries lists every supported query variant.
var AllQueries = []QueryName{
	QueryStockTrend,
	QueryDailyMarketAgg,
	QueryVolatilityVol,
	QueryPerformanceRank,
	QueryPortfolioPerf,
}

// Valid reports whether the name is a known query variant.
func (q QueryName) Valid() bool {
	for _, n := range AllQueries {
		if q == n {
			return true
		}
	}
	return false
}

// QueryParams are the caller-supplied parameters of a query.
// Entities (symbols or portfolio ids, depending on the query) filter the
// partitions scanned; an empty slice means all entities.
type QueryParams struct {
	From     time.Time
	To       time.Time
	Entities []string

	// MaxCostUSD refuses execution when the cost estimate exceeds it.
	// Zero means no budget ceiling.
	MaxCostUSD float64
}

// CacheKey renders a canonical identity string for (query, params).
// Entity order does not affect the key.
func (p QueryParams) CacheKey(q QueryName) string {
	entities := make([]string, len(p.Entities))
	copy(entities, p.Entities)
	sort.Strings(entities)
	return fmt.Sprintf("%s|%s|%s|%s",
		q, p.From.Format(DateLayout), p.To.Format(DateLayout), strings.Join(entities, ","))
}

// Days returns the inclusive number of days in the range.
func (p QueryParams) Days() int {
	if p.To.Before(p.From) {
		return 0
	}
	return int(p.To.Sub(p.From).Hours()/24) + 1
}
