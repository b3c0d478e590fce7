package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/ledger"
	"market-analytics-lab/internal/signals"
)

func (e *Engine) execute(ctx context.Context, query domain.QueryName, params domain.QueryParams) (*domain.ResultTable, error) {
	switch query {
	case domain.QueryStockTrend:
		return e.stockTrend(ctx, params)
	case domain.QueryDailyMarketAgg:
		return e.dailyMarketAgg(ctx, params)
	case domain.QueryVolatilityVol:
		return e.volatilityVolume(ctx, params)
	case domain.QueryPerformanceRank:
		return e.performanceRanking(ctx, params)
	case domain.QueryPortfolioPerf:
		return e.portfolioPerformance(ctx, params)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuery, query)
	}
}

func (e *Engine) stockTrend(ctx context.Context, params domain.QueryParams) (*domain.ResultTable, error) {
	bars, err := e.scanBars(ctx, params)
	if err != nil {
		return nil, err
	}

	rows, dqErrs, err := trendByPartition(ctx, bars)
	if err != nil {
		return nil, err
	}

	table := &domain.ResultTable{
		Query: domain.QueryStockTrend,
		Columns: []string{
			"date", "symbol", "close",
			"sma_7", "sma_30", "sma_90",
			"daily_return_pct", "trend_status",
		},
	}
	for _, r := range rows {
		table.AppendRow(
			r.Date.Format(domain.DateLayout), r.Symbol, r.Close,
			cellF(r.SMA7), cellF(r.SMA30), cellF(r.SMA90),
			cellF(r.DailyReturnPct), r.TrendStatus,
		)
	}
	e.attachDataQuality(table, domain.QueryStockTrend, dqErrs)
	return table, nil
}

func (e *Engine) dailyMarketAgg(ctx context.Context, params domain.QueryParams) (*domain.ResultTable, error) {
	metrics, dqErrs, err := e.scanDailyMetrics(ctx, params)
	if err != nil {
		return nil, err
	}

	table := &domain.ResultTable{
		Query: domain.QueryDailyMarketAgg,
		Columns: []string{
			"date", "symbol", "avg_price", "price_range",
			"total_volume", "buy_volume", "sell_volume", "buy_sell_ratio",
			"price_change_pct", "trading_signal",
		},
	}
	for _, m := range metrics {
		table.AppendRow(
			m.Date.Format(domain.DateLayout), m.Symbol, m.AvgPrice, m.PriceRange,
			m.TotalVolume, m.BuyVolume, m.SellVolume, cellF(m.BuySellRatio),
			cellF(m.PriceChangePct), m.TradingSignal,
		)
	}
	e.attachDataQuality(table, domain.QueryDailyMarketAgg, dqErrs)
	return table, nil
}

func (e *Engine) volatilityVolume(ctx context.Context, params domain.QueryParams) (*domain.ResultTable, error) {
	metrics, dqErrs, err := e.scanDailyMetrics(ctx, params)
	if err != nil {
		return nil, err
	}
	rows := signals.ComputeAnomalies(metrics)

	table := &domain.ResultTable{
		Query: domain.QueryVolatilityVol,
		Columns: []string{
			"date", "symbol", "volatility", "volume",
			"volatility_anomaly_factor", "volume_anomaly_factor",
			"volatility_class", "volume_class",
		},
	}
	for _, r := range rows {
		table.AppendRow(
			r.Date.Format(domain.DateLayout), r.Symbol, r.Volatility, r.Volume,
			cellF(r.VolatilityAnomalyFactor), cellF(r.VolumeAnomalyFactor),
			r.VolatilityClass, r.VolumeClass,
		)
	}
	e.attachDataQuality(table, domain.QueryVolatilityVol, dqErrs)
	return table, nil
}

func (e *Engine) performanceRanking(ctx context.Context, params domain.QueryParams) (*domain.ResultTable, error) {
	bars, err := e.scanBars(ctx, params)
	if err != nil {
		return nil, err
	}
	trend, trendDQ, err := trendByPartition(ctx, bars)
	if err != nil {
		return nil, err
	}
	metrics, metricsDQ, err := e.scanDailyMetrics(ctx, params)
	if err != nil {
		return nil, err
	}

	rows := signals.ComputeRankings(trend, metrics)

	table := &domain.ResultTable{
		Query: domain.QueryPerformanceRank,
		Columns: []string{
			"date", "symbol", "daily_return_pct",
			"performance_rank", "volume_rank", "volatility_rank",
			"percentile_rank", "is_top_performer",
		},
	}
	for _, r := range rows {
		table.AppendRow(
			r.Date.Format(domain.DateLayout), r.Symbol, cellF(r.DailyReturnPct),
			r.PerformanceRank, r.VolumeRank, r.VolatilityRank,
			r.PercentileRank, r.IsTopPerformer,
		)
	}
	e.attachDataQuality(table, domain.QueryPerformanceRank, append(trendDQ, metricsDQ...))
	return table, nil
}

func (e *Engine) portfolioPerformance(ctx context.Context, params domain.QueryParams) (*domain.ResultTable, error) {
	txs, err := e.store.Transactions.GetByDateRange(ctx, params.Entities, params.From, params.To)
	if err != nil {
		return nil, fmt.Errorf("scan transactions: %w", err)
	}
	e.countScanned(len(txs))

	result := ledger.Fold(txs)

	summaries := make(map[string]*domain.PortfolioSummary, len(result.Summaries))
	for _, s := range result.Summaries {
		summaries[s.PortfolioID] = s
	}

	positions := make([]*domain.PositionState, len(result.Positions))
	copy(positions, result.Positions)
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].PortfolioID != positions[j].PortfolioID {
			return positions[i].PortfolioID < positions[j].PortfolioID
		}
		return positions[i].Symbol < positions[j].Symbol
	})

	table := &domain.ResultTable{
		Query: domain.QueryPortfolioPerf,
		Columns: []string{
			"portfolio_id", "symbol", "quantity", "cost_basis", "dividends",
			"dividend_yield_pct", "fee_ratio_pct", "sector_breakdown",
		},
	}
	for _, p := range positions {
		s := summaries[p.PortfolioID]
		table.AppendRow(
			p.PortfolioID, p.Symbol, p.Quantity, p.CostBasis, p.Dividends,
			cellF(s.DividendYieldPct), cellF(s.FeeRatioPct),
			renderSectors(s.Sectors),
		)
	}
	for _, w := range result.Warnings {
		table.Warnings = append(table.Warnings, w.String())
	}
	return table, nil
}

// scanBars reads the bar range for params and counts the scan.
func (e *Engine) scanBars(ctx context.Context, params domain.QueryParams) ([]*domain.PriceBar, error) {
	bars, err := e.store.Bars.GetByDateRange(ctx, params.Entities, params.From, params.To)
	if err != nil {
		return nil, fmt.Errorf("scan bars: %w", err)
	}
	e.countScanned(len(bars))
	return bars, nil
}

// scanDailyMetrics reads bars and trades for params and joins them into
// daily metric rows.
func (e *Engine) scanDailyMetrics(ctx context.Context, params domain.QueryParams) ([]*domain.DailyMetricRow, []*signals.DataQualityError, error) {
	bars, err := e.scanBars(ctx, params)
	if err != nil {
		return nil, nil, err
	}
	trades, err := e.store.Trades.GetByDateRange(ctx, params.Entities, params.From, params.To)
	if err != nil {
		return nil, nil, fmt.Errorf("scan trades: %w", err)
	}
	e.countScanned(len(trades))

	metrics, dqErrs := signals.ComputeDailyMetrics(bars, trades)
	return metrics, dqErrs, nil
}

// trendByPartition computes trend signals per symbol partition in parallel.
// Partitions share no mutable state, so each runs on its own goroutine and
// results merge back in symbol order.
func trendByPartition(ctx context.Context, bars []*domain.PriceBar) ([]*domain.SignalRow, []*signals.DataQualityError, error) {
	symbols, partitions := partitionBars(bars)
	if len(symbols) == 0 {
		return nil, nil, nil
	}

	rowsBySymbol := make([][]*domain.SignalRow, len(symbols))
	dqBySymbol := make([][]*signals.DataQualityError, len(symbols))

	g, ctx := errgroup.WithContext(ctx)
	for i, sym := range symbols {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rowsBySymbol[i], dqBySymbol[i] = signals.ComputeStockTrend(partitions[sym])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var rows []*domain.SignalRow
	var dqErrs []*signals.DataQualityError
	for i := range symbols {
		rows = append(rows, rowsBySymbol[i]...)
		dqErrs = append(dqErrs, dqBySymbol[i]...)
	}
	return rows, dqErrs, nil
}

func partitionBars(bars []*domain.PriceBar) ([]string, map[string][]*domain.PriceBar) {
	partitions := make(map[string][]*domain.PriceBar)
	for _, b := range bars {
		partitions[b.Symbol] = append(partitions[b.Symbol], b)
	}
	symbols := make([]string, 0, len(partitions))
	for sym := range partitions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, partitions
}

func (e *Engine) countScanned(n int) {
	if e.metrics != nil && n > 0 {
		e.metrics.RowsScanned.Add(float64(n))
	}
}

func (e *Engine) attachDataQuality(table *domain.ResultTable, query domain.QueryName, dqErrs []*signals.DataQualityError) {
	if len(dqErrs) == 0 {
		return
	}
	if e.metrics != nil {
		e.metrics.DataQualityRows.WithLabelValues(string(query)).Add(float64(len(dqErrs)))
	}
	for _, dq := range dqErrs {
		e.log.Warn().Str("query", string(query)).Str("symbol", dq.Symbol).Msg(dq.Reason)
		table.Warnings = append(table.Warnings, dq.Error())
	}
}

// cellF converts a nullable float into a table cell.
func cellF(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// renderSectors flattens a sector breakdown into "sector:count" pairs in
// first-seen order.
func renderSectors(sectors []domain.SectorCount) string {
	if len(sectors) == 0 {
		return ""
	}
	parts := make([]string, len(sectors))
	for i, s := range sectors {
		parts[i] = fmt.Sprintf("%s:%d", s.Sector, s.Count)
	}
	return strings.Join(parts, ",")
}
