// Package signals derives analytical signals from ordered per-symbol event
// streams: moving averages, daily returns, trend classification, anomaly
// factors, percentile risk buckets and cross-symbol rankings.
//
// All computations partition by symbol and process rows in (date, seq)
// order. A window of min_periods k yields NULL (nil) for the first k-1 rows
// of a partition. Malformed rows are skipped with a DataQualityError and the
// partition continues.
package signals

import (
	"sort"
	"time"

	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/window"
)

// ComputeStockTrend computes trend signals per (symbol, date).
// Inputs are sorted by (symbol, date, seq) internally.
//
// Formulas:
//   - sma_k = mean of the last k closes, k in {7, 30, 90}, min_periods = k,
//     rounded to 2 decimals, NULL before k rows
//   - daily_return_pct = (close - prev_close) / prev_close * 100, rounded to
//     2 decimals, NULL on the first row of a partition
//   - trend_status = UPTREND if close > 90-row mean, DOWNTREND if below,
//     NEUTRAL if equal or the mean is NULL
func ComputeStockTrend(bars []*domain.PriceBar) ([]*domain.SignalRow, []*DataQualityError) {
	if len(bars) == 0 {
		return nil, nil
	}

	sorted := sortBars(bars)

	var (
		result   []*domain.SignalRow
		dqErrs   []*DataQualityError
		sma7     *window.RollingStats
		sma30    *window.RollingStats
		sma90    *window.RollingStats
		prev     float64
		prevDate time.Time
		hasPrev  bool
		current  string
	)

	for _, b := range sorted {
		if b.Symbol != current {
			current = b.Symbol
			sma7 = window.NewRollingStats(window.Spec{Size: 7, MinPeriods: 7})
			sma30 = window.NewRollingStats(window.Spec{Size: 30, MinPeriods: 30})
			sma90 = window.NewRollingStats(window.Spec{Size: 90, MinPeriods: 90})
			hasPrev = false
		}

		if err := b.Validate(); err != nil {
			dqErrs = append(dqErrs, &DataQualityError{
				Symbol: b.Symbol, Date: b.Date, Reason: err.Error(),
			})
			continue
		}
		if hasPrev && !prevDate.Before(b.Date) {
			dqErrs = append(dqErrs, &DataQualityError{
				Symbol: b.Symbol, Date: b.Date, Reason: "non-monotonic date within partition",
			})
			continue
		}

		sma7.Push(b.Close)
		sma30.Push(b.Close)
		sma90.Push(b.Close)

		row := &domain.SignalRow{
			Symbol: b.Symbol,
			Date:   b.Date,
			Close:  b.Close,
			SMA7:   window.Round2Ptr(sma7.Mean()),
			SMA30:  window.Round2Ptr(sma30.Mean()),
			SMA90:  window.Round2Ptr(sma90.Mean()),
		}

		if hasPrev {
			row.DailyReturnPct = window.Round2Ptr(
				window.SafeDivide((b.Close-prev)*100, prev))
		}

		// Trend compares against the unrounded 90-row mean.
		row.TrendStatus = trendStatus(b.Close, sma90.Mean())

		prev = b.Close
		prevDate = b.Date
		hasPrev = true
		result = append(result, row)
	}

	return result, dqErrs
}

func trendStatus(close float64, mean *float64) string {
	switch {
	case mean == nil:
		return domain.TrendNeutral
	case close > *mean:
		return domain.TrendUp
	case close < *mean:
		return domain.TrendDown
	default:
		return domain.TrendNeutral
	}
}

// sortBars returns a copy sorted by (symbol, date, seq) so LAG and window
// operations see a total order.
func sortBars(bars []*domain.PriceBar) []*domain.PriceBar {
	sorted := make([]*domain.PriceBar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Symbol != sorted[j].Symbol {
			return sorted[i].Symbol < sorted[j].Symbol
		}
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].Seq < sorted[j].Seq
	})
	return sorted
}
