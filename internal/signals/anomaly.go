package signals

import (
	"sort"

	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/window"
)

// ComputeAnomalies derives volatility and volume anomaly scores from daily
// metric rows. Two distinct mechanisms per symbol partition:
//
//   - anomaly factors: current value divided (safe divide) by its own 30-row
//     trailing mean, rounded to 2 decimals, NULL until 30 rows of history
//   - percentile classes: P25/P75 of the metric over the FULL partition
//     (two passes, not a trailing window); > P75 is HIGH_*, < P25 is LOW_*,
//     NORMAL_* otherwise
func ComputeAnomalies(metrics []*domain.DailyMetricRow) []*domain.AnomalyRow {
	if len(metrics) == 0 {
		return nil
	}

	rows := make([]*domain.DailyMetricRow, len(metrics))
	copy(rows, metrics)
	sortMetrics(rows)

	// First pass: full-partition distributions for percentile classes.
	type bounds struct{ p25, p75 float64 }
	volBounds := make(map[string]bounds)
	vlmBounds := make(map[string]bounds)
	{
		volDist := make(map[string][]float64)
		vlmDist := make(map[string][]float64)
		for _, m := range rows {
			volDist[m.Symbol] = append(volDist[m.Symbol], m.Volatility)
			vlmDist[m.Symbol] = append(vlmDist[m.Symbol], float64(m.TotalVolume))
		}
		for sym, dist := range volDist {
			sort.Float64s(dist)
			volBounds[sym] = bounds{p25: window.Percentile(dist, 0.25), p75: window.Percentile(dist, 0.75)}
		}
		for sym, dist := range vlmDist {
			sort.Float64s(dist)
			vlmBounds[sym] = bounds{p25: window.Percentile(dist, 0.25), p75: window.Percentile(dist, 0.75)}
		}
	}

	// Second pass: trailing anomaly factors plus classification.
	var (
		result  []*domain.AnomalyRow
		volMean *window.RollingStats
		vlmMean *window.RollingStats
		current string
	)
	for _, m := range rows {
		if m.Symbol != current {
			current = m.Symbol
			volMean = window.NewRollingStats(window.Spec{Size: 30, MinPeriods: 30})
			vlmMean = window.NewRollingStats(window.Spec{Size: 30, MinPeriods: 30})
		}
		volMean.Push(m.Volatility)
		vlmMean.Push(float64(m.TotalVolume))

		vb := volBounds[m.Symbol]
		qb := vlmBounds[m.Symbol]

		result = append(result, &domain.AnomalyRow{
			Symbol:                  m.Symbol,
			Date:                    m.Date,
			Volatility:              m.Volatility,
			Volume:                  m.TotalVolume,
			VolatilityAnomalyFactor: window.Round2Ptr(window.SafeDividePtr(window.Float(m.Volatility), volMean.Mean())),
			VolumeAnomalyFactor:     window.Round2Ptr(window.SafeDividePtr(window.Float(float64(m.TotalVolume)), vlmMean.Mean())),
			VolatilityClass: classify(m.Volatility, vb.p25, vb.p75,
				domain.ClassHighVolatility, domain.ClassLowVolatility, domain.ClassNormalVolatility),
			VolumeClass: classify(float64(m.TotalVolume), qb.p25, qb.p75,
				domain.ClassHighVolume, domain.ClassLowVolume, domain.ClassNormalVolume),
		})
	}

	return result
}

// classify buckets v against full-partition percentile bounds. Values equal
// to a bound are NORMAL.
func classify(v, p25, p75 float64, high, low, normal string) string {
	switch {
	case v > p75:
		return high
	case v < p25:
		return low
	default:
		return normal
	}
}
