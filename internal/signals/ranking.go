package signals

import (
	"sort"
	"time"

	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/window"
)

const topPerformerRank = 3

// ComputeRankings ranks symbols against each other within each date.
// Trend signals supply daily_return_pct, metric rows supply volume and
// volatility; the two inputs are joined on (symbol, date). Rows without a
// daily return (first row of a partition) are excluded from that date's
// ranking, matching a prev-close-is-not-null filter.
//
// Ranks use standard competition ranking descending: tied values share the
// lower rank number and the next distinct value skips by the tie-group size.
// percentile_rank is the fraction of that date's symbols with a strictly
// lower return, rounded to 2 decimals. is_top_performer marks
// performance_rank <= 3.
//
// Output ordering is date descending, then performance_rank ascending,
// then symbol for determinism.
func ComputeRankings(trend []*domain.SignalRow, metrics []*domain.DailyMetricRow) []*domain.RankingRow {
	if len(trend) == 0 {
		return nil
	}

	metricBySD := make(map[symbolDate]*domain.DailyMetricRow, len(metrics))
	for _, m := range metrics {
		metricBySD[symbolDate{symbol: m.Symbol, date: m.Date}] = m
	}

	byDate := make(map[time.Time][]*domain.RankingRow)
	for _, s := range trend {
		if s.DailyReturnPct == nil {
			continue
		}
		row := &domain.RankingRow{
			Date:           s.Date,
			Symbol:         s.Symbol,
			DailyReturnPct: s.DailyReturnPct,
		}
		if m, ok := metricBySD[symbolDate{symbol: s.Symbol, date: s.Date}]; ok {
			row.Volume = m.TotalVolume
			row.Volatility = m.Volatility
		}
		byDate[s.Date] = append(byDate[s.Date], row)
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	var result []*domain.RankingRow
	for _, d := range dates {
		group := byDate[d]

		perf := make([]float64, len(group))
		vlm := make([]float64, len(group))
		vol := make([]float64, len(group))
		for i, r := range group {
			perf[i] = *r.DailyReturnPct
			vlm[i] = float64(r.Volume)
			vol[i] = r.Volatility
		}

		perfRank := competitionRanks(perf)
		vlmRank := competitionRanks(vlm)
		volRank := competitionRanks(vol)

		n := float64(len(group))
		for i, r := range group {
			r.PerformanceRank = perfRank[i]
			r.VolumeRank = vlmRank[i]
			r.VolatilityRank = volRank[i]
			r.PercentileRank = window.Round2(float64(countStrictlyLower(perf, perf[i])) / n)
			r.IsTopPerformer = r.PerformanceRank <= topPerformerRank
		}

		sort.Slice(group, func(i, j int) bool {
			if group[i].PerformanceRank != group[j].PerformanceRank {
				return group[i].PerformanceRank < group[j].PerformanceRank
			}
			return group[i].Symbol < group[j].Symbol
		})
		result = append(result, group...)
	}

	return result
}

// competitionRanks assigns descending competition ranks: values [10,10,8]
// get ranks [1,1,3].
func competitionRanks(values []float64) []int {
	ranks := make([]int, len(values))
	for i, v := range values {
		rank := 1
		for _, other := range values {
			if other > v {
				rank++
			}
		}
		ranks[i] = rank
	}
	return ranks
}

func countStrictlyLower(values []float64, v float64) int {
	count := 0
	for _, other := range values {
		if other < v {
			count++
		}
	}
	return count
}
