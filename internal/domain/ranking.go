package domain

import "time"

// RankingRow represents cross-symbol rankings within a single date.
// Ranks use standard competition ranking: tied values share the lower rank
// number and the next distinct value skips by the tie-group size.
type RankingRow struct {
	Date            time.Time
	Symbol          string
	DailyReturnPct  *float64
	Volume          int64
	Volatility      float64
	PerformanceRank int
	VolumeRank      int
	VolatilityRank  int
	PercentileRank  float64 // fraction of symbols with strictly lower return
	IsTopPerformer  bool    // performance_rank <= 3
}
