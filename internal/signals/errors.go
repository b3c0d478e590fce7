package signals

import (
	"fmt"
	"time"
)

// DataQualityError identifies a single malformed row that was skipped.
// It never aborts the partition; callers collect these alongside results.
type DataQualityError struct {
	Symbol string
	Date   time.Time
	Reason string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality: symbol=%s date=%s: %s",
		e.Symbol, e.Date.Format("2006-01-02"), e.Reason)
}
