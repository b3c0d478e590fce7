package reporting

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"market-analytics-lab/internal/domain"
)

// RenderCSV renders a result table as CSV. NULL cells render as empty
// fields; sector breakdowns and other comma-bearing cells are quoted by
// the csv writer.
func RenderCSV(table *domain.ResultTable) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	w.Write(table.Columns)
	record := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i, cell := range row {
			record[i] = formatCell(cell)
		}
		w.Write(record)
	}
	w.Flush()

	return sb.String()
}

func formatCell(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
