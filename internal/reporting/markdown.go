package reporting

import (
	"fmt"
	"strings"
	"time"

	"market-analytics-lab/internal/domain"
)

// RenderMarkdown renders the run report as Markdown.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Analytics Run Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Range: %s to %s\n\n",
		r.From.Format(domain.DateLayout), r.To.Format(domain.DateLayout)))

	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Symbols | %d |\n", r.DataSummary.Symbols))
	sb.WriteString(fmt.Sprintf("| Portfolios | %d |\n", r.DataSummary.Portfolios))
	sb.WriteString(fmt.Sprintf("| Price Bars | %d |\n", r.DataSummary.Bars))
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", r.DataSummary.Trades))
	sb.WriteString(fmt.Sprintf("| Transactions | %d |\n", r.DataSummary.Transactions))
	sb.WriteString("\n")

	sb.WriteString("## Queries\n\n")
	if len(r.Sections) > 0 {
		sb.WriteString("| Query | Rows | Est. Rows | Est. Bytes | Est. Cost (USD) | Elapsed | Status |\n")
		sb.WriteString("|-------|------|-----------|------------|------------------|---------|--------|\n")
		for _, s := range r.Sections {
			status := "OK"
			if s.Err != nil {
				status = "FAILED"
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.6f | %s | %s |\n",
				s.Query, s.Rows,
				s.Estimate.RowsScanned, s.Estimate.Bytes, s.Estimate.CostUSD,
				s.Elapsed.Round(time.Millisecond), status))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("No queries executed.\n\n")
	}

	for _, s := range r.Sections {
		if s.Err == nil && len(s.Warnings) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("### %s\n\n", s.Query))
		if s.Err != nil {
			sb.WriteString(fmt.Sprintf("Error: %s\n\n", s.Err))
		}
		for _, w := range s.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
		if len(s.Warnings) > 0 {
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
