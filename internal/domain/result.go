package domain

// ResultTable is the output of a query: an ordered sequence of rows with
// named columns. Cell values are string, int64, float64, bool, or nil for
// NULL. Warnings carry non-fatal findings (ledger inconsistencies, skipped
// rows) attached to the result rather than failing it.
type ResultTable struct {
	Query    QueryName
	Columns  []string
	Rows     [][]any
	Warnings []string
}

// NumRows returns the row count.
func (t *ResultTable) NumRows() int {
	return len(t.Rows)
}

// AppendRow adds one row. The caller is responsible for matching the column
// arity; builders in the engine package always do.
func (t *ResultTable) AppendRow(cells ...any) {
	t.Rows = append(t.Rows, cells)
}
