package ops

import (
	"fmt"

	"flowsheet/internal/table"
)

// PromoteHeaders turns the first data row into the column names,
// applying the same header-uniquing rule as fromGrid.
func PromoteHeaders(t *table.Table) (*table.Table, error) {
	if t.RowCount() == 0 {
		return t, nil
	}
	grid := t.ToGrid(table.ToGridOptions{IncludeHeader: false})
	return table.FromGrid(grid, table.FromGridOptions{HasHeaders: true})
}

// DemoteHeaders turns the current column names into the first data row,
// replacing the schema with generic ColumnN names.
func DemoteHeaders(t *table.Table) (*table.Table, error) {
	cols := t.Columns()
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	newCols := make([]table.Column, len(cols))
	for i := range newCols {
		newCols[i] = table.Column{Name: fmt.Sprintf("Column%d", i+1), Type: table.TypeAny}
	}
	rows := append([][]any{header}, t.Rows()...)
	return table.New(newCols, rows)
}
