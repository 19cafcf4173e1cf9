package ops

import "flowsheet/internal/table"

// Append vertically stacks tables: the column set is the union of all
// inputs' columns in first-appearance order, and a cell missing from a
// given input's schema is null in that input's rows (spec §4.4, and the
// associativity/column-union property of spec §8).
func Append(tables []*table.Table) (*table.Table, error) {
	var outCols []table.Column
	seen := make(map[string]bool)
	for _, t := range tables {
		for _, c := range t.Columns() {
			if !seen[c.Name] {
				seen[c.Name] = true
				outCols = append(outCols, c)
			}
		}
	}
	posByName := make(map[string]int, len(outCols))
	for i, c := range outCols {
		posByName[c.Name] = i
	}

	var outRows [][]any
	for _, t := range tables {
		colPos := make([]int, t.ColumnCount())
		for i, c := range t.Columns() {
			colPos[i] = posByName[c.Name]
		}
		for r := 0; r < t.RowCount(); r++ {
			row, _ := t.GetRow(r)
			out := make([]any, len(outCols))
			for i, v := range row {
				out[colPos[i]] = v
			}
			outRows = append(outRows, out)
		}
	}
	return table.New(outCols, outRows)
}
