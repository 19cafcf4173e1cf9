package ops

import (
	"flowsheet/internal/table"
	"flowsheet/internal/values"
)

// Pivot turns the distinct values of pivotColumn into new column
// headers, aggregating valueColumn per group with agg. Rows are grouped
// by every column other than pivotColumn/valueColumn.
func Pivot(t *table.Table, pivotColumn, valueColumn string, agg AggOp) (*table.Table, error) {
	pivotIdx, err := t.GetColumnIndex(pivotColumn)
	if err != nil {
		return nil, &UnknownColumnError{Name: pivotColumn}
	}
	valueIdx, err := t.GetColumnIndex(valueColumn)
	if err != nil {
		return nil, &UnknownColumnError{Name: valueColumn}
	}
	var groupKeyCols []table.Column
	var groupKeyIdx []int
	for i, c := range t.Columns() {
		if i == pivotIdx || i == valueIdx {
			continue
		}
		groupKeyCols = append(groupKeyCols, c)
		groupKeyIdx = append(groupKeyIdx, i)
	}

	type group struct {
		keyVals []any
		buckets map[string][][]any // pivot value label -> rows
	}
	order := []string{}
	groups := map[string]*group{}
	labelOrder := []string{}
	labelSeen := map[string]bool{}

	for r := 0; r < t.RowCount(); r++ {
		row, _ := t.GetRow(r)
		keyVals := make([]any, len(groupKeyIdx))
		for i, ci := range groupKeyIdx {
			keyVals[i] = row[ci]
		}
		gk := hashKeyTuple(keyVals)
		g, ok := groups[gk]
		if !ok {
			g = &group{keyVals: keyVals, buckets: map[string][][]any{}}
			groups[gk] = g
			order = append(order, gk)
		}
		label := cellLabel(row[pivotIdx])
		if !labelSeen[label] {
			labelSeen[label] = true
			labelOrder = append(labelOrder, label)
		}
		g.buckets[label] = append(g.buckets[label], row)
	}

	outCols := append([]table.Column{}, groupKeyCols...)
	for _, l := range labelOrder {
		outCols = append(outCols, table.Column{Name: l, Type: table.TypeAny})
	}

	var outRows [][]any
	for _, gk := range order {
		g := groups[gk]
		row := append([]any{}, g.keyVals...)
		for _, l := range labelOrder {
			bucket := g.buckets[l]
			if bucket == nil {
				row = append(row, nil)
				continue
			}
			v, err := computeAgg(agg, bucket, valueIdx)
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		outRows = append(outRows, row)
	}
	return table.New(outCols, outRows)
}

func cellLabel(v any) string {
	if v == nil {
		return "null"
	}
	switch t := v.(type) {
	case string:
		return t
	default:
		return values.HashOf(v)
	}
}

// Unpivot melts the named columns into two columns: nameCol holding the
// source column's name and valueCol holding its value, one output row
// per (original row, melted column) pair.
func Unpivot(t *table.Table, columns []string, nameCol, valueCol string) (*table.Table, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		ci, err := t.GetColumnIndex(c)
		if err != nil {
			return nil, &UnknownColumnError{Name: c}
		}
		idx[i] = ci
	}
	drop := make(map[int]bool, len(idx))
	for _, i := range idx {
		drop[i] = true
	}
	var keepCols []table.Column
	var keepIdx []int
	for i, c := range t.Columns() {
		if !drop[i] {
			keepCols = append(keepCols, c)
			keepIdx = append(keepIdx, i)
		}
	}
	outCols := append(append([]table.Column{}, keepCols...),
		table.Column{Name: nameCol, Type: table.TypeString},
		table.Column{Name: valueCol, Type: table.TypeAny})

	var outRows [][]any
	for r := 0; r < t.RowCount(); r++ {
		row, _ := t.GetRow(r)
		for i, ci := range idx {
			out := make([]any, 0, len(outCols))
			for _, kci := range keepIdx {
				out = append(out, row[kci])
			}
			out = append(out, columns[i], row[ci])
			outRows = append(outRows, out)
		}
	}
	return table.New(outCols, outRows)
}
