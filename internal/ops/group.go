package ops

import (
	"fmt"

	"flowsheet/internal/table"
	"flowsheet/internal/values"
)

// AggOp enumerates groupBy aggregation functions (spec §4.4).
type AggOp string

const (
	AggSum           AggOp = "sum"
	AggCount         AggOp = "count"
	AggAverage       AggOp = "average"
	AggMin           AggOp = "min"
	AggMax           AggOp = "max"
	AggCountDistinct AggOp = "countDistinct"
)

// Aggregation is one output column of a groupBy.
type Aggregation struct {
	Column string
	Op     AggOp
	As     string // defaults to "<op> of <column>" when empty
}

func (a Aggregation) outputName() string {
	if a.As != "" {
		return a.As
	}
	return fmt.Sprintf("%s of %s", a.Op, a.Column)
}

// GroupBy groups rows by keys and computes aggregations per group.
// Groups appear in first-encountered order (spec §4.4).
func GroupBy(t *table.Table, keys []string, aggs []Aggregation) (*table.Table, error) {
	keyIdx := make([]int, len(keys))
	for i, k := range keys {
		ci, err := t.GetColumnIndex(k)
		if err != nil {
			return nil, &UnknownColumnError{Name: k}
		}
		keyIdx[i] = ci
	}
	aggIdx := make([]int, len(aggs))
	for i, a := range aggs {
		ci, err := t.GetColumnIndex(a.Column)
		if err != nil {
			return nil, &UnknownColumnError{Name: a.Column}
		}
		aggIdx[i] = ci
	}

	type group struct {
		keyVals []any
		rows    [][]any
	}
	order := make([]string, 0)
	groups := make(map[string]*group)

	for r := 0; r < t.RowCount(); r++ {
		row, _ := t.GetRow(r)
		keyVals := make([]any, len(keyIdx))
		for i, ci := range keyIdx {
			keyVals[i] = row[ci]
		}
		hash := hashKeyTuple(keyVals)
		g, ok := groups[hash]
		if !ok {
			g = &group{keyVals: keyVals}
			groups[hash] = g
			order = append(order, hash)
		}
		g.rows = append(g.rows, row)
	}

	outCols := make([]table.Column, 0, len(keys)+len(aggs))
	for _, k := range keys {
		outCols = append(outCols, table.Column{Name: k, Type: table.TypeAny})
	}
	for _, a := range aggs {
		outCols = append(outCols, table.Column{Name: a.outputName(), Type: table.TypeAny})
	}

	outRows := make([][]any, 0, len(order))
	for _, hash := range order {
		g := groups[hash]
		row := make([]any, 0, len(outCols))
		row = append(row, g.keyVals...)
		for i, a := range aggs {
			v, err := computeAgg(a.Op, g.rows, aggIdx[i])
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		outRows = append(outRows, row)
	}
	return table.New(outCols, outRows)
}

func hashKeyTuple(vals []any) string {
	h := ""
	for _, v := range vals {
		h += values.HashOf(v) + "|"
	}
	return h
}

func computeAgg(op AggOp, rows [][]any, col int) (any, error) {
	switch op {
	case AggCount:
		return float64(len(rows)), nil
	case AggCountDistinct:
		seen := make(map[string]bool)
		for _, r := range rows {
			seen[values.HashOf(r[col])] = true
		}
		return float64(len(seen)), nil
	case AggSum, AggAverage, AggMin, AggMax:
		var sum float64
		var n int
		var min, max any
		haveMinMax := false
		for _, r := range rows {
			v := r[col]
			if v == nil {
				continue
			}
			f, ok := toFloatVal(v)
			if ok {
				sum += f
				n++
			}
			if !haveMinMax {
				min, max, haveMinMax = v, v, true
				continue
			}
			if values.Less(v, min) {
				min = v
			}
			if values.Less(max, v) {
				max = v
			}
		}
		switch op {
		case AggSum:
			return sum, nil
		case AggAverage:
			if n == 0 {
				return nil, nil
			}
			return sum / float64(n), nil
		case AggMin:
			return min, nil
		case AggMax:
			return max, nil
		}
	}
	return nil, fmt.Errorf("ops: unknown aggregation %q", op)
}

func toFloatVal(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case values.Decimal:
		return t.Float64(), true
	}
	return 0, false
}
