package ops

import (
	"fmt"
	"strconv"
	"strings"

	"flowsheet/internal/expr"
	"flowsheet/internal/table"
	"flowsheet/internal/values"
)

// AddColumn evaluates formula per row and appends the result as a new
// column. name must not already exist.
func AddColumn(t *table.Table, name string, formula *expr.Expr) (*table.Table, error) {
	if t.HasColumn(name) {
		return nil, &InvalidArgumentError{Field: "name", Reason: "column already exists"}
	}
	cols := append(t.Columns(), table.Column{Name: name, Type: table.TypeAny})
	rows := make([][]any, t.RowCount())
	for r := 0; r < t.RowCount(); r++ {
		row, _ := t.GetRow(r)
		v, err := formula.Eval(rowBinding(t, row))
		if err != nil {
			// Expression failures never abort the pipeline (spec §7); the
			// cell becomes null.
			v = nil
		}
		rows[r] = append(append([]any(nil), row...), v)
	}
	return table.New(cols, rows)
}

func rowBinding(t *table.Table, row []any) expr.Row {
	m := make(expr.MapRow, t.ColumnCount())
	for i, c := range t.Columns() {
		m[c.Name] = row[i]
	}
	return m
}

// Transform is one transformColumns entry: replace a column's values in
// place by evaluating formula per row, optionally coercing via newType.
type Transform struct {
	Column  string
	Formula *expr.Expr
	NewType table.Type // empty means no coercion
}

// TransformColumns replaces each named column's values in place.
func TransformColumns(t *table.Table, transforms []Transform) (*table.Table, error) {
	cols := t.Columns()
	idxByTransform := make([]int, len(transforms))
	for i, tr := range transforms {
		ci, err := t.GetColumnIndex(tr.Column)
		if err != nil {
			return nil, &UnknownColumnError{Name: tr.Column}
		}
		idxByTransform[i] = ci
		if tr.NewType != "" {
			cols[ci].Type = tr.NewType
		}
	}
	rows := make([][]any, t.RowCount())
	for r := 0; r < t.RowCount(); r++ {
		row, _ := t.GetRow(r)
		for i, tr := range transforms {
			ci := idxByTransform[i]
			v, err := tr.Formula.Eval(rowBinding(t, row))
			if err != nil {
				v = nil
			}
			if tr.NewType != "" {
				v = coerce(v, tr.NewType)
			}
			row[ci] = v
		}
		rows[r] = row
	}
	return table.New(cols, rows)
}

// ChangeType coerces a column's values to newType; values that cannot be
// parsed become null rather than aborting (spec §4.4).
func ChangeType(t *table.Table, column string, newType table.Type) (*table.Table, error) {
	idx, err := t.GetColumnIndex(column)
	if err != nil {
		return nil, &UnknownColumnError{Name: column}
	}
	cols := t.Columns()
	cols[idx].Type = newType
	rows := make([][]any, t.RowCount())
	for r := 0; r < t.RowCount(); r++ {
		row, _ := t.GetRow(r)
		row[idx] = coerce(row[idx], newType)
		rows[r] = row
	}
	return table.New(cols, rows)
}

func coerce(v any, t table.Type) any {
	if v == nil {
		return nil
	}
	switch t {
	case table.TypeString:
		return fmt.Sprintf("%v", v)
	case table.TypeNumber:
		switch x := v.(type) {
		case float64:
			return x
		case int:
			return float64(x)
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil
			}
			return f
		case bool:
			if x {
				return 1.0
			}
			return 0.0
		}
		return nil
	case table.TypeBoolean:
		switch x := v.(type) {
		case bool:
			return x
		case string:
			switch strings.ToLower(strings.TrimSpace(x)) {
			case "true":
				return true
			case "false":
				return false
			}
			return nil
		case float64:
			return x != 0
		}
		return nil
	case table.TypeDecimal:
		switch x := v.(type) {
		case values.Decimal:
			return x
		case string:
			d, err := values.NewDecimalFromString(x)
			if err != nil {
				return nil
			}
			return d
		case float64:
			return values.NewDecimalFromFloat(x, 2)
		}
		return nil
	default:
		return v
	}
}

// AddIndexColumn inserts a new column of sequential integers starting at
// start, named name.
func AddIndexColumn(t *table.Table, name string, start int) (*table.Table, error) {
	if t.HasColumn(name) {
		return nil, &InvalidArgumentError{Field: "name", Reason: "column already exists"}
	}
	cols := append(t.Columns(), table.Column{Name: name, Type: table.TypeNumber})
	rows := make([][]any, t.RowCount())
	for r := 0; r < t.RowCount(); r++ {
		row, _ := t.GetRow(r)
		rows[r] = append(append([]any(nil), row...), float64(start+r))
	}
	return table.New(cols, rows)
}

// FillDown null-fills each named column using the previous non-null
// value in row order.
func FillDown(t *table.Table, columns []string) (*table.Table, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		ci, err := t.GetColumnIndex(c)
		if err != nil {
			return nil, &UnknownColumnError{Name: c}
		}
		idx[i] = ci
	}
	last := make([]any, len(idx))
	rows := make([][]any, t.RowCount())
	for r := 0; r < t.RowCount(); r++ {
		row, _ := t.GetRow(r)
		for i, ci := range idx {
			if row[ci] == nil {
				row[ci] = last[i]
			} else {
				last[i] = row[ci]
			}
		}
		rows[r] = row
	}
	return t.WithRows(rows), nil
}

// ReplaceValues replaces every cell in column equal to find (by
// structural equality) with replace.
func ReplaceValues(t *table.Table, column string, find, replace any) (*table.Table, error) {
	idx, err := t.GetColumnIndex(column)
	if err != nil {
		return nil, &UnknownColumnError{Name: column}
	}
	rows := make([][]any, t.RowCount())
	for r := 0; r < t.RowCount(); r++ {
		row, _ := t.GetRow(r)
		if values.Equal(row[idx], find) {
			row[idx] = replace
		}
		rows[r] = row
	}
	return t.WithRows(rows), nil
}

// SplitColumn splits column on every occurrence of sep into newNames
// columns (extra pieces are dropped, missing pieces become null), in
// place of the original column.
func SplitColumn(t *table.Table, column, sep string, newNames []string) (*table.Table, error) {
	idx, err := t.GetColumnIndex(column)
	if err != nil {
		return nil, &UnknownColumnError{Name: column}
	}
	cols := t.Columns()
	newCols := make([]table.Column, 0, len(cols)+len(newNames)-1)
	newCols = append(newCols, cols[:idx]...)
	for _, n := range newNames {
		newCols = append(newCols, table.Column{Name: n, Type: table.TypeString})
	}
	newCols = append(newCols, cols[idx+1:]...)

	rows := make([][]any, t.RowCount())
	for r := 0; r < t.RowCount(); r++ {
		row, _ := t.GetRow(r)
		var parts []string
		if s, ok := row[idx].(string); ok {
			parts = strings.Split(s, sep)
		}
		pieces := make([]any, len(newNames))
		for i := range pieces {
			if i < len(parts) {
				pieces[i] = parts[i]
			} else {
				pieces[i] = nil
			}
		}
		out := make([]any, 0, len(newCols))
		out = append(out, row[:idx]...)
		out = append(out, pieces...)
		out = append(out, row[idx+1:]...)
		rows[r] = out
	}
	return table.New(newCols, rows)
}

// CombineColumns concatenates the named columns (in order) with sep
// into a single new column, removing the source columns.
func CombineColumns(t *table.Table, columns []string, sep, newName string) (*table.Table, error) {
	idx := make([]int, len(columns))
	drop := make(map[int]bool, len(columns))
	for i, c := range columns {
		ci, err := t.GetColumnIndex(c)
		if err != nil {
			return nil, &UnknownColumnError{Name: c}
		}
		idx[i] = ci
		drop[ci] = true
	}
	var keepCols []table.Column
	var keepIdx []int
	for i, c := range t.Columns() {
		if !drop[i] {
			keepCols = append(keepCols, c)
			keepIdx = append(keepIdx, i)
		}
	}
	outCols := append(keepCols, table.Column{Name: newName, Type: table.TypeString})
	rows := make([][]any, t.RowCount())
	for r := 0; r < t.RowCount(); r++ {
		row, _ := t.GetRow(r)
		parts := make([]string, len(idx))
		for i, ci := range idx {
			if row[ci] != nil {
				parts[i] = fmt.Sprintf("%v", row[ci])
			}
		}
		out := make([]any, 0, len(outCols))
		for _, ci := range keepIdx {
			out = append(out, row[ci])
		}
		out = append(out, strings.Join(parts, sep))
		rows[r] = out
	}
	return table.New(outCols, rows)
}

// Take returns at most n rows from the start; negative/non-finite n is
// treated as zero (spec §4.4).
func Take(t *table.Table, n int) *table.Table {
	if n < 0 {
		n = 0
	}
	return t.Head(n)
}

// Skip returns all rows after the first n; negative/non-finite n is
// treated as zero.
func Skip(t *table.Table, n int) (*table.Table, error) {
	if n < 0 {
		n = 0
	}
	if n > t.RowCount() {
		n = t.RowCount()
	}
	rows := make([][]any, 0, t.RowCount()-n)
	for r := n; r < t.RowCount(); r++ {
		row, _ := t.GetRow(r)
		rows = append(rows, row)
	}
	return t.WithRows(rows), nil
}

// DistinctRows returns rows deduplicated by structural equality over
// columns (or the whole row when columns is empty), preserving the
// first occurrence's position (spec §4.4).
func DistinctRows(t *table.Table, columns []string) (*table.Table, error) {
	idx := make([]int, 0, len(columns))
	for _, c := range columns {
		ci, err := t.GetColumnIndex(c)
		if err != nil {
			return nil, &UnknownColumnError{Name: c}
		}
		idx = append(idx, ci)
	}
	if len(idx) == 0 {
		for i := range t.Columns() {
			idx = append(idx, i)
		}
	}
	seen := make(map[string]bool)
	var rows [][]any
	for r := 0; r < t.RowCount(); r++ {
		row, _ := t.GetRow(r)
		key := ""
		for _, ci := range idx {
			key += values.HashOf(row[ci]) + "|"
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, row)
	}
	return t.WithRows(rows), nil
}
