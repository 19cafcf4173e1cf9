package ops

import (
	"flowsheet/internal/table"
)

// SelectColumns returns a table with exactly the named columns, in the
// order requested. Any missing name is an UnknownColumnError.
func SelectColumns(t *table.Table, names []string) (*table.Table, error) {
	idx := make([]int, len(names))
	cols := make([]table.Column, len(names))
	for i, n := range names {
		ci, err := t.GetColumnIndex(n)
		if err != nil {
			return nil, &UnknownColumnError{Name: n}
		}
		idx[i] = ci
		cols[i] = t.Columns()[ci]
	}
	rows := make([][]any, t.RowCount())
	for r := 0; r < t.RowCount(); r++ {
		row, _ := t.GetRow(r)
		out := make([]any, len(idx))
		for i, ci := range idx {
			out[i] = row[ci]
		}
		rows[r] = out
	}
	return table.New(cols, rows)
}

// RemoveColumns returns a table without the named columns; every
// referenced name must exist, and unreferenced columns keep their
// original relative order.
func RemoveColumns(t *table.Table, names []string) (*table.Table, error) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if !t.HasColumn(n) {
			return nil, &UnknownColumnError{Name: n}
		}
		drop[n] = true
	}
	var keep []string
	for _, c := range t.Columns() {
		if !drop[c.Name] {
			keep = append(keep, c.Name)
		}
	}
	return SelectColumns(t, keep)
}

// RenameColumn renames a column; the new name must not already exist.
func RenameColumn(t *table.Table, oldName, newName string) (*table.Table, error) {
	idx, err := t.GetColumnIndex(oldName)
	if err != nil {
		return nil, &UnknownColumnError{Name: oldName}
	}
	if oldName != newName && t.HasColumn(newName) {
		return nil, &InvalidArgumentError{Field: "newName", Reason: "column already exists"}
	}
	cols := t.Columns()
	cols[idx].Name = newName
	return table.New(cols, t.Rows())
}

// TransformColumnNames applies fn to every column name; if this creates
// duplicate names among the results the operation fails, matching the
// "duplicates are an error" invariant in spec §3 for any table
// reconstruction, not only fromGrid.
func TransformColumnNames(t *table.Table, fn func(name string) string) (*table.Table, error) {
	cols := t.Columns()
	seen := make(map[string]bool, len(cols))
	for i := range cols {
		n := fn(cols[i].Name)
		if seen[n] {
			return nil, &InvalidArgumentError{Field: "name", Reason: "transform produced duplicate column name " + n}
		}
		seen[n] = true
		cols[i].Name = n
	}
	return table.New(cols, t.Rows())
}
