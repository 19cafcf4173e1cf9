// Package ops applies a single declarative operation to a table,
// implementing the full operation set of spec §4.4: selectColumns,
// removeColumns, filterRows, sortRows, groupBy, addColumn,
// transformColumns, renameColumn, changeType, take/skip, distinctRows,
// pivot, unpivot, merge, append, expandTableColumn, fillDown,
// replaceValues, splitColumn, combineColumns, addIndexColumn,
// promote/demoteHeaders, and transformColumnNames.
//
// Every function here returns a new *table.Table; none mutate their
// input, mirroring the immutable-table-value discipline of spec §3 and
// the teacher repo's own "diff never mutates either input Database"
// convention in internal/diff/diff.go.
package ops

import "fmt"

// UnknownColumnError is reported by any operation that references a
// column the table does not have (spec §7).
type UnknownColumnError struct {
	Name string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("UnknownColumn: %s", e.Name)
}

// InvalidArgumentError is reported for a malformed operation parameter
// (spec §7): duplicate output names, mismatched comparer counts, etc.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("InvalidArgument: %s: %s", e.Field, e.Reason)
}
