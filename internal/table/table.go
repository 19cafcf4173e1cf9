// Package table implements the engine's columnar table value: an
// ordered sequence of typed columns with row-indexed cells. Tables are
// immutable after construction; every operation in internal/ops returns
// a new Table rather than mutating one in place, matching the way
// internal/core.Database / internal/core.Table are treated as immutable
// snapshots in the teacher repo's diff pipeline.
package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is one of the column types the spec enumerates in §3.
type Type string

const (
	TypeAny      Type = "any"
	TypeString   Type = "string"
	TypeNumber   Type = "number"
	TypeBoolean  Type = "boolean"
	TypeDate     Type = "date"
	TypeDateTime Type = "datetime"
	TypeTime     Type = "time"
	TypeDuration Type = "duration"
	TypeDecimal  Type = "decimal"
	TypeBinary   Type = "binary"
)

// Column describes one column of a Table: a unique, non-empty name and
// its declared type (or TypeAny for untyped/mixed columns).
type Column struct {
	Name string
	Type Type
}

// Table is the in-memory columnar table value described in spec §3.
// Once columns are fixed, every row has exactly len(Columns) cells;
// missing inputs are normalized to nil at construction time.
type Table struct {
	columns []Column
	rows    [][]any
}

// New builds a Table from an explicit column list and row-vector list.
// Each row is copied and padded with nil (or cut) to len(columns); an
// empty or repeated column name is reported as an error.
func New(columns []Column, rows [][]any) (*Table, error) {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if c.Name == "" {
			return nil, fmt.Errorf("table: column name must not be empty")
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("table: duplicate column name %q", c.Name)
		}
		seen[c.Name] = true
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		row := make([]any, len(columns))
		copy(row, r)
		out[i] = row
	}
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &Table{columns: cols, rows: out}, nil
}

// Empty returns a zero-row table with the given columns.
func Empty(columns []Column) *Table {
	t, _ := New(columns, nil)
	return t
}

// FromGridOptions configures fromGrid (spec §4.1).
type FromGridOptions struct {
	HasHeaders  bool
	InferTypes  bool
}

// FromGrid builds a Table from a raw 2D grid of values. When HasHeaders
// is set, the first row supplies column names, with the header-uniquing
// rule from spec §4.1: empty names become Column1, Column2, ...; and
// duplicate names become A, A.1, A.2, .... When InferTypes is set, each
// column's type is inferred by scanning its values; a column with mixed
// (non-null) value kinds becomes TypeAny.
func FromGrid(grid [][]any, opts FromGridOptions) (*Table, error) {
	if len(grid) == 0 {
		return Empty(nil), nil
	}
	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}

	headerRow := 0
	var names []string
	if opts.HasHeaders {
		names = make([]string, width)
		for i := 0; i < width; i++ {
			var raw string
			if i < len(grid[0]) && grid[0][i] != nil {
				raw = fmt.Sprintf("%v", grid[0][i])
			}
			names[i] = raw
		}
		headerRow = 1
	} else {
		names = make([]string, width)
		for i := range names {
			names[i] = fmt.Sprintf("Column%d", i+1)
		}
	}
	names = uniqueHeaders(names)

	dataRows := grid[headerRow:]
	values := make([][]any, len(dataRows))
	for i, row := range dataRows {
		out := make([]any, width)
		for j := 0; j < width; j++ {
			if j < len(row) {
				out[j] = row[j]
			}
		}
		values[i] = out
	}

	cols := make([]Column, width)
	for i, n := range names {
		t := TypeAny
		if opts.InferTypes {
			t = inferColumnType(values, i)
		}
		cols[i] = Column{Name: n, Type: t}
	}
	return New(cols, values)
}

// uniqueHeaders implements the spec §4.1 header-uniquing rule: blank
// names are replaced with ColumnN (1-based position), then any
// remaining duplicate name (including duplicates created by that
// replacement) is suffixed .1, .2, ... in order of appearance.
func uniqueHeaders(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		if strings.TrimSpace(n) == "" {
			out[i] = fmt.Sprintf("Column%d", i+1)
		} else {
			out[i] = n
		}
	}
	counts := make(map[string]int, len(out))
	result := make([]string, len(out))
	for i, n := range out {
		c := counts[n]
		if c == 0 {
			result[i] = n
		} else {
			result[i] = n + "." + strconv.Itoa(c)
		}
		counts[n] = c + 1
	}
	return result
}

func inferColumnType(rows [][]any, col int) Type {
	var seen Type
	has := false
	for _, row := range rows {
		v := row[col]
		if v == nil {
			continue
		}
		var t Type
		switch v.(type) {
		case string:
			t = TypeString
		case float64, int, int64:
			t = TypeNumber
		case bool:
			t = TypeBoolean
		default:
			t = TypeAny
		}
		if !has {
			seen, has = t, true
			continue
		}
		if seen != t {
			return TypeAny
		}
	}
	if !has {
		return TypeAny
	}
	return seen
}

// Columns returns the table's column descriptors in order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int { return len(t.rows) }

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int { return len(t.columns) }

// GetColumnIndex returns the index of a named column, or an error if the
// column does not exist (spec §4.1).
func (t *Table) GetColumnIndex(name string) (int, error) {
	for i, c := range t.columns {
		if c.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("table: unknown column %q", name)
}

// HasColumn reports whether a column named name exists.
func (t *Table) HasColumn(name string) bool {
	_, err := t.GetColumnIndex(name)
	return err == nil
}

// GetColumnVector returns all cell values for column i, top to bottom.
func (t *Table) GetColumnVector(i int) []any {
	out := make([]any, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[i]
	}
	return out
}

// GetCell returns the value at (row, col).
func (t *Table) GetCell(r, c int) (any, error) {
	if r < 0 || r >= len(t.rows) {
		return nil, fmt.Errorf("table: row index %d out of range", r)
	}
	if c < 0 || c >= len(t.columns) {
		return nil, fmt.Errorf("table: column index %d out of range", c)
	}
	return t.rows[r][c], nil
}

// GetRow returns a copy of row r's cells.
func (t *Table) GetRow(r int) ([]any, error) {
	if r < 0 || r >= len(t.rows) {
		return nil, fmt.Errorf("table: row index %d out of range", r)
	}
	out := make([]any, len(t.rows[r]))
	copy(out, t.rows[r])
	return out, nil
}

// Rows exposes the raw row vectors; callers must not mutate the result,
// the same "treat as read-only" discipline used by Column.
func (t *Table) Rows() [][]any { return t.rows }

// IterRows calls fn for each row in order; fn returning false stops
// iteration early.
func (t *Table) IterRows(fn func(row []any) bool) {
	for _, row := range t.rows {
		if !fn(row) {
			return
		}
	}
}

// ToGridOptions configures ToGrid.
type ToGridOptions struct {
	IncludeHeader bool
}

// ToGrid renders the table back into a 2D grid, optionally with a header
// row of column names first.
func (t *Table) ToGrid(opts ToGridOptions) [][]any {
	n := len(t.rows)
	if opts.IncludeHeader {
		n++
	}
	out := make([][]any, 0, n)
	if opts.IncludeHeader {
		header := make([]any, len(t.columns))
		for i, c := range t.columns {
			header[i] = c.Name
		}
		out = append(out, header)
	}
	for _, row := range t.rows {
		cp := make([]any, len(row))
		copy(cp, row)
		out = append(out, cp)
	}
	return out
}

// Head returns a new Table containing at most the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.rows) {
		n = len(t.rows)
	}
	out, _ := New(t.columns, t.rows[:n])
	return out
}

// WithRows returns a new Table with the same columns but replaced rows.
// This is the primitive internal/ops builds every row-producing
// operation on top of.
func (t *Table) WithRows(rows [][]any) *Table {
	out, _ := New(t.columns, rows)
	return out
}

// WithColumns returns a new Table with the same row count but a
// different column schema; used by column-shape-changing operations
// (selectColumns, renameColumn, pivot, unpivot, ...).
func (t *Table) WithColumns(columns []Column, rows [][]any) (*Table, error) {
	return New(columns, rows)
}
