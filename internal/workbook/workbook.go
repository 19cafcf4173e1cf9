// Package workbook normalizes heterogeneous spreadsheet cell storage
// into one shape the rest of the pipeline consumes (spec §4.11): a
// sheet may be backed by a dense matrix, a sparse coordinate map, or a
// callback, optionally offset from an absolute rect's origin.
package workbook

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CellFunc looks up a cell by local (row, col) within one sheet's
// matrix coordinate space.
type CellFunc func(row, col int) any

// Origin translates absolute rect coordinates into a sheet's local
// matrix coordinates, for sheets whose stored data doesn't start at
// (0,0).
type Origin struct {
	Row int
	Col int
}

// Sheet is the union of cell-storage shapes the normalizer tolerates.
// Exactly one of Dense, Sparse, or Callback should be set; Dense takes
// priority if more than one is, followed by Sparse, then Callback.
type Sheet struct {
	Dense    [][]any
	Sparse   map[string]any // keys "r,c" or "r:c"; map[string]any already forbids non-string keys, so no further guard is needed
	Callback CellFunc
	Origin   Origin
}

// GetCellRaw returns the raw stored value at absolute (row, col),
// translated through Origin into the sheet's local coordinates, or nil
// when nothing is stored there.
func (s *Sheet) GetCellRaw(row, col int) any {
	r, c := row-s.Origin.Row, col-s.Origin.Col
	switch {
	case s.Dense != nil:
		if r < 0 || r >= len(s.Dense) {
			return nil
		}
		line := s.Dense[r]
		if c < 0 || c >= len(line) {
			return nil
		}
		return line[c]
	case s.Sparse != nil:
		if v, ok := s.Sparse[fmt.Sprintf("%d,%d", r, c)]; ok {
			return v
		}
		if v, ok := s.Sparse[fmt.Sprintf("%d:%d", r, c)]; ok {
			return v
		}
		return nil
	case s.Callback != nil:
		return s.Callback(r, c)
	default:
		return nil
	}
}

// Cell is a normalized cell: an optional value and an optional
// formula. A formula is only ever a non-empty string beginning with
// "=" — a blank or whitespace-only formula normalizes away entirely.
type Cell struct {
	Value   any
	Formula string
}

// HasValue reports whether Value is meaningfully present.
func (c Cell) HasValue() bool { return c.Value != nil }

// HasFormula reports whether Formula is a real formula.
func (c Cell) HasFormula() bool { return c.Formula != "" }

// Normalize converts a raw stored cell value into a Cell. Raw shapes
// tolerated:
//   - nil or an empty map: empty cell.
//   - map[string]any{"v": ..., "f": ...}: value/formula descriptor.
//   - anything else: treated as a bare value with no formula.
//
// time.Time values pass through unchanged in Value; they are never
// stringified here.
func Normalize(raw any) Cell {
	if raw == nil {
		return Cell{}
	}
	if m, ok := raw.(map[string]any); ok {
		if len(m) == 0 {
			return Cell{}
		}
		formula := ""
		if f, ok := m["f"].(string); ok {
			f = strings.TrimSpace(f)
			if strings.HasPrefix(f, "=") {
				formula = f
			}
		}
		return Cell{Value: m["v"], Formula: formula}
	}
	return Cell{Value: raw}
}

// GetCell is the unified entry point spec §4.11 calls `getCellRaw`
// normalized through Normalize in one step.
func (s *Sheet) GetCell(row, col int) Cell {
	return Normalize(s.GetCellRaw(row, col))
}

// ParseSparseKey parses a sparse-map key of either "r,c" or "r:c" form
// into its row/col pair. Returns ok=false for anything else.
func ParseSparseKey(key string) (row, col int, ok bool) {
	sep := ","
	if !strings.Contains(key, sep) {
		sep = ":"
	}
	parts := strings.SplitN(key, sep, 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	r, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	c, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return r, c, true
}

// IsDate reports whether v is a preserved date/time value, as opposed
// to a plain number or string.
func IsDate(v any) bool {
	_, ok := v.(time.Time)
	return ok
}
