package ops

import (
	"sort"

	"flowsheet/internal/table"
	"flowsheet/internal/values"
)

// NullsPolicy controls where null values land in a sort order.
type NullsPolicy string

const (
	NullsFirst NullsPolicy = "first"
	NullsLast  NullsPolicy = "last"
)

// SortKey is one key of a sortRows request.
type SortKey struct {
	Column     string
	Descending bool
	Nulls      NullsPolicy // default NullsLast when empty
}

// SortRows performs a stable multi-key sort (spec §4.4): ties on all
// keys preserve the rows' original relative order.
func SortRows(t *table.Table, keys []SortKey) (*table.Table, error) {
	idx := make([]int, len(keys))
	for i, k := range keys {
		ci, err := t.GetColumnIndex(k.Column)
		if err != nil {
			return nil, &UnknownColumnError{Name: k.Column}
		}
		idx[i] = ci
	}
	rows := make([][]any, t.RowCount())
	for r := range rows {
		rows[r], _ = t.GetRow(r)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for k, key := range keys {
			ci := idx[k]
			a, b := rows[i][ci], rows[j][ci]
			cmp := compareForSort(a, b, key.Nulls)
			if cmp == 0 {
				continue
			}
			if key.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return t.WithRows(rows), nil
}

// compareForSort returns -1/0/1 honoring the nulls policy (default last).
func compareForSort(a, b any, nulls NullsPolicy) int {
	if nulls == "" {
		nulls = NullsLast
	}
	aNull, bNull := a == nil, b == nil
	if aNull && bNull {
		return 0
	}
	if aNull {
		if nulls == NullsFirst {
			return -1
		}
		return 1
	}
	if bNull {
		if nulls == NullsFirst {
			return 1
		}
		return -1
	}
	if values.Equal(a, b) {
		return 0
	}
	if values.Less(a, b) {
		return -1
	}
	return 1
}
