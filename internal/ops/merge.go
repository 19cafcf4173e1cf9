package ops

import (
	"flowsheet/internal/table"
	"flowsheet/internal/values"
)

// JoinType enumerates merge's join types (spec §4.4).
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinFull  JoinType = "full"
)

// JoinMode selects whether matched right rows are flattened into the
// output columns or kept as a single nested-table column.
type JoinMode string

const (
	JoinFlat   JoinMode = "flat"
	JoinNested JoinMode = "nested"
)

// Comparer customizes key equality for one join key position. The
// default (nil) is structural value equality with null = null.
type Comparer func(a, b any) bool

func defaultComparer(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	return values.Equal(a, b)
}

// MergeOptions configures Merge.
type MergeOptions struct {
	LeftKeys      []string
	RightKeys     []string
	JoinType      JoinType
	JoinMode      JoinMode
	NewColumnName string     // required for JoinMode == JoinNested
	Comparers     []Comparer // optional, must equal len(LeftKeys) if set
}

// Merge joins left and right on the given key columns (spec §4.4). Keys
// are matched by structural equality by default, with null = null;
// flat mode appends right-side columns (deduped with .1, .2, ...); nested
// mode appends a single Table-valued column holding the matching rows.
func Merge(left *table.Table, right *table.Table, opts MergeOptions) (*table.Table, error) {
	if len(opts.LeftKeys) != len(opts.RightKeys) {
		return nil, &InvalidArgumentError{Field: "keys", Reason: "left and right key counts differ"}
	}
	if opts.Comparers != nil && len(opts.Comparers) != len(opts.LeftKeys) {
		return nil, &InvalidArgumentError{Field: "comparers", Reason: "comparer count must equal key count"}
	}
	if opts.JoinMode == JoinNested && opts.NewColumnName == "" {
		return nil, &InvalidArgumentError{Field: "newColumnName", Reason: "required for nested join mode"}
	}

	leftKeyIdx, err := columnIndexes(left, opts.LeftKeys)
	if err != nil {
		return nil, err
	}
	rightKeyIdx, err := columnIndexes(right, opts.RightKeys)
	if err != nil {
		return nil, err
	}
	comparers := opts.Comparers
	if comparers == nil {
		comparers = make([]Comparer, len(leftKeyIdx))
		for i := range comparers {
			comparers[i] = defaultComparer
		}
	}

	leftRows := allRows(left)
	rightRows := allRows(right)
	rightMatched := make([]bool, len(rightRows))

	matchesFor := func(lrow []any) []int {
		var out []int
		for ri, rrow := range rightRows {
			ok := true
			for k := range leftKeyIdx {
				if !comparers[k](lrow[leftKeyIdx[k]], rrow[rightKeyIdx[k]]) {
					ok = false
					break
				}
			}
			if ok {
				out = append(out, ri)
			}
		}
		return out
	}

	var pairings []pairingRow
	for _, lrow := range leftRows {
		ms := matchesFor(lrow)
		for _, ri := range ms {
			rightMatched[ri] = true
		}
		if len(ms) == 0 && (opts.JoinType == JoinLeft || opts.JoinType == JoinFull) {
			pairings = append(pairings, pairingRow{left: lrow, rightMs: nil})
			continue
		}
		if len(ms) == 0 {
			continue
		}
		pairings = append(pairings, pairingRow{left: lrow, rightMs: ms})
	}
	if opts.JoinType == JoinRight || opts.JoinType == JoinFull {
		for ri, matched := range rightMatched {
			if !matched {
				pairings = append(pairings, pairingRow{left: nil, rightMs: []int{ri}})
			}
		}
	}

	if opts.JoinMode == JoinNested {
		return buildNested(left, right, pairings, leftRows, rightRows, opts.NewColumnName)
	}
	return buildFlat(left, right, pairings, rightRows)
}

func columnIndexes(t *table.Table, names []string) ([]int, error) {
	out := make([]int, len(names))
	for i, n := range names {
		ci, err := t.GetColumnIndex(n)
		if err != nil {
			return nil, &UnknownColumnError{Name: n}
		}
		out[i] = ci
	}
	return out, nil
}

func allRows(t *table.Table) [][]any {
	out := make([][]any, t.RowCount())
	for i := range out {
		out[i], _ = t.GetRow(i)
	}
	return out
}

type pairingRow struct {
	left    []any // nil means unmatched right row with no left partner
	rightMs []int
}

func buildFlat(left, right *table.Table, pairings []pairingRow, rightRows [][]any) (*table.Table, error) {
	rightCols, renamed := dedupeColumnNames(left.Columns(), right.Columns())
	outCols := append(append([]table.Column{}, left.Columns()...), rightCols...)

	var outRows [][]any
	for _, p := range pairings {
		leftVals := p.left
		if leftVals == nil {
			leftVals = make([]any, left.ColumnCount())
		}
		if len(p.rightMs) == 0 {
			row := append(append([]any{}, leftVals...), make([]any, right.ColumnCount())...)
			outRows = append(outRows, row)
			continue
		}
		for _, ri := range p.rightMs {
			row := append(append([]any{}, leftVals...), rightRows[ri]...)
			outRows = append(outRows, row)
		}
	}
	_ = renamed
	return table.New(outCols, outRows)
}

// dedupeColumnNames renames right-side columns that collide with
// left-side names, using .1, .2, ... suffixes (spec §4.4).
func dedupeColumnNames(leftCols, rightCols []table.Column) ([]table.Column, bool) {
	existing := make(map[string]bool, len(leftCols))
	for _, c := range leftCols {
		existing[c.Name] = true
	}
	out := make([]table.Column, len(rightCols))
	renamedAny := false
	for i, c := range rightCols {
		name := c.Name
		suffix := 1
		for existing[name] {
			name = c.Name + "." + itoa(suffix)
			suffix++
			renamedAny = true
		}
		existing[name] = true
		out[i] = table.Column{Name: name, Type: c.Type}
	}
	return out, renamedAny
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func buildNested(left, right *table.Table, pairings []pairingRow, leftRows, rightRows [][]any, newColumnName string) (*table.Table, error) {
	outCols := append(append([]table.Column{}, left.Columns()...), table.Column{Name: newColumnName, Type: table.TypeAny})

	// Group pairings by left row so each left row contributes exactly one
	// output row, with a nested table of all its matches.
	type group struct {
		left  []any
		right [][]any
	}
	var groups []group
	for _, p := range pairings {
		g := group{left: p.left}
		for _, ri := range p.rightMs {
			g.right = append(g.right, rightRows[ri])
		}
		groups = append(groups, g)
	}

	var outRows [][]any
	for _, g := range groups {
		leftVals := g.left
		if leftVals == nil {
			leftVals = make([]any, left.ColumnCount())
		}
		nested, err := table.New(right.Columns(), g.right)
		if err != nil {
			return nil, err
		}
		row := append(append([]any{}, leftVals...), any(nested))
		outRows = append(outRows, row)
	}
	return table.New(outCols, outRows)
}

// ExpandTableColumn flattens a nested-table column produced by a nested
// merge: each nested row becomes a flat output row with expandNames
// columns pulled from the nested table; rows whose nested table is empty
// retain the left row once with null values for expandNames (left-outer
// preservation, spec §4.4), matching what merge(flat) with a left join
// would have produced (spec §8's nestedJoin/expandTableColumn property).
// An expanded name that collides with an outer column is suffixed .1,
// .2, ... the same way a flat merge renames right-side columns.
func ExpandTableColumn(t *table.Table, column string, expandNames []string) (*table.Table, error) {
	idx, err := t.GetColumnIndex(column)
	if err != nil {
		return nil, &UnknownColumnError{Name: column}
	}
	var outerCols []table.Column
	var outerIdx []int
	for i, c := range t.Columns() {
		if i == idx {
			continue
		}
		outerCols = append(outerCols, c)
		outerIdx = append(outerIdx, i)
	}
	expandCols := make([]table.Column, len(expandNames))
	for i, n := range expandNames {
		expandCols[i] = table.Column{Name: n, Type: table.TypeAny}
	}
	expandCols, _ = dedupeColumnNames(outerCols, expandCols)
	outCols := append(append([]table.Column{}, outerCols...), expandCols...)

	var outRows [][]any
	for r := 0; r < t.RowCount(); r++ {
		row, _ := t.GetRow(r)
		outer := make([]any, len(outerIdx))
		for i, ci := range outerIdx {
			outer[i] = row[ci]
		}
		nested, _ := row[idx].(*table.Table)
		if nested == nil || nested.RowCount() == 0 {
			expanded := make([]any, len(expandNames))
			outRows = append(outRows, append(append([]any{}, outer...), expanded...))
			continue
		}
		nestedIdx := make([]int, len(expandNames))
		for i, n := range expandNames {
			ci, err := nested.GetColumnIndex(n)
			if err != nil {
				return nil, &UnknownColumnError{Name: n}
			}
			nestedIdx[i] = ci
		}
		for nr := 0; nr < nested.RowCount(); nr++ {
			nrow, _ := nested.GetRow(nr)
			expanded := make([]any, len(expandNames))
			for i, ci := range nestedIdx {
				expanded[i] = nrow[ci]
			}
			outRows = append(outRows, append(append([]any{}, outer...), expanded...))
		}
	}
	return table.New(outCols, outRows)
}
