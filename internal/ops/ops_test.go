package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsheet/internal/expr"
	"flowsheet/internal/table"
)

func salesTable(t *testing.T) *table.Table {
	t.Helper()
	cols := []table.Column{{Name: "Region", Type: table.TypeString}, {Name: "Sales", Type: table.TypeNumber}}
	rows := [][]any{
		{"East", 100.0},
		{"East", 150.0},
		{"West", 200.0},
	}
	tbl, err := table.New(cols, rows)
	require.NoError(t, err)
	return tbl
}

func TestGroupAndSortScenario(t *testing.T) {
	tbl := salesTable(t)
	filtered, err := FilterRows(tbl, Predicate{Comparison: &Comparison{Column: "Region", Op: OpEquals, Value: "East"}})
	require.NoError(t, err)
	assert.Equal(t, 2, filtered.RowCount())

	grouped, err := GroupBy(filtered, []string{"Region"}, []Aggregation{{Column: "Sales", Op: AggSum, As: "Total Sales"}})
	require.NoError(t, err)
	sorted, err := SortRows(grouped, []SortKey{{Column: "Total Sales", Descending: true}})
	require.NoError(t, err)

	grid := sorted.ToGrid(table.ToGridOptions{IncludeHeader: true})
	assert.Equal(t, []any{"Region", "Total Sales"}, grid[0])
	assert.Equal(t, []any{"East", 250.0}, grid[1])
}

func TestMergeWithNullKeys(t *testing.T) {
	leftCols := []table.Column{{Name: "Id"}, {Name: "Region"}, {Name: "Val"}}
	leftRows := [][]any{
		{1.0, "East", 100.0},
		{1.0, "West", 200.0},
		{2.0, "East", 300.0},
		{3.0, nil, 400.0},
	}
	left, err := table.New(leftCols, leftRows)
	require.NoError(t, err)

	rightCols := []table.Column{{Name: "Id"}, {Name: "Region"}, {Name: "Label"}}
	rightRows := [][]any{
		{1.0, "East", "A"},
		{1.0, "West", "B"},
		{3.0, nil, "C"},
	}
	right, err := table.New(rightCols, rightRows)
	require.NoError(t, err)

	out, err := Merge(left, right, MergeOptions{
		LeftKeys: []string{"Id", "Region"}, RightKeys: []string{"Id", "Region"},
		JoinType: JoinLeft, JoinMode: JoinFlat,
	})
	require.NoError(t, err)
	grid := out.ToGrid(table.ToGridOptions{})
	require.Len(t, grid, 4)
	assert.Equal(t, []any{1.0, "East", 100.0, 1.0, "East", "A"}, grid[0])
	assert.Equal(t, []any{1.0, "West", 200.0, 1.0, "West", "B"}, grid[1])
	assert.Equal(t, []any{2.0, "East", 300.0, nil, nil, nil}, grid[2])
	assert.Equal(t, []any{3.0, nil, 400.0, 3.0, nil, "C"}, grid[3])
}

func TestAppendColumnUnion(t *testing.T) {
	a, _ := table.New([]table.Column{{Name: "A"}, {Name: "B"}}, [][]any{{1, 2}})
	b, _ := table.New([]table.Column{{Name: "B"}, {Name: "C"}}, [][]any{{3, 4}})
	out, err := Append([]*table.Table{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, out.RowCount())
	var names []string
	for _, c := range out.Columns() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"A", "B", "C"}, names)
	row0, _ := out.GetRow(0)
	assert.Equal(t, []any{1, 2, nil}, row0)
	row1, _ := out.GetRow(1)
	assert.Equal(t, []any{nil, 3, 4}, row1)
}

func TestDistinctRowsPreservesFirstOccurrence(t *testing.T) {
	tbl, _ := table.New([]table.Column{{Name: "A"}}, [][]any{{1}, {2}, {1}, {3}})
	out, err := DistinctRows(tbl, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, out.RowCount())
	row0, _ := out.GetRow(0)
	assert.Equal(t, []any{1}, row0)
}

func TestSortRowsStableOnTies(t *testing.T) {
	tbl, _ := table.New([]table.Column{{Name: "K"}, {Name: "Seq"}}, [][]any{
		{1.0, "a"}, {1.0, "b"}, {0.0, "c"},
	})
	out, err := SortRows(tbl, []SortKey{{Column: "K"}})
	require.NoError(t, err)
	var seqs []any
	out.IterRows(func(row []any) bool { seqs = append(seqs, row[1]); return true })
	assert.Equal(t, []any{"c", "a", "b"}, seqs)
}

func TestSelectColumnsIdempotent(t *testing.T) {
	tbl := salesTable(t)
	once, err := SelectColumns(tbl, []string{"Sales"})
	require.NoError(t, err)
	twice, err := SelectColumns(once, []string{"Sales"})
	require.NoError(t, err)
	assert.Equal(t, once.ToGrid(table.ToGridOptions{IncludeHeader: true}), twice.ToGrid(table.ToGridOptions{IncludeHeader: true}))
}

func TestAddColumnFormulaFailureYieldsNull(t *testing.T) {
	tbl := salesTable(t)
	f := expr.MustCompile(`Text.Upper([Sales])`) // Sales is numeric, Text.Upper wants a string
	out, err := AddColumn(tbl, "Upper", f)
	require.NoError(t, err)
	v, err := out.GetCell(0, 2)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestNestedJoinExpandEquivalentToFlatLeftJoin(t *testing.T) {
	left, _ := table.New([]table.Column{{Name: "Id"}}, [][]any{{1}, {2}})
	right, _ := table.New([]table.Column{{Name: "Id"}, {Name: "Label"}}, [][]any{{1, "A"}})

	nested, err := Merge(left, right, MergeOptions{
		LeftKeys: []string{"Id"}, RightKeys: []string{"Id"},
		JoinType: JoinLeft, JoinMode: JoinNested, NewColumnName: "Matches",
	})
	require.NoError(t, err)
	expanded, err := ExpandTableColumn(nested, "Matches", []string{"Id", "Label"})
	require.NoError(t, err)

	flat, err := Merge(left, right, MergeOptions{
		LeftKeys: []string{"Id"}, RightKeys: []string{"Id"},
		JoinType: JoinLeft, JoinMode: JoinFlat,
	})
	require.NoError(t, err)

	assert.Equal(t, flat.ToGrid(table.ToGridOptions{}), expanded.ToGrid(table.ToGridOptions{}))
}
