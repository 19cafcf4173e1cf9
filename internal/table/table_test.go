package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromGridHeaderUniquing(t *testing.T) {
	grid := [][]any{
		{"A", "", "A", "B"},
		{1.0, 2.0, 3.0, 4.0},
	}
	tbl, err := FromGrid(grid, FromGridOptions{HasHeaders: true})
	require.NoError(t, err)
	names := make([]string, 0, tbl.ColumnCount())
	for _, c := range tbl.Columns() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"A", "Column2", "A.1", "B"}, names)
}

func TestFromGridBlankHeaders(t *testing.T) {
	grid := [][]any{
		{"", ""},
		{1.0, 2.0},
	}
	tbl, err := FromGrid(grid, FromGridOptions{HasHeaders: true})
	require.NoError(t, err)
	var names []string
	for _, c := range tbl.Columns() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Column1", "Column2"}, names)
}

func TestFromGridTypeInference(t *testing.T) {
	grid := [][]any{
		{"Name", "Score", "Mixed"},
		{"a", 1.0, "x"},
		{"b", 2.0, 2.0},
	}
	tbl, err := FromGrid(grid, FromGridOptions{HasHeaders: true, InferTypes: true})
	require.NoError(t, err)
	cols := tbl.Columns()
	assert.Equal(t, TypeString, cols[0].Type)
	assert.Equal(t, TypeNumber, cols[1].Type)
	assert.Equal(t, TypeAny, cols[2].Type)
}

func TestNewRejectsDuplicateColumns(t *testing.T) {
	_, err := New([]Column{{Name: "A"}, {Name: "A"}}, nil)
	require.Error(t, err)
}

func TestMissingCellsNormalizeToNil(t *testing.T) {
	grid := [][]any{
		{"A", "B"},
		{1.0},
	}
	tbl, err := FromGrid(grid, FromGridOptions{HasHeaders: true})
	require.NoError(t, err)
	v, err := tbl.GetCell(0, 1)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestGetColumnIndexUnknown(t *testing.T) {
	tbl := Empty([]Column{{Name: "A"}})
	_, err := tbl.GetColumnIndex("B")
	require.Error(t, err)
}

func TestHeadClampsToRowCount(t *testing.T) {
	tbl, err := New([]Column{{Name: "A"}}, [][]any{{1}, {2}, {3}})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Head(2).RowCount())
	assert.Equal(t, 3, tbl.Head(100).RowCount())
	assert.Equal(t, 0, tbl.Head(-1).RowCount())
}

func TestToGridRoundTrip(t *testing.T) {
	tbl, err := New([]Column{{Name: "A"}, {Name: "B"}}, [][]any{{1, "x"}, {2, "y"}})
	require.NoError(t, err)
	grid := tbl.ToGrid(ToGridOptions{IncludeHeader: true})
	require.Len(t, grid, 3)
	assert.Equal(t, []any{"A", "B"}, grid[0])
	assert.Equal(t, []any{1, "x"}, grid[1])
}
