package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsheet/internal/query"
	"flowsheet/internal/table"
)

func TestRangeAdapterBuildsTableFromGrid(t *testing.T) {
	src := query.Source{Kind: query.SourceRange, Grid: [][]any{
		{"A", "B"},
		{1.0, "x"},
	}}
	tbl, err := Load(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.RowCount())
	assert.True(t, tbl.HasColumn("A"))
	assert.True(t, tbl.HasColumn("B"))
}

func TestTableAdapterResolvesFromEnvironment(t *testing.T) {
	named, err := table.New([]table.Column{{Name: "X"}}, [][]any{{1}})
	require.NoError(t, err)
	env := &Environment{Tables: map[string]*table.Table{"Orders": named}}
	src := query.Source{Kind: query.SourceTable, TableName: "Orders"}
	tbl, err := Load(context.Background(), src, env)
	require.NoError(t, err)
	assert.Same(t, named, tbl)
}

func TestTableAdapterUnknownNameErrors(t *testing.T) {
	env := &Environment{Tables: map[string]*table.Table{}}
	src := query.Source{Kind: query.SourceTable, TableName: "Missing"}
	_, err := Load(context.Background(), src, env)
	assert.Error(t, err)
}

func TestQueryRefAdapterRequiresEnvironment(t *testing.T) {
	src := query.Source{Kind: query.SourceQueryRef, RefID: "orders"}
	_, err := Load(context.Background(), src, nil)
	assert.Error(t, err)
}

func TestCSVAdapterInfersTypesAndHeaders(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("Region,Sales\nEast,100\nWest,200\n"), 0o644))

	src := query.Source{Kind: query.SourceCSV, Path: path}
	tbl, err := Load(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.RowCount())
	v, err := tbl.GetCell(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)
}

func TestJSONAdapterPreservesKeyOrderAcrossRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"Region":"East","Sales":100},{"Region":"West","Sales":200,"Extra":true}]`), 0o644))

	src := query.Source{Kind: query.SourceJSON, Path: path}
	tbl, err := Load(context.Background(), src, nil)
	require.NoError(t, err)
	var names []string
	for _, c := range tbl.Columns() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Region", "Sales", "Extra"}, names)
	row0, _ := tbl.GetRow(0)
	assert.Nil(t, row0[2])
}

func TestUnregisteredSourceKindErrors(t *testing.T) {
	_, err := Load(context.Background(), query.Source{Kind: "nonsense"}, nil)
	assert.Error(t, err)
}
