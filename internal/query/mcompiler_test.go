package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsheet/internal/ops"
)

func TestCompileMBasicPipeline(t *testing.T) {
	src := `
let
    Source = Range.FromValues({{"Region","Sales"},{"East",100},{"West",200}}),
    Filtered = Table.SelectRows(Source, each [Region] = "East"),
    Grouped = Table.Group(Filtered, {"Region"}, {{"Total Sales", "Sales", "Sum"}}),
    Sorted = Table.Sort(Grouped, {{"Total Sales", Order.Descending}})
in
    Sorted`
	q, err := CompileM("q1", "Sales", src)
	require.NoError(t, err)

	assert.Equal(t, SourceRange, q.Source.Kind)
	require.Len(t, q.Source.Grid, 3)
	assert.Equal(t, []any{"Region", "Sales"}, q.Source.Grid[0])

	require.Len(t, q.Steps, 3)
	assert.Equal(t, StepFilterRows, q.Steps[0].Kind)
	require.NotNil(t, q.Steps[0].FilterRows.Comparison)
	assert.Equal(t, "Region", q.Steps[0].FilterRows.Comparison.Column)
	assert.Equal(t, ops.OpEquals, q.Steps[0].FilterRows.Comparison.Op)
	assert.Equal(t, "East", q.Steps[0].FilterRows.Comparison.Value)

	assert.Equal(t, StepGroupBy, q.Steps[1].Kind)
	assert.Equal(t, []string{"Region"}, q.Steps[1].GroupByKeys)
	require.Len(t, q.Steps[1].Aggregations, 1)
	assert.Equal(t, ops.AggSum, q.Steps[1].Aggregations[0].Op)
	assert.Equal(t, "Total Sales", q.Steps[1].Aggregations[0].As)

	assert.Equal(t, StepSortRows, q.Steps[2].Kind)
	require.Len(t, q.Steps[2].SortRows, 1)
	assert.True(t, q.Steps[2].SortRows[0].Descending)
}

func TestCompileMAddColumnUsesExprCompiler(t *testing.T) {
	src := `
let
    Source = Range.FromValues({{"Sales"},{100}}),
    Doubled = Table.AddColumn(Source, "Double", each [Sales] * 2)
in
    Doubled`
	q, err := CompileM("q2", "Doubled", src)
	require.NoError(t, err)
	require.Len(t, q.Steps, 1)
	assert.Equal(t, StepAddColumn, q.Steps[0].Kind)
	assert.Equal(t, "Double", q.Steps[0].NewColumnName)
	require.NotNil(t, q.Steps[0].Formula)
}

func TestCompileMJoinReferencesOtherQuery(t *testing.T) {
	src := `
let
    Source = Range.FromValues({{"Id"},{1}}),
    Joined = Table.Join(Source, {"Id"}, Query.Reference("customers"), {"CustomerId"}, JoinKind.Left)
in
    Joined`
	q, err := CompileM("orders", "Orders", src)
	require.NoError(t, err)
	require.Len(t, q.Steps, 1)
	step := q.Steps[0]
	assert.Equal(t, StepMerge, step.Kind)
	assert.Equal(t, "customers", step.RightQueryID)
	assert.Equal(t, ops.JoinLeft, step.MergeOptions.JoinType)
	assert.Equal(t, []string{"Id"}, step.MergeOptions.LeftKeys)
	assert.Equal(t, []string{"CustomerId"}, step.MergeOptions.RightKeys)
}

func TestCompileMRejectsUnsupportedFunction(t *testing.T) {
	src := `
let
    Source = Range.FromValues({{"A"},{1}}),
    Weird = Table.Frobnicate(Source)
in
    Weird`
	_, err := CompileM("q3", "Weird", src)
	require.Error(t, err)
	var unsupported *UnsupportedMFunctionError
	assert.ErrorAs(t, err, &unsupported)
}

func TestCompileMResultMustBeFinalBinding(t *testing.T) {
	src := `
let
    Source = Range.FromValues({{"A"},{1}}),
    Step1 = Table.PromoteHeaders(Source)
in
    Source`
	_, err := CompileM("q4", "Bad", src)
	require.Error(t, err)
}

func TestCompileMAndOrFilterLambda(t *testing.T) {
	src := `
let
    Source = Range.FromValues({{"A","B"},{1,2}}),
    Filtered = Table.SelectRows(Source, each [A] > 0 and [B] < 10)
in
    Filtered`
	q, err := CompileM("q5", "Filtered", src)
	require.NoError(t, err)
	require.Len(t, q.Steps, 1)
	require.Len(t, q.Steps[0].FilterRows.And, 2)
}
