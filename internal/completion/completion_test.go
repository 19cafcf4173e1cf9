package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumSpec() FunctionSpec {
	return FunctionSpec{
		Name:        "sum",
		Description: "Adds a list of numbers.",
		Args: []ArgSpec{
			{Name: "number1", Type: ArgNumber},
			{Name: "number2", Type: ArgNumber, Optional: true, Repeating: true},
		},
	}
}

func TestNewRegistryUppercasesNames(t *testing.T) {
	r, err := NewRegistry([]FunctionSpec{sumSpec()})
	require.NoError(t, err)

	spec, ok := r.Lookup("sum")
	require.True(t, ok)
	assert.Equal(t, "SUM", spec.Name)
}

func TestNewRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry([]FunctionSpec{sumSpec(), {Name: "SUM"}})
	var dupErr *DuplicateFunctionError
	assert.ErrorAs(t, err, &dupErr)
}

func TestNamesReturnsSortedOrder(t *testing.T) {
	r, err := NewRegistry([]FunctionSpec{
		{Name: "VLOOKUP"},
		{Name: "AVERAGE"},
		{Name: "SUM"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AVERAGE", "SUM", "VLOOKUP"}, r.Names())
}

func TestCompletePrefixMatchesCaseInsensitively(t *testing.T) {
	r, err := NewRegistry([]FunctionSpec{
		{Name: "SUM"},
		{Name: "SUMIF"},
		{Name: "SUMIFS"},
		{Name: "AVERAGE"},
	})
	require.NoError(t, err)

	got := r.CompletePrefix("sum")
	assert.Equal(t, []string{"SUM", "SUMIF", "SUMIFS"}, got)
}

func TestCompletePrefixEmptyPrefixReturnsEverything(t *testing.T) {
	r, err := NewRegistry([]FunctionSpec{{Name: "SUM"}, {Name: "AVERAGE"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"AVERAGE", "SUM"}, r.CompletePrefix(""))
}

func TestCompletePrefixNoMatchReturnsEmpty(t *testing.T) {
	r, err := NewRegistry([]FunctionSpec{{Name: "SUM"}})
	require.NoError(t, err)

	assert.Empty(t, r.CompletePrefix("zzz"))
}

func TestArgTypeAtReturnsDeclaredArgBeforeRepeatingGroup(t *testing.T) {
	spec := sumSpec()
	typ, ok := ArgTypeAt(spec, 0)
	require.True(t, ok)
	assert.Equal(t, ArgNumber, typ)
}

func TestArgTypeAtCyclesThroughRepeatingGroup(t *testing.T) {
	spec := FunctionSpec{
		Name: "VLOOKUP",
		Args: []ArgSpec{
			{Name: "lookup_value", Type: ArgValue},
			{Name: "table_array", Type: ArgRange},
			{Name: "col_index", Type: ArgNumber, Repeating: true},
			{Name: "range_lookup", Type: ArgBoolean},
		},
	}

	// positions 2,3 are the repeating group (col_index, range_lookup);
	// position 4 wraps back to col_index, position 5 to range_lookup.
	typ2, ok := ArgTypeAt(spec, 2)
	require.True(t, ok)
	assert.Equal(t, ArgNumber, typ2)

	typ4, ok := ArgTypeAt(spec, 4)
	require.True(t, ok)
	assert.Equal(t, ArgNumber, typ4)

	typ5, ok := ArgTypeAt(spec, 5)
	require.True(t, ok)
	assert.Equal(t, ArgBoolean, typ5)
}

func TestArgTypeAtReturnsFalsePastArgsWithNoRepeatingGroup(t *testing.T) {
	spec := FunctionSpec{
		Name: "LEN",
		Args: []ArgSpec{{Name: "text", Type: ArgString}},
	}

	_, ok := ArgTypeAt(spec, 1)
	assert.False(t, ok)
}

func TestArgTypeAtRejectsNegativeIndex(t *testing.T) {
	_, ok := ArgTypeAt(sumSpec(), -1)
	assert.False(t, ok)
}
