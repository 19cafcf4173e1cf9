package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmeticAndComparison(t *testing.T) {
	e, err := Compile(`[A] + [B] * 2 > 10`)
	require.NoError(t, err)
	v, err := e.Eval(MapRow{"A": 5.0, "B": 3.0})
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestIfThenElse(t *testing.T) {
	e, err := Compile(`if [Region] = "East" then "E" else "W"`)
	require.NoError(t, err)
	v, err := e.Eval(MapRow{"Region": "East"})
	require.NoError(t, err)
	assert.Equal(t, "E", v)
}

func TestUnsupportedIdentifierRejected(t *testing.T) {
	e, err := Compile(`globalThis`)
	require.Error(t, err)
	assert.Nil(t, e)
	var uie *UnsupportedIdentifierError
	assert.ErrorAs(t, err, &uie)
	assert.Equal(t, "globalThis", uie.Name)
}

func TestUnsupportedFunctionCallRejectedAtCompile(t *testing.T) {
	_, err := Compile(`Function("x")`)
	require.Error(t, err)
	var uie *UnsupportedIdentifierError
	assert.ErrorAs(t, err, &uie)
}

func TestWhitelistedTextFunctions(t *testing.T) {
	e, err := Compile(`Text.Upper(Text.Trim([Name]))`)
	require.NoError(t, err)
	v, err := e.Eval(MapRow{"Name": "  bob  "})
	require.NoError(t, err)
	assert.Equal(t, "BOB", v)
}

func TestRowReference(t *testing.T) {
	e, err := Compile(`_`)
	require.NoError(t, err)
	row := MapRow{"A": 1.0}
	v, err := e.Eval(row)
	require.NoError(t, err)
	assert.Equal(t, row, v)
}

func TestAndOrShortCircuitTypes(t *testing.T) {
	e, err := Compile(`[A] = 1 and [B] = 2`)
	require.NoError(t, err)
	v, err := e.Eval(MapRow{"A": 1.0, "B": 2.0})
	require.NoError(t, err)
	assert.Equal(t, true, v)
}
