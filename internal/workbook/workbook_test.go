package workbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetCellRawFromDenseMatrix(t *testing.T) {
	s := &Sheet{Dense: [][]any{{"a", "b"}, {"c", "d"}}}
	assert.Equal(t, "d", s.GetCellRaw(1, 1))
	assert.Nil(t, s.GetCellRaw(5, 5))
}

func TestGetCellRawFromSparseMapCommaKeys(t *testing.T) {
	s := &Sheet{Sparse: map[string]any{"2,3": "hit"}}
	assert.Equal(t, "hit", s.GetCellRaw(2, 3))
	assert.Nil(t, s.GetCellRaw(9, 9))
}

func TestGetCellRawFromSparseMapColonKeys(t *testing.T) {
	s := &Sheet{Sparse: map[string]any{"2:3": "hit"}}
	assert.Equal(t, "hit", s.GetCellRaw(2, 3))
}

func TestGetCellRawFromCallback(t *testing.T) {
	s := &Sheet{Callback: func(r, c int) any {
		if r == 1 && c == 1 {
			return "callback-hit"
		}
		return nil
	}}
	assert.Equal(t, "callback-hit", s.GetCellRaw(1, 1))
}

func TestGetCellRawAppliesOrigin(t *testing.T) {
	s := &Sheet{
		Dense:  [][]any{{"origin-cell"}},
		Origin: Origin{Row: 10, Col: 5},
	}
	assert.Equal(t, "origin-cell", s.GetCellRaw(10, 5))
	assert.Nil(t, s.GetCellRaw(0, 0))
}

func TestNormalizeNilIsEmpty(t *testing.T) {
	c := Normalize(nil)
	assert.False(t, c.HasValue())
	assert.False(t, c.HasFormula())
}

func TestNormalizeEmptyMapIsEmpty(t *testing.T) {
	c := Normalize(map[string]any{})
	assert.False(t, c.HasValue())
}

func TestNormalizeDescriptorWithFormula(t *testing.T) {
	c := Normalize(map[string]any{"v": 42.0, "f": "=SUM(A1:A2)"})
	assert.Equal(t, 42.0, c.Value)
	assert.Equal(t, "=SUM(A1:A2)", c.Formula)
}

func TestNormalizeWhitespaceFormulaIsNoFormula(t *testing.T) {
	c := Normalize(map[string]any{"v": 1.0, "f": "   "})
	assert.False(t, c.HasFormula())
}

func TestNormalizeFormulaNotStartingWithEqualsIsDropped(t *testing.T) {
	c := Normalize(map[string]any{"v": 1.0, "f": "not a formula"})
	assert.False(t, c.HasFormula())
}

func TestNormalizeBareValue(t *testing.T) {
	c := Normalize("plain")
	assert.Equal(t, "plain", c.Value)
	assert.False(t, c.HasFormula())
}

func TestNormalizePreservesDateValue(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Normalize(map[string]any{"v": now})
	assert.True(t, IsDate(c.Value))
	assert.Equal(t, now, c.Value)
}

func TestParseSparseKeyBothSeparators(t *testing.T) {
	r, c, ok := ParseSparseKey("3,4")
	assert.True(t, ok)
	assert.Equal(t, 3, r)
	assert.Equal(t, 4, c)

	r, c, ok = ParseSparseKey("7:8")
	assert.True(t, ok)
	assert.Equal(t, 7, r)
	assert.Equal(t, 8, c)
}

func TestParseSparseKeyInvalid(t *testing.T) {
	_, _, ok := ParseSparseKey("not-a-key")
	assert.False(t, ok)
}
