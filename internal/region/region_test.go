package region

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsheet/internal/workbook"
)

func gridCandidates(rows, cols int) []Coord {
	var cs []Coord
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cs = append(cs, Coord{Row: r, Col: c})
		}
	}
	return cs
}

func TestDetectFindsSingleConnectedBlock(t *testing.T) {
	sheet := &workbook.Sheet{Dense: [][]any{
		{"a", "b", nil},
		{"c", "d", nil},
		{nil, nil, nil},
	}}
	result := Detect(sheet, gridCandidates(3, 3), IsNonEmpty, Limits{})
	require.Len(t, result.Rects, 1)
	assert.Equal(t, Rect{R0: 0, C0: 0, R1: 1, C1: 1}, result.Rects[0])
}

func TestDetectFiltersTrivialSingleCellComponents(t *testing.T) {
	sheet := &workbook.Sheet{Dense: [][]any{
		{"lone", nil, "other"},
	}}
	result := Detect(sheet, gridCandidates(1, 3), IsNonEmpty, Limits{})
	assert.Empty(t, result.Rects)
}

func TestDetectOrdersRectsLexicographically(t *testing.T) {
	sheet := &workbook.Sheet{Dense: [][]any{
		{"a", "b", nil, "e", "f"},
		{"c", "d", nil, "g", "h"},
	}}
	result := Detect(sheet, gridCandidates(2, 5), IsNonEmpty, Limits{})
	require.Len(t, result.Rects, 2)
	assert.Equal(t, Rect{R0: 0, C0: 0, R1: 1, C1: 1}, result.Rects[0])
	assert.Equal(t, Rect{R0: 0, C0: 3, R1: 1, C1: 4}, result.Rects[1])
}

func TestDetectIsFormulaPredicateOnlyMatchesFormulas(t *testing.T) {
	sheet := &workbook.Sheet{Dense: [][]any{
		{map[string]any{"v": 1.0, "f": "=A1"}, map[string]any{"v": 2.0, "f": "=A2"}},
		{"plain", "plain2"},
	}}
	result := Detect(sheet, gridCandidates(2, 2), IsFormula, Limits{})
	require.Len(t, result.Rects, 1)
	assert.Equal(t, Rect{R0: 0, C0: 0, R1: 0, C1: 1}, result.Rects[0])
}

func TestDetectTruncatesBeyondCellLimit(t *testing.T) {
	sheet := &workbook.Sheet{Dense: [][]any{{"a", "b", "c"}}}
	result := Detect(sheet, gridCandidates(1, 3), IsNonEmpty, Limits{MaxCandidateCells: 2})
	assert.True(t, result.Truncated)
	require.Len(t, result.Rects, 1)
}

func TestDetectCapsRegionCount(t *testing.T) {
	sheet := &workbook.Sheet{Dense: [][]any{
		{"a", "b", nil, "c", "d", nil, "e", "f"},
	}}
	result := Detect(sheet, gridCandidates(1, 8), IsNonEmpty, Limits{MaxRegions: 1})
	assert.Len(t, result.Rects, 1)
}

func TestDetectHandlesSparseHugeCoordinatesViaStringKeyFallback(t *testing.T) {
	bigCol := 1 << 21 // exceeds the packed column width, forcing the overflow path
	sheet := &workbook.Sheet{Sparse: map[string]any{
		"0,0":                        "a",
		fmt.Sprintf("0,%d", bigCol):   "b",
		fmt.Sprintf("0,%d", bigCol+1): "c",
	}}
	candidates := []Coord{{0, 0}, {0, bigCol}, {0, bigCol + 1}}
	result := Detect(sheet, candidates, IsNonEmpty, Limits{})
	require.Len(t, result.Rects, 1)
	assert.Equal(t, Rect{R0: 0, C0: bigCol, R1: 0, C1: bigCol + 1}, result.Rects[0])
}
