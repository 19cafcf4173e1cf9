// Package region finds 4-neighbor connected components of
// predicate-matching cells across a sheet (spec §4.12), for both dense
// and sparse storage, without ever allocating a dense visited grid
// sized to a sparse sheet's full row×col extent.
package region

import (
	"fmt"
	"sort"

	"flowsheet/internal/workbook"
)

// Rect is an inclusive cell range, r0/c0 the top-left corner and
// r1/c1 the bottom-right corner.
type Rect struct {
	R0, C0, R1, C1 int
}

// Predicate decides whether a cell at (row, col) with the given
// normalized value participates in a region.
type Predicate func(cell workbook.Cell) bool

// IsNonEmpty matches any cell carrying a value or a non-empty formula.
func IsNonEmpty(c workbook.Cell) bool { return c.HasValue() || c.HasFormula() }

// IsFormula matches only cells carrying a non-empty formula.
func IsFormula(c workbook.Cell) bool { return c.HasFormula() }

// Limits bounds how much work the detector will do on one sheet,
// matching spec §4.12's detectRegionsCellLimit / maxDataRegionsPerSheet.
type Limits struct {
	MaxCandidateCells int // 0 means unbounded
	MaxRegions        int // 0 means unbounded
}

// Result is what Detect returns: the regions found, in deterministic
// (r0,c0,r1,c1) lexicographic order, plus whether the scan was
// truncated before completing.
type Result struct {
	Rects     []Rect
	Truncated bool
}

// candidate is a packed coordinate. Packing into a single int64 avoids
// a pair-of-ints map key, which in Go hashes no faster than a packed
// scalar but costs more memory per entry; when the packed value would
// overflow safe int64 width (row or col enormous), the string-key path
// below is used instead, mirroring the spec's big-sheet fallback.
const packShift = 20 // supports up to 2^20 columns packed into the low bits

func packCoord(row, col int) (int64, bool) {
	if col < 0 || col >= (1<<packShift) || row < 0 {
		return 0, false
	}
	packed := int64(row)<<packShift | int64(col)
	if packed < 0 {
		return 0, false
	}
	return packed, true
}

func coordKey(row, col int) string {
	return fmt.Sprintf("%d,%d", row, col)
}

// Detect finds connected components of cells matching pred within
// rows×cols of sheet, starting at sheet's own coordinate origin.
// candidates supplies every (row,col) the sheet might have content at;
// for dense sheets that's every cell in range, for sparse sheets it
// should be just the sheet's populated coordinates, so Detect never
// scans empty space the caller already knows is empty.
func Detect(sheet *workbook.Sheet, candidates []Coord, pred Predicate, limits Limits) Result {
	if limits.MaxCandidateCells > 0 && len(candidates) > limits.MaxCandidateCells {
		return truncatedResult(candidates)
	}

	matchSet := make(map[int64]Coord, len(candidates))
	overflowSet := make(map[string]Coord)
	for _, co := range candidates {
		if !pred(sheet.GetCell(co.Row, co.Col)) {
			continue
		}
		if packed, ok := packCoord(co.Row, co.Col); ok {
			matchSet[packed] = co
		} else {
			overflowSet[coordKey(co.Row, co.Col)] = co
		}
	}

	visitedPacked := make(map[int64]bool, len(matchSet))
	visitedOverflow := make(map[string]bool, len(overflowSet))

	var rects []Rect
	for _, co := range candidates {
		if isVisited(co, visitedPacked, visitedOverflow) {
			continue
		}
		if _, ok := lookup(co, matchSet, overflowSet); !ok {
			continue
		}
		rect, size := floodFill(co, matchSet, overflowSet, visitedPacked, visitedOverflow)
		if size <= 1 {
			continue // trivial single-cell components are filtered out
		}
		rects = append(rects, rect)
		if limits.MaxRegions > 0 && len(rects) >= limits.MaxRegions {
			break
		}
	}

	sort.Slice(rects, func(i, j int) bool {
		a, b := rects[i], rects[j]
		if a.R0 != b.R0 {
			return a.R0 < b.R0
		}
		if a.C0 != b.C0 {
			return a.C0 < b.C0
		}
		if a.R1 != b.R1 {
			return a.R1 < b.R1
		}
		return a.C1 < b.C1
	})

	return Result{Rects: rects}
}

// Coord is one sheet coordinate considered as a region candidate.
type Coord struct{ Row, Col int }

func lookup(co Coord, matchSet map[int64]Coord, overflowSet map[string]Coord) (Coord, bool) {
	if packed, ok := packCoord(co.Row, co.Col); ok {
		c, ok := matchSet[packed]
		return c, ok
	}
	c, ok := overflowSet[coordKey(co.Row, co.Col)]
	return c, ok
}

func isVisited(co Coord, visitedPacked map[int64]bool, visitedOverflow map[string]bool) bool {
	if packed, ok := packCoord(co.Row, co.Col); ok {
		return visitedPacked[packed]
	}
	return visitedOverflow[coordKey(co.Row, co.Col)]
}

func markVisited(co Coord, visitedPacked map[int64]bool, visitedOverflow map[string]bool) {
	if packed, ok := packCoord(co.Row, co.Col); ok {
		visitedPacked[packed] = true
		return
	}
	visitedOverflow[coordKey(co.Row, co.Col)] = true
}

// floodFill runs a 4-neighbor BFS from start across both coordinate
// representations, so a component can span cells that individually
// fell into the packed set and the string-key overflow set.
func floodFill(start Coord, matchSet map[int64]Coord, overflowSet map[string]Coord, visitedPacked map[int64]bool, visitedOverflow map[string]bool) (Rect, int) {
	queue := []Coord{start}
	markVisited(start, visitedPacked, visitedOverflow)
	rect := Rect{R0: start.Row, C0: start.Col, R1: start.Row, C1: start.Col}
	size := 0

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		size++
		if cur.Row < rect.R0 {
			rect.R0 = cur.Row
		}
		if cur.Row > rect.R1 {
			rect.R1 = cur.Row
		}
		if cur.Col < rect.C0 {
			rect.C0 = cur.Col
		}
		if cur.Col > rect.C1 {
			rect.C1 = cur.Col
		}

		for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			next := Coord{Row: cur.Row + d[0], Col: cur.Col + d[1]}
			if isVisited(next, visitedPacked, visitedOverflow) {
				continue
			}
			if _, ok := lookup(next, matchSet, overflowSet); !ok {
				continue
			}
			markVisited(next, visitedPacked, visitedOverflow)
			queue = append(queue, next)
		}
	}
	return rect, size
}

// truncatedResult synthesizes a deterministic single region covering
// every candidate, used when the cell count exceeds the configured
// limit rather than doing unbounded work.
func truncatedResult(candidates []Coord) Result {
	if len(candidates) == 0 {
		return Result{Truncated: true}
	}
	r := Rect{R0: candidates[0].Row, C0: candidates[0].Col, R1: candidates[0].Row, C1: candidates[0].Col}
	for _, co := range candidates[1:] {
		if co.Row < r.R0 {
			r.R0 = co.Row
		}
		if co.Row > r.R1 {
			r.R1 = co.Row
		}
		if co.Col < r.C0 {
			r.C0 = co.Col
		}
		if co.Col > r.C1 {
			r.C1 = co.Col
		}
	}
	return Result{Rects: []Rect{r}, Truncated: true}
}
