package main

import (
	"encoding/json"
	"fmt"
	"os"

	"flowsheet/internal/chunk"
	"flowsheet/internal/region"
	"flowsheet/internal/workbook"
)

// fileWorkbook is the on-disk JSON shape `index` reads: a
// workbook id plus its sheets, each a dense (possibly jagged) grid of
// raw cell values in the same shape workbook.Sheet.Dense accepts.
type fileWorkbook struct {
	ID     string          `json:"id"`
	Sheets []fileSheetJSON `json:"sheets"`
}

type fileSheetJSON struct {
	Name  string  `json:"name"`
	Cells [][]any `json:"cells"`
}

// loadWorkbook reads a fileWorkbook from path and turns it into the
// chunk detector's SheetInput list, scanning each dense grid for its
// non-empty candidate coordinates.
func loadWorkbook(path string) (string, []chunk.SheetInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read workbook file %q: %w", path, err)
	}

	var fw fileWorkbook
	if err := json.Unmarshal(data, &fw); err != nil {
		return "", nil, fmt.Errorf("decode workbook file %q: %w", path, err)
	}
	if fw.ID == "" {
		return "", nil, fmt.Errorf("workbook file %q: missing \"id\"", path)
	}

	sheets := make([]chunk.SheetInput, 0, len(fw.Sheets))
	for _, s := range fw.Sheets {
		sheet := &workbook.Sheet{Dense: s.Cells}
		sheets = append(sheets, chunk.SheetInput{
			Name:       s.Name,
			Sheet:      sheet,
			Candidates: denseCandidates(sheet, s.Cells),
		})
	}
	return fw.ID, sheets, nil
}

// denseCandidates scans a dense grid for every coordinate holding a
// non-empty cell, the set of coordinates worth handing to the region
// detector.
func denseCandidates(sheet *workbook.Sheet, cells [][]any) []region.Coord {
	var out []region.Coord
	for r := range cells {
		for c := range cells[r] {
			if sheet.GetCell(r, c).HasValue() || sheet.GetCell(r, c).HasFormula() {
				out = append(out, region.Coord{Row: r, Col: c})
			}
		}
	}
	return out
}
