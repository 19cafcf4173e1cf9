// Package chunk segments a workbook into semantic chunks for RAG
// indexing (spec §4.13) and renders each chunk into compact,
// schema-first text (spec §4.14).
package chunk

import (
	"strings"

	"flowsheet/internal/rect"
	"flowsheet/internal/region"
	"flowsheet/internal/workbook"
)

// Kind enumerates the chunk kinds, in the detection/emission order
// spec §4.13 requires: explicit tables first, then named ranges, then
// detected data regions, then detected formula regions.
type Kind string

const (
	KindTable         Kind = "table"
	KindNamedRange    Kind = "namedRange"
	KindDataRegion    Kind = "dataRegion"
	KindFormulaRegion Kind = "formulaRegion"
)

// Chunk is one rectangular, typed unit of a workbook (spec Glossary).
type Chunk struct {
	ID         string
	WorkbookID string
	SheetName  string
	Kind       Kind
	Title      string
	Rect       region.Rect
	Cells      [][]workbook.Cell // capped at maxRows x maxCols
	Truncated  bool              // true when Cells is smaller than Rect's full extent
	Meta       map[string]any
}

// escapeIDComponent escapes backslashes and the "::" delimiter inside
// one id component so a literal "::" in a name can never be confused
// with the separator between components (spec §4.13's collision
// requirement: `sheet=A, table=B::table::C` must never equal
// `sheet=A::table::B, table=C`).
func escapeIDComponent(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "::", `\:\:`)
	return s
}

func buildID(workbookID, sheetName string, kind Kind, discriminator string) string {
	parts := []string{
		escapeIDComponent(workbookID),
		escapeIDComponent(sheetName),
		string(kind),
		escapeIDComponent(discriminator),
	}
	return strings.Join(parts, "::")
}

// NamedArea is an explicit table or named range on a sheet, supplied
// by the caller (these are never detected, only declared).
type NamedArea struct {
	Name string
	Rect region.Rect
}

// SheetInput is one sheet's detection inputs: its cell storage, the
// coordinates worth scanning (a sheet's populated cells, so the
// detector never walks empty space), and any explicit tables/named
// ranges already known on it.
type SheetInput struct {
	Name        string
	Sheet       *workbook.Sheet
	Candidates  []region.Coord
	Tables      []NamedArea
	NamedRanges []NamedArea
}

// Limits bounds chunk extraction and region detection.
type Limits struct {
	MaxRows           int
	MaxCols           int
	Region            region.Limits
	SuppressThreshold float64 // intersection ratio above which a detected region is dropped; 0 uses the spec default of 0.8
}

func (l Limits) threshold() float64 {
	if l.SuppressThreshold > 0 {
		return l.SuppressThreshold
	}
	return 0.8
}

// DetectChunks builds the full ordered chunk list for one workbook
// across all of its sheets.
func DetectChunks(workbookID string, sheets []SheetInput, limits Limits) []Chunk {
	var all []Chunk
	for _, sheet := range sheets {
		all = append(all, detectSheetChunks(workbookID, sheet, limits)...)
	}
	return all
}

func detectSheetChunks(workbookID string, sheet SheetInput, limits Limits) []Chunk {
	var chunks []Chunk
	var placed []region.Rect

	for _, tbl := range sheet.Tables {
		c := buildChunk(workbookID, sheet, KindTable, tbl.Name, tbl.Rect, limits)
		chunks = append(chunks, c)
		placed = append(placed, tbl.Rect)
	}
	for _, nr := range sheet.NamedRanges {
		c := buildChunk(workbookID, sheet, KindNamedRange, nr.Name, nr.Rect, limits)
		chunks = append(chunks, c)
		placed = append(placed, nr.Rect)
	}

	dataRegions := region.Detect(sheet.Sheet, sheet.Candidates, region.IsNonEmpty, limits.Region)
	for _, r := range dataRegions.Rects {
		if overlapsAny(r, placed, limits.threshold()) {
			continue
		}
		c := buildChunk(workbookID, sheet, KindDataRegion, rectDiscriminator(r), r, limits)
		chunks = append(chunks, c)
		placed = append(placed, r)
	}

	formulaRegions := region.Detect(sheet.Sheet, sheet.Candidates, region.IsFormula, limits.Region)
	for _, r := range formulaRegions.Rects {
		if overlapsAny(r, placed, limits.threshold()) {
			continue
		}
		c := buildChunk(workbookID, sheet, KindFormulaRegion, rectDiscriminator(r), r, limits)
		chunks = append(chunks, c)
		placed = append(placed, r)
	}

	return chunks
}

func rectDiscriminator(r region.Rect) string {
	return rect.A1(r)
}

func overlapsAny(r region.Rect, placed []region.Rect, threshold float64) bool {
	for _, p := range placed {
		if rect.IntersectionRatio(r, p) > threshold {
			return true
		}
	}
	return false
}

func buildChunk(workbookID string, sheet SheetInput, kind Kind, discriminator string, r region.Rect, limits Limits) Chunk {
	cells, truncated := extractCells(sheet.Sheet, r, limits.MaxRows, limits.MaxCols)
	title := discriminator
	return Chunk{
		ID:         buildID(workbookID, sheet.Name, kind, discriminator),
		WorkbookID: workbookID,
		SheetName:  sheet.Name,
		Kind:       kind,
		Title:      title,
		Rect:       r,
		Cells:      cells,
		Truncated:  truncated,
	}
}

func extractCells(sheet *workbook.Sheet, r region.Rect, maxRows, maxCols int) ([][]workbook.Cell, bool) {
	rows := r.R1 - r.R0 + 1
	cols := r.C1 - r.C0 + 1
	truncated := false
	if maxRows > 0 && rows > maxRows {
		rows = maxRows
		truncated = true
	}
	if maxCols > 0 && cols > maxCols {
		cols = maxCols
		truncated = true
	}
	cells := make([][]workbook.Cell, rows)
	for i := 0; i < rows; i++ {
		row := make([]workbook.Cell, cols)
		for j := 0; j < cols; j++ {
			row[j] = sheet.GetCell(r.R0+i, r.C0+j)
		}
		cells[i] = row
	}
	return cells, truncated
}
