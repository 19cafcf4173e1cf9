package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"flowsheet/internal/rect"
	"flowsheet/internal/table"
	"flowsheet/internal/workbook"
)

// RenderOptions configures text rendering. Zero values fall back to
// the documented defaults.
type RenderOptions struct {
	SampleRows            int // default 5
	MaxColumnsForSchema   int // default 20
	MaxFormulasSampled    int // default 12
	MaxFormulaStringWidth int // default 60
}

func (o RenderOptions) sampleRows() int {
	if o.SampleRows > 0 {
		return o.SampleRows
	}
	return 5
}

func (o RenderOptions) maxColumnsForSchema() int {
	if o.MaxColumnsForSchema > 0 {
		return o.MaxColumnsForSchema
	}
	return 20
}

func (o RenderOptions) maxFormulasSampled() int {
	if o.MaxFormulasSampled > 0 {
		return o.MaxFormulasSampled
	}
	return 12
}

func (o RenderOptions) maxFormulaStringWidth() int {
	if o.MaxFormulaStringWidth > 0 {
		return o.MaxFormulaStringWidth
	}
	return 60
}

// ContentHash returns the sha256 hex digest of a chunk's rendered
// text, the incremental-diffing key spec §4.17 calls `contentHash`.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Render produces the chunk's text per spec §4.14's section order.
func Render(c Chunk, opts RenderOptions) string {
	var b strings.Builder

	b.WriteString(headerLine(c))
	b.WriteByte('\n')

	if c.Truncated {
		fmt.Fprintf(&b, "NOTE: embedding uses a %dx%d cell sample (full range is %dx%d).\n",
			len(c.Cells), sampleColCount(c.Cells), rect.Rows(c.Rect), rect.Cols(c.Rect))
	}

	headerRowIdx, titleRowIdx := detectHeaderAndTitleRows(c.Cells)

	if c.Kind != KindFormulaRegion {
		headers, types := columnsFromHeaderRow(c.Cells, headerRowIdx, opts)
		b.WriteString(columnsLine(headers, types, opts))
		b.WriteByte('\n')

		if titleRowIdx >= 0 {
			b.WriteString(preHeaderRowsSection(c.Cells, titleRowIdx, headerRowIdx))
		}

		b.WriteString(sampleRowsSection(c.Cells, headers, headerRowIdx, opts))
	} else {
		b.WriteString(formulasSection(c.Cells, opts))
	}

	return b.String()
}

func sampleColCount(cells [][]workbook.Cell) int {
	if len(cells) == 0 {
		return 0
	}
	return len(cells[0])
}

func headerLine(c Chunk) string {
	formulaCount := 0
	for _, row := range c.Cells {
		for _, cell := range row {
			if cell.HasFormula() {
				formulaCount++
			}
		}
	}
	return fmt.Sprintf("%s: %s (sheet=%q, range=%q, size=%dx%d, formulas≈%d)",
		strings.ToUpper(string(c.Kind)), c.Title, c.SheetName, rect.A1(c.Rect),
		rect.Rows(c.Rect), rect.Cols(c.Rect), formulaCount)
}

var titleKeywords = regexp.MustCompile(`(?i)summary|report|overview|dashboard|analysis|results|totals`)

// detectHeaderAndTitleRows scores each of the first five rows for how
// header-like it looks (non-empty count, string-ish ratio >= 0.6) and
// separately recognizes a single title row immediately above it via
// keyword/length/punctuation cues (spec §4.14). titleRowIdx is -1 when
// no title row precedes the chosen header row.
func detectHeaderAndTitleRows(cells [][]workbook.Cell) (headerRowIdx, titleRowIdx int) {
	headerRowIdx, titleRowIdx = -1, -1
	if len(cells) == 0 {
		return
	}
	limit := min(5, len(cells))
	bestScore := -1.0
	for i := 0; i < limit; i++ {
		score := headerScore(cells[i])
		if score > bestScore {
			bestScore = score
			headerRowIdx = i
		}
	}
	if headerRowIdx <= 0 {
		return
	}
	if isTitleRow(cells[headerRowIdx-1], len(cells[headerRowIdx])) {
		titleRowIdx = headerRowIdx - 1
	}
	return
}

func headerScore(row []workbook.Cell) float64 {
	nonEmpty := 0
	stringish := 0
	for _, cell := range row {
		if !cell.HasValue() {
			continue
		}
		nonEmpty++
		if _, ok := cell.Value.(string); ok {
			stringish++
		}
	}
	if nonEmpty == 0 {
		return 0
	}
	ratio := float64(stringish) / float64(nonEmpty)
	score := float64(nonEmpty)
	if ratio >= 0.6 {
		score += 1
	}
	return score
}

// isTitleRow recognizes a single long/punctuated/multi-word label
// above the real header row: exactly one non-empty cell, a string
// value, and either a recognized keyword, meaningful length, or
// trailing punctuation.
func isTitleRow(row []workbook.Cell, width int) bool {
	nonEmptyIdx := -1
	for i, cell := range row {
		if !cell.HasValue() {
			continue
		}
		if nonEmptyIdx >= 0 {
			return false // more than one populated cell: not a title row
		}
		nonEmptyIdx = i
	}
	if nonEmptyIdx < 0 {
		return false
	}
	s, ok := row[nonEmptyIdx].Value.(string)
	if !ok {
		return false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if titleKeywords.MatchString(s) {
		return true
	}
	if len(s) > 12 {
		return true
	}
	if strings.ContainsAny(s, ":-–—") {
		return true
	}
	return len(strings.Fields(s)) >= 2
}

func columnsFromHeaderRow(cells [][]workbook.Cell, headerRowIdx int, opts RenderOptions) ([]string, []table.Type) {
	if headerRowIdx < 0 || headerRowIdx >= len(cells) {
		return nil, nil
	}
	raw := cells[headerRowIdx]
	names := make([]string, len(raw))
	seen := map[string]int{}
	for i, cell := range raw {
		name := headerName(cell, i)
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		names[i] = name
	}
	types := make([]table.Type, len(raw))
	sampleRows := cells[headerRowIdx+1:]
	for i := range raw {
		types[i] = inferColumnType(sampleRows, i)
	}
	return names, types
}

// inferColumnType mirrors the table package's column-type inference:
// a single consistent value kind across non-empty cells yields that
// type, otherwise (or when no cells are populated) TypeAny.
func inferColumnType(rows [][]workbook.Cell, col int) table.Type {
	var seen table.Type
	has := false
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		cell := row[col]
		if !cell.HasValue() {
			continue
		}
		var t table.Type
		switch cell.Value.(type) {
		case string:
			t = table.TypeString
		case float64, int, int64:
			t = table.TypeNumber
		case bool:
			t = table.TypeBoolean
		case time.Time:
			t = table.TypeDateTime
		default:
			t = table.TypeAny
		}
		if !has {
			seen, has = t, true
			continue
		}
		if seen != t {
			return table.TypeAny
		}
	}
	if !has {
		return table.TypeAny
	}
	return seen
}

func headerName(cell workbook.Cell, idx int) string {
	s, ok := cell.Value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return fmt.Sprintf("Column%d", idx+1)
	}
	return strings.ReplaceAll(s, "=", "≡")
}

func columnsLine(headers []string, types []table.Type, opts RenderOptions) string {
	limit := opts.maxColumnsForSchema()
	shown := headers
	suffix := ""
	if limit > 0 && len(headers) > limit {
		shown = headers[:limit]
		suffix = fmt.Sprintf(" | … (+%d more columns)", len(headers)-limit)
	}
	parts := make([]string, len(shown))
	for i, h := range shown {
		t := table.TypeAny
		if i < len(types) {
			t = types[i]
		}
		parts[i] = fmt.Sprintf("%s (%s)", h, t)
	}
	return "COLUMNS: " + strings.Join(parts, " | ") + suffix
}

func preHeaderRowsSection(cells [][]workbook.Cell, titleRowIdx, headerRowIdx int) string {
	var b strings.Builder
	b.WriteString("PRE-HEADER ROWS:\n")
	const maxPreHeaderRows = 2
	rows := cells[titleRowIdx:headerRowIdx]
	shown := rows
	truncated := 0
	if len(rows) > maxPreHeaderRows {
		shown = rows[:maxPreHeaderRows]
		truncated = len(rows) - maxPreHeaderRows
	}
	for _, row := range shown {
		var keys []string
		for _, cell := range row {
			if cell.HasValue() {
				keys = append(keys, formatValue(cell.Value))
			}
		}
		b.WriteString(strings.Join(keys, " | "))
		b.WriteByte('\n')
	}
	if truncated > 0 {
		fmt.Fprintf(&b, "… (+%d more pre-header rows)\n", truncated)
	}
	return b.String()
}

func sampleRowsSection(cells [][]workbook.Cell, headers []string, headerRowIdx int, opts RenderOptions) string {
	var b strings.Builder
	b.WriteString("SAMPLE ROWS:\n")
	dataStart := headerRowIdx + 1
	if dataStart < 0 {
		dataStart = 0
	}
	data := cells[dataStart:]
	n := opts.sampleRows()
	shown := data
	truncated := 0
	if len(data) > n {
		shown = data[:n]
		truncated = len(data) - n
	}
	for _, row := range shown {
		var parts []string
		for i, cell := range row {
			name := columnLabel(headers, i)
			parts = append(parts, formatCellField(name, cell))
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteByte('\n')
	}
	if truncated > 0 {
		fmt.Fprintf(&b, "… (+%d more rows)\n", truncated)
	}
	return b.String()
}

func columnLabel(headers []string, i int) string {
	if i < len(headers) {
		return headers[i]
	}
	return fmt.Sprintf("Column%d", i+1)
}

func formatCellField(name string, cell workbook.Cell) string {
	if cell.HasFormula() {
		computed := ""
		if cell.HasValue() {
			computed = formatValue(cell.Value)
		}
		if computed == "" {
			return fmt.Sprintf("%s(%s)", name, cell.Formula)
		}
		return fmt.Sprintf("%s(%s)=%s", name, cell.Formula, computed)
	}
	return fmt.Sprintf("%s=%s", name, formatValue(cell.Value))
}

func formulasSection(cells [][]workbook.Cell, opts RenderOptions) string {
	var b strings.Builder
	b.WriteString("FORMULAS: ")
	var entries []string
	limit := opts.maxFormulasSampled()
	width := opts.maxFormulaStringWidth()
	total := 0
	for r, row := range cells {
		for c, cell := range row {
			if !cell.HasFormula() {
				continue
			}
			total++
			if len(entries) >= limit {
				continue
			}
			ref := rect.CellRef(r, c)
			computed := ""
			if cell.HasValue() {
				computed = formatValue(cell.Value)
			}
			text := fmt.Sprintf("%s:%s=%s", ref, truncateString(cell.Formula, width), computed)
			entries = append(entries, text)
		}
	}
	b.WriteString(strings.Join(entries, " | "))
	if total > len(entries) {
		fmt.Fprintf(&b, " | … (+%d more formulas)", total-len(entries))
	}
	b.WriteByte('\n')
	return b.String()
}

func truncateString(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return s[:width] + "..."
}

// formatValue renders one cell value safely: never invokes a
// caller-supplied stringification hook, replaces "|" so rendered rows
// stay parseable, and falls back to safe JSON for structured values.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return sanitizeText(t)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int, int64:
		return fmt.Sprintf("%d", t)
	case time.Time:
		return t.Format(time.RFC3339)
	case map[string]any:
		return sanitizeText(formatObject(t))
	default:
		return sanitizeText(formatObject(v))
	}
}

func sanitizeText(s string) string {
	return strings.ReplaceAll(s, "|", "¦")
}

// formatObject implements the object-value fallback chain: prefer a
// "text" string field, then an image envelope, then the value's
// encoding/json form. A value encoding/json cannot encode (a function,
// a channel, a cycle) renders the whole object as "[Circular]"; such
// members are not omitted one by one.
func formatObject(v any) string {
	if m, ok := v.(map[string]any); ok {
		if text, ok := m["text"].(string); ok {
			return text
		}
		if typ, ok := m["type"].(string); ok && typ == "image" {
			if img, ok := m["value"].(map[string]any); ok {
				if alt, ok := img["altText"].(string); ok && alt != "" {
					return alt
				}
			}
			return "[Image]"
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[Circular]"
	}
	return string(b)
}
