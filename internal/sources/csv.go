package sources

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"flowsheet/internal/query"
	"flowsheet/internal/table"
)

func init() { Register(query.SourceCSV, csvAdapter{}) }

type csvAdapter struct{}

func (csvAdapter) Load(_ context.Context, src query.Source, _ *Environment) (*table.Table, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("sources: open csv %q: %w", src.Path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("sources: read csv %q: %w", src.Path, err)
	}
	grid := make([][]any, len(records))
	for i, row := range records {
		cells := make([]any, len(row))
		for j, c := range row {
			if i > 0 {
				if f, err := strconv.ParseFloat(c, 64); err == nil {
					cells[j] = f
					continue
				}
			}
			cells[j] = c
		}
		grid[i] = cells
	}
	return table.FromGrid(grid, table.FromGridOptions{HasHeaders: true, InferTypes: true})
}
