package sources

import (
	"context"

	"flowsheet/internal/query"
	"flowsheet/internal/table"
)

func init() { Register(query.SourceRange, rangeAdapter{}) }

// rangeAdapter turns an inline literal grid (spec §3's fromGrid source)
// into a Table directly, treating the first row as headers.
type rangeAdapter struct{}

func (rangeAdapter) Load(_ context.Context, src query.Source, _ *Environment) (*table.Table, error) {
	return table.FromGrid(src.Grid, table.FromGridOptions{HasHeaders: true, InferTypes: true})
}
