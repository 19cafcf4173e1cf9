package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"flowsheet/internal/query"
	"flowsheet/internal/table"
)

func init() { Register(query.SourceParquet, parquetAdapter{}) }

// parquetAdapter reads a local Parquet file into a Table. Column order
// follows the file's schema field order; row values are decoded into
// plain maps and copied into the grid in that order.
type parquetAdapter struct{}

func (parquetAdapter) Load(_ context.Context, src query.Source, _ *Environment) (*table.Table, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("sources: open parquet %q: %w", src.Path, err)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("sources: stat parquet %q: %w", src.Path, err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("sources: open parquet file %q: %w", src.Path, err)
	}
	schema := pf.Schema()
	fields := schema.Fields()
	colNames := make([]string, len(fields))
	for i, field := range fields {
		colNames[i] = field.Name()
	}

	reader := parquet.NewReader(f, schema)
	defer reader.Close()

	var rows [][]any
	for {
		rec := make(map[string]any, len(colNames))
		err := reader.Read(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sources: read parquet row: %w", err)
		}
		row := make([]any, len(colNames))
		for i, name := range colNames {
			row[i] = rec[name]
		}
		rows = append(rows, row)
	}

	cols := make([]table.Column, len(colNames))
	for i, n := range colNames {
		cols[i] = table.Column{Name: n, Type: table.TypeAny}
	}
	return table.New(cols, rows)
}
