package sources

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"flowsheet/internal/query"
	"flowsheet/internal/table"
)

func init() { Register(query.SourceDatabase, databaseAdapter{}) }

// databaseAdapter runs src.SQL against src.Connection (a MySQL DSN) and
// scans the result set into a Table, following the query-and-scan
// pattern internal/introspect/mysql/introspect.go uses against
// information_schema, generalized here to an arbitrary caller SQL
// query instead of a fixed introspection statement.
type databaseAdapter struct{}

func (databaseAdapter) Load(ctx context.Context, src query.Source, _ *Environment) (*table.Table, error) {
	db, err := sql.Open("mysql", src.Connection)
	if err != nil {
		return nil, fmt.Errorf("sources: open database connection: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, src.SQL)
	if err != nil {
		return nil, fmt.Errorf("sources: query database: %w", err)
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sources: read result columns: %w", err)
	}
	cols := make([]table.Column, len(colNames))
	for i, n := range colNames {
		cols[i] = table.Column{Name: n, Type: table.TypeAny}
	}

	var outRows [][]any
	scanDest := make([]any, len(colNames))
	scanVals := make([]sql.RawBytes, len(colNames))
	for i := range scanDest {
		scanDest[i] = &scanVals[i]
	}
	for rows.Next() {
		if err := rows.Scan(scanDest...); err != nil {
			return nil, fmt.Errorf("sources: scan row: %w", err)
		}
		row := make([]any, len(colNames))
		for i, v := range scanVals {
			if v == nil {
				row[i] = nil
			} else {
				row[i] = string(v)
			}
		}
		outRows = append(outRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sources: iterate rows: %w", err)
	}
	return table.New(cols, outRows)
}
