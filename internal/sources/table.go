package sources

import (
	"context"
	"fmt"

	"flowsheet/internal/query"
	"flowsheet/internal/table"
)

func init() {
	Register(query.SourceTable, tableAdapter{})
	Register(query.SourceQueryRef, queryRefAdapter{})
}

// tableAdapter resolves a SourceTable against env.Tables, the named
// tables the caller makes available (e.g. a workbook region already
// extracted by internal/workbook).
type tableAdapter struct{}

func (tableAdapter) Load(_ context.Context, src query.Source, env *Environment) (*table.Table, error) {
	if env == nil {
		return nil, fmt.Errorf("sources: table source %q requires an environment", src.TableName)
	}
	t, ok := env.Tables[src.TableName]
	if !ok {
		return nil, fmt.Errorf("sources: unknown table %q", src.TableName)
	}
	return t, nil
}

// queryRefAdapter resolves a SourceQueryRef against env.QueryResults,
// which the engine populates as it executes queries in dependency
// order (spec §4.5's Query.Reference).
type queryRefAdapter struct{}

func (queryRefAdapter) Load(_ context.Context, src query.Source, env *Environment) (*table.Table, error) {
	if env == nil {
		return nil, fmt.Errorf("sources: query reference %q requires an environment", src.RefID)
	}
	t, ok := env.QueryResults[src.RefID]
	if !ok {
		return nil, fmt.Errorf("sources: query %q has not been evaluated yet", src.RefID)
	}
	return t, nil
}
