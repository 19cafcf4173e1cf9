package engine

import (
	"context"
	"fmt"

	"flowsheet/internal/ops"
	"flowsheet/internal/query"
	"flowsheet/internal/sources"
	"flowsheet/internal/table"
)

// applyStep runs one Step against t, resolving any query reference the
// step needs (merge/append) through env first.
func (e *Engine) applyStep(ctx context.Context, t *table.Table, step query.Step, env *sources.Environment) (*table.Table, error) {
	switch step.Kind {
	case query.StepSelectColumns:
		return ops.SelectColumns(t, step.SelectColumns)
	case query.StepRemoveColumns:
		return ops.RemoveColumns(t, step.RemoveColumns)
	case query.StepFilterRows:
		return ops.FilterRows(t, step.FilterRows)
	case query.StepSortRows:
		return ops.SortRows(t, step.SortRows)
	case query.StepGroupBy:
		return ops.GroupBy(t, step.GroupByKeys, step.Aggregations)
	case query.StepAddColumn:
		return ops.AddColumn(t, step.NewColumnName, step.Formula)
	case query.StepTransformColumns:
		return ops.TransformColumns(t, step.Transforms)
	case query.StepRenameColumn:
		return ops.RenameColumn(t, step.OldName, step.NewName)
	case query.StepChangeType:
		return ops.ChangeType(t, step.OldName, table.Type(step.NewType))
	case query.StepTake:
		return ops.Take(t, step.N), nil
	case query.StepSkip:
		return ops.Skip(t, step.N)
	case query.StepDistinctRows:
		return ops.DistinctRows(t, step.DistinctOn)
	case query.StepPivot:
		return ops.Pivot(t, step.PivotColumn, step.ValueColumn, step.PivotAgg)
	case query.StepUnpivot:
		return ops.Unpivot(t, step.UnpivotColumns, step.NameColumn, step.ValueColumn)
	case query.StepMerge:
		right, err := e.resolveSideQuery(ctx, step.RightQueryID, env)
		if err != nil {
			return nil, err
		}
		return ops.Merge(t, right, step.MergeOptions)
	case query.StepAppend:
		tables := []*table.Table{t}
		for _, id := range step.AppendQueryIDs {
			other, err := e.resolveSideQuery(ctx, id, env)
			if err != nil {
				return nil, err
			}
			tables = append(tables, other)
		}
		return ops.Append(tables)
	case query.StepExpandTableColumn:
		return ops.ExpandTableColumn(t, step.ExpandColumn, step.ExpandNames)
	case query.StepFillDown:
		return ops.FillDown(t, step.FillDownCols)
	case query.StepReplaceValues:
		return ops.ReplaceValues(t, step.ReplaceColumn, step.ReplaceFind, step.ReplaceWith)
	case query.StepSplitColumn:
		return ops.SplitColumn(t, step.ReplaceColumn, step.SplitColumnSep, step.SplitNames)
	case query.StepCombineColumns:
		return ops.CombineColumns(t, step.CombineColumns, step.CombineSep, step.NewColumnName)
	case query.StepAddIndexColumn:
		return ops.AddIndexColumn(t, step.NewColumnName, step.IndexStart)
	case query.StepPromoteHeaders:
		return ops.PromoteHeaders(t)
	case query.StepDemoteHeaders:
		return ops.DemoteHeaders(t)
	case query.StepTransformColumnNames:
		return ops.TransformColumnNames(t, step.NameMapFunc)
	default:
		return nil, fmt.Errorf("engine: unsupported step kind %q", step.Kind)
	}
}

// resolveSideQuery executes (or reuses) a merge/append's referenced
// query, caching it on env for the remainder of this query's steps.
func (e *Engine) resolveSideQuery(ctx context.Context, refID string, env *sources.Environment) (*table.Table, error) {
	if t, ok := env.QueryResults[refID]; ok {
		return t, nil
	}
	ref, ok := e.queries[refID]
	if !ok {
		return nil, fmt.Errorf("engine: unknown query reference %q", refID)
	}
	t, err := e.ExecuteQuery(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("engine: execute referenced query %q: %w", refID, err)
	}
	env.QueryResults[refID] = t
	return t, nil
}
