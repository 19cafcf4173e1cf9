package engine

import (
	"flowsheet/internal/folding"
	"flowsheet/internal/query"
)

// applyFold narrows src according to plan when src's kind supports
// folding (database/odata/parquet), returning the rewritten source and
// the step list with whatever the source actually absorbed removed.
// Unsupported source kinds, or a source the fold couldn't safely
// narrow, return src and steps unchanged with folded=false.
func (e *Engine) applyFold(src query.Source, steps []query.Step, plan folding.Plan) (query.Source, []query.Step, bool) {
	switch src.Kind {
	case query.SourceDatabase:
		if plan.Columns == nil && plan.Filter == nil && plan.SortKeys == nil && plan.RowLimit == nil {
			return src, steps, false
		}
		rewritten, applied, err := folding.FoldSQL(src.SQL, plan)
		if err != nil {
			e.opts.Logger.Warn("sql folding failed, falling back to unfolded query", zapErr(err))
			return src, steps, false
		}
		if !applied.Any() {
			return src, steps, false
		}
		folded := src
		folded.SQL = rewritten
		return folded, residualAfterFold(steps, plan, applied), true

	case query.SourceOData:
		if plan.Columns == nil && plan.Filter == nil && plan.SortKeys == nil && plan.Skip == nil && plan.RowLimit == nil {
			return src, steps, false
		}
		url, applied := folding.BuildODataURL(src.URL, plan)
		if !applied.Any() {
			return src, steps, false
		}
		folded := src
		folded.URL = url
		return folded, residualAfterFold(steps, plan, applied), true

	case query.SourceParquet:
		if len(plan.Columns) == 0 {
			return src, steps, false
		}
		folded := src
		folded.Columns = plan.Columns
		return folded, steps, true

	default:
		return src, steps, false
	}
}

// residualAfterFold walks the same fixed positions folding.Compute found
// (the selectColumns/removeColumns run, then filterRows, sortRows,
// skip, take — in that order, wherever plan says each one sits) and
// keeps exactly the ones applied reports the source did NOT actually
// absorb. plan says where a dimension's step is; applied says whether
// the source actually used it — the two can disagree (e.g. an existing
// LIMIT blocks folding a take plan otherwise found foldable), and a
// disagreement on an earlier dimension must not change where a later
// one is found, so position and application are tracked separately.
func residualAfterFold(steps []query.Step, plan folding.Plan, applied folding.FoldResult) []query.Step {
	var residual []query.Step
	i := 0

	colEnd := i
	if plan.Columns != nil {
		for colEnd < len(steps) && (steps[colEnd].Kind == query.StepSelectColumns || steps[colEnd].Kind == query.StepRemoveColumns) {
			colEnd++
		}
	}
	if !applied.Columns {
		residual = append(residual, steps[i:colEnd]...)
	}
	i = colEnd

	if plan.Filter != nil && i < len(steps) && steps[i].Kind == query.StepFilterRows {
		if !applied.Filter {
			residual = append(residual, steps[i])
		}
		i++
	}

	if plan.SortKeys != nil && i < len(steps) && steps[i].Kind == query.StepSortRows {
		if !applied.Sort {
			residual = append(residual, steps[i])
		}
		i++
	}

	if plan.Skip != nil && i < len(steps) && steps[i].Kind == query.StepSkip {
		if !applied.Skip {
			residual = append(residual, steps[i])
		}
		i++
	}

	if plan.RowLimit != nil && i < len(steps) && steps[i].Kind == query.StepTake {
		if !applied.Take {
			residual = append(residual, steps[i])
		}
		i++
	}

	return append(residual, steps[i:]...)
}
