// Package folding computes how much of a Query's leading step prefix
// can be pushed down into its source fetch (spec §4.7): a leading run
// of selectColumns/removeColumns becomes a column projection, a
// following filterRows over raw-column comparisons becomes a source
// filter, a following sortRows becomes a source sort, and a following
// skip/take pair becomes pagination. Folding only narrows what's
// fetched; the full step chain still runs afterwards, so an overly
// conservative plan is always safe, just less efficient.
package folding

import (
	"flowsheet/internal/ops"
	"flowsheet/internal/query"
)

// Plan is what a source fetch can be narrowed to before the engine
// applies the full step chain. Each field is independently nil/empty
// when the corresponding leading step wasn't present or wasn't simple
// enough to fold; a source builder (BuildODataURL, FoldSQL) may still
// decline to use a field it can't express, which is why folders report
// back a FoldResult of what they actually applied.
type Plan struct {
	Columns  []string         // nil means "no column projection known"
	Filter   []ops.Comparison // leading filterRows, flattened to an AND of raw comparisons; nil means none
	SortKeys []ops.SortKey    // leading sortRows keys; nil means none
	Skip     *int             // leading skip count; nil means none
	RowLimit *int             // leading take count; nil means none
}

// FoldResult reports which Plan fields a source builder actually used,
// so the engine can compute an accurate residual step list instead of
// assuming every candidate field was applied.
type FoldResult struct {
	Columns bool
	Filter  bool
	Sort    bool
	Skip    bool
	Take    bool
}

// Any reports whether at least one dimension folded.
func (r FoldResult) Any() bool {
	return r.Columns || r.Filter || r.Sort || r.Skip || r.Take
}

// Compute builds a Plan from steps' leading prefix: a selectColumns/
// removeColumns run, then (in this order) an optional simple
// filterRows, an optional sortRows, an optional skip, and an optional
// take. Any step that doesn't fit that order, or a filterRows whose
// predicate isn't a plain AND of raw-column comparisons, stops the
// walk at that point; everything from there on is left for the engine
// to run unfolded.
func Compute(steps []query.Step) Plan {
	var plan Plan
	i := 0

	plan.Columns, i = computeColumnsPrefix(steps)

	if i < len(steps) && steps[i].Kind == query.StepFilterRows {
		if cs, ok := foldableComparisons(steps[i].FilterRows); ok {
			plan.Filter = cs
			i++
		}
	}

	if i < len(steps) && steps[i].Kind == query.StepSortRows {
		plan.SortKeys = append([]ops.SortKey{}, steps[i].SortRows...)
		i++
	}

	if i < len(steps) && steps[i].Kind == query.StepSkip {
		n := steps[i].N
		plan.Skip = &n
		i++
	}

	if i < len(steps) && steps[i].Kind == query.StepTake {
		n := steps[i].N
		plan.RowLimit = &n
		i++
	}

	return plan
}

// computeColumnsPrefix folds a leading run of selectColumns/removeColumns
// and returns the folded column list plus how many steps it consumed.
// It stops at the first step of any other kind, or at a removeColumns
// before any selectColumns has established a known column set (the
// planner can't know the source's full column list, so it can't turn a
// bare removal into a positive projection).
func computeColumnsPrefix(steps []query.Step) ([]string, int) {
	var cols []string
	known := false
	i := 0
	for i < len(steps) {
		switch steps[i].Kind {
		case query.StepSelectColumns:
			cols = append([]string{}, steps[i].SelectColumns...)
			known = true
		case query.StepRemoveColumns:
			if !known {
				return nil, i
			}
			cols = subtract(cols, steps[i].RemoveColumns)
		default:
			if known {
				return cols, i
			}
			return nil, i
		}
		i++
	}
	if known {
		return cols, i
	}
	return nil, i
}

func subtract(cols, remove []string) []string {
	drop := make(map[string]bool, len(remove))
	for _, r := range remove {
		drop[r] = true
	}
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if !drop[c] {
			out = append(out, c)
		}
	}
	return out
}

// foldableComparisons flattens a predicate tree into a conjunction of
// leaf comparisons, reporting false if it contains an Or/Not node or is
// the zero Predicate (spec §4.7: "simple comparisons on raw columns").
func foldableComparisons(p ops.Predicate) ([]ops.Comparison, bool) {
	switch {
	case p.Comparison != nil:
		return []ops.Comparison{*p.Comparison}, true
	case p.And != nil:
		var out []ops.Comparison
		for _, sub := range p.And {
			cs, ok := foldableComparisons(sub)
			if !ok {
				return nil, false
			}
			out = append(out, cs...)
		}
		return out, true
	default:
		return nil, false
	}
}
