package engine

import (
	"flowsheet/internal/query"
)

// checkPrivacy enforces the firewall before any fetch: a query whose
// steps merge or append against another query's result must have
// compatible privacy levels between its own source and every
// referenced query's source (spec §4.9). This only catches references
// visible in this query's own step list; transitively nested
// references are checked when that query executes in turn, since each
// ExecuteQuery call runs this same check for its own source.
func (e *Engine) checkPrivacy(src query.Source, steps []query.Step) error {
	var combined []query.Source
	for _, s := range steps {
		switch s.Kind {
		case query.StepMerge:
			if ref, ok := e.queries[s.RightQueryID]; ok {
				combined = append(combined, src, ref.Source)
			}
		case query.StepAppend:
			for _, id := range s.AppendQueryIDs {
				if ref, ok := e.queries[id]; ok {
					combined = append(combined, src, ref.Source)
				}
			}
		}
	}
	if len(combined) == 0 {
		return nil
	}
	return e.opts.Privacy.CheckCombine(combined...)
}
