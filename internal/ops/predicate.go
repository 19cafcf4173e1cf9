package ops

import (
	"strings"

	"flowsheet/internal/table"
	"flowsheet/internal/values"
)

// ComparisonOp enumerates the filterRows comparison operators (spec §4.4).
type ComparisonOp string

const (
	OpEquals             ComparisonOp = "equals"
	OpNotEquals          ComparisonOp = "notEquals"
	OpGreaterThan        ComparisonOp = "greaterThan"
	OpGreaterThanOrEqual ComparisonOp = "greaterThanOrEqual"
	OpLessThan           ComparisonOp = "lessThan"
	OpLessThanOrEqual    ComparisonOp = "lessThanOrEqual"
	OpContains           ComparisonOp = "contains"
	OpStartsWith         ComparisonOp = "startsWith"
	OpEndsWith           ComparisonOp = "endsWith"
	OpIsNull             ComparisonOp = "isNull"
	OpIsNotNull          ComparisonOp = "isNotNull"
)

// Comparison is one leaf of a filterRows predicate tree.
type Comparison struct {
	Column        string
	Op            ComparisonOp
	Value         any
	CaseSensitive *bool // nil means default (true), per spec §4.4
}

// Predicate is a filterRows predicate tree node: exactly one of
// Comparison, And, Or, Not is set.
type Predicate struct {
	Comparison *Comparison
	And        []Predicate
	Or         []Predicate
	Not        *Predicate
}

// Eval evaluates the predicate against one row of t.
func (p Predicate) eval(t *table.Table, row []any) (bool, error) {
	switch {
	case p.Comparison != nil:
		return evalComparison(t, row, *p.Comparison)
	case p.And != nil:
		for _, sub := range p.And {
			ok, err := sub.eval(t, row)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case p.Or != nil:
		for _, sub := range p.Or {
			ok, err := sub.eval(t, row)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case p.Not != nil:
		ok, err := p.Not.eval(t, row)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
	return true, nil
}

func evalComparison(t *table.Table, row []any, c Comparison) (bool, error) {
	idx, err := t.GetColumnIndex(c.Column)
	if err != nil {
		return false, &UnknownColumnError{Name: c.Column}
	}
	cell := row[idx]
	caseSensitive := true
	if c.CaseSensitive != nil {
		caseSensitive = *c.CaseSensitive
	}
	switch c.Op {
	case OpIsNull:
		return cell == nil, nil
	case OpIsNotNull:
		return cell != nil, nil
	case OpEquals:
		return values.Equal(normalizeCase(cell, caseSensitive), normalizeCase(c.Value, caseSensitive)), nil
	case OpNotEquals:
		return !values.Equal(normalizeCase(cell, caseSensitive), normalizeCase(c.Value, caseSensitive)), nil
	case OpGreaterThan:
		return values.Less(c.Value, cell), nil
	case OpGreaterThanOrEqual:
		return values.Less(c.Value, cell) || values.Equal(cell, c.Value), nil
	case OpLessThan:
		return values.Less(cell, c.Value), nil
	case OpLessThanOrEqual:
		return values.Less(cell, c.Value) || values.Equal(cell, c.Value), nil
	case OpContains, OpStartsWith, OpEndsWith:
		cs, ok1 := cell.(string)
		vs, ok2 := c.Value.(string)
		if !ok1 || !ok2 {
			return false, nil
		}
		if !caseSensitive {
			cs, vs = strings.ToLower(cs), strings.ToLower(vs)
		}
		switch c.Op {
		case OpContains:
			return strings.Contains(cs, vs), nil
		case OpStartsWith:
			return strings.HasPrefix(cs, vs), nil
		case OpEndsWith:
			return strings.HasSuffix(cs, vs), nil
		}
	}
	return false, nil
}

func normalizeCase(v any, caseSensitive bool) any {
	if caseSensitive {
		return v
	}
	if s, ok := v.(string); ok {
		return strings.ToLower(s)
	}
	return v
}

// FilterRows returns the rows for which predicate evaluates true.
func FilterRows(t *table.Table, predicate Predicate) (*table.Table, error) {
	var kept [][]any
	for r := 0; r < t.RowCount(); r++ {
		row, _ := t.GetRow(r)
		ok, err := predicate.eval(t, row)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, row)
		}
	}
	return t.WithRows(kept), nil
}
