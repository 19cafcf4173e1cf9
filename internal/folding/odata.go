package folding

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"flowsheet/internal/ops"
)

// odataComparisonOps maps the comparison operators spec §4.4 defines to
// the OData v4 binary operator keywords used in $filter expressions.
var odataComparisonOps = map[ops.ComparisonOp]string{
	ops.OpEquals:             "eq",
	ops.OpNotEquals:          "ne",
	ops.OpGreaterThan:        "gt",
	ops.OpGreaterThanOrEqual: "ge",
	ops.OpLessThan:           "lt",
	ops.OpLessThanOrEqual:    "le",
}

// BuildODataURL appends plan's foldable dimensions as OData query
// options in their conventional order ($select, $filter, $orderby,
// $skip, $top) per spec §6. net/url.Values sorts keys alphabetically
// when encoded, which would scramble that order, so the query string is
// assembled by hand. The returned FoldResult reports which of plan's
// fields actually made it into the URL, since a filter comparison that
// doesn't map to an OData operator is skipped rather than folded.
func BuildODataURL(baseURL string, plan Plan) (string, FoldResult) {
	var parts []string
	var applied FoldResult

	if len(plan.Columns) > 0 {
		parts = append(parts, "$select="+escapeList(plan.Columns))
		applied.Columns = true
	}

	if len(plan.Filter) > 0 {
		if text, ok := odataFilterText(plan.Filter); ok {
			parts = append(parts, "$filter="+escapeODataValue(text))
			applied.Filter = true
		}
	}

	if len(plan.SortKeys) > 0 {
		parts = append(parts, "$orderby="+escapeList(odataOrderByTerms(plan.SortKeys)))
		applied.Sort = true
	}

	if plan.Skip != nil {
		parts = append(parts, "$skip="+strconv.Itoa(*plan.Skip))
		applied.Skip = true
	}

	if plan.RowLimit != nil {
		parts = append(parts, "$top="+strconv.Itoa(*plan.RowLimit))
		applied.Take = true
	}

	if len(parts) == 0 {
		return baseURL, applied
	}
	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%s", baseURL, sep, strings.Join(parts, "&")), applied
}

// odataFilterText renders comparisons (already confirmed foldable: raw
// columns, no Or/Not) as an OData boolean expression, ANDing multiple
// leaves with "and". Returns false if any comparison has no OData
// equivalent (e.g. a case-insensitive match, which OData has no direct
// operator for).
func odataFilterText(comparisons []ops.Comparison) (string, bool) {
	parts := make([]string, 0, len(comparisons))
	for _, c := range comparisons {
		part, ok := odataComparisonText(c)
		if !ok {
			return "", false
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " and "), true
}

func odataComparisonText(c ops.Comparison) (string, bool) {
	if c.CaseSensitive != nil && !*c.CaseSensitive {
		return "", false
	}
	switch c.Op {
	case ops.OpIsNull:
		return fmt.Sprintf("%s eq null", c.Column), true
	case ops.OpIsNotNull:
		return fmt.Sprintf("%s ne null", c.Column), true
	case ops.OpContains:
		return fmt.Sprintf("contains(%s,%s)", c.Column, odataLiteral(c.Value)), true
	case ops.OpStartsWith:
		return fmt.Sprintf("startswith(%s,%s)", c.Column, odataLiteral(c.Value)), true
	case ops.OpEndsWith:
		return fmt.Sprintf("endswith(%s,%s)", c.Column, odataLiteral(c.Value)), true
	}
	op, ok := odataComparisonOps[c.Op]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s %s %s", c.Column, op, odataLiteral(c.Value)), true
}

func odataLiteral(v any) string {
	switch val := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func odataOrderByTerms(keys []ops.SortKey) []string {
	terms := make([]string, len(keys))
	for i, k := range keys {
		dir := "asc"
		if k.Descending {
			dir = "desc"
		}
		terms[i] = fmt.Sprintf("%s %s", k.Column, dir)
	}
	return terms
}

// escapeList percent-encodes each term independently and joins them
// with a literal comma, so "Id,Name" survives as-is instead of becoming
// "Id%2CName" the way escaping the joined string would (spec §6: column
// and orderby lists are comma-separated, order preserved).
func escapeList(terms []string) string {
	escaped := make([]string, len(terms))
	for i, t := range terms {
		escaped[i] = escapeODataValue(t)
	}
	return strings.Join(escaped, ",")
}

// escapeODataValue percent-encodes s the way spec §6 requires: spaces
// become %20, not url.QueryEscape's form-urlencoded '+'.
func escapeODataValue(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
