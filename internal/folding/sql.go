package folding

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"
	"github.com/pingcap/tidb/pkg/parser/opcode"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"

	"flowsheet/internal/ops"
)

// sqlComparisonOps maps the comparison operators spec §4.4 defines to
// tidb's binary-expression opcodes, for the subset that folds cleanly
// into a WHERE clause. Contains/StartsWith/EndsWith are left out: they'd
// need a LIKE pattern built from caller data, and spec §4.7 only asks
// for "simple comparisons on raw columns".
var sqlComparisonOps = map[ops.ComparisonOp]opcode.Op{
	ops.OpEquals:             opcode.EQ,
	ops.OpNotEquals:          opcode.NE,
	ops.OpGreaterThan:        opcode.GT,
	ops.OpGreaterThanOrEqual: opcode.GE,
	ops.OpLessThan:           opcode.LT,
	ops.OpLessThanOrEqual:    opcode.LE,
}

// FoldSQL rewrites sqlText's outer SELECT as far as plan allows:
// projection, a WHERE clause, an ORDER BY, and a row limit, reusing the
// real MySQL grammar the teacher already parses DDL with rather than
// string-splicing the query text. A query this can't safely narrow (not
// a single SELECT, a clause plan wants to add already has one, etc.) is
// left alone for that dimension; the returned FoldResult tells the
// caller exactly what got applied so it can compute an accurate
// residual, rather than assuming plan's intent was fully honored.
func FoldSQL(sqlText string, plan Plan) (string, FoldResult, error) {
	var applied FoldResult

	p := parser.New()
	stmtNodes, _, err := p.Parse(sqlText, "", "")
	if err != nil {
		return "", applied, fmt.Errorf("folding: parse sql: %w", err)
	}
	if len(stmtNodes) != 1 {
		return sqlText, applied, nil
	}
	sel, ok := stmtNodes[0].(*ast.SelectStmt)
	if !ok {
		return sqlText, applied, nil
	}

	if len(plan.Columns) > 0 && selectsStar(sel) {
		sel.Fields.Fields = fieldsFor(plan.Columns)
		applied.Columns = true
	}

	if len(plan.Filter) > 0 && sel.Where == nil {
		if expr, ok := sqlWhereExpr(plan.Filter); ok {
			sel.Where = expr
			applied.Filter = true
		}
	}

	if len(plan.SortKeys) > 0 && sel.OrderBy == nil {
		sel.OrderBy = sqlOrderBy(plan.SortKeys)
		applied.Sort = true
	}

	// plan.Skip != nil means a skip sits between the folded filter/sort
	// and the take in the step order; SQL folding has no OFFSET to fold
	// it into, so a database-side LIMIT here would cut rows the engine
	// still needs to skip over itself afterwards. Leave both unfolded.
	if plan.RowLimit != nil && plan.Skip == nil && sel.Limit == nil {
		sel.Limit = &ast.Limit{Count: ast.NewValueExpr(uint64(*plan.RowLimit), "", "")}
		applied.Take = true
	}

	var buf strings.Builder
	ctx := format.NewRestoreCtx(format.DefaultRestoreFlags, &buf)
	if err := sel.Restore(ctx); err != nil {
		return "", applied, fmt.Errorf("folding: restore sql: %w", err)
	}
	return buf.String(), applied, nil
}

func selectsStar(sel *ast.SelectStmt) bool {
	fields := sel.Fields.Fields
	return len(fields) == 1 && fields[0].WildCard != nil
}

func fieldsFor(columns []string) []*ast.SelectField {
	fields := make([]*ast.SelectField, len(columns))
	for i, col := range columns {
		fields[i] = &ast.SelectField{
			Expr: &ast.ColumnNameExpr{Name: &ast.ColumnName{Name: ast.NewCIStr(col)}},
		}
	}
	return fields
}

// sqlWhereExpr ANDs comparisons into a single WHERE expression, failing
// if any leaf has no SQL equivalent (a case-insensitive match, or a
// value type with no safe literal form).
func sqlWhereExpr(comparisons []ops.Comparison) (ast.ExprNode, bool) {
	var expr ast.ExprNode
	for _, c := range comparisons {
		leaf, ok := sqlComparisonExpr(c)
		if !ok {
			return nil, false
		}
		if expr == nil {
			expr = leaf
			continue
		}
		expr = &ast.BinaryOperationExpr{Op: opcode.LogicAnd, L: expr, R: leaf}
	}
	return expr, expr != nil
}

func sqlComparisonExpr(c ops.Comparison) (ast.ExprNode, bool) {
	if c.CaseSensitive != nil && !*c.CaseSensitive {
		return nil, false
	}
	col := &ast.ColumnNameExpr{Name: &ast.ColumnName{Name: ast.NewCIStr(c.Column)}}
	switch c.Op {
	case ops.OpIsNull:
		return &ast.IsNullExpr{Expr: col}, true
	case ops.OpIsNotNull:
		return &ast.IsNullExpr{Expr: col, Not: true}, true
	}
	op, ok := sqlComparisonOps[c.Op]
	if !ok {
		return nil, false
	}
	val, ok := sqlLiteral(c.Value)
	if !ok {
		return nil, false
	}
	return &ast.BinaryOperationExpr{Op: op, L: col, R: val}, true
}

func sqlLiteral(v any) (ast.ExprNode, bool) {
	switch val := v.(type) {
	case string:
		return ast.NewValueExpr(val, "", ""), true
	case int:
		return ast.NewValueExpr(int64(val), "", ""), true
	case int64:
		return ast.NewValueExpr(val, "", ""), true
	case float64:
		return ast.NewValueExpr(val, "", ""), true
	case bool:
		n := int64(0)
		if val {
			n = 1
		}
		return ast.NewValueExpr(n, "", ""), true
	default:
		return nil, false
	}
}

func sqlOrderBy(keys []ops.SortKey) *ast.OrderByClause {
	items := make([]*ast.ByItem, len(keys))
	for i, k := range keys {
		items[i] = &ast.ByItem{
			Expr: &ast.ColumnNameExpr{Name: &ast.ColumnName{Name: ast.NewCIStr(k.Column)}},
			Desc: k.Descending,
		}
	}
	return &ast.OrderByClause{Items: items}
}
