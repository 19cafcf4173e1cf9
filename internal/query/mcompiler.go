package query

import (
	"fmt"
	"strings"

	"flowsheet/internal/expr"
	"flowsheet/internal/ops"
)

// UnsupportedMFunctionError reports an M step whose function name this
// compiler does not recognize. The minimal M subset supports a fixed
// set of Table.*/Range.* calls mapped 1:1 onto internal/ops; anything
// else is rejected at compile time rather than silently ignored.
type UnsupportedMFunctionError struct {
	Name string
}

func (e *UnsupportedMFunctionError) Error() string {
	return fmt.Sprintf("query: unsupported M function %q", e.Name)
}

// CompileM compiles a minimal M script (spec §4.5) into a Query IR. The
// first binding must produce a Source (Range.FromValues, or another
// Source.* call); every later binding must be a Table.* call taking the
// previous step's result as its first argument.
func CompileM(id, name, src string) (*Query, error) {
	prog, err := ParseMScript(src)
	if err != nil {
		return nil, err
	}
	if len(prog.Bindings) == 0 {
		return nil, fmt.Errorf("query: m script has no bindings")
	}
	q := &Query{ID: id, Name: name}

	first := prog.Bindings[0]
	source, err := compileSource(first.Value)
	if err != nil {
		return nil, err
	}
	q.Source = source

	for _, b := range prog.Bindings[1:] {
		step, err := compileStep(b.Name, b.Value)
		if err != nil {
			return nil, err
		}
		q.Steps = append(q.Steps, step)
	}
	if prog.Result != prog.Bindings[len(prog.Bindings)-1].Name {
		return nil, fmt.Errorf("query: m script result %q is not the final binding", prog.Result)
	}
	return q, nil
}

func compileSource(n mNode) (Source, error) {
	if n.kind != "call" {
		return Source{}, fmt.Errorf("query: first m binding must be a source call")
	}
	switch n.funcName {
	case "Range.FromValues":
		if len(n.args) != 1 {
			return Source{}, fmt.Errorf("query: Range.FromValues takes one list argument")
		}
		grid, err := gridValue(n.args[0])
		if err != nil {
			return Source{}, err
		}
		return Source{Kind: SourceRange, Grid: grid}, nil
	case "Csv.Document":
		return Source{Kind: SourceCSV, Path: arg1String(n)}, nil
	case "Json.Document":
		return Source{Kind: SourceJSON, Path: arg1String(n)}, nil
	case "Parquet.Document":
		return Source{Kind: SourceParquet, Path: arg1String(n)}, nil
	case "Folder.Files":
		return Source{Kind: SourceFolder, Path: arg1String(n)}, nil
	case "Sql.Database":
		if len(n.args) < 2 {
			return Source{}, fmt.Errorf("query: Sql.Database takes connection and sql arguments")
		}
		conn, err := nodeString(n.args[0])
		if err != nil {
			return Source{}, err
		}
		sqlText, err := nodeString(n.args[1])
		if err != nil {
			return Source{}, err
		}
		return Source{Kind: SourceDatabase, Connection: conn, SQL: sqlText}, nil
	case "Web.Contents":
		return Source{Kind: SourceAPI, URL: arg1String(n)}, nil
	case "OData.Feed":
		return Source{Kind: SourceOData, URL: arg1String(n)}, nil
	case "Query.Reference":
		return Source{Kind: SourceQueryRef, RefID: arg1String(n)}, nil
	default:
		return Source{}, &UnsupportedMFunctionError{Name: n.funcName}
	}
}

func arg1String(n mNode) string {
	if len(n.args) == 0 {
		return ""
	}
	s, _ := nodeString(n.args[0])
	return s
}

func nodeString(n mNode) (string, error) {
	if n.kind != "string" {
		return "", fmt.Errorf("query: expected string literal")
	}
	return n.str, nil
}

func nodeNumber(n mNode) (float64, error) {
	if n.kind != "number" {
		return 0, fmt.Errorf("query: expected number literal")
	}
	return n.num, nil
}

func gridValue(n mNode) ([][]any, error) {
	if n.kind != "list" {
		return nil, fmt.Errorf("query: expected a list of rows")
	}
	grid := make([][]any, len(n.list))
	for i, row := range n.list {
		if row.kind != "list" {
			return nil, fmt.Errorf("query: expected a row list")
		}
		vals := make([]any, len(row.list))
		for j, cell := range row.list {
			v, err := literalGoValue(cell)
			if err != nil {
				return nil, err
			}
			vals[j] = v
		}
		grid[i] = vals
	}
	return grid, nil
}

func literalGoValue(n mNode) (any, error) {
	switch n.kind {
	case "number":
		return n.num, nil
	case "string":
		return n.str, nil
	case "bool":
		return n.num != 0, nil
	case "null":
		return nil, nil
	default:
		return nil, fmt.Errorf("query: unsupported literal kind %q", n.kind)
	}
}

// compileStep compiles one Table.* binding into a Step. The first
// argument (the previous step's table reference) is accepted but not
// otherwise inspected: step chaining is implied by binding order.
func compileStep(name string, n mNode) (Step, error) {
	if n.kind != "call" {
		return Step{}, fmt.Errorf("query: step %q must be a function call", name)
	}
	args := n.args
	step := Step{Name: name}
	switch n.funcName {
	case "Table.SelectColumns":
		cols, err := stringListValues(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepSelectColumns
		step.SelectColumns = cols
	case "Table.RemoveColumns":
		cols, err := stringListValues(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepRemoveColumns
		step.RemoveColumns = cols
	case "Table.SelectRows":
		lambda := argAt(args, 1)
		if lambda.kind != "lambda" {
			return Step{}, fmt.Errorf("query: Table.SelectRows expects an each lambda")
		}
		pred, err := compileFilterLambda(lambda.lambdaSrc)
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepFilterRows
		step.FilterRows = pred
	case "Table.Sort":
		keys, err := compileSortKeys(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepSortRows
		step.SortRows = keys
	case "Table.Group":
		keys, err := stringListValues(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		aggs, err := compileAggregations(argAt(args, 2))
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepGroupBy
		step.GroupByKeys = keys
		step.Aggregations = aggs
	case "Table.AddColumn":
		colName, err := nodeString(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		lambda := argAt(args, 2)
		if lambda.kind != "lambda" {
			return Step{}, fmt.Errorf("query: Table.AddColumn expects an each lambda")
		}
		formula, err := expr.Compile(lambda.lambdaSrc)
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepAddColumn
		step.NewColumnName = colName
		step.Formula = formula
	case "Table.TransformColumns":
		transforms, err := compileTransforms(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepTransformColumns
		step.Transforms = transforms
	case "Table.RenameColumns":
		oldName, newName, err := compileSingleRename(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepRenameColumn
		step.OldName = oldName
		step.NewName = newName
	case "Table.TransformColumnTypes":
		col, typ, err := compileSingleTypeChange(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepChangeType
		step.OldName = col
		step.NewType = typ
	case "Table.FirstN":
		n, err := nodeNumber(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepTake
		step.N = int(n)
	case "Table.Skip":
		n, err := nodeNumber(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepSkip
		step.N = int(n)
	case "Table.Distinct":
		var cols []string
		if len(args) > 1 {
			var err error
			cols, err = stringListValues(argAt(args, 1))
			if err != nil {
				return Step{}, err
			}
		}
		step.Kind = StepDistinctRows
		step.DistinctOn = cols
	case "Table.Pivot":
		pivotCol, err := nodeString(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		valueCol, err := nodeString(argAt(args, 2))
		if err != nil {
			return Step{}, err
		}
		aggName, err := identSuffix(argAt(args, 3))
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepPivot
		step.PivotColumn = pivotCol
		step.ValueColumn = valueCol
		step.PivotAgg = aggOpFromName(aggName)
	case "Table.Unpivot":
		cols, err := stringListValues(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		nameCol, err := nodeString(argAt(args, 2))
		if err != nil {
			return Step{}, err
		}
		valueCol, err := nodeString(argAt(args, 3))
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepUnpivot
		step.UnpivotColumns = cols
		step.NameColumn = nameCol
		step.ValueColumn = valueCol
	case "Table.Join":
		leftKeys, err := stringListValues(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		rightID, err := compileQueryRef(argAt(args, 2))
		if err != nil {
			return Step{}, err
		}
		rightKeys, err := stringListValues(argAt(args, 3))
		if err != nil {
			return Step{}, err
		}
		joinKind, err := identSuffix(argAt(args, 4))
		if err != nil {
			return Step{}, err
		}
		mode := ops.JoinFlat
		newCol := ""
		if len(args) > 5 {
			m, err := identSuffix(argAt(args, 5))
			if err == nil && strings.EqualFold(m, "nested") {
				mode = ops.JoinNested
			}
		}
		if len(args) > 6 {
			newCol, _ = nodeString(argAt(args, 6))
		}
		step.Kind = StepMerge
		step.RightQueryID = rightID
		step.MergeOptions = ops.MergeOptions{
			LeftKeys: leftKeys, RightKeys: rightKeys,
			JoinType: joinTypeFromName(joinKind), JoinMode: mode,
			NewColumnName: newCol,
		}
	case "Table.Combine":
		ids, err := identListValues(argAt(args, 0))
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepAppend
		step.AppendQueryIDs = ids
	case "Table.ExpandTableColumn":
		col, err := nodeString(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		names, err := stringListValues(argAt(args, 2))
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepExpandTableColumn
		step.ExpandColumn = col
		step.ExpandNames = names
	case "Table.FillDown":
		cols, err := stringListValues(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepFillDown
		step.FillDownCols = cols
	case "Table.ReplaceValue":
		col, err := nodeString(argAt(args, 3))
		if err != nil {
			return Step{}, err
		}
		find, err := literalGoValue(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		replace, err := literalGoValue(argAt(args, 2))
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepReplaceValues
		step.ReplaceColumn = col
		step.ReplaceFind = find
		step.ReplaceWith = replace
	case "Table.SplitColumn":
		col, err := nodeString(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		sep, err := nodeString(argAt(args, 2))
		if err != nil {
			return Step{}, err
		}
		names, err := stringListValues(argAt(args, 3))
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepSplitColumn
		step.ReplaceColumn = col
		step.SplitColumnSep = sep
		step.SplitNames = names
	case "Table.CombineColumns":
		cols, err := stringListValues(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		sep, err := nodeString(argAt(args, 2))
		if err != nil {
			return Step{}, err
		}
		newName, err := nodeString(argAt(args, 3))
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepCombineColumns
		step.CombineColumns = cols
		step.CombineSep = sep
		step.NewColumnName = newName
	case "Table.AddIndexColumn":
		colName, err := nodeString(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		start := 0
		if len(args) > 2 {
			n, err := nodeNumber(argAt(args, 2))
			if err != nil {
				return Step{}, err
			}
			start = int(n)
		}
		step.Kind = StepAddIndexColumn
		step.NewColumnName = colName
		step.IndexStart = start
	case "Table.PromoteHeaders":
		step.Kind = StepPromoteHeaders
	case "Table.DemoteHeaders":
		step.Kind = StepDemoteHeaders
	case "Table.TransformColumnNames":
		fnName, err := identSuffix(argAt(args, 1))
		if err != nil {
			return Step{}, err
		}
		mapFn, err := builtinNameTransform(fnName)
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepTransformColumnNames
		step.NameMapFunc = mapFn
	default:
		return Step{}, &UnsupportedMFunctionError{Name: n.funcName}
	}
	return step, nil
}

func argAt(args []mNode, i int) mNode {
	if i < len(args) {
		return args[i]
	}
	return mNode{}
}

func compileFilterLambda(src string) (ops.Predicate, error) {
	lex := newMLexer(src)
	pred, err := parseFilterOr(lex)
	if err != nil {
		return ops.Predicate{}, err
	}
	return pred, nil
}

func parseFilterOr(lex *mLexer) (ops.Predicate, error) {
	left, err := parseFilterAnd(lex)
	if err != nil {
		return ops.Predicate{}, err
	}
	preds := []ops.Predicate{left}
	for {
		save := lex.pos
		tok, err := lex.next()
		if err != nil {
			return ops.Predicate{}, err
		}
		if tok.kind == mTokIdent && tok.text == "or" {
			next, err := parseFilterAnd(lex)
			if err != nil {
				return ops.Predicate{}, err
			}
			preds = append(preds, next)
			continue
		}
		lex.pos = save
		break
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return ops.Predicate{Or: preds}, nil
}

func parseFilterAnd(lex *mLexer) (ops.Predicate, error) {
	left, err := parseFilterComparison(lex)
	if err != nil {
		return ops.Predicate{}, err
	}
	preds := []ops.Predicate{left}
	for {
		save := lex.pos
		tok, err := lex.next()
		if err != nil {
			return ops.Predicate{}, err
		}
		if tok.kind == mTokIdent && tok.text == "and" {
			next, err := parseFilterComparison(lex)
			if err != nil {
				return ops.Predicate{}, err
			}
			preds = append(preds, next)
			continue
		}
		lex.pos = save
		break
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return ops.Predicate{And: preds}, nil
}

func parseFilterComparison(lex *mLexer) (ops.Predicate, error) {
	colTok, err := lex.next()
	if err != nil {
		return ops.Predicate{}, err
	}
	if colTok.kind != mTokColRef {
		return ops.Predicate{}, fmt.Errorf("query: filter lambda expected a column reference, got %q", colTok.text)
	}
	opTok, err := lex.next()
	if err != nil {
		return ops.Predicate{}, err
	}
	valTok, err := lex.next()
	if err != nil {
		return ops.Predicate{}, err
	}
	var op ops.ComparisonOp
	switch opTok.text {
	case "=":
		op = ops.OpEquals
	case "<>":
		op = ops.OpNotEquals
	case "<":
		op = ops.OpLessThan
	case ">":
		op = ops.OpGreaterThan
	case "<=":
		op = ops.OpLessThanOrEqual
	case ">=":
		op = ops.OpGreaterThanOrEqual
	default:
		return ops.Predicate{}, fmt.Errorf("query: unsupported filter operator %q", opTok.text)
	}
	if valTok.kind == mTokIdent && valTok.text == "null" {
		if op == ops.OpEquals {
			op = ops.OpIsNull
		} else {
			op = ops.OpIsNotNull
		}
		return ops.Predicate{Comparison: &ops.Comparison{Column: colTok.text, Op: op}}, nil
	}
	var val any
	switch valTok.kind {
	case mTokNumber:
		val = valTok.num
	case mTokString:
		val = valTok.text
	case mTokIdent:
		switch valTok.text {
		case "true":
			val = true
		case "false":
			val = false
		default:
			return ops.Predicate{}, fmt.Errorf("query: unsupported filter literal %q", valTok.text)
		}
	default:
		return ops.Predicate{}, fmt.Errorf("query: unsupported filter literal %q", valTok.text)
	}
	return ops.Predicate{Comparison: &ops.Comparison{Column: colTok.text, Op: op, Value: val}}, nil
}

// compileSortKeys parses {{"Col", Order.Descending}, "OtherCol", ...}:
// each entry is either a bare column-name string (ascending) or a
// 2-element list pairing the name with Order.Ascending/Order.Descending.
func compileSortKeys(n mNode) ([]ops.SortKey, error) {
	if n.kind != "list" {
		return nil, fmt.Errorf("query: Table.Sort expects a list of sort keys")
	}
	keys := make([]ops.SortKey, 0, len(n.list))
	for _, item := range n.list {
		switch item.kind {
		case "string":
			keys = append(keys, ops.SortKey{Column: item.str})
		case "list":
			if len(item.list) != 2 {
				return nil, fmt.Errorf("query: sort key entry must be {name, order}")
			}
			name, err := nodeString(item.list[0])
			if err != nil {
				return nil, err
			}
			order, err := identSuffix(item.list[1])
			if err != nil {
				return nil, err
			}
			keys = append(keys, ops.SortKey{Column: name, Descending: strings.EqualFold(order, "Descending")})
		default:
			return nil, fmt.Errorf("query: unsupported sort key entry")
		}
	}
	return keys, nil
}

// compileAggregations parses {{"As Name", "Column", "Sum"}, ...}.
func compileAggregations(n mNode) ([]ops.Aggregation, error) {
	if n.kind != "list" {
		return nil, fmt.Errorf("query: Table.Group expects a list of aggregations")
	}
	aggs := make([]ops.Aggregation, 0, len(n.list))
	for _, item := range n.list {
		if item.kind != "list" || len(item.list) != 3 {
			return nil, fmt.Errorf("query: aggregation entry must be {as, column, op}")
		}
		as, err := nodeString(item.list[0])
		if err != nil {
			return nil, err
		}
		col, err := nodeString(item.list[1])
		if err != nil {
			return nil, err
		}
		opName, err := nodeString(item.list[2])
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, ops.Aggregation{Column: col, Op: aggOpFromName(opName), As: as})
	}
	return aggs, nil
}

// compileTransforms parses {{"Col", each <expr>}, ...}.
func compileTransforms(n mNode) ([]ops.Transform, error) {
	if n.kind != "list" {
		return nil, fmt.Errorf("query: Table.TransformColumns expects a list of transforms")
	}
	out := make([]ops.Transform, 0, len(n.list))
	for _, item := range n.list {
		if item.kind != "list" || len(item.list) < 2 {
			return nil, fmt.Errorf("query: transform entry must be {column, each expr}")
		}
		col, err := nodeString(item.list[0])
		if err != nil {
			return nil, err
		}
		lambda := item.list[1]
		if lambda.kind != "lambda" {
			return nil, fmt.Errorf("query: transform entry's second element must be an each lambda")
		}
		formula, err := expr.Compile(lambda.lambdaSrc)
		if err != nil {
			return nil, err
		}
		out = append(out, ops.Transform{Column: col, Formula: formula})
	}
	return out, nil
}

func compileSingleRename(n mNode) (string, string, error) {
	if n.kind != "list" || len(n.list) == 0 {
		return "", "", fmt.Errorf("query: Table.RenameColumns expects a list of {old,new} pairs")
	}
	pair := n.list[0]
	if pair.kind != "list" || len(pair.list) != 2 {
		return "", "", fmt.Errorf("query: rename entry must be {old,new}")
	}
	oldName, err := nodeString(pair.list[0])
	if err != nil {
		return "", "", err
	}
	newName, err := nodeString(pair.list[1])
	if err != nil {
		return "", "", err
	}
	return oldName, newName, nil
}

func compileSingleTypeChange(n mNode) (string, string, error) {
	if n.kind != "list" || len(n.list) == 0 {
		return "", "", fmt.Errorf("query: Table.TransformColumnTypes expects a list of {column,type} pairs")
	}
	pair := n.list[0]
	if pair.kind != "list" || len(pair.list) != 2 {
		return "", "", fmt.Errorf("query: type-change entry must be {column,type}")
	}
	col, err := nodeString(pair.list[0])
	if err != nil {
		return "", "", err
	}
	typeName, err := identSuffix(pair.list[1])
	if err != nil {
		return "", "", err
	}
	return col, strings.ToLower(typeName), nil
}

func compileQueryRef(n mNode) (string, error) {
	if n.kind == "call" && n.funcName == "Query.Reference" {
		return arg1String(n), nil
	}
	if n.kind == "ident" {
		return n.str, nil
	}
	return "", fmt.Errorf("query: expected Query.Reference(\"id\") or a step name")
}

func identListValues(n mNode) ([]string, error) {
	if n.kind != "list" {
		return nil, fmt.Errorf("query: expected a list of query references")
	}
	out := make([]string, len(n.list))
	for i, item := range n.list {
		id, err := compileQueryRef(item)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

// identSuffix returns the part after the last '.' of a dotted identifier
// node, e.g. JoinKind.Inner -> "Inner".
func identSuffix(n mNode) (string, error) {
	if n.kind != "ident" {
		return "", fmt.Errorf("query: expected an identifier")
	}
	parts := strings.Split(n.str, ".")
	return parts[len(parts)-1], nil
}

func joinTypeFromName(name string) ops.JoinType {
	switch strings.ToLower(name) {
	case "left":
		return ops.JoinLeft
	case "right":
		return ops.JoinRight
	case "full":
		return ops.JoinFull
	default:
		return ops.JoinInner
	}
}

func aggOpFromName(name string) ops.AggOp {
	switch strings.ToLower(name) {
	case "count":
		return ops.AggCount
	case "average":
		return ops.AggAverage
	case "min":
		return ops.AggMin
	case "max":
		return ops.AggMax
	case "countdistinct":
		return ops.AggCountDistinct
	default:
		return ops.AggSum
	}
}

func builtinNameTransform(name string) (func(string) string, error) {
	switch name {
	case "Text.Upper":
		return strings.ToUpper, nil
	case "Text.Lower":
		return strings.ToLower, nil
	case "Text.Trim":
		return strings.TrimSpace, nil
	default:
		return nil, &UnsupportedMFunctionError{Name: name}
	}
}
