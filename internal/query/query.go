// Package query defines the declarative query IR (spec §4.5) that the
// engine executes: a Query is a source plus an ordered list of steps,
// each holding exactly one operation. It also implements the minimal
// M-language compiler (spec §4.5) whose output is this IR.
package query

import (
	"flowsheet/internal/expr"
	"flowsheet/internal/ops"
)

// SourceKind enumerates the source kinds a Query can start from
// (spec §3, §4.6).
type SourceKind string

const (
	SourceRange    SourceKind = "range"
	SourceTable    SourceKind = "table"
	SourceCSV      SourceKind = "csv"
	SourceJSON     SourceKind = "json"
	SourceDatabase SourceKind = "database"
	SourceAPI      SourceKind = "api"
	SourceOData    SourceKind = "odata"
	SourceParquet  SourceKind = "parquet"
	SourceFolder   SourceKind = "folder"
	SourceQueryRef SourceKind = "query-ref"
)

// Source describes where a Query's initial table comes from. Only the
// fields relevant to Kind are populated; the rest are zero.
type Source struct {
	Kind SourceKind

	// SourceRange
	Grid [][]any

	// SourceTable
	TableName string

	// SourceCSV / SourceJSON / SourceParquet / SourceFolder
	Path      string
	Recursive bool

	// SourceDatabase
	Connection string
	SQL        string
	Columns    []string // known column list, enables SQL folding

	// SourceAPI / SourceOData
	URL     string
	Method  string
	Headers map[string]string

	// SourceQueryRef
	RefID string

	// PrivacyLevel, when non-empty, overrides context-supplied privacy
	// levels for this specific source occurrence.
	PrivacyLevel string
}

// StepKind names the operation a Step applies; these map 1:1 onto the
// internal/ops function set (spec §4.4).
type StepKind string

const (
	StepSelectColumns       StepKind = "selectColumns"
	StepRemoveColumns       StepKind = "removeColumns"
	StepFilterRows          StepKind = "filterRows"
	StepSortRows            StepKind = "sortRows"
	StepGroupBy             StepKind = "groupBy"
	StepAddColumn           StepKind = "addColumn"
	StepTransformColumns    StepKind = "transformColumns"
	StepRenameColumn        StepKind = "renameColumn"
	StepChangeType          StepKind = "changeType"
	StepTake                StepKind = "take"
	StepSkip                StepKind = "skip"
	StepDistinctRows        StepKind = "distinctRows"
	StepPivot               StepKind = "pivot"
	StepUnpivot             StepKind = "unpivot"
	StepMerge               StepKind = "merge"
	StepAppend              StepKind = "append"
	StepExpandTableColumn   StepKind = "expandTableColumn"
	StepFillDown            StepKind = "fillDown"
	StepReplaceValues       StepKind = "replaceValues"
	StepSplitColumn         StepKind = "splitColumn"
	StepCombineColumns      StepKind = "combineColumns"
	StepAddIndexColumn      StepKind = "addIndexColumn"
	StepPromoteHeaders      StepKind = "promoteHeaders"
	StepDemoteHeaders       StepKind = "demoteHeaders"
	StepTransformColumnNames StepKind = "transformColumnNames"
)

// Step holds exactly one operation and its parameters (spec §4.5).
type Step struct {
	Name string
	Kind StepKind

	SelectColumns  []string
	RemoveColumns  []string
	FilterRows     ops.Predicate
	SortRows       []ops.SortKey
	GroupByKeys    []string
	Aggregations   []ops.Aggregation
	NewColumnName  string
	Formula        *expr.Expr
	Transforms     []ops.Transform
	OldName        string
	NewName        string
	NewType        string
	N              int
	DistinctOn     []string
	PivotColumn    string
	ValueColumn    string
	PivotAgg       ops.AggOp
	UnpivotColumns []string
	NameColumn     string
	MergeOptions   ops.MergeOptions
	RightQueryID   string
	AppendQueryIDs []string
	ExpandColumn   string
	ExpandNames    []string
	FillDownCols   []string
	ReplaceColumn  string
	ReplaceFind    any
	ReplaceWith    any
	SplitColumnSep string
	SplitNames     []string
	CombineColumns []string
	CombineSep     string
	IndexStart     int
	NameMapFunc    func(string) string
}

// Query is the declarative IR the engine executes (spec §4.5).
type Query struct {
	ID     string
	Name   string
	Source Source
	Steps  []Step
}
