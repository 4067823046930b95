package model

import "fmt"

// Operator is the closed set of plan node kinds. Each kind carries its own parameters.
type Operator interface {
	NodeType() string
	operator()
}

// Node Type values as emitted by PostgreSQL.
const (
	TypeAggregate           = "Aggregate"
	TypeAppend              = "Append"
	TypeBitmapAnd           = "BitmapAnd"
	TypeBitmapHeapScan      = "Bitmap Heap Scan"
	TypeBitmapIndexScan     = "Bitmap Index Scan"
	TypeBitmapOr            = "BitmapOr"
	TypeCTEScan             = "CTE Scan"
	TypeCustomScan          = "Custom Scan"
	TypeForeignScan         = "Foreign Scan"
	TypeFunctionScan        = "Function Scan"
	TypeGather              = "Gather"
	TypeGatherMerge         = "Gather Merge"
	TypeGroup               = "Group"
	TypeHash                = "Hash"
	TypeHashJoin            = "Hash Join"
	TypeIncrementalSort     = "Incremental Sort"
	TypeIndexOnlyScan       = "Index Only Scan"
	TypeIndexScan           = "Index Scan"
	TypeLimit               = "Limit"
	TypeLockRows            = "LockRows"
	TypeMaterialize         = "Materialize"
	TypeMemoize             = "Memoize"
	TypeMergeAppend         = "Merge Append"
	TypeMergeJoin           = "Merge Join"
	TypeModifyTable         = "ModifyTable"
	TypeNamedTuplestoreScan = "Named Tuplestore Scan"
	TypeNestedLoop          = "Nested Loop"
	TypeProjectSet          = "ProjectSet"
	TypeRecursiveUnion      = "Recursive Union"
	TypeResult              = "Result"
	TypeSampleScan          = "Sample Scan"
	TypeSeqScan             = "Seq Scan"
	TypeSetOp               = "SetOp"
	TypeSort                = "Sort"
	TypeSubqueryScan        = "Subquery Scan"
	TypeTableFunctionScan   = "Table Function Scan"
	TypeTidScan             = "Tid Scan"
	TypeUnique              = "Unique"
	TypeValuesScan          = "Values Scan"
	TypeWindowAgg           = "WindowAgg"
	TypeWorkTableScan       = "WorkTable Scan"
)

// GenericTypes lists the kinds without parameters of interest.
var GenericTypes = map[string]struct{}{
	TypeAppend:              {},
	TypeBitmapAnd:           {},
	TypeBitmapOr:            {},
	TypeCustomScan:          {},
	TypeForeignScan:         {},
	TypeGather:              {},
	TypeGatherMerge:         {},
	TypeGroup:               {},
	TypeHash:                {},
	TypeLimit:               {},
	TypeLockRows:            {},
	TypeMaterialize:         {},
	TypeMemoize:             {},
	TypeMergeAppend:         {},
	TypeNamedTuplestoreScan: {},
	TypeProjectSet:          {},
	TypeRecursiveUnion:      {},
	TypeResult:              {},
	TypeSampleScan:          {},
	TypeSubqueryScan:        {},
	TypeTableFunctionScan:   {},
	TypeTidScan:             {},
	TypeUnique:              {},
	TypeValuesScan:          {},
	TypeWindowAgg:           {},
	TypeWorkTableScan:       {},
}

// Relation identifies the table a scan or modification works on.
type Relation struct {
	Name   string
	Schema string
	Alias  string
}

func (r Relation) String() string {
	return fmt.Sprintf("%s.%s(%s)", r.Schema, r.Name, r.Alias)
}

// Generic is a kind without parameters, e.g. Limit or Materialize.
type Generic struct {
	Type string
}

// Unknown is a Node Type this version does not recognise.
type Unknown struct {
	Type string
}

type Aggregate struct {
	Strategy    Strategy
	PartialMode PartialMode
	GroupKey    []string
}

type HashJoin struct {
	JoinType    JoinType
	InnerUnique bool
	HashCond    string
}

type MergeJoin struct {
	JoinType  JoinType
	MergeCond string
}

type NestedLoop struct {
	JoinType   JoinType
	JoinFilter string
}

// Sort covers both Sort and Incremental Sort.
type Sort struct {
	SortKey     []string
	Incremental bool
}

type SeqScan struct {
	Relation Relation
	Filter   string
}

// IndexScan covers both Index Scan and Index Only Scan.
type IndexScan struct {
	Relation      Relation
	IndexName     string
	ScanDirection string
	IndexCond     string
	IndexOnly     bool
}

type BitmapIndexScan struct {
	IndexName string
	IndexCond string
}

type BitmapHeapScan struct {
	Relation    Relation
	RecheckCond string
}

type CTEScan struct {
	CTEName string
	Alias   string
}

type FunctionScan struct {
	FunctionName string
	Alias        string
}

type ModifyTable struct {
	Operation Operation
	Relation  Relation
}

type SetOp struct {
	Strategy Strategy
	Command  string
}

func (o Generic) NodeType() string { return o.Type }
func (o Unknown) NodeType() string { return o.Type }
func (Aggregate) NodeType() string { return TypeAggregate }
func (HashJoin) NodeType() string { return TypeHashJoin }
func (MergeJoin) NodeType() string { return TypeMergeJoin }
func (NestedLoop) NodeType() string { return TypeNestedLoop }
func (BitmapIndexScan) NodeType() string { return TypeBitmapIndexScan }
func (BitmapHeapScan) NodeType() string { return TypeBitmapHeapScan }
func (CTEScan) NodeType() string { return TypeCTEScan }
func (FunctionScan) NodeType() string { return TypeFunctionScan }
func (ModifyTable) NodeType() string { return TypeModifyTable }
func (SetOp) NodeType() string { return TypeSetOp }
func (SeqScan) NodeType() string { return TypeSeqScan }
func (o Sort) NodeType() string {
	if o.Incremental {
		return TypeIncrementalSort
	}
	return TypeSort
}
func (o IndexScan) NodeType() string {
	if o.IndexOnly {
		return TypeIndexOnlyScan
	}
	return TypeIndexScan
}

func (Generic) operator() {}
func (Unknown) operator() {}
func (Aggregate) operator() {}
func (HashJoin) operator() {}
func (MergeJoin) operator() {}
func (NestedLoop) operator() {}
func (Sort) operator() {}
func (SeqScan) operator() {}
func (IndexScan) operator() {}
func (BitmapIndexScan) operator() {}
func (BitmapHeapScan) operator() {}
func (CTEScan) operator() {}
func (FunctionScan) operator() {}
func (ModifyTable) operator() {}
func (SetOp) operator() {}
