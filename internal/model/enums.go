package model

import "strings"

// JoinType is the join flavour of Hash Join, Merge Join and Nested Loop nodes.
type JoinType string

const (
	JoinInner     JoinType = "Inner"
	JoinLeft      JoinType = "Left"
	JoinFull      JoinType = "Full"
	JoinRight     JoinType = "Right"
	JoinSemi      JoinType = "Semi"
	JoinAnti      JoinType = "Anti"
	JoinRightSemi JoinType = "Right Semi"
	JoinRightAnti JoinType = "Right Anti"
)

// String renders the join type in lower case ("inner", "right anti").
func (j JoinType) String() string {
	return strings.ToLower(string(j))
}

// Strategy is the execution strategy of Aggregate and SetOp nodes.
type Strategy string

const (
	StrategyPlain  Strategy = "Plain"
	StrategySorted Strategy = "Sorted"
	StrategyHashed Strategy = "Hashed"
	StrategyMixed  Strategy = "Mixed"
)

// PartialMode tells whether an Aggregate is split across parallel workers.
type PartialMode string

const (
	PartialSimple   PartialMode = "Simple"
	PartialPartial  PartialMode = "Partial"
	PartialFinalize PartialMode = "Finalize"
)

// Operation is the statement kind of a ModifyTable node.
type Operation string

const (
	OperationInsert Operation = "Insert"
	OperationUpdate Operation = "Update"
	OperationDelete Operation = "Delete"
	OperationMerge  Operation = "Merge"
	OperationSelect Operation = "Select"
)

var (
	joinTypes    = []JoinType{JoinInner, JoinLeft, JoinFull, JoinRight, JoinSemi, JoinAnti, JoinRightSemi, JoinRightAnti}
	strategies   = []Strategy{StrategyPlain, StrategySorted, StrategyHashed, StrategyMixed}
	partialModes = []PartialMode{PartialSimple, PartialPartial, PartialFinalize}
	operations   = []Operation{OperationInsert, OperationUpdate, OperationDelete, OperationMerge, OperationSelect}
)

// Valid reports whether j is a known join type.
func (j JoinType) Valid() bool {
	for _, known := range joinTypes {
		if j == known {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	for _, known := range strategies {
		if s == known {
			return true
		}
	}
	return false
}

// Valid reports whether p is a known partial mode.
func (p PartialMode) Valid() bool {
	for _, known := range partialModes {
		if p == known {
			return true
		}
	}
	return false
}

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	for _, known := range operations {
		if o == known {
			return true
		}
	}
	return false
}
