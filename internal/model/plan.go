package model

// InitPlan is the Parent Relationship value of initialization sub-plans.
const InitPlan = "InitPlan"

// Explain represents the root of a PostgreSQL execution plan.
type Explain struct {
	Plan          *PlanNode
	PlanningTime  *float64
	ExecutionTime *float64
	// TotalRuntime is the pre-9.4 name of ExecutionTime.
	TotalRuntime *float64
	Triggers     []Trigger
	Settings     map[string]string
	// Extra carries additional top-level fields that we do not interpret yet.
	Extra map[string]any
}

// PlanNode captures one node in the execution plan tree.
type PlanNode struct {
	ID                 string
	Operator           Operator
	ParentRelationship string
	SubplanName        string
	StartupCost        float64
	TotalCost          float64
	PlanRows           float64
	PlanWidth          float64
	ActualStartupTime  *float64
	ActualTotalTime    *float64
	ActualRows         *float64
	ActualLoops        *float64
	ParallelAware      bool
	WorkersPlanned     float64
	WorkersLaunched    float64
	Workers            []Worker
	Output             []string
	Extra              map[string]any
	Children           []*PlanNode
}

// NodeType returns the operator name, e.g. "Hash Join".
func (n *PlanNode) NodeType() string {
	if n == nil || n.Operator == nil {
		return ""
	}
	return n.Operator.NodeType()
}

// Parallel reports whether the node carries per-worker statistics.
func (n *PlanNode) Parallel() bool {
	return len(n.Workers) > 0
}

// IsInitPlan reports whether the node is an initialization sub-plan of its parent.
func (n *PlanNode) IsInitPlan() bool {
	return n.ParentRelationship == InitPlan
}

// Worker holds the statistics of one parallel worker.
type Worker struct {
	Number            int
	ActualStartupTime float64
	ActualTotalTime   float64
	ActualRows        float64
	ActualLoops       float64
}

// Trigger holds trigger statistics reported by EXPLAIN ANALYZE.
type Trigger struct {
	Name     string
	Relation string
	Time     float64
	Calls    float64
}
