package analyzer

import (
	"github.com/mickamy/pgdot/internal/model"
)

// Metrics contains the exclusive statistics derived for one plan node.
type Metrics struct {
	SelfCost float64
	// SelfTime is nil when the plan was not run with ANALYZE.
	SelfTime *float64
	Executed bool
	Cluster  string
	Info     string
}

// Attribute derives the metrics of node. inherited is the cluster label of the
// parent; a node declaring its own Subplan Name starts a new cluster.
func Attribute(node *model.PlanNode, inherited string) Metrics {
	m := Metrics{
		SelfCost: SelfCost(node),
		Executed: Executed(node),
		Cluster:  inherited,
		Info:     Describe(node.Operator),
	}
	if node.SubplanName != "" {
		m.Cluster = node.SubplanName
	}
	if t, ok := SelfTime(node); ok {
		m.SelfTime = &t
	}
	return m
}

// SelfCost returns the node's total cost minus the total cost of its children,
// ignoring InitPlan children. The result never drops below zero.
func SelfCost(node *model.PlanNode) float64 {
	cost := node.TotalCost
	for _, child := range node.Children {
		if child.IsInitPlan() {
			continue
		}
		cost -= child.TotalCost
	}
	if cost < 0 {
		return 0
	}
	return cost
}

// SelfTime returns the time spent in the node itself. ok is false when no
// Actual Total Time was collected. The value may be negative.
func SelfTime(node *model.PlanNode) (float64, bool) {
	if node.ActualTotalTime == nil {
		return 0, false
	}
	t := totalTime(node)
	for _, child := range node.Children {
		if child.IsInitPlan() {
			continue
		}
		t -= totalTime(child)
	}
	return t, true
}

// totalTime converts the per-loop Actual Total Time into the time over all loops.
// Parallel nodes already report a value spanning their workers.
func totalTime(node *model.PlanNode) float64 {
	if node.ActualTotalTime == nil {
		return 0
	}
	if node.Parallel() {
		return *node.ActualTotalTime
	}
	return *node.ActualTotalTime * loops(node)
}

func loops(node *model.PlanNode) float64 {
	if node.ActualLoops == nil {
		return 1
	}
	return *node.ActualLoops
}

// Executed reports whether the node ran at least once.
func Executed(node *model.PlanNode) bool {
	return node.ActualLoops != nil && *node.ActualLoops != 0
}
