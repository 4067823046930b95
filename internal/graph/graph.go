// Package graph assembles the annotated plan graph consumed by the renderers.
package graph

import (
	"math"

	"github.com/mickamy/pgdot/internal/analyzer"
	"github.com/mickamy/pgdot/internal/errs"
	"github.com/mickamy/pgdot/internal/model"
)

// Node is one annotated plan node. ID equals its index in Graph.Nodes.
type Node struct {
	ID        int
	Path      string
	Type      string
	Info      string
	Workers   int
	Rows      float64
	TotalCost float64
	// Cost is the exclusive cost of the node.
	Cost float64
	// Time is the exclusive time in milliseconds; nil without ANALYZE.
	Time     *float64
	Executed bool
	Cluster  string
	Depth    int
	Parallel bool
}

// Edge connects a parent to one of its children.
type Edge struct {
	Parent int
	Child  int
}

// Cluster groups the nodes of one named sub-plan.
type Cluster struct {
	Label   string `json:"label"`
	Members []int  `json:"members"`
}

// Graph is the read-only result of Build.
type Graph struct {
	Nodes    []Node
	Edges    []Edge
	Clusters []Cluster
	MaxCost  float64
	// RootTime is the reference time for percentages; nil when the plan was not analyzed.
	RootTime     *float64
	PlanningTime *float64
	Triggers     []model.Trigger
}

type builder struct {
	graph    *Graph
	clusters map[string]int
}

// Build walks the plan once in pre-order and returns its graph.
func Build(explain *model.Explain) (*Graph, error) {
	if explain == nil || explain.Plan == nil {
		return nil, errs.New(errs.CodeMalformedInput, "explain has no plan")
	}

	b := &builder{
		graph: &Graph{
			RootTime:     rootTime(explain),
			PlanningTime: explain.PlanningTime,
			Triggers:     explain.Triggers,
		},
		clusters: map[string]int{},
	}
	b.visit(explain.Plan, -1, "", 0)
	return b.graph, nil
}

func rootTime(explain *model.Explain) *float64 {
	switch {
	case explain.ExecutionTime != nil:
		return explain.ExecutionTime
	case explain.TotalRuntime != nil:
		return explain.TotalRuntime
	default:
		return explain.Plan.ActualTotalTime
	}
}

func (b *builder) visit(node *model.PlanNode, parent int, inherited string, depth int) {
	m := analyzer.Attribute(node, inherited)
	id := len(b.graph.Nodes)

	b.graph.Nodes = append(b.graph.Nodes, Node{
		ID:        id,
		Path:      node.ID,
		Type:      node.NodeType(),
		Info:      m.Info,
		Workers:   len(node.Workers),
		Rows:      node.PlanRows,
		TotalCost: node.TotalCost,
		Cost:      m.SelfCost,
		Time:      m.SelfTime,
		Executed:  m.Executed,
		Cluster:   m.Cluster,
		Depth:     depth,
		Parallel:  node.Parallel(),
	})
	if m.SelfCost > b.graph.MaxCost {
		b.graph.MaxCost = m.SelfCost
	}
	if parent >= 0 {
		b.graph.Edges = append(b.graph.Edges, Edge{Parent: parent, Child: id})
	}
	if m.Cluster != "" {
		b.addToCluster(m.Cluster, id)
	}

	for _, child := range node.Children {
		b.visit(child, id, m.Cluster, depth+1)
	}
}

func (b *builder) addToCluster(label string, id int) {
	idx, ok := b.clusters[label]
	if !ok {
		idx = len(b.graph.Clusters)
		b.clusters[label] = idx
		b.graph.Clusters = append(b.graph.Clusters, Cluster{Label: label})
	}
	b.graph.Clusters[idx].Members = append(b.graph.Clusters[idx].Members, id)
}

// CostPercent returns the node's share of the maximum self cost in [0, 1].
// A graph whose nodes all cost nothing yields 0.
func (g *Graph) CostPercent(n Node) float64 {
	if g.MaxCost <= 0 {
		return 0
	}
	return n.Cost / g.MaxCost
}

// TimePercent returns the node's self time as a whole percentage of the root time.
// ok is false when either value is missing or the root time is zero.
func (g *Graph) TimePercent(n Node) (int, bool) {
	if n.Time == nil || g.RootTime == nil || *g.RootTime == 0 {
		return 0, false
	}
	return int(math.Round(*n.Time / *g.RootTime * 100)), true
}

// Children returns the ids of the direct children of id in plan order.
func (g *Graph) Children(id int) []int {
	var out []int
	for _, e := range g.Edges {
		if e.Parent == id {
			out = append(out, e.Child)
		}
	}
	return out
}

// Cluster returns the cluster with the given label.
func (g *Graph) Cluster(label string) (Cluster, bool) {
	for _, c := range g.Clusters {
		if c.Label == label {
			return c, true
		}
	}
	return Cluster{}, false
}

// Analyzed reports whether any node carries timing information.
func (g *Graph) Analyzed() bool {
	for _, n := range g.Nodes {
		if n.Time != nil {
			return true
		}
	}
	return false
}
