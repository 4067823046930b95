package graph_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/pgdot/internal/errs"
	"github.com/mickamy/pgdot/internal/graph"
	"github.com/mickamy/pgdot/internal/model"
	"github.com/mickamy/pgdot/test"
)

func ptr(v float64) *float64 { return &v }

func node(cost float64, children ...*model.PlanNode) *model.PlanNode {
	return &model.PlanNode{
		Operator:  model.Generic{Type: model.TypeResult},
		TotalCost: cost,
		Children:  children,
	}
}

func TestBuildRejectsEmptyPlan(t *testing.T) {
	_, err := graph.Build(nil)
	assert.Equal(t, errs.CodeMalformedInput, errs.CodeOf(err))

	_, err = graph.Build(&model.Explain{})
	assert.Equal(t, errs.CodeMalformedInput, errs.CodeOf(err))
}

func TestBuildPreOrderIDs(t *testing.T) {
	g := test.LoadSampleGraph(t, "simple.json")

	require.Len(t, g.Nodes, 5)
	types := make([]string, 0, len(g.Nodes))
	for i, n := range g.Nodes {
		assert.Equal(t, i, n.ID)
		types = append(types, n.Type)
	}
	assert.Equal(t, []string{"Sort", "Hash Join", "Seq Scan", "Hash", "Seq Scan"}, types)
	assert.Equal(t, []graph.Edge{
		{Parent: 0, Child: 1},
		{Parent: 1, Child: 2},
		{Parent: 1, Child: 3},
		{Parent: 3, Child: 4},
	}, g.Edges)
	assert.Equal(t, []int{2, 3}, g.Children(1))
	assert.Empty(t, g.Children(4))
	assert.Equal(t, []int{0, 1, 2, 2, 3}, []int{g.Nodes[0].Depth, g.Nodes[1].Depth, g.Nodes[2].Depth, g.Nodes[3].Depth, g.Nodes[4].Depth})
	assert.Equal(t, "0.0.1.0", g.Nodes[4].Path)
}

func TestBuildIsDeterministic(t *testing.T) {
	explain := test.LoadSample(t, "cte.json")

	first, err := graph.Build(explain)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*graph.Graph, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g, err := graph.Build(explain)
			if err == nil {
				results[i] = g
			}
		}(i)
	}
	wg.Wait()

	for _, g := range results {
		require.NotNil(t, g)
		assert.Equal(t, first.Nodes, g.Nodes)
		assert.Equal(t, first.Edges, g.Edges)
		assert.Equal(t, first.Clusters, g.Clusters)
	}
}

func TestBuildMetrics(t *testing.T) {
	g := test.LoadSampleGraph(t, "simple.json")

	costs := make([]float64, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		costs = append(costs, n.Cost)
	}
	assert.Equal(t, []float64{4, 28, 40, 5, 25}, costs)
	assert.Equal(t, 40.0, g.MaxCost)
	require.NotNil(t, g.RootTime)
	assert.Equal(t, 1.5, *g.RootTime)
	assert.Equal(t, "inner join on (o.user_id = u.id)", g.Nodes[1].Info)

	require.NotNil(t, g.Nodes[0].Time)
	assert.InDelta(t, 0.4, *g.Nodes[0].Time, 1e-9)
	p, ok := g.TimePercent(g.Nodes[0])
	require.True(t, ok)
	assert.Equal(t, 27, p)
	assert.Equal(t, 1.0, g.CostPercent(g.Nodes[2]))
	assert.Equal(t, 0.1, g.CostPercent(g.Nodes[0]))
}

func TestBuildClusters(t *testing.T) {
	g := test.LoadSampleGraph(t, "cte.json")

	require.Len(t, g.Nodes, 5)
	assert.Equal(t, "", g.Nodes[0].Cluster)
	assert.Equal(t, "", g.Nodes[1].Cluster)
	assert.Equal(t, "CTE recent", g.Nodes[2].Cluster)
	assert.Equal(t, "CTE recent", g.Nodes[3].Cluster)
	assert.Equal(t, "SubPlan 2", g.Nodes[4].Cluster)

	assert.Equal(t, []graph.Cluster{
		{Label: "CTE recent", Members: []int{2, 3}},
		{Label: "SubPlan 2", Members: []int{4}},
	}, g.Clusters)

	c, ok := g.Cluster("SubPlan 2")
	require.True(t, ok)
	assert.Equal(t, []int{4}, c.Members)
	_, ok = g.Cluster("missing")
	assert.False(t, ok)

	root := g.Nodes[0]
	assert.Equal(t, 25.0, root.Cost)
	require.NotNil(t, root.Time)
	assert.Equal(t, 6.0, *root.Time)
	assert.False(t, g.Nodes[4].Executed)
	require.Len(t, g.Triggers, 1)
}

func TestBuildClusterInheritance(t *testing.T) {
	leaf := node(10)
	middle := node(20, leaf)
	middle.SubplanName = "cte_a"
	root := node(50, middle)

	g, err := graph.Build(&model.Explain{Plan: root})
	require.NoError(t, err)

	assert.Equal(t, "", g.Nodes[0].Cluster)
	assert.Equal(t, "cte_a", g.Nodes[1].Cluster)
	assert.Equal(t, "cte_a", g.Nodes[2].Cluster)
	assert.Equal(t, []graph.Cluster{{Label: "cte_a", Members: []int{1, 2}}}, g.Clusters)
}

func TestBuildClustersKeepFirstSeenOrder(t *testing.T) {
	z := node(1)
	z.SubplanName = "zeta"
	a := node(1)
	a.SubplanName = "alpha"
	z2 := node(1)
	z2.SubplanName = "zeta"

	g, err := graph.Build(&model.Explain{Plan: node(10, z, a, z2)})
	require.NoError(t, err)

	require.Len(t, g.Clusters, 2)
	assert.Equal(t, "zeta", g.Clusters[0].Label)
	assert.Equal(t, []int{1, 3}, g.Clusters[0].Members)
	assert.Equal(t, "alpha", g.Clusters[1].Label)
}

func TestBuildSelfCostNeverNegative(t *testing.T) {
	g, err := graph.Build(&model.Explain{Plan: node(5, node(10), node(10, node(30)))})
	require.NoError(t, err)

	for _, n := range g.Nodes {
		assert.GreaterOrEqual(t, n.Cost, 0.0, "node %d", n.ID)
	}
	assert.Equal(t, 30.0, g.MaxCost)
}

func TestBuildRootTimeFallback(t *testing.T) {
	withRuntime := &model.Explain{Plan: node(1), TotalRuntime: ptr(8)}
	g, err := graph.Build(withRuntime)
	require.NoError(t, err)
	require.NotNil(t, g.RootTime)
	assert.Equal(t, 8.0, *g.RootTime)

	root := node(1)
	root.ActualTotalTime = ptr(3)
	root.ActualLoops = ptr(1)
	g, err = graph.Build(&model.Explain{Plan: root})
	require.NoError(t, err)
	require.NotNil(t, g.RootTime)
	assert.Equal(t, 3.0, *g.RootTime)

	p, ok := g.TimePercent(g.Nodes[0])
	require.True(t, ok)
	assert.Equal(t, 100, p)
}

func TestBuildWithoutAnalyze(t *testing.T) {
	g := test.LoadSampleGraph(t, "plain.yaml")

	assert.Nil(t, g.RootTime)
	assert.False(t, g.Analyzed())
	for _, n := range g.Nodes {
		assert.False(t, n.Executed)
		_, ok := g.TimePercent(n)
		assert.False(t, ok)
	}
	assert.Equal(t, 0.0, g.Nodes[0].Cost)
	assert.Equal(t, 4.5, g.MaxCost)
}

func TestCostPercentWithZeroMaxCost(t *testing.T) {
	g, err := graph.Build(&model.Explain{Plan: node(0, node(0))})
	require.NoError(t, err)

	assert.Equal(t, 0.0, g.MaxCost)
	assert.Equal(t, 0.0, g.CostPercent(g.Nodes[0]))
}

func TestBuildParallel(t *testing.T) {
	g := test.LoadSampleGraph(t, "parallel.json")

	gather, scan := g.Nodes[0], g.Nodes[1]
	assert.False(t, gather.Parallel)
	assert.True(t, scan.Parallel)
	assert.Equal(t, 2, scan.Workers)
	require.NotNil(t, gather.Time)
	require.NotNil(t, scan.Time)
	assert.Equal(t, 10.0, *gather.Time)
	assert.Equal(t, 30.0, *scan.Time)
}
