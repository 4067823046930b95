package test

import (
	"strings"
	"testing"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// ParseDOT reads a rendered DOT document back into a graph closed at test end.
func ParseDOT(t *testing.T, doc string) *cgraph.Graph {
	t.Helper()
	gv, err := graphviz.New(t.Context())
	if err != nil {
		t.Fatalf("init graphviz: %v", err)
	}
	t.Cleanup(func() { _ = gv.Close() })

	cg, err := graphviz.ParseBytes([]byte(doc))
	if err != nil {
		t.Fatalf("parse dot: %v\n%s", err, doc)
	}
	t.Cleanup(func() { _ = cg.Close() })
	return cg
}

// DOTEdges lists the edges of cg as "tail -> head".
func DOTEdges(t *testing.T, cg *cgraph.Graph) []string {
	t.Helper()
	var edges []string
	n, err := cg.FirstNode()
	for ; err == nil && n != nil; n, err = cg.NextNode(n) {
		e, eerr := cg.FirstOut(n)
		for ; eerr == nil && e != nil; e, eerr = cg.NextOut(e) {
			edges = append(edges, endName(t, e.Tail)+" -> "+endName(t, e.Head))
		}
		if eerr != nil {
			t.Fatalf("walk edges: %v", eerr)
		}
	}
	if err != nil {
		t.Fatalf("walk nodes: %v", err)
	}
	return edges
}

// DOTFact reports whether one fact line holds for cg. Lines are
//
//	edge TAIL HEAD
//	attr NODE KEY SUBSTRING...
//	cluster NAME
//	member CLUSTER NODE
//	cluster-attr CLUSTER KEY SUBSTRING...
func DOTFact(t *testing.T, cg *cgraph.Graph, line string) bool {
	t.Helper()
	fields := strings.Fields(line)
	if len(fields) < 2 {
		t.Fatalf("dot fact %q: too few fields", line)
	}
	rest := func(from int) string {
		if len(fields) <= from {
			t.Fatalf("dot fact %q: too few fields", line)
		}
		return strings.Join(fields[from:], " ")
	}

	switch fields[0] {
	case "edge":
		want := fields[1] + " -> " + rest(2)
		for _, e := range DOTEdges(t, cg) {
			if e == want {
				return true
			}
		}
		return false
	case "attr":
		n := lookupNode(t, cg, fields[1])
		return n != nil && strings.Contains(n.GetStr(fields[2]), rest(3))
	case "cluster":
		return lookupCluster(t, cg, fields[1]) != nil
	case "member":
		sub := lookupCluster(t, cg, fields[1])
		return sub != nil && lookupNode(t, sub, rest(2)) != nil
	case "cluster-attr":
		sub := lookupCluster(t, cg, fields[1])
		return sub != nil && strings.Contains(sub.GetStr(fields[2]), rest(3))
	default:
		t.Fatalf("dot fact %q: unknown kind", line)
		return false
	}
}

func lookupNode(t *testing.T, cg *cgraph.Graph, name string) *cgraph.Node {
	t.Helper()
	n, err := cg.NodeByName(name)
	if err != nil {
		t.Fatalf("lookup node %s: %v", name, err)
	}
	return n
}

func lookupCluster(t *testing.T, cg *cgraph.Graph, name string) *cgraph.Graph {
	t.Helper()
	sub, err := cg.SubGraphByName(name)
	if err != nil {
		t.Fatalf("lookup cluster %s: %v", name, err)
	}
	return sub
}

func endName(t *testing.T, end func() (*cgraph.Node, error)) string {
	t.Helper()
	n, err := end()
	if err != nil {
		t.Fatalf("edge end: %v", err)
	}
	name, err := n.Name()
	if err != nil {
		t.Fatalf("node name: %v", err)
	}
	return name
}
