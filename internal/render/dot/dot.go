// Package dot renders a plan graph as a Graphviz digraph with HTML-like labels.
package dot

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/mickamy/pgdot/internal/errs"
	"github.com/mickamy/pgdot/internal/graph"
	"github.com/mickamy/pgdot/internal/palette"
)

// DefaultGraphID names the digraph when Options.GraphID is empty.
const DefaultGraphID = "explain"

// NeverExecuted is the time cell text of nodes that never ran.
const NeverExecuted = "never executed"

// Options controls DOT rendering.
type Options struct {
	GraphID string
}

// Render writes g as DOT to w in a single write.
func Render(ctx context.Context, w io.Writer, g *graph.Graph, opts Options) error {
	var buf bytes.Buffer
	if err := Layout(ctx, &buf, g, opts, graphviz.XDOT); err != nil {
		return err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return errs.Wrap(err, errs.CodeRenderFailed, "render dot")
	}
	return nil
}

// String returns the DOT document for g.
func String(ctx context.Context, g *graph.Graph, opts Options) (string, error) {
	var b strings.Builder
	if err := Render(ctx, &b, g, opts); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Layout builds g, lays it out with dot and writes it to w in format.
func Layout(ctx context.Context, w io.Writer, g *graph.Graph, opts Options, format graphviz.Format) error {
	if g == nil {
		return errs.New(errs.CodeRenderFailed, "render dot: nil graph")
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return errs.Wrap(err, errs.CodeRenderFailed, "render dot: init graphviz")
	}
	defer func() { _ = gv.Close() }()

	cg, err := Build(gv, g, opts)
	if err != nil {
		return err
	}
	defer func() { _ = cg.Close() }()

	if err := gv.Render(ctx, cg, format, w); err != nil {
		return errs.Wrapf(err, errs.CodeRenderFailed, "render dot: %s", format)
	}
	return nil
}

// Build opens a digraph on gv and fills it with the nodes, edges and
// clusters of g. The caller closes the returned graph.
func Build(gv *graphviz.Graphviz, g *graph.Graph, opts Options) (*cgraph.Graph, error) {
	id := opts.GraphID
	if id == "" {
		id = DefaultGraphID
	}

	cg, err := gv.Graph(graphviz.WithName(id))
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeRenderFailed, "render dot: open graph")
	}
	if err := build(cg, g); err != nil {
		_ = cg.Close()
		return nil, errs.Wrap(err, errs.CodeRenderFailed, "render dot")
	}
	return cg, nil
}

func build(cg *cgraph.Graph, g *graph.Graph) error {
	if _, err := cg.Attr(int(cgraph.NODE), "shape", string(cgraph.BoxShape)); err != nil {
		return err
	}
	if _, err := cg.Attr(int(cgraph.NODE), "style", string(cgraph.RoundedNodeStyle)); err != nil {
		return err
	}
	// Declared empty so cluster labels do not give the root a "\G" caption.
	if _, err := cg.Attr(int(cgraph.GRAPH), "label", ""); err != nil {
		return err
	}

	nodes := make(map[int]*cgraph.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		gn, err := cg.CreateNodeByName(nodeName(n.ID))
		if err != nil {
			return fmt.Errorf("node %d: %w", n.ID, err)
		}
		label, err := cg.StrdupHTML(Label(g, n))
		if err != nil {
			return fmt.Errorf("node %d label: %w", n.ID, err)
		}
		gn.SetLabel(label)
		if n.Parallel {
			gn.SetShape(cgraph.FolderShape)
		}
		if !n.Executed {
			gn.SetColor("gray").SetFontColor("gray")
		}
		nodes[n.ID] = gn
	}

	for _, e := range g.Edges {
		parent, child := nodes[e.Parent], nodes[e.Child]
		if parent == nil || child == nil {
			return fmt.Errorf("edge %d -> %d: unknown node", e.Parent, e.Child)
		}
		if _, err := cg.CreateEdgeByName("", parent, child); err != nil {
			return fmt.Errorf("edge %d -> %d: %w", e.Parent, e.Child, err)
		}
	}

	for i, c := range g.Clusters {
		sub, err := cg.CreateSubGraphByName("cluster_" + strconv.Itoa(i))
		if err != nil {
			return fmt.Errorf("cluster %q: %w", c.Label, err)
		}
		label, err := sub.StrdupHTML("<b>" + html.EscapeString(c.Label) + "</b>")
		if err != nil {
			return fmt.Errorf("cluster %q label: %w", c.Label, err)
		}
		sub.SetStyle(cgraph.FilledGraphStyle).SetLabel(label)
		if err := sub.SafeSet("color", "lightgrey", ""); err != nil {
			return fmt.Errorf("cluster %q: %w", c.Label, err)
		}
		for _, m := range c.Members {
			// agnode on a subgraph pulls the existing root node in.
			if _, err := sub.CreateNodeByName(nodeName(m)); err != nil {
				return fmt.Errorf("cluster %q member %d: %w", c.Label, m, err)
			}
		}
	}
	return nil
}

func nodeName(id int) string {
	return "node" + strconv.Itoa(id)
}

// Label returns the HTML-like table label of n.
func Label(g *graph.Graph, n graph.Node) string {
	var b strings.Builder
	b.WriteString(`<table border="0" cellborder="0" cellspacing="5">`)
	fmt.Fprintf(&b, `<tr><td align="left"><b>%s</b></td>%s</tr>`, html.EscapeString(n.Type), timeCell(g, n))
	fmt.Fprintf(&b, `<tr><td colspan="2" align="left">%s</td></tr>`, html.EscapeString(n.Info))
	if n.Workers > 0 {
		fmt.Fprintf(&b, `<tr><td colspan="2" align="left">Workers: %d</td></tr>`, n.Workers)
	}
	fmt.Fprintf(&b, `<tr><td colspan="2" border="1"%s>Cost: %.2f</td></tr>`, costFill(g.CostPercent(n)), n.Cost)
	fmt.Fprintf(&b, `<tr><td colspan="2" align="left">Rows: %.0f</td></tr>`, n.Rows)
	b.WriteString(`</table>`)
	return b.String()
}

func costFill(percent float64) string {
	color := palette.CostColor(percent)
	switch {
	case percent < 0.1:
		return ""
	case percent > 0.99:
		return fmt.Sprintf(` bgcolor="%s"`, color)
	default:
		return fmt.Sprintf(` bgcolor="%s;%.2f:white"`, color, percent)
	}
}

func timeCell(g *graph.Graph, n graph.Node) string {
	if !n.Executed {
		return `<td><i>` + NeverExecuted + `</i></td>`
	}
	if n.Time == nil {
		return ""
	}

	t := *n.Time
	p, ok := g.TimePercent(n)
	share := ""
	if ok {
		share = " | " + strconv.Itoa(p) + "%"
	}

	// Negative self time comes from parallel children outrunning the parent.
	switch {
	case t < 1:
		return `<td>&lt; 1 ms` + share + `</td>`
	case !ok:
		return fmt.Sprintf(`<td>%.2f ms</td>`, t)
	default:
		return fmt.Sprintf(`<td bgcolor="%s">%.2f ms%s</td>`, palette.DurationColor(float64(p)), t, share)
	}
}
