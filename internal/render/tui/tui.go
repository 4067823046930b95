package tui

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/mickamy/pgdot/internal/errs"
	"github.com/mickamy/pgdot/internal/graph"
	"github.com/mickamy/pgdot/internal/insight"
	"github.com/mickamy/pgdot/internal/palette"
)

const ansiReset = "\033[0m"

// Options controls how the TUI renderer behaves.
type Options struct {
	EnableColor  bool
	MaxDepth     int
	ShowInsights bool
	BarWidth     int
}

// Render prints an ASCII tree of the plan with self cost bars and self times.
func Render(w io.Writer, g *graph.Graph, opts Options) error {
	if w == nil {
		return errs.New(errs.CodeRenderFailed, "tui: writer is nil")
	}
	if g == nil || len(g.Nodes) == 0 {
		return errs.New(errs.CodeRenderFailed, "tui: empty graph")
	}
	if opts.BarWidth <= 0 {
		opts.BarWidth = 20
	}

	var b strings.Builder
	writeHeader(&b, g)
	if opts.ShowInsights {
		renderInsights(&b, g)
	}

	r := &treeRenderer{b: &b, g: g, opts: opts}
	b.WriteString(r.line(g.Nodes[0]))
	b.WriteByte('\n')
	r.children(0, "")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return errs.Wrap(err, errs.CodeRenderFailed, "tui: write")
	}
	return nil
}

func writeHeader(b *strings.Builder, g *graph.Graph) {
	switch {
	case g.RootTime != nil && g.PlanningTime != nil:
		fmt.Fprintf(b, "Execution time %.3f ms (planning %.3f ms)\n", *g.RootTime, *g.PlanningTime)
	case g.RootTime != nil:
		fmt.Fprintf(b, "Execution time %.3f ms\n", *g.RootTime)
	default:
		b.WriteString("Estimated plan (no ANALYZE timings)\n")
	}
	fmt.Fprintf(b, "Nodes %d | Clusters %d | Max self cost %.2f\n\n", len(g.Nodes), len(g.Clusters), g.MaxCost)
}

type treeRenderer struct {
	b    *strings.Builder
	g    *graph.Graph
	opts Options
}

func (r *treeRenderer) children(parent int, prefix string) {
	kids := r.g.Children(parent)
	for i, child := range kids {
		r.branch(child, prefix, i == len(kids)-1)
	}
}

func (r *treeRenderer) branch(id int, prefix string, isLast bool) {
	connector := "|-- "
	childPrefix := prefix + "|   "
	if isLast {
		connector = "`-- "
		childPrefix = prefix + "    "
	}

	node := r.g.Nodes[id]
	fmt.Fprintf(r.b, "%s%s%s\n", prefix, connector, r.line(node))

	if r.opts.MaxDepth > 0 && node.Depth >= r.opts.MaxDepth {
		if n := r.countDescendants(id); n > 0 {
			fmt.Fprintf(r.b, "%s`-- ... (%d more nodes)\n", childPrefix, n)
		}
		return
	}
	r.children(id, childPrefix)
}

func (r *treeRenderer) line(n graph.Node) string {
	costShare := r.g.CostPercent(n)
	bar := drawBar(costShare, r.opts.BarWidth)
	if r.opts.EnableColor && costShare >= 0.1 {
		bar = applyColor(bar, palette.CostColor(costShare))
	}

	parts := []string{
		insight.NodeLabel(n),
		fmt.Sprintf("cost %.2f (%5.1f%%)", n.Cost, costShare*100),
		bar,
		r.timeText(n),
		fmt.Sprintf("rows %.0f", n.Rows),
	}
	if n.Workers > 0 {
		parts = append(parts, fmt.Sprintf("workers %d", n.Workers))
	}
	line := strings.Join(parts, " | ")
	if n.Cluster != "" {
		line += " [" + n.Cluster + "]"
	}
	return line
}

func (r *treeRenderer) timeText(n graph.Node) string {
	if !n.Executed {
		return "never executed"
	}
	if n.Time == nil {
		return "self -"
	}
	text := fmt.Sprintf("self %.2f ms", *n.Time)
	p, ok := r.g.TimePercent(n)
	if !ok {
		return text
	}
	text += fmt.Sprintf(" (%d%%)", p)
	if r.opts.EnableColor && *n.Time >= 1 {
		text = applyColor(text, palette.DurationColor(float64(p)))
	}
	return text
}

func (r *treeRenderer) countDescendants(id int) int {
	total := 0
	for _, child := range r.g.Children(id) {
		total += 1 + r.countDescendants(child)
	}
	return total
}

func renderInsights(b *strings.Builder, g *graph.Graph) {
	messages := insight.BuildMessages(g)
	if len(messages) == 0 {
		return
	}
	b.WriteString("Insights:\n")
	for _, msg := range messages {
		fmt.Fprintf(b, "  - %s %s\n", severityIcon(msg.Severity), msg.Text)
	}
	b.WriteByte('\n')
}

func drawBar(ratio float64, width int) string {
	if width <= 0 {
		return ""
	}
	clamped := math.Max(0, math.Min(1, ratio))
	fill := int(math.Round(clamped * float64(width)))
	if clamped > 0 && fill == 0 {
		fill = 1
	}
	return strings.Repeat("#", fill) + strings.Repeat("-", width-fill)
}

// applyColor wraps text in a 24-bit foreground color. Named colors such as
// "white" leave the text untouched.
func applyColor(text, hex string) string {
	code := palette.ANSI(hex)
	if code == "" {
		return text
	}
	return code + text + ansiReset
}

func severityIcon(sev insight.Severity) string {
	switch sev {
	case insight.SeverityCritical:
		return "🔥"
	case insight.SeverityWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}
