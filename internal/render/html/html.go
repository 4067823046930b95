package html

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"math"

	"github.com/mickamy/pgdot/internal/errs"
	"github.com/mickamy/pgdot/internal/graph"
	"github.com/mickamy/pgdot/internal/insight"
	"github.com/mickamy/pgdot/internal/palette"
)

// Options configures the HTML renderer.
type Options struct {
	Title         string
	IncludeStyles bool
	// SVG is an already rendered image of the graph, embedded verbatim.
	SVG []byte
}

var reportTpl = template.Must(template.New("report").Parse(reportTemplate))

// Render writes an HTML report with a plan summary, insights and the annotated tree.
func Render(w io.Writer, g *graph.Graph, opts Options) error {
	if g == nil || len(g.Nodes) == 0 {
		return errs.New(errs.CodeRenderFailed, "html render: empty graph")
	}
	if opts.Title == "" {
		opts.Title = "pgdot report"
	}
	if err := reportTpl.Execute(w, buildTemplateData(g, opts)); err != nil {
		return errs.Wrap(err, errs.CodeRenderFailed, "html render: execute template")
	}
	return nil
}

type templateData struct {
	Title         string
	IncludeStyles bool
	Summary       summaryView
	Insights      []insightView
	Clusters      []clusterView
	SVG           template.HTML
	Root          *nodeView
}

type summaryView struct {
	ExecutionTime string
	PlanningTime  string
	NodeCount     int
	ClusterCount  int
	MaxCost       string
}

type insightView struct {
	Icon     string
	Severity string
	Text     string
	Anchor   string
}

type clusterView struct {
	Label   string
	Members int
	Anchor  string
}

type nodeView struct {
	Label    string
	Anchor   string
	Time     string
	TimeBand string
	Cost     string
	Swatch   string
	Width    float64
	Rows     string
	Workers  int
	Cluster  string
	Muted    bool
	Children []*nodeView
}

func buildTemplateData(g *graph.Graph, opts Options) templateData {
	messages := insight.BuildMessages(g)
	insights := make([]insightView, 0, len(messages))
	for _, msg := range messages {
		view := insightView{
			Icon:     severityIcon(msg.Severity),
			Severity: string(msg.Severity),
			Text:     msg.Text,
		}
		if msg.NodeID != insight.NoNode {
			view.Anchor = insight.AnchorID(msg.NodeID)
		}
		insights = append(insights, view)
	}

	clusters := make([]clusterView, 0, len(g.Clusters))
	for _, c := range g.Clusters {
		clusters = append(clusters, clusterView{
			Label:   c.Label,
			Members: len(c.Members),
			Anchor:  insight.AnchorID(c.Members[0]),
		})
	}

	summary := summaryView{
		ExecutionTime: "not analyzed",
		PlanningTime:  "n/a",
		NodeCount:     len(g.Nodes),
		ClusterCount:  len(g.Clusters),
		MaxCost:       fmt.Sprintf("%.2f", g.MaxCost),
	}
	if g.RootTime != nil {
		summary.ExecutionTime = fmt.Sprintf("%.3f ms", *g.RootTime)
	}
	if g.PlanningTime != nil {
		summary.PlanningTime = fmt.Sprintf("%.3f ms", *g.PlanningTime)
	}

	return templateData{
		Title:         opts.Title,
		IncludeStyles: opts.IncludeStyles,
		Summary:       summary,
		Insights:      insights,
		Clusters:      clusters,
		SVG:           inlineSVG(opts.SVG),
		Root:          buildNodeView(g, 0),
	}
}

// inlineSVG drops the XML prolog and doctype Graphviz puts before the <svg> element.
// The document comes from our own Graphviz rendering of escaped labels.
func inlineSVG(svg []byte) template.HTML {
	if i := bytes.Index(svg, []byte("<svg")); i > 0 {
		svg = svg[i:]
	}
	return template.HTML(svg) //nolint:gosec
}

func buildNodeView(g *graph.Graph, id int) *nodeView {
	n := g.Nodes[id]
	share := g.CostPercent(n)
	view := &nodeView{
		Label:   insight.NodeLabel(n),
		Anchor:  insight.AnchorID(n.ID),
		Cost:    fmt.Sprintf("cost %.2f (%.1f%%)", n.Cost, share*100),
		Swatch:  palette.CostColor(share),
		Width:   math.Min(100, math.Max(0, share*100)),
		Rows:    fmt.Sprintf("rows %.0f", n.Rows),
		Workers: n.Workers,
		Cluster: n.Cluster,
		Muted:   !n.Executed,
	}
	view.Time, view.TimeBand = formatTime(g, n)
	for _, child := range g.Children(id) {
		view.Children = append(view.Children, buildNodeView(g, child))
	}
	return view
}

func formatTime(g *graph.Graph, n graph.Node) (string, string) {
	if !n.Executed {
		return "never executed", ""
	}
	if n.Time == nil {
		return "", ""
	}
	text := fmt.Sprintf("self %.2f ms", *n.Time)
	p, ok := g.TimePercent(n)
	if !ok {
		return text, ""
	}
	return fmt.Sprintf("%s · %d%%", text, p), palette.DurationColor(float64(p))
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

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<title>{{.Title}}</title>
	{{- if .IncludeStyles }}
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif; margin: 0; background: #f4f5f7; color: #1f2430; }
		header { background: #1f2a44; color: #f4f5f7; padding: 28px 24px; }
		header h1 { margin: 0 0 6px; font-size: 26px; }
		main { max-width: 1080px; margin: 0 auto; padding: 28px 24px 48px; }
		section { margin-top: 28px; }
		.tiles { display: grid; grid-template-columns: repeat(auto-fit, minmax(170px, 1fr)); gap: 12px; }
		.tile { background: #fff; border-radius: 10px; padding: 14px 16px; box-shadow: 0 4px 14px rgba(15,30,45,0.10); }
		.tile strong { display: block; font-size: 12px; text-transform: uppercase; color: #5d6b82; margin-bottom: 4px; }
		.tile span { font-size: 18px; font-weight: 600; }
		.insights { list-style: none; padding: 0; margin: 0; }
		.insights li { background: #fff; border-radius: 10px; padding: 12px 14px; margin-bottom: 8px; border-left: 4px solid #c8ccd4; }
		.insights li.severity-critical { border-left-color: #880000; }
		.insights li.severity-warning { border-left-color: #ee8800; }
		.insights a { color: inherit; }
		.graph { background: #fff; border-radius: 10px; padding: 12px; overflow: auto; }
		.tree, .tree ul { list-style: none; margin: 0; padding: 0; }
		.tree ul { margin-left: 22px; padding-left: 16px; border-left: 1px dashed #c8ccd4; }
		.node { background: #fff; border-radius: 10px; padding: 12px 14px; margin: 8px 0; box-shadow: 0 3px 10px rgba(15,30,45,0.08); }
		.node.muted { color: #8a93a3; box-shadow: none; border: 1px solid #d5d9e0; }
		.node-head { display: flex; justify-content: space-between; gap: 12px; }
		.node-label { font-weight: 600; }
		.node-time { padding: 0 6px; border-radius: 4px; }
		.swatch { display: inline-block; width: 10px; height: 10px; border-radius: 2px; margin-right: 6px; }
		.bar { margin-top: 8px; height: 6px; border-radius: 3px; background: #eceef2; overflow: hidden; }
		.bar span { display: block; height: 100%; }
		.meta { margin-top: 8px; font-size: 13px; color: #4a566b; display: flex; flex-wrap: wrap; gap: 10px 16px; }
		.cluster { background: #d3d3d3; border-radius: 4px; padding: 0 6px; }
	</style>
	{{- end }}
</head>
<body>
	<header>
		<h1>{{.Title}}</h1>
		<p>Execution {{.Summary.ExecutionTime}} · Planning {{.Summary.PlanningTime}}</p>
	</header>
	<main>
		<section>
			<h2>Summary</h2>
			<div class="tiles">
				<div class="tile"><strong>Execution time</strong><span>{{.Summary.ExecutionTime}}</span></div>
				<div class="tile"><strong>Planning time</strong><span>{{.Summary.PlanningTime}}</span></div>
				<div class="tile"><strong>Plan nodes</strong><span>{{.Summary.NodeCount}}</span></div>
				<div class="tile"><strong>Clusters</strong><span>{{.Summary.ClusterCount}}</span></div>
				<div class="tile"><strong>Max self cost</strong><span>{{.Summary.MaxCost}}</span></div>
			</div>
		</section>

		{{- if .Insights }}
		<section>
			<h2>Insights</h2>
			<ul class="insights">
				{{- range .Insights }}
				<li class="severity-{{.Severity}}">{{.Icon}} {{if .Anchor}}<a href="#{{.Anchor}}">{{.Text}}</a>{{else}}{{.Text}}{{end}}</li>
				{{- end }}
			</ul>
		</section>
		{{- end }}

		{{- if .Clusters }}
		<section>
			<h2>Sub-plans</h2>
			<ul class="insights">
				{{- range .Clusters }}
				<li><a href="#{{.Anchor}}">{{.Label}}</a> · {{.Members}} node(s)</li>
				{{- end }}
			</ul>
		</section>
		{{- end }}

		{{- if .SVG }}
		<section>
			<h2>Graph</h2>
			<div class="graph">{{.SVG}}</div>
		</section>
		{{- end }}

		<section>
			<h2>Plan Tree</h2>
			<ul class="tree">
				{{ template "node" .Root }}
			</ul>
		</section>
	</main>

	{{ define "node" }}
	<li>
		<div class="node{{if .Muted}} muted{{end}}" id="{{.Anchor}}">
			<div class="node-head">
				<span class="node-label">{{.Label}}</span>
				{{- if .Time }}<span class="node-time"{{if .TimeBand}} style="background: {{.TimeBand}};"{{end}}>{{.Time}}</span>{{- end }}
			</div>
			<div class="bar"><span style="width: {{printf "%.2f" .Width}}%; background: {{.Swatch}};"></span></div>
			<div class="meta">
				<span><span class="swatch" style="background: {{.Swatch}};"></span>{{.Cost}}</span>
				<span>{{.Rows}}</span>
				{{- if .Workers }}<span>workers {{.Workers}}</span>{{- end }}
				{{- if .Cluster }}<span class="cluster">{{.Cluster}}</span>{{- end }}
			</div>
		</div>
		{{- if .Children }}
		<ul>
			{{- range .Children }}
				{{ template "node" . }}
			{{- end }}
		</ul>
		{{- end }}
	</li>
	{{ end }}
</body>
</html>
`
