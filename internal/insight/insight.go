package insight

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mickamy/pgdot/internal/config"
	"github.com/mickamy/pgdot/internal/graph"
	"github.com/mickamy/pgdot/internal/model"
)

// Severity expresses the urgency of an insight message.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// NoNode marks messages that are not about a single node.
const NoNode = -1

// Message represents an actionable observation about a plan.
type Message struct {
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
	NodeID   int      `json:"node_id"`
}

// BuildMessages derives human-readable insight messages for a plan graph.
func BuildMessages(g *graph.Graph) []Message {
	if g == nil || len(g.Nodes) == 0 {
		return nil
	}
	cfg := config.Active().Insights

	var out []Message
	if msg := hotspotMessage(g, cfg); msg != nil {
		out = append(out, *msg)
	}
	if msg := costMessage(g, cfg); msg != nil {
		out = append(out, *msg)
	}
	out = append(out, negativeTimeMessages(g)...)
	if msg := neverExecutedMessage(g); msg != nil {
		out = append(out, *msg)
	}
	out = append(out, triggerMessages(g, cfg)...)

	if cfg.MaxMessages > 0 && len(out) > cfg.MaxMessages {
		out = out[:cfg.MaxMessages]
	}
	return out
}

func hotspotMessage(g *graph.Graph, cfg config.InsightConfig) *Message {
	if g.RootTime == nil || *g.RootTime <= 0 {
		return nil
	}
	hot := -1
	for i, n := range g.Nodes {
		if n.Time == nil || *n.Time <= 0 {
			continue
		}
		if hot < 0 || *n.Time > *g.Nodes[hot].Time {
			hot = i
		}
	}
	if hot < 0 {
		return nil
	}

	node := g.Nodes[hot]
	share := *node.Time / *g.RootTime
	text := fmt.Sprintf("Hot spot: %s self %.2f ms (%.1f%%)", CompactLabel(node), *node.Time, share*100)
	if node.Type == model.TypeSeqScan && share >= cfg.HotspotWarningPercent {
		text += "; consider adding an index or tightening the filter"
	}

	severity := SeverityInfo
	switch {
	case share >= cfg.HotspotCriticalPercent:
		severity = SeverityCritical
	case share >= cfg.HotspotWarningPercent:
		severity = SeverityWarning
	}
	return &Message{Severity: severity, Text: text, NodeID: node.ID}
}

func costMessage(g *graph.Graph, cfg config.InsightConfig) *Message {
	if g.MaxCost <= 0 {
		return nil
	}
	var total float64
	top := 0
	for i, n := range g.Nodes {
		total += n.Cost
		if n.Cost > g.Nodes[top].Cost {
			top = i
		}
	}
	share := g.Nodes[top].Cost / total
	if share < cfg.CostHotspotPercent {
		return nil
	}
	severity := SeverityWarning
	if g.Analyzed() {
		severity = SeverityInfo
	}
	text := fmt.Sprintf("Cost hot spot: %s carries %.1f%% of the estimated cost (self %.2f)",
		CompactLabel(g.Nodes[top]), share*100, g.Nodes[top].Cost)
	return &Message{Severity: severity, Text: text, NodeID: top}
}

func negativeTimeMessages(g *graph.Graph) []Message {
	const limit = 2
	var msgs []Message
	for _, n := range g.Nodes {
		if n.Time == nil || *n.Time >= 0 {
			continue
		}
		text := fmt.Sprintf("Negative self time: %s reports %.2f ms; its children overlap it (measurement noise or shared work)",
			CompactLabel(n), *n.Time)
		msgs = append(msgs, Message{Severity: SeverityInfo, Text: text, NodeID: n.ID})
		if len(msgs) == limit {
			break
		}
	}
	return msgs
}

func neverExecutedMessage(g *graph.Graph) *Message {
	if !g.Analyzed() {
		return nil
	}
	count := 0
	first := NoNode
	for _, n := range g.Nodes {
		if n.Executed {
			continue
		}
		if first == NoNode {
			first = n.ID
		}
		count++
	}
	if count == 0 {
		return nil
	}
	text := fmt.Sprintf("%d plan node(s) never executed, starting at %s", count, CompactLabel(g.Nodes[first]))
	return &Message{Severity: SeverityInfo, Text: text, NodeID: first}
}

func triggerMessages(g *graph.Graph, cfg config.InsightConfig) []Message {
	if g.RootTime == nil || *g.RootTime <= 0 {
		return nil
	}
	var msgs []Message
	for _, t := range g.Triggers {
		share := t.Time / *g.RootTime
		if share < cfg.TriggerWarningPercent {
			continue
		}
		text := fmt.Sprintf("Trigger %s on %s took %.2f ms over %.0f calls (%.1f%% of execution)",
			t.Name, t.Relation, t.Time, t.Calls, share*100)
		msgs = append(msgs, Message{Severity: SeverityWarning, Text: text, NodeID: NoNode})
	}
	return msgs
}

// NodeLabel builds a descriptive label for a plan node.
func NodeLabel(n graph.Node) string {
	if n.Info == "" {
		return n.Type
	}
	return NormalizeWhitespace(n.Type + " " + n.Info)
}

// CompactLabel shortens long labels for inline summaries.
func CompactLabel(n graph.Node) string {
	label := NodeLabel(n)
	if utf8.RuneCountInString(label) > 60 {
		return string([]rune(label)[:57]) + "..."
	}
	return label
}

// AnchorID returns the HTML anchor of a node, matching its DOT node name.
func AnchorID(id int) string {
	return fmt.Sprintf("node%d", id)
}

// NormalizeWhitespace collapses whitespace for use in HTML or text.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
