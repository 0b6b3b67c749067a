package local

import (
	"fmt"
	"strings"
)

type GraphNode struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Version    string `json:"version,omitempty"`
	State      string `json:"state"`
	Attachment bool   `json:"attachment,omitempty"`
}

// GraphEdge means "From is wired to To" (a requirement or an attachment host).
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Graph struct {
	Nodes      []GraphNode `json:"nodes"`
	Edges      []GraphEdge `json:"edges"`
	StartOrder []string    `json:"startOrder"`
}

func newGraph(live []*Module, w wiring) Graph {
	g := Graph{
		Nodes: make([]GraphNode, 0, len(live)),
	}
	for _, m := range live {
		g.Nodes = append(g.Nodes, GraphNode{
			ID:         m.ID(),
			Name:       m.Name(),
			Version:    m.Version(),
			State:      m.State().String(),
			Attachment: m.IsAttachment(),
		})
	}
	for _, m := range w.order {
		for _, dep := range w.deps[m] {
			g.Edges = append(g.Edges, GraphEdge{From: m.ID(), To: dep.ID()})
		}
		if !m.IsAttachment() && w.resolvable(m) {
			g.StartOrder = append(g.StartOrder, m.ID())
		}
	}
	return g
}

// DOT exports Graphviz DOT text.
func (g Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph modules {\n")
	b.WriteString("  rankdir=LR;\n")

	aliases := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		alias := fmt.Sprintf("n%d", i)
		aliases[n.ID] = alias
		label := escapeDOT(nodeLabel(n))
		style := ""
		if n.Attachment {
			style = ", style=dashed"
		}
		b.WriteString(fmt.Sprintf("  %s [label=\"%s\\n(%s)\"%s];\n", alias, label, n.State, style))
	}
	for _, e := range g.Edges {
		from, okFrom := aliases[e.From]
		to, okTo := aliases[e.To]
		if !okFrom || !okTo {
			continue
		}
		b.WriteString(fmt.Sprintf("  %s -> %s;\n", from, to))
	}
	b.WriteString("}\n")
	return b.String()
}

// Mermaid exports Mermaid graph text.
func (g Graph) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	aliases := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		alias := fmt.Sprintf("n%d", i)
		aliases[n.ID] = alias
		label := escapeMermaid(nodeLabel(n)) + "<br/>(" + n.State + ")"
		b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", alias, label))
	}
	for _, e := range g.Edges {
		from, okFrom := aliases[e.From]
		to, okTo := aliases[e.To]
		if !okFrom || !okTo {
			continue
		}
		arrow := "-->"
		if g.nodeByID(e.From).Attachment {
			arrow = "-.->"
		}
		b.WriteString(fmt.Sprintf("    %s %s %s\n", from, arrow, to))
	}
	return b.String()
}

func (g Graph) nodeByID(id string) GraphNode {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return GraphNode{}
}

func nodeLabel(n GraphNode) string {
	name := n.Name
	if name == "" {
		name = n.ID
	}
	if n.Version != "" {
		name += " " + n.Version
	}
	return name
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}

func escapeMermaid(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
