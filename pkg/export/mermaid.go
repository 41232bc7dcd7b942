package export

import (
	"fmt"
	"strings"

	"github.com/chazu/compgraph/pkg/graph"
)

// Mermaid renders g and its subgraphs as a Mermaid flowchart. Each
// composite body becomes a subgraph block nested where its composite
// operation lives; captured inputs link across blocks.
func Mermaid(g *graph.Graph) (string, error) {
	if g == nil {
		return "", fmt.Errorf("graph cannot be nil")
	}

	m := &mermaid{ids: make(map[graph.Node]string)}
	m.sb.WriteString("graph TD\n")
	m.writeNodes(g, "  ")
	m.writeEdges(g)
	return m.sb.String(), nil
}

type mermaid struct {
	sb       strings.Builder
	ids      map[graph.Node]string
	clusters int
}

// id returns the alphanumeric Mermaid identifier of n
func (m *mermaid) id(n graph.Node) string {
	if id, ok := m.ids[n]; ok {
		return id
	}
	id := fmt.Sprintf("N%d", len(m.ids))
	m.ids[n] = id
	return id
}

// writeNodes emits the nodes owned by g, then the body of each composite
// as a nested block
func (m *mermaid) writeNodes(g *graph.Graph, indent string) {
	for _, n := range g.Nodes() {
		if n.Graph() != g {
			continue
		}
		switch n := n.(type) {
		case *graph.Variable:
			fmt.Fprintf(&m.sb, "%s%s([\"%s %s\"])\n", indent, m.id(n), escape(graph.Label(n)), n.Shape())
		case *graph.Operation:
			if n.IsComposite() {
				fmt.Fprintf(&m.sb, "%s%s[[\"%s\"]]\n", indent, m.id(n), escape(graph.Label(n)))
				continue
			}
			fmt.Fprintf(&m.sb, "%s%s[\"%s\"]\n", indent, m.id(n), escape(graph.Label(n)))
		}
	}

	for _, op := range g.Operations() {
		if !op.IsComposite() || op.Graph() != g {
			continue
		}
		m.clusters++
		fmt.Fprintf(&m.sb, "%ssubgraph C%d[\"%s\"]\n", indent, m.clusters, escape(op.Body().Name()))
		m.writeNodes(op.Body(), indent+"  ")
		fmt.Fprintf(&m.sb, "%send\n", indent)
	}
}

// writeEdges emits the edges of g and of every nested body. Reads of
// captured inputs are dotted.
func (m *mermaid) writeEdges(g *graph.Graph) {
	_ = g.Walk(func(sub *graph.Graph) error {
		for _, n := range sub.Nodes() {
			for _, e := range sub.OutEdges(n) {
				to, ok := sub.Node(e.To)
				if !ok {
					continue
				}
				arrow := "-->"
				if n.Graph() != sub {
					arrow = "-.->"
				}
				fmt.Fprintf(&m.sb, "  %s %s %s\n", m.id(n), arrow, m.id(to))
			}
		}
		return nil
	})
}

func escape(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
