// Package export renders recorded graphs for people: Graphviz DOT for a
// single graph and Mermaid for a whole subgraph tree.
package export

import (
	"errors"
	"fmt"
	"io"

	dgraph "github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"

	"github.com/chazu/compgraph/pkg/graph"
)

// DOT writes g as a Graphviz digraph. Variables are drawn as ellipses and
// operations as boxes; composite operations are double boxes labeled with
// the size of their body. Nested bodies are not expanded.
func DOT(w io.Writer, g *graph.Graph) error {
	if g == nil {
		return fmt.Errorf("graph cannot be nil")
	}

	dg := dgraph.New(func(id graph.NodeID) graph.NodeID { return id }, dgraph.Directed())

	for _, n := range g.Nodes() {
		id, _ := g.Handle(n)
		attrs := vertexAttributes(g, n)
		opts := make([]func(*dgraph.VertexProperties), 0, len(attrs))
		for _, kv := range attrs {
			opts = append(opts, dgraph.VertexAttribute(kv[0], kv[1]))
		}
		if err := dg.AddVertex(id, opts...); err != nil {
			return fmt.Errorf("failed to add vertex %s: %w", graph.Label(n), err)
		}
	}

	for _, n := range g.Nodes() {
		for _, e := range g.OutEdges(n) {
			err := dg.AddEdge(e.From, e.To, dgraph.EdgeAttribute("label", fmt.Sprint(e.Slot)))
			if err != nil && !errors.Is(err, dgraph.ErrEdgeAlreadyExists) {
				return fmt.Errorf("failed to add edge %d -> %d: %w", e.From, e.To, err)
			}
		}
	}

	return draw.DOT(dg, w, draw.GraphAttribute("label", g.Name()))
}

func vertexAttributes(g *graph.Graph, n graph.Node) [][2]string {
	switch n := n.(type) {
	case *graph.Variable:
		attrs := [][2]string{
			{"label", fmt.Sprintf("%s %s", graph.Label(n), n.Shape())},
			{"shape", "ellipse"},
		}
		if g.IsCaptured(n) {
			attrs = append(attrs, [2]string{"style", "dashed"})
		}
		return attrs
	case *graph.Operation:
		if n.IsComposite() {
			return [][2]string{
				{"label", fmt.Sprintf("%s [%d nodes]", graph.Label(n), n.Body().NodeCount())},
				{"shape", "box"},
				{"peripheries", "2"},
			}
		}
		return [][2]string{
			{"label", graph.Label(n)},
			{"shape", "box"},
		}
	}
	return nil
}
