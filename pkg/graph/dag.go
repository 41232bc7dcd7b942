package graph

import (
	"errors"
	"fmt"
	"iter"

	dgraph "github.com/dominikbraun/graph"
)

func handleHash(id NodeID) NodeID { return id }

// buildDAG projects the live arena onto a dominikbraun graph keyed by
// handle. With preventCycles set, the first edge closing a cycle is reported
// as a StructuralError naming both of its endpoints.
func (g *Graph) buildDAG(preventCycles bool) (dgraph.Graph[NodeID, NodeID], error) {
	traits := []func(*dgraph.Traits){dgraph.Directed()}
	if preventCycles {
		traits = append(traits, dgraph.PreventCycles())
	}
	dg := dgraph.New(handleHash, traits...)

	// Add all vertices first
	for id, e := range g.entries {
		if e.removed {
			continue
		}
		if err := dg.AddVertex(NodeID(id)); err != nil {
			return nil, fmt.Errorf("failed to add vertex %s: %w", Label(e.node), err)
		}
	}

	// Note: In dominikbraun/graph, AddEdge(source, target) means source -> target,
	// which matches the data flow direction of our edges
	for _, e := range g.entries {
		if e.removed {
			continue
		}
		for _, edge := range e.out {
			err := dg.AddEdge(edge.From, edge.To)
			switch {
			case err == nil, errors.Is(err, dgraph.ErrEdgeAlreadyExists):
				// Repeated operands share one projected edge
			case errors.Is(err, dgraph.ErrEdgeCreatesCycle):
				return nil, structuralError("edge closes a cycle", g.entries[edge.From].node, g.entries[edge.To].node)
			default:
				return nil, fmt.Errorf("failed to add edge %s -> %s: %w",
					Label(g.entries[edge.From].node), Label(g.entries[edge.To].node), err)
			}
		}
	}

	return dg, nil
}

// Sorted returns the live nodes in topological order. Every Operation comes
// after its input Variables and before its outputs; independent nodes are
// ordered by handle, which follows insertion order.
func (g *Graph) Sorted() ([]Node, error) {
	dg, err := g.buildDAG(false)
	if err != nil {
		return nil, err
	}

	order, err := dgraph.StableTopologicalSort(dg, func(a, b NodeID) bool { return a < b })
	if err != nil {
		// Rebuild with cycle prevention to name the offending edge
		if _, cerr := g.buildDAG(true); cerr != nil {
			return nil, cerr
		}
		return nil, &StructuralError{Reason: fmt.Sprintf("failed to compute topological order: %v", err)}
	}

	nodes := make([]Node, len(order))
	for i, id := range order {
		nodes[i] = g.entries[id].node
	}
	return nodes, nil
}

// TopologicalOrder returns a lazy sequence over Sorted. The order is
// recomputed each time the sequence is ranged over, so it can be restarted
// and reflects the graph at that moment. A graph that fails to sort yields
// nothing; Validate reports why.
func (g *Graph) TopologicalOrder() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		order, err := g.Sorted()
		if err != nil {
			return
		}
		for _, n := range order {
			if !yield(n) {
				return
			}
		}
	}
}

// HasCycles checks if the graph has any cycles
// This should always return false for graphs built by a recorder, but is provided for completeness
func (g *Graph) HasCycles() bool {
	_, err := g.buildDAG(true)
	return err != nil
}

// FreeVariables returns the Variables with no producer in g: user inputs,
// constants and captured boundary inputs
func (g *Graph) FreeVariables() []*Variable {
	var roots []*Variable
	for _, v := range g.Variables() {
		if g.InDegree(v) == 0 {
			roots = append(roots, v)
		}
	}
	return roots
}

// LeafVariables returns the Variables no operation in g reads
func (g *Graph) LeafVariables() []*Variable {
	var leaves []*Variable
	for _, v := range g.Variables() {
		if g.OutDegree(v) == 0 {
			leaves = append(leaves, v)
		}
	}
	return leaves
}
