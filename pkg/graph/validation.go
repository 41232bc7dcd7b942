package graph

import (
	"fmt"
)

// Validate checks the structural invariants of g: every edge connects a
// Variable and an Operation, every Variable has at most one producer, every
// Operation's edges match its declared inputs and outputs, and the graph is
// acyclic. Violations are reported as a StructuralError.
func (g *Graph) Validate() error {
	for _, e := range g.entries {
		if e.removed {
			continue
		}

		for _, edge := range e.out {
			other := g.entries[edge.To].node
			if other.Kind() == e.node.Kind() {
				return structuralError(fmt.Sprintf("edge connects two %ss", other.Kind()), e.node, other)
			}
		}

		switch {
		case e.exported:
			if !g.parent.passesUp(e.node) {
				return structuralError(fmt.Sprintf("exported node of %q is not owned or exported by its parent", g.name), e.node)
			}
		case !e.captured && e.node.Graph() != g:
			return structuralError(fmt.Sprintf("node registered in %q but owned elsewhere", g.name), e.node)
		}

		switch n := e.node.(type) {
		case *Variable:
			if err := g.validateVariable(n, e); err != nil {
				return err
			}
		case *Operation:
			if err := g.validateOperation(n, e); err != nil {
				return err
			}
		}
	}

	// Check for cycles
	if _, err := g.buildDAG(true); err != nil {
		return err
	}

	return nil
}

// passesUp reports whether g owns n or exports it in turn. A body nested by
// a later collapse exports through every enclosing body up to the owner.
func (g *Graph) passesUp(n Node) bool {
	if g == nil {
		return false
	}
	if n.Graph() == g {
		return true
	}
	id, found := g.index[n]
	return found && g.entries[id].exported
}

func (g *Graph) validateVariable(v *Variable, e *entry) error {
	if len(e.in) > 1 {
		nodes := []Node{v}
		for _, in := range e.in {
			nodes = append(nodes, g.entries[in.From].node)
		}
		return structuralError(fmt.Sprintf("variable has %d producers", len(e.in)), nodes...)
	}
	if e.captured && len(e.in) > 0 {
		return structuralError("captured variable is produced inside the subgraph", v)
	}
	if v.Value() != nil && len(v.Value()) != v.shape.Size() {
		return structuralError(fmt.Sprintf("value size %d does not match shape %s", len(v.Value()), v.shape), v)
	}
	return nil
}

func (g *Graph) validateOperation(op *Operation, e *entry) error {
	if len(e.in) != len(op.inputs) {
		return structuralError(fmt.Sprintf("operation declares %d inputs but has %d incoming edges",
			len(op.inputs), len(e.in)), op)
	}
	for _, in := range e.in {
		if in.Slot < 0 || in.Slot >= len(op.inputs) || g.entries[in.From].node != op.inputs[in.Slot] {
			return structuralError(fmt.Sprintf("incoming edge at slot %d does not match declared input", in.Slot),
				op, g.entries[in.From].node)
		}
	}

	if len(e.out) != len(op.outputs) {
		return structuralError(fmt.Sprintf("operation declares %d outputs but has %d outgoing edges",
			len(op.outputs), len(e.out)), op)
	}
	for _, out := range e.out {
		if out.Slot < 0 || out.Slot >= len(op.outputs) || g.entries[out.To].node != op.outputs[out.Slot] {
			return structuralError(fmt.Sprintf("outgoing edge at slot %d does not match declared output", out.Slot),
				op, g.entries[out.To].node)
		}
	}

	if op.body != nil {
		if op.body.parent != g {
			return structuralError(fmt.Sprintf("composite body %q is not a child of %q", op.body.name, g.name), op)
		}
		if op.body.composite != op {
			return structuralError(fmt.Sprintf("composite body %q is owned by another operation", op.body.name), op)
		}
	}

	return nil
}

// ValidateTree validates g and every nested subgraph
func (g *Graph) ValidateTree() error {
	return g.Walk(func(sub *Graph) error {
		if err := sub.Validate(); err != nil {
			return fmt.Errorf("subgraph %q: %w", sub.name, err)
		}
		return nil
	})
}
