package graph

import (
	"errors"
	"fmt"
	"slices"
)

// NewComposite creates an unregistered composite operation over body
func NewComposite(name string, body *Graph, inputs, outputs []*Variable, opts ...NodeOption) *Operation {
	op := &Operation{
		inputs:  append([]*Variable(nil), inputs...),
		outputs: append([]*Variable(nil), outputs...),
		body:    body,
	}
	op.name = name
	for _, opt := range opts {
		opt(&op.nodeBase)
	}
	return op
}

// boundary is the input/output interface of a set of operations
type boundary struct {
	inputs   []*Variable
	outputs  []*Variable
	internal map[*Variable]bool
}

// Collapse moves ops into a fresh child graph owned by a new composite
// operation that takes their place in g. Variables consumed by ops but not
// produced by them become the composite's inputs; Variables produced by ops
// and read outside them, or not read at all, become its outputs. Edges
// inside the set are preserved in the child graph. Every precondition is
// checked before g is modified, so a rejected collapse leaves g untouched;
// a failure while moving nodes drops the partially built child graph.
func (g *Graph) Collapse(name string, ops []*Operation, opts ...NodeOption) (*Operation, error) {
	if err := g.checkMutable(); err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, &StructuralError{Reason: "cannot collapse an empty set of operations"}
	}

	set := make(map[*Operation]bool, len(ops))
	for _, op := range ops {
		if !g.Contains(op) || op.Graph() != g {
			return nil, structuralError(fmt.Sprintf("operation is not part of graph %q", g.name), op)
		}
		if set[op] {
			return nil, structuralError("operation listed twice", op)
		}
		set[op] = true
	}

	// Work in handle order so the boundary is deterministic
	ordered := slices.Clone(ops)
	slices.SortFunc(ordered, func(a, b *Operation) int { return int(a.ID()) - int(b.ID()) })

	b := g.boundaryOf(ordered, set)
	if cyc := g.reachesInputs(b, set); cyc != nil {
		return nil, structuralError("collapse would create a cycle through "+Label(cyc), cyc)
	}

	child, err := g.NewChild(name)
	if err != nil {
		return nil, err
	}
	composite, err := g.collapseInto(child, name, ordered, set, b, opts)
	if err != nil {
		if derr := g.DiscardChild(child); derr != nil {
			return nil, errors.Join(err, derr)
		}
		return nil, err
	}
	child.Seal()
	return composite, nil
}

// collapseInto moves the operations of set and their internal variables
// into child and attaches the composite built over it
func (g *Graph) collapseInto(child *Graph, name string, ordered []*Operation, set map[*Operation]bool,
	b boundary, opts []NodeOption) (*Operation, error) {
	for _, in := range b.inputs {
		if _, err := child.Capture(in); err != nil {
			return nil, fmt.Errorf("capture boundary input: %w", err)
		}
	}

	outputs := make(map[*Variable]bool, len(b.outputs))
	for _, out := range b.outputs {
		outputs[out] = true
	}

	// Move ops and their internal variables in handle order
	for _, e := range slices.Clone(g.entries) {
		if e.removed {
			continue
		}
		switch n := e.node.(type) {
		case *Operation:
			if !set[n] {
				continue
			}
			g.remove(n)
			n.owner = nil
			if _, err := child.AddNode(n); err != nil {
				return nil, err
			}
			if n.body != nil {
				g.reparent(n.body, child)
			}
		case *Variable:
			switch {
			case outputs[n]:
				child.insertExported(n)
			case b.internal[n]:
				g.remove(n)
				n.owner = nil
				if _, err := child.AddNode(n); err != nil {
					return nil, err
				}
			}
		}
	}

	for _, op := range ordered {
		if err := child.wire(op); err != nil {
			return nil, err
		}
	}

	composite := NewComposite(name, child, b.inputs, b.outputs, opts...)
	if err := g.attach(composite); err != nil {
		return nil, err
	}
	return composite, nil
}

// boundaryOf computes the inputs, outputs and internal variables of a set
// of operations of g
func (g *Graph) boundaryOf(ordered []*Operation, set map[*Operation]bool) boundary {
	produced := make(map[*Variable]bool)
	for _, op := range ordered {
		for _, out := range op.outputs {
			produced[out] = true
		}
	}

	b := boundary{internal: make(map[*Variable]bool)}
	seen := make(map[*Variable]bool)
	for _, op := range ordered {
		for _, in := range op.inputs {
			if produced[in] || seen[in] {
				continue
			}
			seen[in] = true
			b.inputs = append(b.inputs, in)
		}
	}

	for _, op := range ordered {
		for _, out := range op.outputs {
			external := g.OutDegree(out) == 0
			for _, consumer := range g.Consumers(out) {
				if !set[consumer] {
					external = true
					break
				}
			}
			if external {
				b.outputs = append(b.outputs, out)
			} else {
				b.internal[out] = true
			}
		}
	}
	return b
}

// reachesInputs reports an outside operation through which a boundary
// output flows back into a boundary input, or nil when the collapse keeps g
// acyclic
func (g *Graph) reachesInputs(b boundary, set map[*Operation]bool) Node {
	inputs := make(map[*Variable]bool, len(b.inputs))
	for _, in := range b.inputs {
		inputs[in] = true
	}

	visited := make(map[*Operation]bool)
	var visit func(v *Variable) Node
	visit = func(v *Variable) Node {
		for _, consumer := range g.Consumers(v) {
			if set[consumer] || visited[consumer] {
				continue
			}
			visited[consumer] = true
			for _, out := range consumer.outputs {
				if inputs[out] {
					return consumer
				}
				if n := visit(out); n != nil {
					return n
				}
			}
		}
		return nil
	}

	for _, out := range b.outputs {
		if n := visit(out); n != nil {
			return n
		}
	}
	return nil
}

// reparent moves a subgraph of g under a new parent
func (g *Graph) reparent(sub, parent *Graph) {
	g.children = slices.DeleteFunc(g.children, func(c *Graph) bool { return c == sub })
	sub.parent = parent
	parent.children = append(parent.children, sub)
}

// insertExported registers v, owned by the parent, as a boundary output of g
func (g *Graph) insertExported(v *Variable) {
	if id, found := g.index[v]; found {
		g.entries[id].exported = true
		return
	}
	id := g.insert(v, false)
	g.entries[id].exported = true
}

// wire adds the edges of op to its declared inputs and outputs
func (g *Graph) wire(op *Operation) error {
	for slot, in := range op.inputs {
		if err := g.AddEdge(in, op, slot); err != nil {
			return err
		}
	}
	for slot, out := range op.outputs {
		if err := g.AddEdge(op, out, slot); err != nil {
			return err
		}
	}
	return nil
}

// attach registers a composite operation built over a child of g together
// with its boundary: inputs are captured if needed, outputs are owned by g.
func (g *Graph) attach(composite *Operation) error {
	for _, in := range composite.inputs {
		if _, err := g.Capture(in); err != nil {
			return err
		}
	}
	if _, err := g.AddNode(composite); err != nil {
		return err
	}
	for _, out := range composite.outputs {
		if g.Contains(out) {
			continue
		}
		if _, err := g.AddNode(out); err != nil {
			return err
		}
	}
	composite.body.composite = composite
	return g.wire(composite)
}

// AttachComposite closes body, a subgraph of g recorded in its own scope,
// into a composite operation of g with the declared boundary. Every variable
// the body captured must be a declared input, and every declared output must
// have been created in the body. On error g is left untouched and body stays
// open.
func (g *Graph) AttachComposite(name string, body *Graph, inputs, outputs []*Variable, opts ...NodeOption) (*Operation, error) {
	if err := g.checkMutable(); err != nil {
		return nil, err
	}
	if body == nil || body.parent != g {
		return nil, &StructuralError{Nodes: []string{name}, Reason: fmt.Sprintf("body is not a subgraph of %q", g.name)}
	}
	if body.composite != nil {
		return nil, structuralError("body already belongs to a composite", body.composite)
	}

	declared := make(map[*Variable]bool, len(inputs))
	for _, in := range inputs {
		if declared[in] {
			return nil, structuralError("input declared twice", in)
		}
		declared[in] = true
		if err := g.CanReference(in); err != nil {
			return nil, err
		}
	}
	for _, captured := range body.Captured() {
		if !declared[captured] {
			return nil, structuralError("subgraph reads a variable that is not a declared input", captured)
		}
	}

	exported := make(map[*Variable]bool, len(outputs))
	for _, out := range outputs {
		if exported[out] {
			return nil, structuralError("output declared twice", out)
		}
		exported[out] = true
		if out.Graph() != body {
			return nil, structuralError(fmt.Sprintf("output was not created in subgraph %q", body.name), out)
		}
	}

	for _, in := range inputs {
		if _, err := body.Capture(in); err != nil {
			return nil, err
		}
	}
	for _, out := range outputs {
		body.insertExported(out)
		out.owner = nil
	}

	composite := NewComposite(name, body, inputs, outputs, opts...)
	if err := g.attach(composite); err != nil {
		return nil, err
	}
	body.Seal()
	return composite, nil
}
