package graph

import (
	"fmt"
	"slices"
)

// Edge connects a Variable and an Operation. Slot is the argument position
// for Variable to Operation edges and the result position for Operation to
// Variable edges.
type Edge struct {
	From NodeID `json:"from"`
	To   NodeID `json:"to"`
	Slot int    `json:"slot"`
}

type entry struct {
	node     Node
	in       []Edge
	out      []Edge
	captured bool
	exported bool
	removed  bool
}

// Graph is a bipartite DAG of Variables and Operations stored in an arena.
// A Graph is not safe for concurrent mutation; the recorder that owns it
// serializes construction. Once sealed it is read-only.
type Graph struct {
	name      string
	parent    *Graph
	children  []*Graph
	composite *Operation

	entries []*entry
	index   map[Node]NodeID
	sealed  bool
}

// New creates an empty root graph
func New(name string) *Graph {
	return &Graph{
		name:  name,
		index: make(map[Node]NodeID),
	}
}

// NewChild creates an empty subgraph of g
func (g *Graph) NewChild(name string) (*Graph, error) {
	if g.sealed {
		return nil, &StructuralError{Nodes: []string{g.name}, Reason: "graph is sealed"}
	}
	child := New(name)
	child.parent = g
	g.children = append(g.children, child)
	return child, nil
}

// DiscardChild drops an open subgraph of g that never became the body of a
// composite
func (g *Graph) DiscardChild(child *Graph) error {
	if child == nil || child.parent != g {
		return &StructuralError{Reason: fmt.Sprintf("not a subgraph of %q", g.name)}
	}
	if child.composite != nil {
		return structuralError("subgraph is the body of a composite", child.composite)
	}
	g.children = slices.DeleteFunc(g.children, func(c *Graph) bool { return c == child })
	child.parent = nil
	child.sealed = true
	return nil
}

// Name returns the graph's label
func (g *Graph) Name() string { return g.name }

// Parent returns the enclosing graph, nil for the root
func (g *Graph) Parent() *Graph { return g.parent }

// Children returns the nested subgraphs in creation order
func (g *Graph) Children() []*Graph {
	return append([]*Graph(nil), g.children...)
}

// Composite returns the operation whose body this graph is, if any
func (g *Graph) Composite() *Operation { return g.composite }

// Root walks up to the root of the subgraph tree
func (g *Graph) Root() *Graph {
	for g.parent != nil {
		g = g.parent
	}
	return g
}

// Depth is the number of ancestors of g
func (g *Graph) Depth() int {
	d := 0
	for p := g.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// IsAncestorOf reports whether g strictly encloses other
func (g *Graph) IsAncestorOf(other *Graph) bool {
	if other == nil {
		return false
	}
	for p := other.parent; p != nil; p = p.parent {
		if p == g {
			return true
		}
	}
	return false
}

// Sealed reports whether the graph has been finalized
func (g *Graph) Sealed() bool { return g.sealed }

// Seal finalizes the graph; further mutation fails
func (g *Graph) Seal() { g.sealed = true }

// Unseal reopens a finalized graph for a restarted recording
func (g *Graph) Unseal() { g.sealed = false }

// Walk visits g and its subgraphs in pre-order
func (g *Graph) Walk(fn func(*Graph) error) error {
	if err := fn(g); err != nil {
		return err
	}
	for _, c := range g.children {
		if err := c.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) checkMutable() error {
	if g.sealed {
		return &StructuralError{Nodes: []string{g.name}, Reason: "graph is sealed"}
	}
	return nil
}

// AddNode registers a node created for this graph and assigns its handle.
// It is used by the recorder; end users never call it directly.
func (g *Graph) AddNode(n Node) (NodeID, error) {
	if err := g.checkMutable(); err != nil {
		return 0, err
	}
	if _, found := g.index[n]; found {
		return 0, structuralError("node already registered", n)
	}
	b := n.base()
	if b.owner != nil && b.owner != g {
		return 0, structuralError(fmt.Sprintf("node is owned by graph %q", b.owner.name), n)
	}
	id := g.insert(n, false)
	b.owner = g
	b.id = id
	return id, nil
}

// Capture registers a Variable owned by an ancestor graph as a boundary input
// of g. Variables of sibling or unrelated graphs are rejected.
func (g *Graph) Capture(v *Variable) (NodeID, error) {
	if id, found := g.Handle(v); found {
		return id, nil
	}
	if err := g.CanReference(v); err != nil {
		return 0, err
	}
	if err := g.checkMutable(); err != nil {
		return 0, err
	}
	return g.insert(v, true), nil
}

// CanReference reports whether an operation recorded in g may read v: v
// must live in g or be owned by one of g's ancestors.
func (g *Graph) CanReference(v *Variable) error {
	if g.Contains(v) {
		return nil
	}
	owner := v.Graph()
	if owner == nil {
		return structuralError("variable is not registered in any graph", v)
	}
	if !owner.IsAncestorOf(g) {
		return structuralError(
			fmt.Sprintf("variable belongs to graph %q which is neither %q nor an ancestor", owner.name, g.name), v)
	}
	return nil
}

func (g *Graph) insert(n Node, captured bool) NodeID {
	id := NodeID(len(g.entries))
	g.entries = append(g.entries, &entry{node: n, captured: captured})
	g.index[n] = id
	return id
}

// AddEdge wires from to to at the given slot. Edges must connect a Variable
// and an Operation, and a Variable may have at most one producer.
func (g *Graph) AddEdge(from, to Node, slot int) error {
	if err := g.checkMutable(); err != nil {
		return err
	}
	fid, ok := g.Handle(from)
	if !ok {
		return structuralError("edge source is not in graph "+g.name, from)
	}
	tid, ok := g.Handle(to)
	if !ok {
		return structuralError("edge target is not in graph "+g.name, to)
	}
	if from.Kind() == to.Kind() {
		return structuralError(fmt.Sprintf("edge would connect two %ss", from.Kind()), from, to)
	}
	target := g.entries[tid]
	if to.Kind() == KindVariable && len(target.in) > 0 {
		producer := g.entries[target.in[0].From].node
		return structuralError("variable already produced by "+Label(producer), to, from)
	}
	e := Edge{From: fid, To: tid, Slot: slot}
	g.entries[fid].out = append(g.entries[fid].out, e)
	target.in = append(target.in, e)
	return nil
}

// Handle returns the handle of n in g
func (g *Graph) Handle(n Node) (NodeID, bool) {
	id, found := g.index[n]
	return id, found
}

// Contains reports whether n is registered in g, owned or captured
func (g *Graph) Contains(n Node) bool {
	_, found := g.index[n]
	return found
}

// Node returns the node behind a handle
func (g *Graph) Node(id NodeID) (Node, bool) {
	if id < 0 || int(id) >= len(g.entries) || g.entries[id].removed {
		return nil, false
	}
	return g.entries[id].node, true
}

// Nodes returns the live nodes in insertion order
func (g *Graph) Nodes() []Node {
	nodes := make([]Node, 0, len(g.index))
	for _, e := range g.entries {
		if !e.removed {
			nodes = append(nodes, e.node)
		}
	}
	return nodes
}

// Variables returns the live Variables in insertion order, captured ones
// included
func (g *Graph) Variables() []*Variable {
	var vars []*Variable
	for _, e := range g.entries {
		if v, ok := e.node.(*Variable); ok && !e.removed {
			vars = append(vars, v)
		}
	}
	return vars
}

// Operations returns the live Operations in insertion order
func (g *Graph) Operations() []*Operation {
	var ops []*Operation
	for _, e := range g.entries {
		if op, ok := e.node.(*Operation); ok && !e.removed {
			ops = append(ops, op)
		}
	}
	return ops
}

// Captured returns the Variables g reads from its ancestors
func (g *Graph) Captured() []*Variable {
	var vars []*Variable
	for _, e := range g.entries {
		if e.captured && !e.removed {
			vars = append(vars, e.node.(*Variable))
		}
	}
	return vars
}

// IsCaptured reports whether v is a boundary input of g
func (g *Graph) IsCaptured(v *Variable) bool {
	id, found := g.index[v]
	return found && g.entries[id].captured
}

// NodeCount returns the number of live nodes
func (g *Graph) NodeCount() int { return len(g.index) }

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int {
	count := 0
	for _, e := range g.entries {
		if !e.removed {
			count += len(e.out)
		}
	}
	return count
}

// InEdges returns the edges ending at n
func (g *Graph) InEdges(n Node) []Edge {
	id, found := g.index[n]
	if !found {
		return nil
	}
	return append([]Edge(nil), g.entries[id].in...)
}

// OutEdges returns the edges starting at n
func (g *Graph) OutEdges(n Node) []Edge {
	id, found := g.index[n]
	if !found {
		return nil
	}
	return append([]Edge(nil), g.entries[id].out...)
}

// InDegree returns the number of edges ending at n
func (g *Graph) InDegree(n Node) int {
	id, found := g.index[n]
	if !found {
		return 0
	}
	return len(g.entries[id].in)
}

// OutDegree returns the number of edges starting at n
func (g *Graph) OutDegree(n Node) int {
	id, found := g.index[n]
	if !found {
		return 0
	}
	return len(g.entries[id].out)
}

// Producer returns the operation writing v in g, nil for free variables
func (g *Graph) Producer(v *Variable) *Operation {
	id, found := g.index[v]
	if !found || len(g.entries[id].in) == 0 {
		return nil
	}
	return g.entries[g.entries[id].in[0].From].node.(*Operation)
}

// Consumers returns the operations reading v in g, in edge order and
// without duplicates
func (g *Graph) Consumers(v *Variable) []*Operation {
	id, found := g.index[v]
	if !found {
		return nil
	}
	seen := make(map[NodeID]bool)
	var ops []*Operation
	for _, e := range g.entries[id].out {
		if seen[e.To] {
			continue
		}
		seen[e.To] = true
		ops = append(ops, g.entries[e.To].node.(*Operation))
	}
	return ops
}

// remove drops a node and every edge touching it
func (g *Graph) remove(n Node) {
	id, found := g.index[n]
	if !found {
		return
	}
	e := g.entries[id]
	for _, in := range e.in {
		src := g.entries[in.From]
		src.out = dropEdges(src.out, id)
	}
	for _, out := range e.out {
		dst := g.entries[out.To]
		dst.in = dropEdges(dst.in, id)
	}
	e.in, e.out = nil, nil
	e.removed = true
	delete(g.index, n)
}

func dropEdges(edges []Edge, id NodeID) []Edge {
	kept := edges[:0]
	for _, e := range edges {
		if e.From != id && e.To != id {
			kept = append(kept, e)
		}
	}
	return kept
}

// evaluate runs every operation of g in topological order. It stops and
// reports false when an operation is missing an input value.
func (g *Graph) evaluate() (bool, error) {
	order, err := g.Sorted()
	if err != nil {
		return false, err
	}
	for _, n := range order {
		op, ok := n.(*Operation)
		if !ok {
			continue
		}
		ran, err := op.Evaluate()
		if err != nil || !ran {
			return false, err
		}
	}
	return true, nil
}
