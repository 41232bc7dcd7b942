package graph

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// NodeID is a graph-scoped handle for a node. It is stable for as long as
// the node stays in the graph that issued it.
type NodeID int

// Kind distinguishes the two disjoint node variants
type Kind int

const (
	// KindVariable marks a Variable node
	KindVariable Kind = iota

	// KindOperation marks an Operation node
	KindOperation
)

func (k Kind) String() string {
	switch k {
	case KindVariable:
		return "variable"
	case KindOperation:
		return "operation"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Node is the common identity of Variables and Operations
type Node interface {
	// ID is the handle issued by the owning graph
	ID() NodeID

	// Name is the namespace-qualified label, possibly empty
	Name() string

	// Namespace is the dotted namespace the node was created in
	Namespace() string

	// Kind reports which variant the node is
	Kind() Kind

	// Graph is the graph that owns the node
	Graph() *Graph

	// Site is the creation site, recorded only in debug mode
	Site() string

	base() *nodeBase
}

// Label returns a printable name for a node, falling back to kind and handle
// when the node has no name.
func Label(n Node) string {
	if n == nil {
		return "<nil>"
	}
	if name := n.Name(); name != "" {
		return name
	}
	return fmt.Sprintf("%s#%d", n.Kind(), n.ID())
}

// Shape is an immutable tuple of non-negative dimensions
type Shape []int

// Size returns the number of elements described by the shape. The empty
// shape describes a scalar.
func (s Shape) Size() int {
	size := 1
	for _, d := range s {
		size *= d
	}
	return size
}

// Equal reports whether two shapes have the same dimensions
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy that does not alias s
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

func (s Shape) String() string {
	dims := make([]string, len(s))
	for i, d := range s {
		dims[i] = strconv.Itoa(d)
	}
	if len(s) == 1 {
		return "(" + dims[0] + ",)"
	}
	return "(" + strings.Join(dims, ", ") + ")"
}

// Validate checks that every dimension is non-negative
func (s Shape) Validate() error {
	for i, d := range s {
		if d < 0 {
			return fmt.Errorf("dimension %d of shape %s is negative", i, s)
		}
	}
	return nil
}

// Array is a concrete value in row-major order. Its shape is carried by the
// Variable that holds it.
type Array []float64

// Clone returns a copy that does not alias a
func (a Array) Clone() Array {
	if a == nil {
		return nil
	}
	out := make(Array, len(a))
	copy(out, a)
	return out
}

// Full returns an array of the given shape filled with v
func Full(shape Shape, v float64) Array {
	out := make(Array, shape.Size())
	for i := range out {
		out[i] = v
	}
	return out
}

type nodeBase struct {
	id        NodeID
	name      string
	namespace string
	site      string
	owner     *Graph
}

func (b *nodeBase) ID() NodeID        { return b.id }
func (b *nodeBase) Namespace() string { return b.namespace }
func (b *nodeBase) Site() string      { return b.site }
func (b *nodeBase) Graph() *Graph     { return b.owner }
func (b *nodeBase) base() *nodeBase   { return b }

func (b *nodeBase) Name() string {
	if b.name == "" || b.namespace == "" {
		return b.name
	}
	return b.namespace + "." + b.name
}

// SetName replaces the local part of the node's name
func (b *nodeBase) SetName(name string) {
	b.name = name
}

// NodeOption configures a node at construction
type NodeOption func(*nodeBase)

// WithName sets the node's local name
func WithName(name string) NodeOption {
	return func(b *nodeBase) { b.name = name }
}

// WithNamespace sets the dotted namespace prefix
func WithNamespace(ns string) NodeOption {
	return func(b *nodeBase) { b.namespace = ns }
}

// WithSite records where the node was created
func WithSite(site string) NodeOption {
	return func(b *nodeBase) { b.site = site }
}

// Variable is a node holding a value of fixed shape
type Variable struct {
	nodeBase

	shape     Shape
	hierarchy int

	mu    sync.RWMutex
	value Array
}

// NewVariable creates an unregistered Variable. A non-nil value must match
// the shape's size.
func NewVariable(shape Shape, value Array, opts ...NodeOption) (*Variable, error) {
	if err := shape.Validate(); err != nil {
		return nil, NewShapeError("variable", []Shape{shape}, "%v", err)
	}
	if value != nil && len(value) != shape.Size() {
		return nil, NewShapeError("variable", []Shape{shape},
			"value has %d elements, shape needs %d", len(value), shape.Size())
	}
	v := &Variable{
		shape: shape.Clone(),
		value: value.Clone(),
	}
	for _, opt := range opts {
		opt(&v.nodeBase)
	}
	return v, nil
}

// Kind implements Node
func (v *Variable) Kind() Kind { return KindVariable }

// Shape returns a copy of the variable's shape
func (v *Variable) Shape() Shape { return v.shape.Clone() }

// Hierarchy is the namespace depth the variable was created at when
// automatic hierarchy tracking is enabled
func (v *Variable) Hierarchy() int { return v.hierarchy }

// SetHierarchy records the namespace depth
func (v *Variable) SetHierarchy(level int) { v.hierarchy = level }

// Value returns the concrete value, or nil when the variable has none
func (v *Variable) Value() Array {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// HasValue reports whether a concrete value is present
func (v *Variable) HasValue() bool {
	return v.Value() != nil
}

// SetValue stores a concrete value; nil clears it
func (v *Variable) SetValue(value Array) error {
	if value != nil && len(value) != v.shape.Size() {
		return NewShapeError(Label(v), []Shape{v.shape},
			"value has %d elements, shape needs %d", len(value), v.shape.Size())
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = value
	return nil
}

// Operation is a node that maps input Variables to output Variables through
// an opaque kernel, or through a nested body graph when composite
type Operation struct {
	nodeBase

	kernel  Kernel
	inputs  []*Variable
	outputs []*Variable
	body    *Graph
}

// NewOperation creates an unregistered Operation running kernel k
func NewOperation(k Kernel, inputs, outputs []*Variable, opts ...NodeOption) *Operation {
	op := &Operation{
		kernel:  k,
		inputs:  append([]*Variable(nil), inputs...),
		outputs: append([]*Variable(nil), outputs...),
	}
	op.name = k.Name()
	for _, opt := range opts {
		opt(&op.nodeBase)
	}
	return op
}

// Kind implements Node
func (op *Operation) Kind() Kind { return KindOperation }

// Kernel returns the compute rule, nil for composites
func (op *Operation) Kernel() Kernel { return op.kernel }

// Inputs returns the ordered input Variables
func (op *Operation) Inputs() []*Variable {
	return append([]*Variable(nil), op.inputs...)
}

// Outputs returns the ordered output Variables
func (op *Operation) Outputs() []*Variable {
	return append([]*Variable(nil), op.outputs...)
}

// Body returns the nested graph of a composite operation
func (op *Operation) Body() *Graph { return op.body }

// IsComposite reports whether the operation is defined by a nested graph
func (op *Operation) IsComposite() bool { return op.body != nil }

// Evaluate computes the outputs from the inputs' current values. It reports
// false without error when some input has no value.
func (op *Operation) Evaluate() (bool, error) {
	if op.body != nil {
		return op.body.evaluate()
	}

	values := make([]Array, len(op.inputs))
	for i, in := range op.inputs {
		values[i] = in.Value()
		if values[i] == nil {
			return false, nil
		}
	}

	shapes := make([]Shape, len(op.outputs))
	for i, out := range op.outputs {
		shapes[i] = out.shape
	}

	results, err := ComputeValues(op.kernel, values, shapes)
	if err != nil {
		return false, fmt.Errorf("evaluate %s: %w", Label(op), err)
	}
	for i, out := range op.outputs {
		if err := out.SetValue(results[i]); err != nil {
			return false, err
		}
	}
	return true, nil
}
