package graph

import (
	"fmt"
	"testing"
)

// fnKernel is a kernel assembled from closures for tests
type fnKernel struct {
	name    string
	lo, hi  int
	infer   func([]Shape) ([]Shape, error)
	compute func([]Array) ([]Array, error)
}

func (k *fnKernel) Name() string                            { return k.name }
func (k *fnKernel) Arity() (int, int)                       { return k.lo, k.hi }
func (k *fnKernel) InferShapes(in []Shape) ([]Shape, error) { return k.infer(in) }
func (k *fnKernel) Compute(in []Array) ([]Array, error)     { return k.compute(in) }

func sameShape(in []Shape) ([]Shape, error) {
	for _, s := range in[1:] {
		if !s.Equal(in[0]) {
			return nil, NewShapeError("test", in, "shapes differ")
		}
	}
	return []Shape{in[0].Clone()}, nil
}

var addKernel = &fnKernel{
	name: "add", lo: 2, hi: -1,
	infer: sameShape,
	compute: func(in []Array) ([]Array, error) {
		out := make(Array, len(in[0]))
		for _, a := range in {
			for i, x := range a {
				out[i] += x
			}
		}
		return []Array{out}, nil
	},
}

var negKernel = &fnKernel{
	name: "neg", lo: 1, hi: 1,
	infer: sameShape,
	compute: func(in []Array) ([]Array, error) {
		out := make(Array, len(in[0]))
		for i, x := range in[0] {
			out[i] = -x
		}
		return []Array{out}, nil
	},
}

var failKernel = &fnKernel{
	name: "fail", lo: 1, hi: 1,
	infer: sameShape,
	compute: func(in []Array) ([]Array, error) {
		return nil, fmt.Errorf("kernel exploded")
	},
}

// mustVar registers a free variable in g
func mustVar(t *testing.T, g *Graph, name string, shape Shape, value Array) *Variable {
	t.Helper()
	v, err := NewVariable(shape, value, WithName(name))
	if err != nil {
		t.Fatalf("Failed to create variable %s: %v", name, err)
	}
	if _, err := g.AddNode(v); err != nil {
		t.Fatalf("Failed to add variable %s: %v", name, err)
	}
	return v
}

// mustOp records k over inputs in g the way a recorder does and returns the
// operation with its single output
func mustOp(t *testing.T, g *Graph, k Kernel, inputs ...*Variable) (*Operation, *Variable) {
	t.Helper()
	shapes := make([]Shape, len(inputs))
	for i, in := range inputs {
		if _, err := g.Capture(in); err != nil {
			t.Fatalf("Failed to capture input %d: %v", i, err)
		}
		shapes[i] = in.Shape()
	}
	outShapes, err := k.InferShapes(shapes)
	if err != nil {
		t.Fatalf("Failed to infer shapes: %v", err)
	}
	out, err := NewVariable(outShapes[0], nil)
	if err != nil {
		t.Fatalf("Failed to create output: %v", err)
	}
	op := NewOperation(k, inputs, []*Variable{out})
	if _, err := g.AddNode(op); err != nil {
		t.Fatalf("Failed to add operation: %v", err)
	}
	if _, err := g.AddNode(out); err != nil {
		t.Fatalf("Failed to add output: %v", err)
	}
	for slot, in := range inputs {
		if err := g.AddEdge(in, op, slot); err != nil {
			t.Fatalf("Failed to add input edge: %v", err)
		}
	}
	if err := g.AddEdge(op, out, 0); err != nil {
		t.Fatalf("Failed to add output edge: %v", err)
	}
	return op, out
}

func labels(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = Label(n)
	}
	return out
}
