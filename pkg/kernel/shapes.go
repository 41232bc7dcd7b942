package kernel

import (
	"github.com/chazu/compgraph/pkg/graph"
)

// Elementwise returns a shape rule for kernels combining inputs element by
// element. Inputs must share one shape; single-element inputs broadcast to
// it.
func Elementwise(name string) ShapeFunc {
	return func(inputs []graph.Shape) ([]graph.Shape, error) {
		out, err := broadcastShape(name, inputs)
		if err != nil {
			return nil, err
		}
		return []graph.Shape{out}, nil
	}
}

// SameAsInput returns a shape rule producing the shape of the first input
func SameAsInput(name string) ShapeFunc {
	return func(inputs []graph.Shape) ([]graph.Shape, error) {
		if len(inputs) == 0 {
			return nil, graph.NewShapeError(name, inputs, "expected at least one input")
		}
		return []graph.Shape{inputs[0].Clone()}, nil
	}
}

// Reduction returns a shape rule producing a single element
func Reduction(name string) ShapeFunc {
	return func(inputs []graph.Shape) ([]graph.Shape, error) {
		if len(inputs) == 0 {
			return nil, graph.NewShapeError(name, inputs, "expected at least one input")
		}
		return []graph.Shape{{1}}, nil
	}
}

func broadcastShape(name string, inputs []graph.Shape) (graph.Shape, error) {
	if len(inputs) == 0 {
		return nil, graph.NewShapeError(name, inputs, "expected at least one input")
	}
	var out graph.Shape
	for _, s := range inputs {
		if s.Size() == 1 && out != nil {
			continue
		}
		if out == nil || out.Size() == 1 {
			out = s
			continue
		}
		if !out.Equal(s) {
			return nil, graph.NewShapeError(name, inputs, "shapes %s and %s are not compatible", out, s)
		}
	}
	return out.Clone(), nil
}

// Broadcast expands a to n elements when it holds a single element
func Broadcast(a graph.Array, n int) graph.Array {
	if len(a) == n {
		return a
	}
	out := make(graph.Array, n)
	for i := range out {
		out[i] = a[0]
	}
	return out
}
