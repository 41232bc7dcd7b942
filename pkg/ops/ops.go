package ops

import (
	"context"

	"github.com/chazu/compgraph/pkg/graph"
	"github.com/chazu/compgraph/pkg/recorder"
)

// Add records the element-wise sum of two or more variables
func Add(ctx context.Context, a, b *graph.Variable, more ...*graph.Variable) (*graph.Variable, error) {
	return recorder.Invoke1(ctx, AddKernel, append([]*graph.Variable{a, b}, more...)...)
}

// Mult records the element-wise product of a and b
func Mult(ctx context.Context, a, b *graph.Variable) (*graph.Variable, error) {
	return recorder.Invoke1(ctx, MultKernel, a, b)
}

// Neg records -x
func Neg(ctx context.Context, x *graph.Variable) (*graph.Variable, error) {
	return recorder.Invoke1(ctx, NegKernel, x)
}

// Scale records factor*x
func Scale(ctx context.Context, x *graph.Variable, factor float64) (*graph.Variable, error) {
	return recorder.Invoke1(ctx, ScaleKernel(factor), x)
}

// Sum records the sum of the elements of x
func Sum(ctx context.Context, x *graph.Variable) (*graph.Variable, error) {
	return recorder.Invoke1(ctx, SumKernel, x)
}

// Sub records a-b as a composite of neg and add
func Sub(ctx context.Context, a, b *graph.Variable) (*graph.Variable, error) {
	if err := requireInputs("sub", a, b); err != nil {
		return nil, err
	}
	outputs, err := recorder.Composite(ctx, "sub", []*graph.Variable{a, b},
		func(ctx context.Context) ([]*graph.Variable, error) {
			nb, err := Neg(ctx, b)
			if err != nil {
				return nil, err
			}
			out, err := Add(ctx, a, nb)
			if err != nil {
				return nil, err
			}
			return []*graph.Variable{out}, nil
		})
	if err != nil {
		return nil, err
	}
	return outputs[0], nil
}
