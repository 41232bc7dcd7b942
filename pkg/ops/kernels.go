// Package ops holds a small library of kernels and the functions that record
// them through the recorder carried by a context.
package ops

import (
	"fmt"

	"github.com/chazu/compgraph/pkg/graph"
	"github.com/chazu/compgraph/pkg/kernel"
)

var (
	// AddKernel sums its inputs element by element
	AddKernel = &kernel.Spec{
		KernelName: "add",
		MinInputs:  2,
		MaxInputs:  kernel.Variadic,
		Shapes:     kernel.Elementwise("add"),
		Fn: func(in []graph.Array) ([]graph.Array, error) {
			return elementwise(in, 0, func(acc, x float64) float64 { return acc + x }), nil
		},
	}

	// MultKernel multiplies two inputs element by element
	MultKernel = &kernel.Spec{
		KernelName: "mult",
		MinInputs:  2,
		MaxInputs:  2,
		Shapes:     kernel.Elementwise("mult"),
		Fn: func(in []graph.Array) ([]graph.Array, error) {
			return elementwise(in, 1, func(acc, x float64) float64 { return acc * x }), nil
		},
	}

	// NegKernel negates its input
	NegKernel = &kernel.Spec{
		KernelName: "neg",
		MinInputs:  1,
		MaxInputs:  1,
		Shapes:     kernel.SameAsInput("neg"),
		Fn: func(in []graph.Array) ([]graph.Array, error) {
			out := make(graph.Array, len(in[0]))
			for i, x := range in[0] {
				out[i] = -x
			}
			return []graph.Array{out}, nil
		},
	}

	// SumKernel reduces its input to a single element
	SumKernel = &kernel.Spec{
		KernelName: "sum",
		MinInputs:  1,
		MaxInputs:  1,
		Shapes:     kernel.Reduction("sum"),
		Fn: func(in []graph.Array) ([]graph.Array, error) {
			total := 0.0
			for _, x := range in[0] {
				total += x
			}
			return []graph.Array{{total}}, nil
		},
	}
)

// ScaleKernel multiplies its input by a constant factor
func ScaleKernel(factor float64) *kernel.Spec {
	return &kernel.Spec{
		KernelName: "scale",
		MinInputs:  1,
		MaxInputs:  1,
		Shapes:     kernel.SameAsInput("scale"),
		Fn: func(in []graph.Array) ([]graph.Array, error) {
			out := make(graph.Array, len(in[0]))
			for i, x := range in[0] {
				out[i] = factor * x
			}
			return []graph.Array{out}, nil
		},
	}
}

// Registry returns a registry holding the fixed kernels of this package
func Registry() *kernel.Registry {
	r := kernel.NewRegistry()
	r.MustRegister(AddKernel, MultKernel, NegKernel, SumKernel)
	return r
}

// elementwise folds the inputs with fn, broadcasting single-element inputs
func elementwise(in []graph.Array, identity float64, fn func(acc, x float64) float64) []graph.Array {
	n := 0
	for _, a := range in {
		n = max(n, len(a))
	}
	out := make(graph.Array, n)
	for i := range out {
		out[i] = identity
	}
	for _, a := range in {
		a = kernel.Broadcast(a, n)
		for i := range out {
			out[i] = fn(out[i], a[i])
		}
	}
	return []graph.Array{out}
}

func requireInputs(name string, inputs ...*graph.Variable) error {
	for i, in := range inputs {
		if in == nil {
			return fmt.Errorf("%s: input %d is nil", name, i)
		}
	}
	return nil
}
