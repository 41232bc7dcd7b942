package graph

import "fmt"

// Kernel is the opaque compute rule behind an Operation. The graph only
// relies on its arity, its shape rule and its compute function.
type Kernel interface {
	// Name identifies the kernel
	Name() string

	// Arity returns the accepted input count range. A negative max means
	// the kernel is variadic.
	Arity() (min, max int)

	// InferShapes returns the output shapes for the given input shapes, or
	// a ShapeError when they are incompatible
	InferShapes(inputs []Shape) ([]Shape, error)

	// Compute deterministically produces output values from input values
	Compute(inputs []Array) ([]Array, error)
}

// CheckArity verifies that n inputs are acceptable to k
func CheckArity(k Kernel, n int) error {
	lo, hi := k.Arity()
	if n < lo || (hi >= 0 && n > hi) {
		if hi < 0 {
			return fmt.Errorf("%s takes at least %d inputs, got %d", k.Name(), lo, n)
		}
		if lo == hi {
			return fmt.Errorf("%s takes %d inputs, got %d", k.Name(), lo, n)
		}
		return fmt.Errorf("%s takes %d to %d inputs, got %d", k.Name(), lo, hi, n)
	}
	return nil
}

// ComputeValues runs k and checks the results against the expected output
// shapes
func ComputeValues(k Kernel, inputs []Array, shapes []Shape) ([]Array, error) {
	results, err := k.Compute(inputs)
	if err != nil {
		return nil, fmt.Errorf("kernel %s: %w", k.Name(), err)
	}
	if len(results) != len(shapes) {
		return nil, fmt.Errorf("kernel %s returned %d outputs, expected %d", k.Name(), len(results), len(shapes))
	}
	for i, r := range results {
		if len(r) != shapes[i].Size() {
			return nil, fmt.Errorf("kernel %s output %d has %d elements, shape %s needs %d",
				k.Name(), i, len(r), shapes[i], shapes[i].Size())
		}
	}
	return results, nil
}
