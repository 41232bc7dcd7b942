// Package kernel provides the operation kernel contract used by the recorder:
// a named compute rule with an input arity, an output shape inference
// function and a compute function.
package kernel

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chazu/compgraph/pkg/graph"
)

// Variadic is the max arity of kernels accepting any number of inputs
const Variadic = -1

// ShapeFunc infers output shapes from input shapes
type ShapeFunc func(inputs []graph.Shape) ([]graph.Shape, error)

// ComputeFunc produces output values from input values
type ComputeFunc func(inputs []graph.Array) ([]graph.Array, error)

// Spec is a kernel assembled from plain functions. It implements
// graph.Kernel.
type Spec struct {
	// KernelName identifies the kernel
	KernelName string

	// MinInputs is the smallest accepted input count
	MinInputs int

	// MaxInputs is the largest accepted input count, or Variadic
	MaxInputs int

	// Shapes infers output shapes
	Shapes ShapeFunc

	// Fn computes output values
	Fn ComputeFunc
}

var _ graph.Kernel = (*Spec)(nil)

// Name implements graph.Kernel
func (s *Spec) Name() string { return s.KernelName }

// Arity implements graph.Kernel
func (s *Spec) Arity() (int, int) { return s.MinInputs, s.MaxInputs }

// InferShapes implements graph.Kernel
func (s *Spec) InferShapes(inputs []graph.Shape) ([]graph.Shape, error) {
	if s.Shapes == nil {
		return nil, fmt.Errorf("kernel %s has no shape rule", s.KernelName)
	}
	return s.Shapes(inputs)
}

// Compute implements graph.Kernel
func (s *Spec) Compute(inputs []graph.Array) ([]graph.Array, error) {
	if s.Fn == nil {
		return nil, fmt.Errorf("kernel %s has no compute function", s.KernelName)
	}
	return s.Fn(inputs)
}

// Validate checks that the spec is usable
func (s *Spec) Validate() error {
	if s.KernelName == "" {
		return fmt.Errorf("kernel name is required")
	}
	if s.MinInputs < 0 {
		return fmt.Errorf("kernel %s: min inputs must be non-negative", s.KernelName)
	}
	if s.MaxInputs != Variadic && s.MaxInputs < s.MinInputs {
		return fmt.Errorf("kernel %s: max inputs %d below min inputs %d", s.KernelName, s.MaxInputs, s.MinInputs)
	}
	if s.Shapes == nil {
		return fmt.Errorf("kernel %s: shape rule is required", s.KernelName)
	}
	if s.Fn == nil {
		return fmt.Errorf("kernel %s: compute function is required", s.KernelName)
	}
	return nil
}

// Registry maps kernel names to kernels
type Registry struct {
	mu      sync.RWMutex
	kernels map[string]graph.Kernel
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{kernels: make(map[string]graph.Kernel)}
}

// Register adds k under its name. Names must be unique.
func (r *Registry) Register(k graph.Kernel) error {
	if spec, ok := k.(*Spec); ok {
		if err := spec.Validate(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kernels[k.Name()]; exists {
		return fmt.Errorf("kernel %s already registered", k.Name())
	}
	r.kernels[k.Name()] = k
	return nil
}

// MustRegister is Register for package initialization; it panics on error
func (r *Registry) MustRegister(kernels ...graph.Kernel) {
	for _, k := range kernels {
		if err := r.Register(k); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the kernel registered under name
func (r *Registry) Lookup(name string) (graph.Kernel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, found := r.kernels[name]
	return k, found
}

// Names returns the registered kernel names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.kernels))
	for name := range r.kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
