package recorder

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/chazu/compgraph/pkg/graph"
	"github.com/chazu/compgraph/pkg/metrics"
)

type variableConfig struct {
	name  string
	value graph.Array
}

// VariableOption configures NewVariable
type VariableOption func(*variableConfig)

// WithName labels the variable; the current namespace is prepended
func WithName(name string) VariableOption {
	return func(c *variableConfig) { c.name = name }
}

// WithValue gives the variable an initial value matching its shape
func WithValue(value graph.Array) VariableOption {
	return func(c *variableConfig) { c.value = value }
}

// NewVariable registers a free variable of the given shape in the current
// graph of the recorder carried by ctx
func NewVariable(ctx context.Context, shape graph.Shape, opts ...VariableOption) (*graph.Variable, error) {
	r, err := FromContext(ctx)
	if err != nil {
		recordError(err)
		return nil, err
	}

	cfg := variableConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return r.newVariable(shape, cfg)
}

// Constant registers a free one-dimensional variable holding value
func Constant(ctx context.Context, value graph.Array, opts ...VariableOption) (*graph.Variable, error) {
	return NewVariable(ctx, graph.Shape{len(value)}, append([]VariableOption{WithValue(value)}, opts...)...)
}

// Scalar registers a free single-element variable holding x
func Scalar(ctx context.Context, x float64, opts ...VariableOption) (*graph.Variable, error) {
	return NewVariable(ctx, graph.Shape{1}, append([]VariableOption{WithValue(graph.Array{x})}, opts...)...)
}

func (r *Recorder) newVariable(shape graph.Shape, cfg variableConfig) (*graph.Variable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, err := graph.NewVariable(shape, cfg.value, r.nodeOptions(cfg.name)...)
	if err != nil {
		recordError(err)
		return nil, err
	}
	if r.opts.AutoHierarchy {
		v.SetHierarchy(r.ns.depth)
	}

	if _, err := r.current().AddNode(v); err != nil {
		recordError(err)
		return nil, err
	}
	metrics.RecordNode(graph.KindVariable.String())
	r.logger.V(1).Info("Registered variable", "variable", graph.Label(v), "shape", shape.String(),
		"graph", r.current().Name())
	return v, nil
}

// Invoke records an operation running kernel k on inputs in the current
// graph and returns its fresh output variables. Arity, input reachability
// and shapes are checked, and inline evaluation is run, before anything is
// registered: on error the graph is unchanged.
func Invoke(ctx context.Context, k graph.Kernel, inputs ...*graph.Variable) ([]*graph.Variable, error) {
	r, err := FromContext(ctx)
	if err != nil {
		recordError(err)
		return nil, err
	}
	return r.invokeChecked(k, inputs, anyOutputs)
}

// Invoke1 is Invoke for kernels with exactly one output. A kernel inferring
// any other output count is rejected before anything is registered.
func Invoke1(ctx context.Context, k graph.Kernel, inputs ...*graph.Variable) (*graph.Variable, error) {
	r, err := FromContext(ctx)
	if err != nil {
		recordError(err)
		return nil, err
	}
	outputs, err := r.invokeChecked(k, inputs, 1)
	if err != nil {
		return nil, err
	}
	return outputs[0], nil
}

// anyOutputs accepts whatever output count the kernel infers
const anyOutputs = -1

func (r *Recorder) invokeChecked(k graph.Kernel, inputs []*graph.Variable, want int) ([]*graph.Variable, error) {
	outputs, err := r.invoke(k, inputs, want)
	if err != nil {
		recordError(err)
		return nil, err
	}
	return outputs, nil
}

func (r *Recorder) invoke(k graph.Kernel, inputs []*graph.Variable, want int) ([]*graph.Variable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := r.current()

	shapes := make([]graph.Shape, len(inputs))
	for i, in := range inputs {
		if in == nil {
			return nil, &graph.StructuralError{Nodes: []string{k.Name()}, Reason: fmt.Sprintf("input %d is nil", i)}
		}
		if err := g.CanReference(in); err != nil {
			return nil, err
		}
		shapes[i] = in.Shape()
	}

	if err := graph.CheckArity(k, len(inputs)); err != nil {
		return nil, graph.NewShapeError(k.Name(), shapes, "%v", err)
	}

	outShapes, err := k.InferShapes(shapes)
	if err != nil {
		var shapeErr *graph.ShapeError
		if errors.As(err, &shapeErr) {
			return nil, err
		}
		return nil, graph.NewShapeError(k.Name(), shapes, "%v", err)
	}
	if want != anyOutputs && len(outShapes) != want {
		return nil, graph.NewShapeError(k.Name(), shapes, "kernel infers %d outputs, expected %d", len(outShapes), want)
	}
	for _, s := range outShapes {
		if err := s.Validate(); err != nil {
			return nil, graph.NewShapeError(k.Name(), shapes, "inferred output: %v", err)
		}
	}

	values, err := r.inlineValues(k, inputs, outShapes)
	if err != nil {
		return nil, err
	}

	// Every check passed; register the capture, operation, outputs and edges
	for _, in := range inputs {
		if _, err := g.Capture(in); err != nil {
			return nil, err
		}
	}

	opts := r.nodeOptions("")
	outputs := make([]*graph.Variable, len(outShapes))
	for i, s := range outShapes {
		var value graph.Array
		if values != nil {
			value = values[i]
		}
		out, err := graph.NewVariable(s, value, opts...)
		if err != nil {
			return nil, err
		}
		if r.opts.AutoHierarchy {
			out.SetHierarchy(r.ns.depth)
		}
		outputs[i] = out
	}

	op := graph.NewOperation(k, inputs, outputs, opts...)
	if _, err := g.AddNode(op); err != nil {
		return nil, err
	}
	for _, out := range outputs {
		if _, err := g.AddNode(out); err != nil {
			return nil, err
		}
	}
	for slot, in := range inputs {
		if err := g.AddEdge(in, op, slot); err != nil {
			return nil, err
		}
	}
	for slot, out := range outputs {
		if err := g.AddEdge(op, out, slot); err != nil {
			return nil, err
		}
	}

	metrics.RecordNode(graph.KindOperation.String())
	for range outputs {
		metrics.RecordNode(graph.KindVariable.String())
	}
	r.logger.V(1).Info("Registered operation", "operation", graph.Label(op), "inputs", len(inputs),
		"outputs", len(outputs), "inline", values != nil, "graph", g.Name())
	return outputs, nil
}

// inlineValues computes the outputs of k when inline evaluation is on and
// every input holds a value. It returns nil values otherwise.
func (r *Recorder) inlineValues(k graph.Kernel, inputs []*graph.Variable, outShapes []graph.Shape) ([]graph.Array, error) {
	if !r.opts.Inline {
		return nil, nil
	}
	values := make([]graph.Array, len(inputs))
	for i, in := range inputs {
		values[i] = in.Value()
		if values[i] == nil {
			return nil, nil
		}
	}
	results, err := graph.ComputeValues(k, values, outShapes)
	if err != nil {
		return nil, fmt.Errorf("inline evaluation of %s: %w", k.Name(), err)
	}
	return results, nil
}

// Composite records body as a composite operation named name over the
// declared inputs. Body runs inside a fresh subgraph and returns the
// variables that become the composite's outputs; the returned variables are
// those outputs. With ExpandComposites set, body is recorded in the current
// graph instead. A failing body or boundary drops the subgraph.
func Composite(ctx context.Context, name string, inputs []*graph.Variable,
	body func(ctx context.Context) ([]*graph.Variable, error)) ([]*graph.Variable, error) {
	r, err := FromContext(ctx)
	if err != nil {
		recordError(err)
		return nil, err
	}
	if r.opts.ExpandComposites {
		return body(ctx)
	}

	depth := r.Depth()
	if _, err := r.EnterSubgraph(); err != nil {
		return nil, err
	}

	outputs, err := body(ctx)
	if err == nil && r.Depth() != depth+1 {
		err = &StateError{Op: "composite " + name, State: r.State(),
			Reason: fmt.Sprintf("body left %d subgraph(s) open", r.Depth()-depth-1)}
	}
	if err != nil {
		if uerr := r.unwindTo(depth); uerr != nil {
			return nil, errors.Join(err, uerr)
		}
		return nil, err
	}

	op, err := r.ExitSubgraph(name, inputs, outputs)
	if err != nil {
		if uerr := r.unwindTo(depth); uerr != nil {
			return nil, errors.Join(err, uerr)
		}
		return nil, err
	}
	return op.Outputs(), nil
}

// nodeOptions returns the options stamped on every node constructed now
func (r *Recorder) nodeOptions(name string) []graph.NodeOption {
	opts := []graph.NodeOption{graph.WithNamespace(r.ns.prefix)}
	if name != "" {
		opts = append(opts, graph.WithName(name))
	}
	if r.opts.Debug {
		opts = append(opts, graph.WithSite(callerSite()))
	}
	return opts
}

// callerSite returns the first stack frame outside this module's
// construction packages
func callerSite() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		internal := strings.Contains(frame.Function, "compgraph/pkg/recorder.") ||
			strings.Contains(frame.Function, "compgraph/pkg/ops.")
		if !internal || strings.HasSuffix(frame.File, "_test.go") {
			return fmt.Sprintf("%s:%d", frame.File, frame.Line)
		}
		if !more {
			return fmt.Sprintf("%s:%d", frame.File, frame.Line)
		}
	}
}
