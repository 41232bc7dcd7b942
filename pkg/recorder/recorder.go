package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/chazu/compgraph/pkg/graph"
	"github.com/chazu/compgraph/pkg/metrics"
)

// State is the lifecycle state of a Recorder
type State string

const (
	// StateCreated is the state of a recorder that was never started
	StateCreated State = "Created"

	// StateStarted indicates the recorder intercepts construction
	StateStarted State = "Started"

	// StateStopped indicates the recorder was stopped and its root sealed
	StateStopped State = "Stopped"
)

// Options configure a Recorder for its whole lifetime
type Options struct {
	// Name labels the recorder and its root graph
	Name string `json:"name"`

	// Inline evaluates operations at construction when every input has a
	// value
	Inline bool `json:"inline"`

	// Debug records the creation site of every node
	Debug bool `json:"debug"`

	// ExpandComposites records composite helpers flat in the current graph
	// instead of inside a subgraph
	ExpandComposites bool `json:"expandComposites"`

	// AutoHierarchy stores the namespace depth on every variable
	AutoHierarchy bool `json:"autoHierarchy"`
}

// Recorder assembles variables and operations into a tree of graphs. A
// recorder serializes its own mutations; concurrent builders should each
// use their own recorder.
type Recorder struct {
	mu sync.Mutex

	opts   Options
	state  State
	root   *graph.Graph
	stack  []*graph.Graph
	logger logr.Logger

	namespaces *namespace
	ns         *namespace

	subgraphs int

	designVariables []DesignVariable
	constraints     []Constraint
	objectives      []Objective
}

// New creates a recorder in the Created state
func New(opts Options) *Recorder {
	if opts.Name == "" {
		opts.Name = "root"
	}
	ns := newNamespace()
	return &Recorder{
		opts:       opts,
		state:      StateCreated,
		root:       graph.New(opts.Name),
		logger:     logr.Discard(),
		namespaces: ns,
		ns:         ns,
	}
}

// Options returns the recorder's options
func (r *Recorder) Options() Options { return r.opts }

// Inline reports whether inline evaluation is enabled
func (r *Recorder) Inline() bool { return r.opts.Inline }

// State returns the lifecycle state
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Root returns the root graph. It is read-only once the recorder stops.
func (r *Recorder) Root() *graph.Graph { return r.root }

// Current returns the graph nodes are registered in
func (r *Recorder) Current() *graph.Graph {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current()
}

func (r *Recorder) current() *graph.Graph {
	if len(r.stack) == 0 {
		return r.root
	}
	return r.stack[len(r.stack)-1]
}

// Depth is the number of open subgraphs
func (r *Recorder) Depth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stack) == 0 {
		return 0
	}
	return len(r.stack) - 1
}

// Start makes the recorder active and returns a context carrying it. The
// root graph is created on first start and reused afterwards. The logger
// in ctx is kept for the recorder's diagnostics.
func (r *Recorder) Start(ctx context.Context) (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateStarted {
		metrics.RecordConstructionError("state")
		return ctx, &StateError{Op: "start", State: r.state, Reason: "recorder already started"}
	}

	r.root.Unseal()
	r.stack = []*graph.Graph{r.root}
	r.state = StateStarted
	r.logger = logr.FromContextOrDiscard(ctx).WithName("recorder").WithValues("recorder", r.opts.Name)
	r.logger.Info("Recorder started", "inline", r.opts.Inline, "expandComposites", r.opts.ExpandComposites)
	metrics.RecorderStarted()

	return WithRecorder(ctx, r), nil
}

// Stop finalizes the root graph and deactivates the recorder. Open
// subgraphs or namespaces are reported as a StateError and the recorder
// stays started so they can be closed.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateStarted {
		metrics.RecordConstructionError("state")
		return &StateError{Op: "stop", State: r.state, Reason: "recorder not started"}
	}
	if open := len(r.stack) - 1; open > 0 {
		metrics.RecordConstructionError("state")
		return &StateError{Op: "stop", State: r.state,
			Reason: fmt.Sprintf("unbalanced subgraph stack: %d subgraph(s) still open", open)}
	}
	if r.ns != r.namespaces {
		metrics.RecordConstructionError("state")
		return &StateError{Op: "stop", State: r.state,
			Reason: fmt.Sprintf("namespace %q still open", r.ns.prefix)}
	}

	r.root.Seal()
	r.stack = nil
	r.state = StateStopped
	metrics.RecorderStopped()
	r.logger.Info("Recorder stopped", "nodes", r.root.NodeCount(), "edges", r.root.EdgeCount())
	return nil
}

// EnterSubgraph pushes a new empty child of the current graph. Nodes
// constructed until the matching ExitSubgraph are registered in it.
func (r *Recorder) EnterSubgraph() (*graph.Graph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateStarted {
		metrics.RecordConstructionError("state")
		return nil, &StateError{Op: "enter subgraph", State: r.state, Reason: "recorder not started"}
	}

	r.subgraphs++
	child, err := r.current().NewChild(fmt.Sprintf("%s/subgraph-%d", r.opts.Name, r.subgraphs))
	if err != nil {
		return nil, err
	}
	r.stack = append(r.stack, child)
	r.logger.V(1).Info("Entered subgraph", "graph", child.Name(), "depth", len(r.stack)-1)
	return child, nil
}

// ExitSubgraph closes the current subgraph into a composite operation of
// its parent with the declared boundary and returns it. If the boundary is
// rejected the subgraph stays open.
func (r *Recorder) ExitSubgraph(name string, inputs, outputs []*graph.Variable) (*graph.Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateStarted {
		metrics.RecordConstructionError("state")
		return nil, &StateError{Op: "exit subgraph", State: r.state, Reason: "recorder not started"}
	}
	if len(r.stack) < 2 {
		metrics.RecordConstructionError("state")
		return nil, &StateError{Op: "exit subgraph", State: r.state, Reason: "no open subgraph: stack would underflow past the root"}
	}

	body := r.stack[len(r.stack)-1]
	parent := r.stack[len(r.stack)-2]
	op, err := parent.AttachComposite(name, body, inputs, outputs, r.nodeOptions("")...)
	if err != nil {
		recordError(err)
		return nil, fmt.Errorf("exit subgraph %s: %w", body.Name(), err)
	}

	r.stack = r.stack[:len(r.stack)-1]
	metrics.RecordNode(graph.KindOperation.String())
	metrics.RecordComposite("scope")
	r.logger.V(1).Info("Exited subgraph", "graph", body.Name(), "composite", graph.Label(op),
		"inputs", len(inputs), "outputs", len(outputs))
	return op, nil
}

// AbandonSubgraph pops the current subgraph without creating a composite
// and drops it from the tree
func (r *Recorder) AbandonSubgraph() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abandon()
}

func (r *Recorder) abandon() error {
	if r.state != StateStarted {
		return &StateError{Op: "abandon subgraph", State: r.state, Reason: "recorder not started"}
	}
	if len(r.stack) < 2 {
		return &StateError{Op: "abandon subgraph", State: r.state, Reason: "no open subgraph"}
	}
	body := r.stack[len(r.stack)-1]
	parent := r.stack[len(r.stack)-2]
	if err := parent.DiscardChild(body); err != nil {
		return err
	}
	r.stack = r.stack[:len(r.stack)-1]
	r.logger.V(1).Info("Abandoned subgraph", "graph", body.Name())
	return nil
}

// unwindTo abandons subgraphs until depth subgraphs remain open
func (r *Recorder) unwindTo(depth int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.stack)-1 > depth {
		if err := r.abandon(); err != nil {
			return err
		}
	}
	return nil
}

// Collapse moves ops of the current graph into a composite operation
func (r *Recorder) Collapse(name string, ops ...*graph.Operation) (*graph.Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateStarted {
		metrics.RecordConstructionError("state")
		return nil, &StateError{Op: "collapse", State: r.state, Reason: "recorder not started"}
	}

	op, err := r.current().Collapse(name, ops, r.nodeOptions("")...)
	if err != nil {
		recordError(err)
		return nil, err
	}
	metrics.RecordNode(graph.KindOperation.String())
	metrics.RecordComposite("collapse")
	r.logger.V(1).Info("Collapsed operations", "composite", graph.Label(op), "operations", len(ops))
	return op, nil
}

// recordError counts a construction failure by error kind
func recordError(err error) {
	var shapeErr *graph.ShapeError
	var structErr *graph.StructuralError
	var stateErr *StateError
	switch {
	case errors.As(err, &shapeErr):
		metrics.RecordConstructionError("shape")
	case errors.As(err, &structErr):
		metrics.RecordConstructionError("structural")
	case errors.As(err, &stateErr):
		metrics.RecordConstructionError("state")
	case errors.Is(err, ErrNoActiveRecorder):
		metrics.RecordConstructionError("no_recorder")
	default:
		metrics.RecordConstructionError("other")
	}
}
