package recorder

import (
	"fmt"

	"github.com/chazu/compgraph/pkg/metrics"
)

// namespace is a node of the namespace tree. Names of nodes constructed
// while it is open are prefixed with its dotted path.
type namespace struct {
	name     string
	prefix   string
	parent   *namespace
	children map[string]*namespace
	depth    int
}

func newNamespace() *namespace {
	return &namespace{children: map[string]*namespace{}}
}

func (ns *namespace) child(name string) *namespace {
	prefix := name
	if ns.prefix != "" {
		prefix = ns.prefix + "." + name
	}
	c := &namespace{
		name:     name,
		prefix:   prefix,
		parent:   ns,
		children: map[string]*namespace{},
		depth:    ns.depth + 1,
	}
	ns.children[name] = c
	return c
}

// EnterNamespace opens the child namespace name of the current one. A
// namespace can be entered once; entering it again is a StateError.
func (r *Recorder) EnterNamespace(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateStarted {
		metrics.RecordConstructionError("state")
		return &StateError{Op: "enter namespace", State: r.state, Reason: "recorder not started"}
	}
	if name == "" {
		metrics.RecordConstructionError("state")
		return &StateError{Op: "enter namespace", State: r.state, Reason: "namespace name is empty"}
	}
	if _, found := r.ns.children[name]; found {
		metrics.RecordConstructionError("state")
		return &StateError{Op: "enter namespace", State: r.state,
			Reason: fmt.Sprintf("namespace %q already exists under %q", name, r.ns.prefix)}
	}

	r.ns = r.ns.child(name)
	r.logger.V(1).Info("Entered namespace", "namespace", r.ns.prefix)
	return nil
}

// ExitNamespace closes the current namespace
func (r *Recorder) ExitNamespace() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateStarted {
		metrics.RecordConstructionError("state")
		return &StateError{Op: "exit namespace", State: r.state, Reason: "recorder not started"}
	}
	if r.ns.parent == nil {
		metrics.RecordConstructionError("state")
		return &StateError{Op: "exit namespace", State: r.state, Reason: "cannot exit the root namespace"}
	}

	r.logger.V(1).Info("Exited namespace", "namespace", r.ns.prefix)
	r.ns = r.ns.parent
	return nil
}

// Namespace returns the dotted path of the current namespace, empty at the
// root
func (r *Recorder) Namespace() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ns.prefix
}
