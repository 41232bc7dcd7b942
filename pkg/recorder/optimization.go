package recorder

import (
	"fmt"
	"math"

	"github.com/chazu/compgraph/pkg/graph"
)

// Bounds limit a design variable or constraint. Scaler multiplies the
// variable before it reaches an optimizer.
type Bounds struct {
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	Scaler float64 `json:"scaler"`
}

// DefaultBounds are unbounded with unit scaling
func DefaultBounds() Bounds {
	return Bounds{Lower: math.Inf(-1), Upper: math.Inf(1), Scaler: 1}
}

// Validate checks the bounds are ordered and the scaler is non-zero
func (b Bounds) Validate() error {
	if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) || b.Lower > b.Upper {
		return fmt.Errorf("invalid bounds [%g, %g]", b.Lower, b.Upper)
	}
	if b.Scaler == 0 || math.IsNaN(b.Scaler) {
		return fmt.Errorf("scaler must be non-zero, got %g", b.Scaler)
	}
	return nil
}

// DesignVariable is a variable an optimizer may change
type DesignVariable struct {
	Variable *graph.Variable
	Bounds   Bounds
}

// Constraint is a variable an optimizer must keep within bounds
type Constraint struct {
	Variable *graph.Variable
	Bounds   Bounds
}

// Objective is the single-element variable an optimizer minimizes
type Objective struct {
	Variable *graph.Variable
	Scaler   float64
}

// AddDesignVariable marks v as a design variable. Marking it again replaces
// its bounds.
func (r *Recorder) AddDesignVariable(v *graph.Variable, b Bounds) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkMetadata("design variable", v, b); err != nil {
		return err
	}
	for i := range r.designVariables {
		if r.designVariables[i].Variable == v {
			r.designVariables[i].Bounds = b
			return nil
		}
	}
	r.designVariables = append(r.designVariables, DesignVariable{Variable: v, Bounds: b})
	return nil
}

// AddConstraint marks v as a constraint. Marking it again replaces its
// bounds.
func (r *Recorder) AddConstraint(v *graph.Variable, b Bounds) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkMetadata("constraint", v, b); err != nil {
		return err
	}
	for i := range r.constraints {
		if r.constraints[i].Variable == v {
			r.constraints[i].Bounds = b
			return nil
		}
	}
	r.constraints = append(r.constraints, Constraint{Variable: v, Bounds: b})
	return nil
}

// AddObjective marks v as an objective. v must hold a single element.
func (r *Recorder) AddObjective(v *graph.Variable, scaler float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := DefaultBounds()
	b.Scaler = scaler
	if err := r.checkMetadata("objective", v, b); err != nil {
		return err
	}
	if size := v.Shape().Size(); size != 1 {
		return graph.NewShapeError("objective", []graph.Shape{v.Shape()}, "objective must have size 1, got %d", size)
	}
	for i := range r.objectives {
		if r.objectives[i].Variable == v {
			r.objectives[i].Scaler = scaler
			return nil
		}
	}
	r.objectives = append(r.objectives, Objective{Variable: v, Scaler: scaler})
	return nil
}

func (r *Recorder) checkMetadata(kind string, v *graph.Variable, b Bounds) error {
	if r.state != StateStarted {
		return &StateError{Op: "add " + kind, State: r.state, Reason: "recorder not started"}
	}
	if v == nil {
		return fmt.Errorf("%s: variable is nil", kind)
	}
	if owner := v.Graph(); owner == nil || owner.Root() != r.root {
		return &graph.StructuralError{Nodes: []string{graph.Label(v)},
			Reason: fmt.Sprintf("%s is not recorded by %q", kind, r.opts.Name)}
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("%s %s: %w", kind, graph.Label(v), err)
	}
	return nil
}

// DesignVariables returns the design variables in registration order
func (r *Recorder) DesignVariables() []DesignVariable {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DesignVariable(nil), r.designVariables...)
}

// Constraints returns the constraints in registration order
func (r *Recorder) Constraints() []Constraint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Constraint(nil), r.constraints...)
}

// Objectives returns the objectives in registration order
func (r *Recorder) Objectives() []Objective {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Objective(nil), r.objectives...)
}
