package graph

import (
	"fmt"
	"strings"
)

// ShapeError reports operand shapes that an operation's shape rule rejects.
// It is raised at construction time and no nodes are added.
type ShapeError struct {
	// Op is the name of the operation being constructed
	Op string

	// Shapes are the operand shapes that were rejected
	Shapes []Shape

	// Reason describes the incompatibility
	Reason string
}

func (e *ShapeError) Error() string {
	shapes := make([]string, len(e.Shapes))
	for i, s := range e.Shapes {
		shapes[i] = s.String()
	}
	return fmt.Sprintf("shape error in %s %s: %s", e.Op, strings.Join(shapes, ", "), e.Reason)
}

// NewShapeError builds a ShapeError for the named operation
func NewShapeError(op string, shapes []Shape, format string, args ...any) *ShapeError {
	return &ShapeError{
		Op:     op,
		Shapes: shapes,
		Reason: fmt.Sprintf(format, args...),
	}
}

// StructuralError reports a violation of the graph invariants: a cycle, a
// non-bipartite edge, a second producer for a Variable, or a reference to a
// node outside the current graph's ancestry.
type StructuralError struct {
	// Nodes names the offending nodes
	Nodes []string

	// Reason describes the violated invariant
	Reason string
}

func (e *StructuralError) Error() string {
	if len(e.Nodes) == 0 {
		return "structural error: " + e.Reason
	}
	return fmt.Sprintf("structural error at %s: %s", strings.Join(e.Nodes, ", "), e.Reason)
}

func structuralError(reason string, nodes ...Node) *StructuralError {
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, Label(n))
	}
	return &StructuralError{Nodes: names, Reason: reason}
}
