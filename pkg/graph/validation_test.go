package graph

import (
	"errors"
	"testing"
)

func TestValidateRecordedGraph(t *testing.T) {
	g, _, _, _ := buildChain(t)
	if err := g.Validate(); err != nil {
		t.Errorf("Expected valid graph, got %v", err)
	}
}

func TestValidateDetectsCycle(t *testing.T) {
	g := New("root")
	a := mustVar(t, g, "a", Shape{1}, nil)
	b := mustVar(t, g, "b", Shape{1}, nil)

	p := NewOperation(negKernel, []*Variable{a}, []*Variable{b}, WithName("p"))
	q := NewOperation(negKernel, []*Variable{b}, []*Variable{a}, WithName("q"))
	for _, op := range []*Operation{p, q} {
		if _, err := g.AddNode(op); err != nil {
			t.Fatalf("Failed to add operation: %v", err)
		}
	}
	for _, e := range []struct {
		from, to Node
	}{{a, p}, {p, b}, {b, q}, {q, a}} {
		if err := g.AddEdge(e.from, e.to, 0); err != nil {
			t.Fatalf("Failed to add edge: %v", err)
		}
	}

	err := g.Validate()
	var structErr *StructuralError
	if !errors.As(err, &structErr) {
		t.Fatalf("Expected StructuralError for a cycle, got %v", err)
	}
	if !g.HasCycles() {
		t.Error("Expected HasCycles to report the cycle")
	}
	if _, err := g.Sorted(); err == nil {
		t.Error("Expected Sorted to fail on a cycle")
	}

	count := 0
	for range g.TopologicalOrder() {
		count++
	}
	if count != 0 {
		t.Errorf("Expected an empty order for a cyclic graph, got %d nodes", count)
	}
}

func TestValidateDetectsMissingEdges(t *testing.T) {
	g := New("root")
	x := mustVar(t, g, "x", Shape{1}, nil)
	y := mustVar(t, g, "y", Shape{1}, nil)

	// Declares x as input but is never wired
	op := NewOperation(negKernel, []*Variable{x}, []*Variable{y})
	if _, err := g.AddNode(op); err != nil {
		t.Fatalf("Failed to add operation: %v", err)
	}

	var structErr *StructuralError
	if err := g.Validate(); !errors.As(err, &structErr) {
		t.Errorf("Expected StructuralError, got %v", err)
	}
}

func TestValidateTreeReportsSubgraph(t *testing.T) {
	root := New("root")
	child, _ := root.NewChild("child")
	x := mustVar(t, child, "x", Shape{1}, nil)
	op := NewOperation(negKernel, []*Variable{x}, nil)
	if _, err := child.AddNode(op); err != nil {
		t.Fatalf("Failed to add operation: %v", err)
	}

	if err := root.Validate(); err != nil {
		t.Errorf("Expected root alone to be valid, got %v", err)
	}
	err := root.ValidateTree()
	var structErr *StructuralError
	if !errors.As(err, &structErr) {
		t.Fatalf("Expected StructuralError from the subgraph, got %v", err)
	}
}
