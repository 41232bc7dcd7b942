package graph

import "testing"

func TestComputeHash(t *testing.T) {
	g, x, _, _ := buildChain(t)

	hash1 := g.ComputeHash()
	if hash1 == "" {
		t.Error("Expected non-empty hash")
	}

	// Same graph should produce same hash
	hash2 := g.ComputeHash()
	if hash1 != hash2 {
		t.Errorf("Expected same hash for same graph, got %s and %s", hash1, hash2)
	}

	// Values are not structure
	if err := x.SetValue(Array{42}); err != nil {
		t.Fatal(err)
	}
	if g.ComputeHash() != hash1 {
		t.Error("Expected values not to affect the hash")
	}

	// Different graph should produce different hash
	_, _ = mustOp(t, g, negKernel, x)
	if g.ComputeHash() == hash1 {
		t.Error("Expected different hash for different graph")
	}
}

func TestComputeHashIncludesBodies(t *testing.T) {
	build := func(kernel Kernel) *Graph {
		root := New("root")
		x := mustVar(t, root, "x", Shape{1}, nil)
		body, _ := root.NewChild("body")
		_, y := mustOp(t, body, kernel, x)
		if _, err := root.AttachComposite("block", body, []*Variable{x}, []*Variable{y}); err != nil {
			t.Fatalf("Failed to attach composite: %v", err)
		}
		return root
	}

	if build(negKernel).ComputeHash() == build(failKernel).ComputeHash() {
		t.Error("Expected the body's kernels to change the hash")
	}
	if build(negKernel).ComputeHash() != build(negKernel).ComputeHash() {
		t.Error("Expected equal structures to hash equally")
	}
}

func TestHasChanged(t *testing.T) {
	g, x, _, _ := buildChain(t)
	hash := g.ComputeHash()

	if g.HasChanged(hash) {
		t.Error("Expected no change against the current hash")
	}
	if !g.HasChanged("") {
		t.Error("Expected an empty previous hash to count as changed")
	}

	_, _ = mustOp(t, g, negKernel, x)
	if !g.HasChanged(hash) {
		t.Error("Expected change after adding an operation")
	}
}
