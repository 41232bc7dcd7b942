package export

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/chazu/compgraph/pkg/graph"
	"github.com/chazu/compgraph/pkg/ops"
	"github.com/chazu/compgraph/pkg/recorder"
)

// recordModel records d = sub(x, y) followed by s = sum(d)
func recordModel(t *testing.T) *graph.Graph {
	t.Helper()
	r := recorder.New(recorder.Options{Name: "model"})
	ctx, err := r.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	x, _ := recorder.NewVariable(ctx, graph.Shape{2}, recorder.WithName("x"))
	y, _ := recorder.NewVariable(ctx, graph.Shape{2}, recorder.WithName("y"))
	d, err := ops.Sub(ctx, x, y)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ops.Sum(ctx, d); err != nil {
		t.Fatal(err)
	}
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	return r.Root()
}

func TestDOT(t *testing.T) {
	g := recordModel(t)

	var buf bytes.Buffer
	if err := DOT(&buf, g); err != nil {
		t.Fatalf("Failed to render DOT: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"digraph", "x (2,)", "sum", "peripheries", "model"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected DOT output to contain %q:\n%s", want, out)
		}
	}

	if err := DOT(&buf, nil); err == nil {
		t.Error("Expected error for nil graph")
	}
}

func TestMermaid(t *testing.T) {
	g := recordModel(t)

	out, err := Mermaid(g)
	if err != nil {
		t.Fatalf("Failed to render Mermaid: %v", err)
	}

	if !strings.HasPrefix(out, "graph TD\n") {
		t.Errorf("Expected a flowchart header, got:\n%s", out)
	}
	if strings.Count(out, "subgraph ") != 1 || strings.Count(out, "  end\n") != 1 {
		t.Errorf("Expected one subgraph block for the sub composite:\n%s", out)
	}
	for _, want := range []string{`"x (2,)"`, `[["sub"]]`, `["neg"]`, `["add"]`, "-.->"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected Mermaid output to contain %q:\n%s", want, out)
		}
	}

	// Every edge of every graph is drawn once
	edges := 0
	_ = g.Walk(func(sub *graph.Graph) error {
		edges += sub.EdgeCount()
		return nil
	})
	if got := strings.Count(out, "-->") + strings.Count(out, "-.->"); got != edges {
		t.Errorf("Expected %d edges, got %d:\n%s", edges, got, out)
	}

	if _, err := Mermaid(nil); err == nil {
		t.Error("Expected error for nil graph")
	}
}
