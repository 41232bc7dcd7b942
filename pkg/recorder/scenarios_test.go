package recorder_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chazu/compgraph/pkg/graph"
	"github.com/chazu/compgraph/pkg/ops"
	"github.com/chazu/compgraph/pkg/recorder"
)

// positions maps every node of g to its index in the topological order
func positions(g *graph.Graph) map[graph.Node]int {
	pos := make(map[graph.Node]int)
	i := 0
	for n := range g.TopologicalOrder() {
		pos[n] = i
		i++
	}
	return pos
}

var _ = Describe("Recording a model", func() {
	var (
		ctx context.Context
		r   *recorder.Recorder
	)

	start := func(opts recorder.Options) {
		r = recorder.New(opts)
		var err error
		ctx, err = r.Start(context.Background())
		Expect(err).NotTo(HaveOccurred())
	}

	Context("with y = x*2 and z = y*x", func() {
		var x, y, z *graph.Variable

		record := func() {
			var err error
			x, err = recorder.NewVariable(ctx, graph.Shape{1}, recorder.WithName("x"), recorder.WithValue(graph.Array{3}))
			Expect(err).NotTo(HaveOccurred())
			y, err = ops.Scale(ctx, x, 2)
			Expect(err).NotTo(HaveOccurred())
			z, err = ops.Mult(ctx, y, x)
			Expect(err).NotTo(HaveOccurred())
		}

		It("builds a graph of two operations and three variables", func() {
			start(recorder.Options{})
			record()
			Expect(r.Stop()).To(Succeed())

			g := r.Root()
			Expect(g.Operations()).To(HaveLen(2))
			Expect(g.Variables()).To(HaveLen(3))
			Expect(g.OutDegree(x)).To(Equal(2))
			Expect(g.OutDegree(z)).To(Equal(0))
			Expect(y.Shape()).To(Equal(graph.Shape{1}))
			Expect(g.Validate()).To(Succeed())

			By("ordering x before both operations and y before the second")
			pos := positions(g)
			scale, mult := g.Operations()[0], g.Operations()[1]
			Expect(pos[x]).To(BeNumerically("<", pos[scale]))
			Expect(pos[x]).To(BeNumerically("<", pos[mult]))
			Expect(pos[y]).To(BeNumerically("<", pos[mult]))
		})

		It("evaluates inline when every input has a value", func() {
			start(recorder.Options{Inline: true})
			record()

			Expect(y.Value()).To(Equal(graph.Array{6}))
			Expect(z.Value()).To(Equal(graph.Array{18}))
			Expect(r.Stop()).To(Succeed())
		})

		It("leaves values empty without inline evaluation", func() {
			start(recorder.Options{})
			record()

			Expect(y.HasValue()).To(BeFalse())
			Expect(z.HasValue()).To(BeFalse())
			Expect(r.Stop()).To(Succeed())
		})
	})

	It("rejects incompatible shapes without touching the graph", func() {
		start(recorder.Options{})
		a, err := recorder.NewVariable(ctx, graph.Shape{2})
		Expect(err).NotTo(HaveOccurred())
		b, err := recorder.NewVariable(ctx, graph.Shape{3})
		Expect(err).NotTo(HaveOccurred())

		nodes, edges := r.Root().NodeCount(), r.Root().EdgeCount()
		_, err = ops.Add(ctx, a, b)

		var shapeErr *graph.ShapeError
		Expect(errors.As(err, &shapeErr)).To(BeTrue())
		Expect(shapeErr.Shapes).To(HaveLen(2))
		Expect(r.Root().NodeCount()).To(Equal(nodes))
		Expect(r.Root().EdgeCount()).To(Equal(edges))
	})

	It("reports an unbalanced subgraph stack on stop", func() {
		start(recorder.Options{})
		_, err := r.EnterSubgraph()
		Expect(err).NotTo(HaveOccurred())
		_, err = r.EnterSubgraph()
		Expect(err).NotTo(HaveOccurred())
		_, err = r.ExitSubgraph("inner", nil, nil)
		Expect(err).NotTo(HaveOccurred())

		err = r.Stop()
		var stateErr *recorder.StateError
		Expect(errors.As(err, &stateErr)).To(BeTrue())
		Expect(r.State()).To(Equal(recorder.StateStarted))

		By("closing the leaked subgraph")
		_, err = r.ExitSubgraph("outer", nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Stop()).To(Succeed())
	})

	It("refuses construction without an active recorder", func() {
		_, err := recorder.NewVariable(context.Background(), graph.Shape{1})
		Expect(err).To(MatchError(recorder.ErrNoActiveRecorder))

		_, err = ops.Neg(context.Background(), nil)
		Expect(errors.Is(err, recorder.ErrNoActiveRecorder)).To(BeTrue())
	})

	Context("with nested composites", func() {
		It("keeps every graph of the tree acyclic and bipartite", func() {
			start(recorder.Options{Inline: true})
			a, err := recorder.Scalar(ctx, 5)
			Expect(err).NotTo(HaveOccurred())
			b, err := recorder.Scalar(ctx, 2)
			Expect(err).NotTo(HaveOccurred())

			outer, err := recorder.Composite(ctx, "outer", []*graph.Variable{a, b},
				func(ctx context.Context) ([]*graph.Variable, error) {
					d, err := ops.Sub(ctx, a, b)
					if err != nil {
						return nil, err
					}
					sq, err := ops.Mult(ctx, d, d)
					if err != nil {
						return nil, err
					}
					return []*graph.Variable{sq}, nil
				})
			Expect(err).NotTo(HaveOccurred())
			Expect(outer).To(HaveLen(1))
			Expect(outer[0].Value()).To(Equal(graph.Array{9}))
			Expect(r.Stop()).To(Succeed())

			root := r.Root()
			Expect(root.ValidateTree()).To(Succeed())
			Expect(root.Children()).To(HaveLen(1))
			body := root.Children()[0]
			Expect(body.Children()).To(HaveLen(1))
			Expect(body.Children()[0].Depth()).To(Equal(2))
			Expect(outer[0].Graph()).To(Equal(root))
		})

		It("rejects a variable from a sibling subgraph", func() {
			start(recorder.Options{})
			x, err := recorder.Scalar(ctx, 1)
			Expect(err).NotTo(HaveOccurred())

			var leaked *graph.Variable
			_, err = recorder.Composite(ctx, "first", []*graph.Variable{x},
				func(ctx context.Context) ([]*graph.Variable, error) {
					hidden, err := ops.Neg(ctx, x)
					if err != nil {
						return nil, err
					}
					leaked = hidden
					out, err := ops.Neg(ctx, hidden)
					if err != nil {
						return nil, err
					}
					return []*graph.Variable{out}, nil
				})
			Expect(err).NotTo(HaveOccurred())

			_, err = recorder.Composite(ctx, "second", []*graph.Variable{x},
				func(ctx context.Context) ([]*graph.Variable, error) {
					out, err := ops.Add(ctx, x, leaked)
					if err != nil {
						return nil, err
					}
					return []*graph.Variable{out}, nil
				})
			var structErr *graph.StructuralError
			Expect(errors.As(err, &structErr)).To(BeTrue())
			Expect(r.Depth()).To(Equal(0))
			Expect(r.Root().Children()).To(HaveLen(1))
			Expect(r.Stop()).To(Succeed())
		})
	})

	Context("with a second recorder", func() {
		It("shadows the outer recorder on the derived context only", func() {
			start(recorder.Options{Name: "outer"})
			x, err := recorder.Scalar(ctx, 1)
			Expect(err).NotTo(HaveOccurred())

			inner := recorder.New(recorder.Options{Name: "inner"})
			innerCtx, err := inner.Start(ctx)
			Expect(err).NotTo(HaveOccurred())

			active, err := recorder.FromContext(innerCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeIdenticalTo(inner))

			By("refusing variables of the outer recorder")
			_, err = ops.Neg(innerCtx, x)
			var structErr *graph.StructuralError
			Expect(errors.As(err, &structErr)).To(BeTrue())

			By("leaving the outer context untouched")
			_, err = ops.Neg(ctx, x)
			Expect(err).NotTo(HaveOccurred())
			Expect(inner.Stop()).To(Succeed())
			Expect(r.Stop()).To(Succeed())
			Expect(inner.Root().NodeCount()).To(Equal(0))
		})
	})

	It("collapses recorded operations into a composite", func() {
		start(recorder.Options{Inline: true})
		x, err := recorder.Scalar(ctx, 4)
		Expect(err).NotTo(HaveOccurred())
		y, err := ops.Scale(ctx, x, 3)
		Expect(err).NotTo(HaveOccurred())
		z, err := ops.Neg(ctx, y)
		Expect(err).NotTo(HaveOccurred())
		w, err := ops.Add(ctx, z, x)
		Expect(err).NotTo(HaveOccurred())
		before := w.Value()

		composite, err := r.Collapse("scale-neg", r.Current().Operations()[:2]...)
		Expect(err).NotTo(HaveOccurred())
		Expect(composite.Inputs()).To(Equal([]*graph.Variable{x}))
		Expect(composite.Outputs()).To(Equal([]*graph.Variable{z}))
		Expect(r.Stop()).To(Succeed())

		Expect(r.Root().ValidateTree()).To(Succeed())
		Expect(w.SetValue(nil)).To(Succeed())
		state, err := graph.NewExecutor(graph.DefaultExecutorConfig()).Execute(context.Background(), r.Root())
		Expect(err).NotTo(HaveOccurred())
		Expect(state.HasErrors()).To(BeFalse())
		Expect(w.Value()).To(Equal(before))
	})
})
