// Package recorder intercepts Variable creation and Operation invocation and
// records them into a tree of graphs.
//
// A Recorder moves through Created, Started and Stopped. Starting it returns
// a context that carries it; every constructor in this package and in the
// ops package takes that context and registers its nodes in the recorder's
// current graph, which is the root or the innermost open subgraph.
//
//	rec := recorder.New(recorder.Options{Inline: true})
//	ctx, err := rec.Start(ctx)
//	x, err := recorder.NewVariable(ctx, graph.Shape{1}, recorder.WithValue(graph.Array{3}))
//	y, err := ops.Scale(ctx, x, 2)
//	err = rec.Stop()
//
// A context derived from one carrying an active recorder may start another
// recorder; the inner recorder shadows the outer one for that derived
// context only. Constructing nodes with a context that carries no started
// recorder fails with ErrNoActiveRecorder.
package recorder
