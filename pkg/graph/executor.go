package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/sourcegraph/conc/pool"

	"github.com/chazu/compgraph/pkg/metrics"
)

// ExecutorConfig contains configuration for the execution pass
type ExecutorConfig struct {
	// MaxConcurrency is the maximum number of operations of one wave that
	// are evaluated concurrently
	// Default: 4
	MaxConcurrency int `json:"maxConcurrency"`
}

// DefaultExecutorConfig returns the default executor configuration
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrency: 4,
	}
}

// Executor evaluates every operation of a graph from the values currently
// held by its free variables. Operations whose inputs are all available are
// evaluated together in a wave; each output has a single writer, so
// operations of a wave never write the same variable.
type Executor struct {
	config ExecutorConfig
}

// NewExecutor creates a new executor
func NewExecutor(config ExecutorConfig) *Executor {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultExecutorConfig().MaxConcurrency
	}
	return &Executor{config: config}
}

// Execute evaluates g in dependency waves. Kernel failures and missing input
// values are recorded in the returned state rather than aborting the pass;
// the error is only set when the pass itself cannot run.
func (e *Executor) Execute(ctx context.Context, g *Graph) (*ExecutionState, error) {
	if g == nil {
		return nil, fmt.Errorf("graph cannot be nil")
	}

	order, err := g.Sorted()
	if err != nil {
		return nil, fmt.Errorf("failed to order graph %q: %w", g.name, err)
	}

	var ops []*Operation
	var ids []NodeID
	for _, n := range order {
		if op, ok := n.(*Operation); ok {
			ops = append(ops, op)
			ids = append(ids, g.index[op])
		}
	}
	state := NewExecutionState(ids)

	logger := logr.FromContextOrDiscard(ctx).WithValues("graph", g.name)
	logger.V(1).Info("Starting execution pass", "operations", len(ops))

	for !state.IsComplete() {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		default:
		}

		ready := e.findReadyOps(g, ops, state)
		if len(ready) == 0 {
			break
		}

		e.executeOps(ctx, g, state, ready)
	}

	state.MarkComplete()
	summary := state.GetSummary()
	logger.V(1).Info("Finished execution pass",
		"done", summary.Done, "skipped", summary.Skipped, "failed", summary.Failed)
	return state, nil
}

// findReadyOps walks the pending operations in topological order. An
// operation is ready when each input is produced by a finished operation or
// is free and holds a value. Operations that can never become ready are
// marked skipped on the way, which also propagates downstream.
func (e *Executor) findReadyOps(g *Graph, ops []*Operation, state *ExecutionState) []*Operation {
	var ready []*Operation

	for _, op := range ops {
		id := g.index[op]
		if s, _ := state.GetState(id); s != OpStatePending {
			continue
		}

		allReady := true
		skipReason := ""
		for _, in := range op.inputs {
			producer := g.Producer(in)
			if producer == nil {
				if !in.HasValue() {
					skipReason = fmt.Sprintf("input %s has no value", Label(in))
					break
				}
				continue
			}

			ps, _ := state.GetState(g.index[producer])
			switch ps {
			case OpStateDone:
			case OpStateSkipped, OpStateFailed:
				skipReason = fmt.Sprintf("upstream %s is %s", Label(producer), ps)
			default:
				allReady = false
			}
			if skipReason != "" {
				break
			}
		}

		switch {
		case skipReason != "":
			_ = state.SetSkipped(id, skipReason)
		case allReady:
			ready = append(ready, op)
		}
	}

	return ready
}

// executeOps evaluates a wave in parallel using conc
func (e *Executor) executeOps(ctx context.Context, g *Graph, state *ExecutionState, ops []*Operation) {
	// Create a worker pool with bounded concurrency
	p := pool.New().WithMaxGoroutines(e.config.MaxConcurrency).WithErrors()

	for _, op := range ops {
		p.Go(func() error {
			return e.executeOp(ctx, g, state, op)
		})
	}

	// Errors are already recorded in state; independent operations keep going
	_ = p.Wait()
}

// executeOp evaluates a single operation and records the outcome
func (e *Executor) executeOp(ctx context.Context, g *Graph, state *ExecutionState, op *Operation) error {
	id := g.index[op]
	logger := logr.FromContextOrDiscard(ctx)

	if err := state.SetState(id, OpStateRunning); err != nil {
		return err
	}

	start := time.Now()
	ran, err := op.Evaluate()
	kernel := kernelName(op)

	switch {
	case err != nil:
		metrics.RecordEvaluation(kernel, metrics.ResultFailed, time.Since(start).Seconds())
		logger.Error(err, "Operation failed", "operation", Label(op))
		_ = state.SetFailed(id, err)
		return err
	case !ran:
		metrics.RecordEvaluation(kernel, metrics.ResultSkipped, time.Since(start).Seconds())
		return state.SetSkipped(id, "an input has no value")
	default:
		metrics.RecordEvaluation(kernel, metrics.ResultDone, time.Since(start).Seconds())
		logger.V(2).Info("Evaluated operation", "operation", Label(op))
		return state.SetState(id, OpStateDone)
	}
}

func kernelName(op *Operation) string {
	if op.kernel == nil {
		return "composite"
	}
	return op.kernel.Name()
}
