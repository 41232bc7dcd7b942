/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chazu/compgraph/pkg/config"
	"github.com/chazu/compgraph/pkg/export"
	"github.com/chazu/compgraph/pkg/graph"
	"github.com/chazu/compgraph/pkg/metrics"
	"github.com/chazu/compgraph/pkg/ops"
	"github.com/chazu/compgraph/pkg/recorder"
)

// Flags holds the command-line configuration
type Flags struct {
	ConfigPath  string
	Format      string
	MetricsAddr string
	Development bool
}

// parseFlags parses command-line flags and returns configuration
func parseFlags() Flags {
	f := Flags{}
	flag.StringVar(&f.ConfigPath, "config", "", "Path to a CUE configuration file. Defaults apply when empty.")
	flag.StringVar(&f.Format, "format", "mermaid", "Output format: dot, mermaid or order.")
	flag.StringVar(&f.MetricsAddr, "metrics-bind-address", "0", "The address the metrics endpoint binds to. "+
		"Leave as 0 to disable the metrics endpoint; otherwise the process serves it until interrupted.")
	flag.BoolVar(&f.Development, "zap-devel", true, "Use the development logger.")
	flag.Parse()
	return f
}

// newLogger builds the zap-backed logr.Logger used for the whole run
func newLogger(development bool) (logr.Logger, error) {
	var zl *zap.Logger
	var err error
	if development {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(zl), nil
}

// loadConfig reads the configuration file or falls back to the defaults
func loadConfig(path string) (*config.Config, error) {
	loader, err := config.NewLoader()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return loader.Default()
	}
	return loader.Load(path)
}

// buildModel records w = (2x)*x - 2x under the "model" namespace and marks
// x as a design variable and w as the objective
func buildModel(ctx context.Context, r *recorder.Recorder) (*graph.Variable, error) {
	if err := r.EnterNamespace("model"); err != nil {
		return nil, err
	}

	x, err := recorder.Scalar(ctx, 3, recorder.WithName("x"))
	if err != nil {
		return nil, err
	}
	y, err := ops.Scale(ctx, x, 2)
	if err != nil {
		return nil, err
	}
	z, err := ops.Mult(ctx, y, x)
	if err != nil {
		return nil, err
	}
	w, err := ops.Sub(ctx, z, y)
	if err != nil {
		return nil, err
	}
	w.SetName("w")

	if err := r.AddDesignVariable(x, recorder.Bounds{Lower: 0, Upper: 10, Scaler: 1}); err != nil {
		return nil, err
	}
	if err := r.AddObjective(w, 1); err != nil {
		return nil, err
	}
	return w, r.ExitNamespace()
}

// render writes the root graph in the requested format
func render(w io.Writer, g *graph.Graph, format string) error {
	switch format {
	case "dot":
		return export.DOT(w, g)
	case "mermaid":
		out, err := export.Mermaid(g)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	case "order":
		for n := range g.TopologicalOrder() {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", n.Kind(), graph.Label(n)); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// serveMetrics exposes the metrics registry until ctx is done
func serveMetrics(ctx context.Context, addr string, log logr.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	log.Info("serving metrics", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func run(ctx context.Context, f Flags, log logr.Logger) error {
	cfg, err := loadConfig(f.ConfigPath)
	if err != nil {
		return fmt.Errorf("unable to load configuration: %w", err)
	}

	r := recorder.New(cfg.Recorder)
	rctx, err := r.Start(logr.NewContext(ctx, log))
	if err != nil {
		return err
	}
	w, err := buildModel(rctx, r)
	if err != nil {
		return fmt.Errorf("unable to record model: %w", err)
	}
	if err := r.Stop(); err != nil {
		return err
	}

	root := r.Root()
	if err := root.ValidateTree(); err != nil {
		return fmt.Errorf("recorded graph is invalid: %w", err)
	}

	state, err := graph.NewExecutor(cfg.Executor).Execute(logr.NewContext(ctx, log), root)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	summary := state.GetSummary()
	log.Info("execution finished", "done", summary.Done, "skipped", summary.Skipped,
		"failed", summary.Failed, "objective", w.Value(), "hash", root.ComputeHash())
	if state.HasErrors() {
		return fmt.Errorf("%d operation(s) failed", summary.Failed)
	}

	if err := render(os.Stdout, root, f.Format); err != nil {
		return err
	}

	if f.MetricsAddr != "0" {
		return serveMetrics(ctx, f.MetricsAddr, log)
	}
	return nil
}

func main() {
	f := parseFlags()

	log, err := newLogger(f.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to create logger: %v\n", err)
		os.Exit(1)
	}
	setupLog := log.WithName("setup")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f, log); err != nil {
		setupLog.Error(err, "problem running model")
		stop()
		os.Exit(1)
	}
}
