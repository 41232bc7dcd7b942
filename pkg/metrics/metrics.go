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

// Package metrics instruments graph recording and execution with prometheus
// collectors registered on a package-level registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Evaluation results
const (
	ResultDone    = "done"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// Registry holds every collector of this package. Binaries expose it with
// promhttp.HandlerFor or gather it directly.
var Registry = prometheus.NewRegistry()

var (
	// Recording metrics
	nodesRecordedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compgraph_nodes_recorded_total",
		Help: "Total number of nodes registered by recorders",
	}, []string{"kind"})

	constructionErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compgraph_construction_errors_total",
		Help: "Total number of rejected variable or operation constructions",
	}, []string{"reason"})

	compositesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compgraph_composites_total",
		Help: "Total number of composite operations created",
	}, []string{"mode"})

	activeRecorders = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "compgraph_active_recorders",
		Help: "Number of recorders currently started",
	})

	// Execution metrics
	evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compgraph_evaluations_total",
		Help: "Total number of operation evaluations in execution passes",
	}, []string{"kernel", "result"})

	evaluationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "compgraph_evaluation_duration_seconds",
		Help:    "Duration of operation evaluations",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
	}, []string{"kernel"})
)

func init() {
	Registry.MustRegister(
		nodesRecordedTotal,
		constructionErrorsTotal,
		compositesTotal,
		activeRecorders,
		evaluationsTotal,
		evaluationDuration,
	)
}

// RecordNode counts a registered node
// kind: "variable" or "operation"
func RecordNode(kind string) {
	nodesRecordedTotal.WithLabelValues(kind).Inc()
}

// RecordConstructionError counts a rejected construction
// reason: "shape", "structural", "state" or "no_recorder"
func RecordConstructionError(reason string) {
	constructionErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordComposite counts a composite operation
// mode: "scope" for subgraph exit or "collapse" for an explicit collapse
func RecordComposite(mode string) {
	compositesTotal.WithLabelValues(mode).Inc()
}

// RecorderStarted increments the active recorder gauge
func RecorderStarted() {
	activeRecorders.Inc()
}

// RecorderStopped decrements the active recorder gauge
func RecorderStopped() {
	activeRecorders.Dec()
}

// RecordEvaluation records one operation evaluation
func RecordEvaluation(kernel, result string, durationSeconds float64) {
	evaluationsTotal.WithLabelValues(kernel, result).Inc()
	evaluationDuration.WithLabelValues(kernel).Observe(durationSeconds)
}
