// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values shared by the pipeline metrics.
const (
	OutcomeOK        = "ok"
	OutcomeDegraded  = "degraded"
	OutcomeError     = "error"
	OutcomeFailed    = "failed"
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
)

var (
	storyboardsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mvgen_storyboards_total",
		Help: "Storyboard generations by outcome",
	}, []string{"outcome"}) // outcome=ok|degraded|error

	storyboardSceneMismatch = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mvgen_storyboard_scene_count_mismatch_total",
		Help: "Storyboards whose scene count differs from the requested count",
	})

	protagonistBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mvgen_protagonist_batches_total",
		Help: "Protagonist candidate batches by outcome",
	}, []string{"outcome"}) // outcome=ok|error

	scenesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mvgen_scenes_total",
		Help: "Scene image generation units by outcome",
	}, []string{"outcome"}) // outcome=ok|failed

	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mvgen_scene_jobs_total",
		Help: "Scene generation jobs by terminal outcome",
	}, []string{"outcome"}) // outcome=completed|cancelled|failed

	jobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mvgen_scene_jobs_active",
		Help: "Scene generation jobs currently running",
	})

	illegalTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mvgen_run_illegal_transitions_total",
		Help: "Run machine events rejected in the current state",
	}, []string{"event"})

	streamDisconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mvgen_stream_disconnects_total",
		Help: "Scene streams whose client went away before the job finished",
	})
)

// RecordStoryboard counts one storyboard generation.
func RecordStoryboard(outcome string) {
	storyboardsTotal.WithLabelValues(outcome).Inc()
}

// RecordStoryboardSceneMismatch counts a provider scene count deviation.
func RecordStoryboardSceneMismatch() {
	storyboardSceneMismatch.Inc()
}

// RecordProtagonistBatch counts one protagonist candidate batch.
func RecordProtagonistBatch(outcome string) {
	protagonistBatchesTotal.WithLabelValues(outcome).Inc()
}

// RecordIllegalTransition counts a run event the machine rejected.
func RecordIllegalTransition(event string) {
	illegalTransitions.WithLabelValues(event).Inc()
}

// RecordScene counts one attempted scene.
func RecordScene(outcome string) {
	scenesTotal.WithLabelValues(outcome).Inc()
}

// JobStarted marks a scene job as running.
func JobStarted() {
	jobsActive.Inc()
}

// JobFinished marks a scene job as finished with the given outcome.
func JobFinished(outcome string) {
	jobsActive.Dec()
	jobsTotal.WithLabelValues(outcome).Inc()
}

// RecordStreamDisconnect counts a stream that stopped accepting events.
func RecordStreamDisconnect() {
	streamDisconnects.Inc()
}
