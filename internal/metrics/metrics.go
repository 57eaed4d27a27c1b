package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// #region collectors
var (
	// stageDuration tracks how long each pipeline stage takes
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analytics_stage_duration_seconds",
		Help:    "Pipeline stage duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 9), // 1ms to ~65s
	}, []string{"stage"})

	participantsScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_participants_scored_total",
		Help: "Participants scored across all recompute runs",
	})

	scoresChanged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_scores_changed_total",
		Help: "Computed score rows written because their values changed",
	})

	// modelOutcomes counts fitted hypothesis models by status
	modelOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_model_outcomes_total",
		Help: "Hypothesis models by estimation status",
	}, []string{"status"})

	bootstrapResamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_bootstrap_resamples_total",
		Help: "Bootstrap resamples drawn for mediation intervals",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_runs_total",
		Help: "Pipeline runs by kind and outcome",
	}, []string{"kind", "outcome"})
)

// #endregion collectors

// #region recorders

// ObserveStage records the time elapsed since start for a pipeline stage.
func ObserveStage(stage string, start time.Time) {
	stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordScored adds one recompute run's participant and changed-row counts.
func RecordScored(participants, changed int) {
	participantsScored.Add(float64(participants))
	scoresChanged.Add(float64(changed))
}

// RecordModel counts one model by its status.
func RecordModel(status string) {
	modelOutcomes.WithLabelValues(status).Inc()
}

// RecordResamples adds drawn bootstrap resamples.
func RecordResamples(n int) {
	if n > 0 {
		bootstrapResamples.Add(float64(n))
	}
}

// RecordRun counts a finished pipeline run.
func RecordRun(kind, outcome string) {
	runsTotal.WithLabelValues(kind, outcome).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// #endregion recorders
