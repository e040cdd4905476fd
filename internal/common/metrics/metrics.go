// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StagesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_stages_completed_total",
			Help: "Total number of stages completed by the orchestrator",
		},
		[]string{"stage"},
	)

	StagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_stages_failed_total",
			Help: "Total number of stages failed by the orchestrator",
		},
		[]string{"stage", "error_code"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "assessment_stage_duration_seconds",
			Help: "Duration of stage processing in seconds",
		},
		[]string{"stage"},
	)

	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assessment_runs_active",
			Help: "Number of assessment runs currently in flight",
		},
	)

	RunsFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_runs_finalized_total",
			Help: "Total number of runs that reached a terminal stage",
		},
		[]string{"terminal_stage", "decision"},
	)
)
