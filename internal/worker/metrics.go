package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentic_coder",
		Name:      "runs_total",
		Help:      "Runs processed by the worker, by final status.",
	}, []string{"status"})
	metricEdits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentic_coder",
		Name:      "edits_total",
		Help:      "Model-proposed edits, by outcome (applied or blocked).",
	}, []string{"outcome"})
	metricModelSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "agentic_coder",
		Name:      "model_seconds",
		Help:      "Latency of model generation calls.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 180},
	})
)

func recordRun(status string) {
	metricRuns.WithLabelValues(status).Inc()
}

func recordEdit(outcome string) {
	metricEdits.WithLabelValues(outcome).Inc()
}

func observeModel(d time.Duration) {
	metricModelSeconds.Observe(d.Seconds())
}
