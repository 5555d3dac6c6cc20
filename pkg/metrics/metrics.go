// Package metrics defines the Prometheus collectors of the playground servers.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lemonberrylabs/loxwalk/pkg/diagnostics"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lox_runs_total",
		Help: "Runs executed by the playground, by final state",
	}, []string{"state"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lox_run_duration_seconds",
		Help:    "Time from scanning to the end of interpretation, by final state",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"state"})

	DiagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lox_diagnostics_total",
		Help: "Diagnostics reported by runs, by kind",
	}, []string{"kind"})
)

// ObserveRun records the outcome of one run.
func ObserveRun(state string, d time.Duration, diags []*diagnostics.Diagnostic) {
	RunsTotal.WithLabelValues(state).Inc()
	RunDuration.WithLabelValues(state).Observe(d.Seconds())
	for _, diag := range diags {
		DiagnosticsTotal.WithLabelValues(diag.Kind.String()).Inc()
	}
}

// Handler serves every registered collector in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
