// Package metrics exposes the pipeline's run and job-state counters as
// Prometheus collectors, registered against a caller-supplied registry
// so tests can use a scratch one instead of the global default.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder collects counts and durations for one pipeline process.
type Recorder struct {
	RunsTotal       *prometheus.CounterVec
	JobsTotal       *prometheus.CounterVec
	BundlesTotal    prometheus.Counter
	WaveDuration    prometheus.Histogram
	SupervisorPolls *prometheus.CounterVec
}

// New registers every collector against reg and returns the Recorder.
// Pass prometheus.NewRegistry() in tests to avoid collisions with
// other packages' global registrations.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contract_engine",
			Name:      "runs_total",
			Help:      "Pipeline runs by exit outcome (ok, escalated, failed, config_error).",
		}, []string{"outcome"}),
		JobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contract_engine",
			Name:      "jobs_total",
			Help:      "Remediation jobs by terminal state.",
		}, []string{"state"}),
		BundlesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "contract_engine",
			Name:      "bundles_built_total",
			Help:      "Remediation bundles built across all runs.",
		}),
		WaveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "contract_engine",
			Name:      "wave_duration_seconds",
			Help:      "Wall-clock time to drive one dispatch wave to all-terminal.",
			Buckets:   prometheus.DefBuckets,
		}),
		SupervisorPolls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contract_engine",
			Name:      "supervisor_polls_total",
			Help:      "Supervisor poll passes by job state examined.",
		}, []string{"state"}),
	}
}

// RecordRun increments the run counter for the given exit code.
func (r *Recorder) RecordRun(exitCode int) {
	if r == nil {
		return
	}
	r.RunsTotal.WithLabelValues(outcomeLabel(exitCode)).Inc()
}

// BundlesInc increments the bundles-built counter by one.
func (r *Recorder) BundlesInc() {
	if r == nil {
		return
	}
	r.BundlesTotal.Inc()
}

// RecordJob increments the job counter for a terminal state.
func (r *Recorder) RecordJob(state string) {
	if r == nil {
		return
	}
	r.JobsTotal.WithLabelValues(state).Inc()
}

func outcomeLabel(exitCode int) string {
	switch exitCode {
	case 0:
		return "ok"
	case 2:
		return "escalated"
	case 3:
		return "failed"
	case 10:
		return "config_error"
	default:
		return "unknown"
	}
}
