// Package metrics records step and scenario outcomes as Prometheus series.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flowdriver"

// Recorder owns a private registry so that runs and tests do not share series.
type Recorder struct {
	Registry *prometheus.Registry

	steps       *prometheus.CounterVec
	stepSeconds *prometheus.HistogramVec
	scenarios   *prometheus.CounterVec
	scenarioSec *prometheus.HistogramVec
	waitSeconds *prometheus.HistogramVec
	waitPolls   prometheus.Counter
}

// New creates a Recorder with all series registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		Registry: reg,
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Executed scenario steps by action and status.",
		}, []string{"action", "status"}),
		stepSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Step execution time by action.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"action"}),
		scenarios: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Finished scenarios by status.",
		}, []string{"status"}),
		scenarioSec: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scenario_duration_seconds",
			Help:      "Scenario wall time by scenario name.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"scenario"}),
		waitSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wait_duration_seconds",
			Help:      "Time spent waiting for elements to become visible.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"outcome"}),
		waitPolls: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wait_polls_total",
			Help:      "Backend lookups issued while waiting for visibility.",
		}),
	}
}

// ObserveStep records one finished step. A nil Recorder is a no-op.
func (r *Recorder) ObserveStep(action, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.steps.WithLabelValues(action, status).Inc()
	r.stepSeconds.WithLabelValues(action).Observe(d.Seconds())
}

// ObserveScenario records one finished scenario.
func (r *Recorder) ObserveScenario(name, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.scenarios.WithLabelValues(status).Inc()
	r.scenarioSec.WithLabelValues(name).Observe(d.Seconds())
}

// ObserveWait records a finished wait-for-visibility and the polls it took.
func (r *Recorder) ObserveWait(found bool, polls int, d time.Duration) {
	if r == nil {
		return
	}
	outcome := "found"
	if !found {
		outcome = "timeout"
	}
	r.waitSeconds.WithLabelValues(outcome).Observe(d.Seconds())
	r.waitPolls.Add(float64(polls))
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}
