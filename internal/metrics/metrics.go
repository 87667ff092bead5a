// Package metrics exposes stage run counters for Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "coachflow"

	stageLabel   = "stage"
	resultLabel  = "result"
	outcomeLabel = "outcome"

	ResultSuccess = "success"
	ResultPartial = "partial"
	ResultFailure = "failure"
	ResultBusy    = "busy"
)

// Recorder owns the stage collectors and the registry they live in.
type Recorder struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec
	items       *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

// NewRecorder registers the stage collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_runs_total",
				Help:      "number of stage runs by result",
			},
			[]string{stageLabel, resultLabel},
		),
		items: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_items_total",
				Help:      "number of items a stage handled by outcome",
			},
			[]string{stageLabel, outcomeLabel},
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_last_success_timestamp_seconds",
				Help:      "unix time of the last stage run without failures",
			},
			[]string{stageLabel},
		),
	}
	r.registry.MustRegister(r.runs, r.items, r.lastSuccess)
	return r
}

// Registry returns the registry the collectors are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRun records one stage run. counts is the run's outcome counters.
func (r *Recorder) ObserveRun(stage, result string, counts map[string]int, at time.Time) {
	if r == nil {
		return
	}
	r.runs.With(prometheus.Labels{stageLabel: stage, resultLabel: result}).Inc()
	for outcome, n := range counts {
		if n <= 0 {
			continue
		}
		r.items.With(prometheus.Labels{stageLabel: stage, outcomeLabel: outcome}).Add(float64(n))
	}
	if result == ResultSuccess {
		r.lastSuccess.With(prometheus.Labels{stageLabel: stage}).Set(float64(at.Unix()))
	}
}
