// Package metrics records inference and phase timings in a private Prometheus
// registry that can be exported as a node-exporter textfile.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "prereg"

// Recorder implements inference.Observer and the pipeline's phase observer.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry         *prometheus.Registry
	inferenceLatency *prometheus.HistogramVec
	inferenceTotal   *prometheus.CounterVec
	phaseLatency     *prometheus.HistogramVec
	phaseTotal       *prometheus.CounterVec
	advisories       *prometheus.CounterVec
}

// NewRecorder builds a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		inferenceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Wall time of chat-completion requests.",
			Buckets:   []float64{1, 5, 10, 20, 40, 60, 90, 120},
		}, []string{"model", "outcome"}),
		inferenceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_requests_total",
			Help:      "Chat-completion requests by model and outcome.",
		}, []string{"model", "outcome"}),
		phaseLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall time of registration and comparison phases.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"phase"}),
		phaseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_runs_total",
			Help:      "Phase executions by result.",
		}, []string{"phase", "status"}),
		advisories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalization_advisories_total",
			Help:      "Advisories raised while normalizing model output.",
		}, []string{"phase"}),
	}
	r.registry.MustRegister(r.inferenceLatency, r.inferenceTotal, r.phaseLatency, r.phaseTotal, r.advisories)
	return r
}

// ObserveInference records one request.
func (r *Recorder) ObserveInference(model, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.inferenceLatency.WithLabelValues(model, outcome).Observe(elapsed.Seconds())
	r.inferenceTotal.WithLabelValues(model, outcome).Inc()
}

// Observe records a phase outcome.
func (r *Recorder) Observe(_ context.Context, phase string, success bool, duration time.Duration) {
	if r == nil || phase == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.phaseLatency.WithLabelValues(phase).Observe(duration.Seconds())
	r.phaseTotal.WithLabelValues(phase, status).Inc()
}

// AddAdvisories counts normalization advisories for a phase.
func (r *Recorder) AddAdvisories(phase string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.advisories.WithLabelValues(phase).Add(float64(n))
}

// WriteTextfile writes every collected metric to path in the text exposition
// format. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
