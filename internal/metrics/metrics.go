// Package metrics exposes Prometheus collectors for the recognition pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vision"

// Outcomes recorded on counters.
const (
	OutcomeSuccess        = "success"
	OutcomeDecodeError    = "decode_error"
	OutcomeNotInitialized = "not_initialized"
	OutcomeInferenceError = "inference_error"
	OutcomeLoadError      = "load_error"
	OutcomeError          = "error"
)

// Metrics groups the pipeline collectors.
type Metrics struct {
	Recognitions    *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	ModelLoads      *prometheus.CounterVec
	ModelReady      prometheus.Gauge
	ModelLoadedTime prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Recognitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognitions_total",
			Help:      "Recognition requests by input kind and outcome.",
		}, []string{"input", "outcome"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"stage"}),
		ModelLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_loads_total",
			Help:      "Model initialization attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		ModelReady: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_ready",
			Help:      "1 when a model is loaded and serving.",
		}),
		ModelLoadedTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_loaded_timestamp_seconds",
			Help:      "Unix time the current model was loaded.",
		}),
	}
}

// ObserveStage records how long a pipeline stage took.
func (m *Metrics) ObserveStage(stage string, startedAt time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(startedAt).Seconds())
}

// RecordRecognition counts one recognition request.
func (m *Metrics) RecordRecognition(input, outcome string) {
	m.Recognitions.WithLabelValues(input, outcome).Inc()
}

// RecordModelLoad counts one initialization attempt and updates readiness.
func (m *Metrics) RecordModelLoad(source, outcome string, ready bool) {
	m.ModelLoads.WithLabelValues(source, outcome).Inc()
	if ready {
		m.ModelReady.Set(1)
	} else {
		m.ModelReady.Set(0)
	}
	if outcome == OutcomeSuccess {
		m.ModelLoadedTime.SetToCurrentTime()
	}
}
