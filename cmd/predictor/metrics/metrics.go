// Package metrics provides Prometheus metrics instrumentation for the predictor.
//
// Metrics exposed:
//   - gradecast_predict_seconds: Histogram of end-to-end prediction latency by path
//   - gradecast_stage_seconds: Histogram of single stage invocation latency by stage
//   - gradecast_predictions_total: Counter of served predictions by path and status
//   - gradecast_errors_total: Counter of errors by component and reason
//   - gradecast_loaded_stages: Gauge of stages in the loaded artifact bundle
//
// Metrics are registered on the registerer passed to New so tests can use a
// private registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the predictor.
// It satisfies predictor.Recorder.
type Metrics struct {
	PredictSeconds   *prometheus.HistogramVec
	StageSeconds     *prometheus.HistogramVec
	PredictionsTotal *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	LoadedStages     prometheus.Gauge
}

var latencyBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}

// New creates and registers all predictor metrics on reg.
func New(reg prometheus.Registerer, bundle string) *Metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"bundle": bundle}

	return &Metrics{
		PredictSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "gradecast_predict_seconds",
			Help:        "Time spent serving a prediction request",
			ConstLabels: labels,
			Buckets:     latencyBuckets,
		}, []string{"path"}),

		StageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "gradecast_stage_seconds",
			Help:        "Time spent invoking a single cascade stage",
			ConstLabels: labels,
			Buckets:     latencyBuckets,
		}, []string{"stage"}),

		PredictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "gradecast_predictions_total",
			Help:        "Total number of predictions served by path and status",
			ConstLabels: labels,
		}, []string{"path", "status"}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "gradecast_errors_total",
			Help:        "Total number of errors by component and reason",
			ConstLabels: labels,
		}, []string{"component", "reason"}),

		LoadedStages: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "gradecast_loaded_stages",
			Help:        "Number of stages in the loaded artifact bundle",
			ConstLabels: labels,
		}),
	}
}

// RecordPredict records one served prediction.
func (m *Metrics) RecordPredict(path, status string, d time.Duration) {
	m.PredictSeconds.WithLabelValues(path).Observe(d.Seconds())
	m.PredictionsTotal.WithLabelValues(path, status).Inc()
}

// RecordStage records the time spent in one stage.
func (m *Metrics) RecordStage(stage string, d time.Duration) {
	m.StageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}

// SetLoadedStages sets the loaded stage count.
func (m *Metrics) SetLoadedStages(n int) {
	m.LoadedStages.Set(float64(n))
}
