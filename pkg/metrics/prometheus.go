package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	pipelineRuns    *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	observationsIn  prometheus.Counter
	lastFlux        prometheus.Gauge
	lastProbability prometheus.Gauge
	runDuration     prometheus.Histogram
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		pipelineRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flarecast_pipeline_runs_total",
				Help: "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flarecast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		observationsIn: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "flarecast_observations_ingested_total",
				Help: "Total observations written to the store",
			},
		),
		lastFlux: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "flarecast_last_observed_flux",
				Help: "Most recently ingested X-ray flux value",
			},
		),
		lastProbability: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "flarecast_last_flare_probability",
				Help: "Most recently computed M-class flare probability",
			},
		),
		runDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "flarecast_pipeline_duration_seconds",
				Help:    "Duration of full pipeline runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// RecordRun records a completed pipeline run with its outcome.
func (r *Recorder) RecordRun(outcome string, duration time.Duration) {
	r.pipelineRuns.WithLabelValues(outcome).Inc()
	r.runDuration.Observe(duration.Seconds())
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordObservations records a batch of ingested observations.
func (r *Recorder) RecordObservations(count int, latestFlux float64) {
	r.observationsIn.Add(float64(count))
	r.lastFlux.Set(latestFlux)
}

// RecordPrediction records the probability of the latest prediction.
func (r *Recorder) RecordPrediction(probability float64) {
	r.lastProbability.Set(probability)
}
