package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records run and stage outcomes in its own registry so a
// one-shot CLI run can export them as a node_exporter textfile.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	runs          *prometheus.CounterVec
	stageFailures *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	pixels        prometheus.Counter
}

// NewMetrics creates the collectors and registers them on a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hpdec",
			Name:      "runs_total",
			Help:      "Pipeline runs by result.",
		}, []string{"result"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hpdec",
			Name:      "stage_failures_total",
			Help:      "Pipeline stage failures by stage.",
		}, []string{"stage"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hpdec",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"stage"}),
		pixels: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hpdec",
			Name:      "pixels_processed_total",
			Help:      "Pixels decoded by successful decode stages.",
		}),
	}
	m.Registry.MustRegister(m.runs, m.stageFailures, m.stageDuration, m.pixels)
	return m
}

func (m *Metrics) observeStage(stage Stage, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
	if err != nil {
		m.stageFailures.WithLabelValues(string(stage)).Inc()
	}
}

func (m *Metrics) observeRun(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.runs.WithLabelValues(result).Inc()
}

func (m *Metrics) addPixels(n int) {
	if m == nil {
		return
	}
	m.pixels.Add(float64(n))
}

// WriteTextfile writes the current metric values to path in the Prometheus
// text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
