package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the pipeline's Prometheus instruments. Labels: stage is one of
// hydrology, risk, limitation, opportunity, management, dams.
type Metrics struct {
	segments     *prometheus.CounterVec
	skipped      *prometheus.CounterVec
	corrections  prometheus.Counter
	flagged      prometheus.Counter
	stageSeconds *prometheus.HistogramVec
	runs         *prometheus.CounterVec
}

// NewMetrics registers the pipeline instruments with reg. A nil reg uses a
// private registry, which keeps repeated runs in one process from colliding.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		segments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brat",
			Subsystem: "pipeline",
			Name:      "segments_processed_total",
			Help:      "Segments that received a value from a stage",
		}, []string{"stage"}),
		skipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brat",
			Subsystem: "pipeline",
			Name:      "segments_skipped_total",
			Help:      "Segments left unchanged by a stage because an input was missing",
		}, []string{"stage"}),
		corrections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "brat",
			Subsystem: "hydrology",
			Name:      "peakflow_corrections_total",
			Help:      "Segments whose peakflow was raised above baseflow",
		}),
		flagged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "brat",
			Subsystem: "dams",
			Name:      "negative_capacity_total",
			Help:      "Segments with a negative capacity estimate",
		}),
		stageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "brat",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each stage including store writes",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"stage"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brat",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) observe(stage string, processed, skipped int, seconds float64) {
	m.segments.WithLabelValues(stage).Add(float64(processed))
	m.skipped.WithLabelValues(stage).Add(float64(skipped))
	m.stageSeconds.WithLabelValues(stage).Observe(seconds)
}
