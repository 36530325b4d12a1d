// Package telemetry exposes Prometheus metrics for the inbound message
// pipeline and the HTTP surface.
package telemetry

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics counts pipeline outcomes. All counters are registered on a
// private registry so multiple instances (tests included) never collide.
type PipelineMetrics struct {
	registry *prometheus.Registry

	Processed     prometheus.Counter
	Archived      prometheus.Counter
	Errored       prometheus.Counter
	ObsErrors     prometheus.Counter
	Proposals     prometheus.Counter
	MLLPMessages  prometheus.Counter
	QueueDuration prometheus.Histogram
}

func NewPipelineMetrics() *PipelineMetrics {
	m := &PipelineMetrics{
		registry: prometheus.NewRegistry(),
		Processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hl7_queue_entries_processed_total",
			Help: "Queue entries pulled and processed to a terminal state",
		}),
		Archived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hl7_queue_entries_archived_total",
			Help: "Queue entries that reached the archive",
		}),
		Errored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hl7_queue_entries_errored_total",
			Help: "Queue entries that failed fatally",
		}),
		ObsErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hl7_observation_errors_total",
			Help: "Per-observation failures recorded during processing",
		}),
		Proposals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hl7_concept_proposals_total",
			Help: "Concept proposals raised from inbound coded values",
		}),
		MLLPMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hl7_mllp_messages_received_total",
			Help: "Messages received over the MLLP listener",
		}),
		QueueDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hl7_queue_entry_duration_seconds",
			Help:    "Time spent processing one queue entry",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.Processed, m.Archived, m.Errored,
		m.ObsErrors, m.Proposals, m.MLLPMessages, m.QueueDuration,
	)
	return m
}

// Handler serves the registry in Prometheus text exposition format.
func (m *PipelineMetrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Gather exposes the registry's current state; used by tests.
func (m *PipelineMetrics) Gather() ([]*MetricFamily, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make([]*MetricFamily, 0, len(families))
	for _, mf := range families {
		f := &MetricFamily{Name: mf.GetName()}
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				f.Value += c.GetValue()
			}
		}
		out = append(out, f)
	}
	return out, nil
}

// MetricFamily is a flattened counter family snapshot.
type MetricFamily struct {
	Name  string
	Value float64
}
