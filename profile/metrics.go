package profile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what an Exporter has written.
type Metrics struct {
	RequestsExported prometheus.Counter
	FieldsDecoded    *prometheus.CounterVec
	BytesWritten     prometheus.Counter
	ExportDuration   prometheus.Histogram
}

// NewMetrics registers the exporter metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsExported: factory.NewCounter(prometheus.CounterOpts{
			Name: "perfexport_requests_exported_total",
			Help: "Request records written to profile exports.",
		}),
		FieldsDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "perfexport_fields_decoded_total",
			Help: "Captured fields decoded, by data type.",
		}, []string{"data_type"}),
		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "perfexport_bytes_written_total",
			Help: "Bytes of JSON written to profile exports.",
		}),
		ExportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "perfexport_export_duration_seconds",
			Help:    "Time to assemble and write one profile export.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

func (m *Metrics) observeExperiments(experiments []Experiment) {
	if m == nil {
		return
	}

	for _, e := range experiments {
		m.RequestsExported.Add(float64(len(e.Requests)))

		for _, r := range e.Requests {
			for _, fields := range r.Inputs {
				m.observeFields(fields)
			}
			for _, fields := range r.Outputs {
				m.observeFields(fields)
			}
		}
	}
}

func (m *Metrics) observeFields(fields Fields) {
	for _, f := range fields {
		m.FieldsDecoded.WithLabelValues(f.Type.String()).Inc()
	}
}
