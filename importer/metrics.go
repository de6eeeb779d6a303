package importer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	files           *prometheus.CounterVec
	batches         *prometheus.CounterVec
	resolveDuration prometheus.Histogram
}

// newMetrics registers the importer metrics on reg; a nil reg leaves them unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		files: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mcrm",
				Subsystem: "import",
				Name:      "files_total",
				Help:      "Files processed by import batches, by outcome.",
			},
			[]string{"outcome"},
		),
		batches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mcrm",
				Subsystem: "import",
				Name:      "batches_total",
				Help:      "Import batches, by status.",
			},
			[]string{"status"},
		),
		resolveDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "mcrm",
				Name:      "resolve_duration_seconds",
				Help:      "Time spent resolving a single file.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
		),
	}
}

func (m *metrics) record(res *Result) {
	m.files.WithLabelValues("imported").Add(float64(len(res.Imported)))
	m.files.WithLabelValues("updated").Add(float64(len(res.Updated)))
	m.files.WithLabelValues("unrecognized").Add(float64(len(res.Unrecognized)))
	m.files.WithLabelValues("failed").Add(float64(len(res.Failed)))
	m.files.WithLabelValues("duplicate").Add(float64(len(res.Duplicates)))
}
