// Package metrics exposes Prometheus instruments for beneficiary imports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ignite/beneficiary-import/internal/domain"
)

// Imports records import pipeline outcomes. It satisfies importing.Metrics.
type Imports struct {
	total        *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	rows         prometheus.Counter
	inserted     prometheus.Counter
	linksCreated prometheus.Counter
}

// NewImports registers the import instruments on reg.
func NewImports(reg prometheus.Registerer) *Imports {
	f := promauto.With(reg)
	return &Imports{
		total: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beneficiary",
			Subsystem: "import",
			Name:      "total",
			Help:      "Import attempts by outcome (completed or error kind).",
		}, []string{"outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "beneficiary",
			Subsystem: "import",
			Name:      "duration_seconds",
			Help:      "End-to-end import latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"outcome"}),
		rows: f.NewCounter(prometheus.CounterOpts{
			Namespace: "beneficiary",
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Spreadsheet rows parsed by imports.",
		}),
		inserted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "beneficiary",
			Subsystem: "import",
			Name:      "beneficiaries_inserted_total",
			Help:      "Beneficiaries created by imports.",
		}),
		linksCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: "beneficiary",
			Subsystem: "import",
			Name:      "links_created_total",
			Help:      "Enrollment links created by imports.",
		}),
	}
}

func (m *Imports) ImportFinished(outcome string, totalRows int, result domain.ImportResult, elapsed time.Duration) {
	m.total.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	m.rows.Add(float64(totalRows))
	m.inserted.Add(float64(result.NewBeneficiariesInserted))
	m.linksCreated.Add(float64(result.NewLinksCreated))
}
