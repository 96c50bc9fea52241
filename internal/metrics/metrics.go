// Package metrics exposes Prometheus collectors for case lifecycle activity.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors reported by the services.
type Metrics struct {
	CasesCreated     prometheus.Counter
	CasesMerged      prometheus.Counter
	DedupOutcomes    *prometheus.CounterVec
	ImagesUploaded   prometheus.Counter
	UploadFailures   prometheus.Counter
	BlobDeleteErrors prometheus.Counter
	CasesDeleted     prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the package-level metrics instance registered with the
// global Prometheus registry. Collectors are created once to avoid duplicate
// registration panics when services are instantiated multiple times.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = MustNew(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// MustNew constructs a Metrics instance using the provided registerer.
// Supply a fresh registry in tests that need isolated collectors. Any
// registration error panics, mirroring promauto semantics.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		CasesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "casebook",
			Subsystem: "cases",
			Name:      "created_total",
			Help:      "Total number of new cases created.",
		}),
		CasesMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "casebook",
			Subsystem: "cases",
			Name:      "merged_total",
			Help:      "Total number of submissions merged into an existing case.",
		}),
		DedupOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "casebook",
			Subsystem: "dedup",
			Name:      "resolutions_total",
			Help:      "Duplicate check resolutions by outcome.",
		}, []string{"outcome"}),
		ImagesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "casebook",
			Subsystem: "images",
			Name:      "uploaded_total",
			Help:      "Total number of images uploaded to object storage.",
		}),
		UploadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "casebook",
			Subsystem: "images",
			Name:      "upload_failures_total",
			Help:      "Total number of failed image uploads.",
		}),
		BlobDeleteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "casebook",
			Subsystem: "images",
			Name:      "blob_delete_errors_total",
			Help:      "Blob deletions that failed and were skipped best-effort.",
		}),
		CasesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "casebook",
			Subsystem: "cases",
			Name:      "deleted_total",
			Help:      "Total number of cases deleted.",
		}),
	}

	reg.MustRegister(
		m.CasesCreated, m.CasesMerged, m.DedupOutcomes,
		m.ImagesUploaded, m.UploadFailures, m.BlobDeleteErrors,
		m.CasesDeleted,
	)
	return m
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
