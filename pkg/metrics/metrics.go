// Package metrics defines the Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "meeplestash"

var (
	// ReconcileOutcomes counts reconcile decisions by outcome (inserted, updated, skipped)
	ReconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "outcomes_total",
		Help:      "Reconcile decisions by outcome",
	}, []string{"outcome"})

	// ReconcileRuns counts reconcile passes by trigger (import, game, catalog)
	ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "runs_total",
		Help:      "Reconcile passes by trigger",
	}, []string{"trigger"})

	// ReconcileDuration observes how long a reconcile pass takes
	ReconcileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "duration_seconds",
		Help:      "Duration of reconcile passes",
		Buckets:   prometheus.DefBuckets,
	}, []string{"trigger"})

	// CatalogRequests counts catalog fetches by result (hit, miss, error)
	CatalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "requests_total",
		Help:      "Catalog fetches by cache result",
	}, []string{"result"})

	// GamesImported counts games imported from the catalog
	GamesImported = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "games",
		Name:      "imported_total",
		Help:      "Games imported from the catalog",
	})
)

// RecordReconcileResult adds a pass's counts to the outcome counters
func RecordReconcileResult(inserted, updated, skipped int) {
	ReconcileOutcomes.WithLabelValues("inserted").Add(float64(inserted))
	ReconcileOutcomes.WithLabelValues("updated").Add(float64(updated))
	ReconcileOutcomes.WithLabelValues("skipped").Add(float64(skipped))
}
