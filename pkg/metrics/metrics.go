// Package metrics provides Prometheus metrics for the LIMS service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UpsertsTotal tracks result upserts by payload kind and outcome
	UpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lims",
			Subsystem: "results",
			Name:      "upserts_total",
			Help:      "Total number of result upserts by kind and action",
		},
		[]string{"kind", "action"},
	)

	// UpsertDuration tracks how long one upsert unit of work takes
	UpsertDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lims",
			Subsystem: "results",
			Name:      "upsert_duration_seconds",
			Help:      "Duration of result upserts in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"kind"},
	)

	BulkRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lims",
			Subsystem: "results",
			Name:      "bulk_rows_total",
			Help:      "Total number of bulk upload rows by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	DataQualityWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lims",
			Subsystem: "results",
			Name:      "data_quality_warnings_total",
			Help:      "Total number of non-fatal data quality warnings by kind",
		},
		[]string{"kind"},
	)

	// PrimaryPromotionsTotal counts demote-then-promote passes over a timepoint bucket
	PrimaryPromotionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lims",
			Subsystem: "timepoint",
			Name:      "primary_promotions_total",
			Help:      "Total number of primary result selections",
		},
	)

	AutoProvisionedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lims",
			Subsystem: "lineage",
			Name:      "auto_provisioned_total",
			Help:      "Total number of treatment experiments created from uploads",
		},
	)

	// LineageLinksTotal tracks lineage recomputations by identifier kind
	LineageLinksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lims",
			Subsystem: "lineage",
			Name:      "links_total",
			Help:      "Total number of lineage links that changed an experiment",
		},
		[]string{"kind"},
	)

	OrphansBacklinkedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lims",
			Subsystem: "lineage",
			Name:      "orphans_backlinked_total",
			Help:      "Total number of derivations linked after their base experiment appeared",
		},
	)

	CumulativePropagationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lims",
			Subsystem: "lineage",
			Name:      "cumulative_propagations_total",
			Help:      "Total number of lineage family cumulative time recomputations by outcome",
		},
		[]string{"outcome"},
	)
)

func RecordUpsert(kind, action string, durationSeconds float64) {
	UpsertsTotal.WithLabelValues(kind, action).Inc()
	UpsertDuration.WithLabelValues(kind).Observe(durationSeconds)
}

func RecordBulkRow(kind, outcome string) {
	BulkRowsTotal.WithLabelValues(kind, outcome).Inc()
}

func RecordWarnings(kind string, count int) {
	if count > 0 {
		DataQualityWarningsTotal.WithLabelValues(kind).Add(float64(count))
	}
}

func RecordPropagation(outcome string) {
	CumulativePropagationsTotal.WithLabelValues(outcome).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
