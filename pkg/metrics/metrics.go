package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Changes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schemasync_changes_total",
			Help: "Structural changes applied, by table and kind",
		},
		[]string{"table", "kind"},
	)
	StatementFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schemasync_statement_failures_total",
			Help: "Statements rejected by the database",
		},
		[]string{"table"},
	)
	ReconcileLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schemasync_reconcile_seconds",
			Help:    "Time spent materializing one table",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table", "mode"},
	)
	Schemas = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "schemasync_schemas_registered",
			Help: "Number of registered schemas",
		},
	)
	Columns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "schemasync_columns",
			Help: "Physical columns declared per table",
		},
		[]string{"table"},
	)
	SeedHooks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schemasync_seed_hooks_total",
			Help: "Seeding hooks run, by outcome",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		Changes,
		StatementFailures,
		ReconcileLatency,
		Schemas,
		Columns,
		SeedHooks,
	)
}
