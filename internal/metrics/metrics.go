package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoadAttempts tracks loader attempts per table and outcome (success, retry, fatal)
	LoadAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherload_load_attempts_total",
			Help: "Total number of idempotent load attempts",
		},
		[]string{"table", "outcome"},
	)

	// RowsWritten tracks rows committed into warehouse tables
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherload_rows_written_total",
			Help: "Total number of rows committed by the loader",
		},
		[]string{"table"},
	)

	// RowsDeleted tracks rows replaced by the delete phase
	RowsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherload_rows_deleted_total",
			Help: "Total number of rows replaced by the loader",
		},
		[]string{"table"},
	)

	// LoadDuration tracks the duration of a single load attempt
	LoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherload_load_duration_seconds",
			Help:    "Load attempt duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	// Notifications tracks failure notifications sent
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherload_notifications_total",
			Help: "Total number of failure notifications",
		},
		[]string{"status"},
	)

	// ProviderRequests tracks weather provider requests per feature and result
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherload_provider_requests_total",
			Help: "Total number of weather provider requests",
		},
		[]string{"feature", "result"},
	)

	// DBPoolUsage tracks acquired connections as a percentage of the pool size
	DBPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "weatherload_db_pool_usage_percent",
			Help: "Percentage of pool connections currently acquired",
		},
	)

	// LastLoadedDay tracks the unix time of the last day loaded per table and city
	LastLoadedDay = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "weatherload_last_loaded_day_timestamp",
			Help: "Unix timestamp of the last successfully loaded day",
		},
		[]string{"table", "city"},
	)
)
