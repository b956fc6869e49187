package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// RefreshTotal counts snapshot refresh attempts
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iovcalib_refresh_total",
			Help: "Total number of snapshot refresh attempts",
		},
		[]string{"source", "result"}, // result: updated, unchanged, error
	)

	// RefreshDuration measures how long a refresh took, including folder I/O
	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iovcalib_refresh_duration_seconds",
			Help:    "Snapshot refresh duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"source"},
	)

	// LookupsTotal counts per-channel lookups
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iovcalib_lookups_total",
			Help: "Total number of channel lookups",
		},
		[]string{"result"}, // result: hit, unknown_channel
	)

	// SnapshotRows tracks the number of rows in the published snapshot
	SnapshotRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "iovcalib_snapshot_rows",
			Help: "Number of channels in the published snapshot",
		},
	)

	// SnapshotBeginStamp tracks the begin stamp of the published snapshot
	SnapshotBeginStamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "iovcalib_snapshot_begin_stamp",
			Help: "Begin stamp of the published snapshot's interval of validity",
		},
	)

	// SnapshotsPublished counts snapshot publications
	SnapshotsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iovcalib_snapshots_published_total",
			Help: "Total number of snapshots published",
		},
		[]string{"source"},
	)

	// FolderQueries counts queries issued to a folder backend
	FolderQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iovcalib_folder_queries_total",
			Help: "Total number of folder backend queries",
		},
		[]string{"backend", "operation", "status"}, // operation: find_iov, fetch_payload, store_iov
	)

	// FolderQueryDuration measures folder backend query time
	FolderQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iovcalib_folder_query_duration_seconds",
			Help:    "Folder backend query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"backend", "operation"},
	)

	// PayloadCacheHits tracks payloads served from the folder payload cache
	PayloadCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "iovcalib_payload_cache_hits_total",
			Help: "Total number of folder payloads served from cache",
		},
	)

	// PayloadCacheMisses tracks payloads fetched from the backend
	PayloadCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "iovcalib_payload_cache_misses_total",
			Help: "Total number of folder payloads fetched from the backend",
		},
	)

	// ClickHouseQueries counts total number of ClickHouse queries executed
	ClickHouseQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iovcalib_clickhouse_queries_total",
			Help: "Total number of ClickHouse queries executed",
		},
		[]string{"query_type", "status"}, // query_type: select, insert; status: success, error
	)

	// ClickHouseQueryDuration measures ClickHouse query execution time
	ClickHouseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iovcalib_clickhouse_query_duration_seconds",
			Help:    "ClickHouse query execution time",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		},
		[]string{"query_type"},
	)

	// ErrorsTotal counts total number of errors
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iovcalib_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordRefresh records the outcome of a snapshot refresh
func RecordRefresh(source, result string, duration float64) {
	RefreshTotal.WithLabelValues(source, result).Inc()
	RefreshDuration.WithLabelValues(source).Observe(duration)
}

// RecordSnapshotPublished records a newly published snapshot
func RecordSnapshotPublished(source string, rows int, beginStamp uint64) {
	SnapshotsPublished.WithLabelValues(source).Inc()
	SnapshotRows.Set(float64(rows))
	SnapshotBeginStamp.Set(float64(beginStamp))
}

// RecordLookup records a channel lookup
func RecordLookup(result string) {
	LookupsTotal.WithLabelValues(result).Inc()
}

// RecordFolderQuery records folder backend query metrics
func RecordFolderQuery(backend, operation, status string, duration float64) {
	FolderQueries.WithLabelValues(backend, operation, status).Inc()
	FolderQueryDuration.WithLabelValues(backend, operation).Observe(duration)
}

// RecordPayloadCache records a payload cache hit or miss
func RecordPayloadCache(hit bool) {
	if hit {
		PayloadCacheHits.Inc()
		return
	}

	PayloadCacheMisses.Inc()
}

// RecordClickHouseQuery records ClickHouse query metrics
func RecordClickHouseQuery(queryType, status string, duration float64) {
	ClickHouseQueries.WithLabelValues(queryType, status).Inc()
	ClickHouseQueryDuration.WithLabelValues(queryType).Observe(duration)
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
