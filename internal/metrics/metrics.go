// Package metrics holds the prometheus collectors of the sync pipelines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Producer
	WindowsFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchsync_windows_fetched_total",
		Help: "The total number of non-empty change windows fetched from the source",
	}, []string{"entity"})

	RowsChanged = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchsync_rows_changed_total",
		Help: "The total number of changed source rows seen by the producer",
	}, []string{"entity"})

	// Loader
	DocumentsLoaded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchsync_documents_loaded_total",
		Help: "The total number of documents upserted into the index",
	}, []string{"entity"})

	BulkLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "searchsync_bulk_latency_seconds",
		Help: "The latency of a bulk upsert sub-batch including retries",
	}, []string{"entity"})

	// Checkpoints
	CheckpointsCommitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchsync_checkpoints_committed_total",
		Help: "The total number of checkpoint commits",
	}, []string{"entity"})

	Watermark = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "searchsync_watermark_seconds",
		Help: "The last committed watermark as a unix timestamp",
	}, []string{"entity"})

	// Cycles and failures
	CyclesCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchsync_cycles_completed_total",
		Help: "The total number of completed producer scans",
	}, []string{"entity"})

	Retries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchsync_retries_total",
		Help: "The total number of retried remote calls",
	}, []string{"entity", "client"})

	InstanceFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "searchsync_instance_failures_total",
		Help: "The total number of pipeline instances stopped by an unrecoverable error",
	}, []string{"entity"})
)

func init() {
	prometheus.MustRegister(WindowsFetched)
	prometheus.MustRegister(RowsChanged)
	prometheus.MustRegister(DocumentsLoaded)
	prometheus.MustRegister(BulkLatency)
	prometheus.MustRegister(CheckpointsCommitted)
	prometheus.MustRegister(Watermark)
	prometheus.MustRegister(CyclesCompleted)
	prometheus.MustRegister(Retries)
	prometheus.MustRegister(InstanceFailures)
}
