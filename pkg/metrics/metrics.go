package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ledger metrics
	TransactionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledgerflow_transactions_total",
			Help: "Total number of transactions by source type",
		},
		[]string{"source_type"},
	)

	CorrectionsAppliedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgerflow_corrections_applied_total",
			Help: "Total number of correction events applied during reduction",
		},
	)

	LedgerReplayDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledgerflow_ledger_replay_duration_seconds",
			Help:    "Time taken to replay the transaction and correction logs",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Source registry metrics
	SourcesRegisteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerflow_sources_registered_total",
			Help: "Total number of source documents registered by outcome",
		},
		[]string{"outcome"},
	)

	// Secondary index metrics
	IndexRowsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledgerflow_index_rows_total",
			Help: "Total number of rows in the secondary index by bucket",
		},
		[]string{"bucket"},
	)

	IndexRebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledgerflow_index_rebuild_duration_seconds",
			Help:    "Time taken to rebuild the secondary index from scratch",
			Buckets: prometheus.DefBuckets,
		},
	)

	IndexStalenessSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledgerflow_index_staleness_seconds",
			Help: "Seconds since the secondary index was last updated",
		},
	)

	// Task engine metrics
	TasksQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledgerflow_tasks_queue_depth",
			Help: "Number of tasks by status",
		},
		[]string{"status"},
	)

	TasksCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerflow_tasks_completed_total",
			Help: "Total number of tasks completed by outcome",
		},
		[]string{"type", "outcome"},
	)

	TaskExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgerflow_task_execution_duration_seconds",
			Help:    "Time taken to execute a task by type",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	SchedulerTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgerflow_scheduler_ticks_total",
			Help: "Total number of scheduler evaluation ticks",
		},
	)

	SchedulerJobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerflow_scheduler_jobs_enqueued_total",
			Help: "Total number of jobs enqueued by the scheduler by job id",
		},
		[]string{"job_id"},
	)

	// Alerts metrics
	AlertsFiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerflow_alerts_fired_total",
			Help: "Total number of alert events fired by rule type",
		},
		[]string{"rule_type"},
	)

	AlertsEvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledgerflow_alerts_evaluation_duration_seconds",
			Help:    "Time taken to evaluate all alert rules once",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Delivery metrics
	DeliveryCursor = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledgerflow_delivery_cursor",
			Help: "Current delivery cursor position by channel",
		},
		[]string{"channel"},
	)

	DeliveryFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerflow_delivery_failures_total",
			Help: "Total number of delivery failures by channel",
		},
		[]string{"channel"},
	)

	DeliveryRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgerflow_delivery_run_duration_seconds",
			Help:    "Time taken for a delivery run by channel",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	// Auth metrics
	AuthRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerflow_auth_requests_total",
			Help: "Total number of authorization checks by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(TransactionsTotal)
	prometheus.MustRegister(CorrectionsAppliedTotal)
	prometheus.MustRegister(LedgerReplayDuration)
	prometheus.MustRegister(SourcesRegisteredTotal)
	prometheus.MustRegister(IndexRowsTotal)
	prometheus.MustRegister(IndexRebuildDuration)
	prometheus.MustRegister(IndexStalenessSeconds)
	prometheus.MustRegister(TasksQueueDepth)
	prometheus.MustRegister(TasksCompletedTotal)
	prometheus.MustRegister(TaskExecutionDuration)
	prometheus.MustRegister(SchedulerTicksTotal)
	prometheus.MustRegister(SchedulerJobsEnqueuedTotal)
	prometheus.MustRegister(AlertsFiredTotal)
	prometheus.MustRegister(AlertsEvaluationDuration)
	prometheus.MustRegister(DeliveryCursor)
	prometheus.MustRegister(DeliveryFailuresTotal)
	prometheus.MustRegister(DeliveryRunDuration)
	prometheus.MustRegister(AuthRequestsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
