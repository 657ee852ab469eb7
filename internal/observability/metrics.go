// Package observability provides Prometheus metrics for the batch jobs.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lpanalytics"

// Outcomes of one unit of work.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Metrics holds the counters and timings of the batch jobs.
type Metrics struct {
	// Job metrics
	Units       *prometheus.CounterVec
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	LastSuccess *prometheus.GaugeVec

	// Pricing metrics
	PriceIndexDuration prometheus.Histogram
	PriceRowsWritten   prometheus.Counter

	// Summary metrics
	SummariesWritten *prometheus.CounterVec
	StaleDeleted     prometheus.Counter
	Outliers         *prometheus.CounterVec
}

// NewMetrics registers every metric with reg. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Units: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "units_total",
			Help:      "Units of work handled by a job, by outcome",
		}, []string{"job", "outcome"}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "runs_total",
			Help:      "Job runs by status",
		}, []string{"job", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "run_duration_seconds",
			Help:      "Duration of a job run",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		}, []string{"job"}),
		LastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}, []string{"job"}),

		PriceIndexDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "price_index_duration_seconds",
			Help:      "Time to build one token price index",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		PriceRowsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "price_rows_written_total",
			Help:      "Hourly price rows upserted",
		}),

		SummariesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "summary",
			Name:      "records_written_total",
			Help:      "LP summary records upserted by summary type",
		}, []string{"summary_type"}),
		StaleDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "summary",
			Name:      "stale_deleted_total",
			Help:      "Stale LP summary records deleted",
		}),
		Outliers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "summary",
			Name:      "outliers_total",
			Help:      "LP summary records flagged by quality checks",
		}, []string{"summary_type"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves the metrics of a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordUnit counts one unit of work. Safe on a nil receiver.
func (m *Metrics) RecordUnit(job, outcome string) {
	if m == nil {
		return
	}
	m.Units.WithLabelValues(job, outcome).Inc()
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(job string, seconds float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(job, status).Inc()
	m.RunDuration.WithLabelValues(job).Observe(seconds)
	if err == nil {
		m.LastSuccess.WithLabelValues(job).SetToCurrentTime()
	}
}

// RecordPriceIndex records the time spent building one price index.
func (m *Metrics) RecordPriceIndex(seconds float64) {
	if m == nil {
		return
	}
	m.PriceIndexDuration.Observe(seconds)
}

// RecordPriceRows counts upserted price rows.
func (m *Metrics) RecordPriceRows(n int) {
	if m == nil {
		return
	}
	m.PriceRowsWritten.Add(float64(n))
}

// RecordSummary counts an upserted summary and its outlier flag.
func (m *Metrics) RecordSummary(summaryType string, outlier bool) {
	if m == nil {
		return
	}
	m.SummariesWritten.WithLabelValues(summaryType).Inc()
	if outlier {
		m.Outliers.WithLabelValues(summaryType).Inc()
	}
}

// RecordStaleDeleted counts deleted stale summaries.
func (m *Metrics) RecordStaleDeleted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.StaleDeleted.Add(float64(n))
}
