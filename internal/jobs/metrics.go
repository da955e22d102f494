// Package jobmetrics holds the Prometheus collectors shared by background jobs.
package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	drift    *prometheus.CounterVec
	lowStock *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against registerer, falling back to the
// default Prometheus registerer when nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records duration and outcome and returns err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddDrift counts stock rows whose quantity disagrees with their movements.
func (m *Metrics) AddDrift(branchID int64, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.drift.WithLabelValues(formatInt(branchID)).Add(float64(count))
}

// SetLowStock publishes the latest low and out-of-stock row counts of a branch.
func (m *Metrics) SetLowStock(branchID int64, low, out int) {
	if m == nil {
		return
	}
	branch := formatInt(branchID)
	m.lowStock.WithLabelValues(branch, "LOW").Set(float64(low))
	m.lowStock.WithLabelValues(branch, "OUT").Set(float64(out))
}

func formatInt(v int64) string {
	if v <= 0 {
		return "0"
	}
	return strconv.FormatInt(v, 10)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	drift := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_ledger_drift_total",
		Help: "Stock rows found out of balance with their movement ledger.",
	}, []string{"branch"})
	lowStock := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pos_stock_alert_rows",
		Help: "Stock rows below minimum (LOW) or empty (OUT) at the last scan.",
	}, []string{"branch", "state"})
	registerer.MustRegister(runs, failures, duration, drift, lowStock)
	return &Metrics{runs: runs, failures: failures, duration: duration, drift: drift, lowStock: lowStock}
}
