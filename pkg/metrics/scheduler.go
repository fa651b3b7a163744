package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerJobMetrics records metadata for scheduled jobs.
type SchedulerJobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	fined    *prometheus.CounterVec
	skipped  *prometheus.CounterVec
}

// NewSchedulerJobMetrics registers the scheduler metrics on the provided registerer.
func NewSchedulerJobMetrics(reg prometheus.Registerer) *SchedulerJobMetrics {
	if reg == nil {
		return &SchedulerJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of scheduled jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful scheduled job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed scheduled job executions.",
	}, []string{"job"})
	fined := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "overdue_records_fined",
		Help: "Borrow records fined by the overdue scan.",
	}, []string{"job"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "overdue_records_skipped",
		Help: "Borrow records skipped by the overdue scan for insufficient balance.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure, fined, skipped)
	return &SchedulerJobMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		fined:    fined,
		skipped:  skipped,
	}
}

// ObserveDuration records the duration for the named job.
func (m *SchedulerJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (m *SchedulerJobMetrics) IncSuccess(job string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (m *SchedulerJobMetrics) IncFailure(job string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// AddFined counts records fined in one overdue scan.
func (m *SchedulerJobMetrics) AddFined(job string, n int) {
	if m == nil || m.fined == nil {
		return
	}
	m.fined.WithLabelValues(normalizeLabel(job)).Add(float64(n))
}

// AddSkipped counts records skipped for insufficient balance.
func (m *SchedulerJobMetrics) AddSkipped(job string, n int) {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.WithLabelValues(normalizeLabel(job)).Add(float64(n))
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
