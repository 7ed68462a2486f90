package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronMetrics tracks the ledger maintenance jobs run by the cron worker.
type CronMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	lockSkips   prometheus.Counter
}

var cronDurationBuckets = []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900}

// NewCronMetrics registers the cron collectors on reg. A nil registerer yields no-op metrics.
func NewCronMetrics(reg prometheus.Registerer) *CronMetrics {
	if reg == nil {
		return &CronMetrics{}
	}
	m := &CronMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cron_job_runs_total",
			Help: "Cron job executions, by job and outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cron_job_duration_seconds",
			Help:    "Wall time of cron job executions.",
			Buckets: cronDurationBuckets,
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cron_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
		lockSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cron_lock_skips_total",
			Help: "Cycles skipped because another worker held the lock.",
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess, m.lockSkips)
	return m
}

// ObserveRun records one execution of job that finished at finishedAt.
func (c *CronMetrics) ObserveRun(job string, took time.Duration, err error, finishedAt time.Time) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		c.runs.WithLabelValues(job, "failure").Inc()
		return
	}
	c.runs.WithLabelValues(job, "success").Inc()
	c.lastSuccess.WithLabelValues(job).Set(float64(finishedAt.Unix()))
}

func (c *CronMetrics) IncLockSkip() {
	if c == nil || c.lockSkips == nil {
		return
	}
	c.lockSkips.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
