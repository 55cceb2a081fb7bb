// Package metrics exposes Prometheus instrumentation for job
// throughput, claims, retries, DLQ transitions and worker occupancy,
// following the teacher's promauto registration idiom.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"queuectl/pkg/runner"
)

const namespace = "queuectl"

var (
	jobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_enqueued_total",
		Help:      "Total number of jobs enqueued.",
	})

	jobsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_claimed_total",
		Help:      "Total number of jobs claimed by a worker.",
	})

	jobOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_outcomes_total",
		Help:      "Total number of job executions by outcome.",
	}, []string{"outcome"})

	jobsDead = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_dead_total",
		Help:      "Total number of jobs moved to the dead letter queue.",
	})

	jobsRetriedFromDLQ = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_dlq_retried_total",
		Help:      "Total number of jobs manually retried out of the dead letter queue.",
	})

	executionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_execution_duration_seconds",
		Help:      "Duration of job command execution.",
		Buckets:   prometheus.DefBuckets,
	})

	workersBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "workers_busy",
		Help:      "Number of workers currently executing a job.",
	})

	workersIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "workers_idle",
		Help:      "Number of workers currently waiting for work.",
	})
)

// RecordEnqueue increments the enqueue counter.
func RecordEnqueue() {
	jobsEnqueued.Inc()
}

// RecordDLQRetry increments the DLQ-retry counter.
func RecordDLQRetry() {
	jobsRetriedFromDLQ.Inc()
}

// SetWorkerCounts sets the worker busy/idle gauges from a pool snapshot.
func SetWorkerCounts(busy, idle int) {
	workersBusy.Set(float64(busy))
	workersIdle.Set(float64(idle))
}

// Recorder adapts the package-level metrics to the worker.Recorder
// interface, keeping pkg/worker free of a direct prometheus import.
type Recorder struct{}

// ObserveClaim implements worker.Recorder.
func (Recorder) ObserveClaim() {
	jobsClaimed.Inc()
}

// ObserveOutcome implements worker.Recorder.
func (Recorder) ObserveOutcome(outcome runner.Outcome, duration time.Duration) {
	executionDuration.Observe(duration.Seconds())

	var label string
	switch outcome {
	case runner.OutcomeSuccess:
		label = "success"
	case runner.OutcomeNonZeroExit:
		label = "non_zero_exit"
	case runner.OutcomeTimeout:
		label = "timeout"
	case runner.OutcomeNotFound:
		label = "not_found"
	default:
		label = "other_error"
	}
	jobOutcomes.WithLabelValues(label).Inc()
}

// ObserveDead implements worker.Recorder. Called only when MarkFailed
// actually moved the job to StateDead, since a single failed execution
// doesn't necessarily exhaust retries.
func (Recorder) ObserveDead() {
	jobsDead.Inc()
}
