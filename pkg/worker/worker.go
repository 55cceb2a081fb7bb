// Package worker implements the poll/claim/run/report loop that drains
// the queue, and the pool that supervises a fixed number of them.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"queuectl/pkg/logger"
	"queuectl/pkg/models"
	"queuectl/pkg/runner"
)

// Runner executes a job's command. Satisfied by *runner.ShellRunner;
// kept as an interface so tests can substitute a scripted fake.
type Runner interface {
	Run(ctx context.Context, command string) runner.Result
}

// Manager is the subset of *queue.Manager a Worker needs. Kept narrow so
// this package doesn't import queue directly, avoiding a dependency
// cycle with anything queue later grows that wants worker status.
type Manager interface {
	NextJob(ctx context.Context) (*models.Job, error)
	MarkCompleted(ctx context.Context, job *models.Job) error
	MarkFailed(ctx context.Context, job *models.Job, errMsg string) error
}

// Recorder observes job outcomes for metrics. Optional; defaults to a
// no-op so worker tests don't need prometheus wired up.
type Recorder interface {
	ObserveClaim()
	ObserveOutcome(outcome runner.Outcome, duration time.Duration)
	ObserveDead()
}

type noopRecorder struct{}

func (noopRecorder) ObserveClaim()                                {}
func (noopRecorder) ObserveOutcome(runner.Outcome, time.Duration) {}
func (noopRecorder) ObserveDead()                                 {}

// Config tunes a Worker's polling and execution behaviour.
type Config struct {
	PollInterval time.Duration
	JobTimeout   time.Duration
}

// Worker repeatedly claims and executes jobs until Stop is called. A
// single worker never runs more than one job at a time; the busy flag
// exists purely for status reporting, read by the owning Pool.
type Worker struct {
	id      int
	manager Manager
	runner  Runner
	cfg     Config
	metrics Recorder

	busy atomic.Bool
	stop atomic.Bool
	done chan struct{}
}

// New constructs a Worker. metrics may be nil.
func New(id int, manager Manager, r Runner, cfg Config, metrics Recorder) *Worker {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Worker{
		id:      id,
		manager: manager,
		runner:  r,
		cfg:     cfg,
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

// Busy reports whether the worker currently holds a claimed job.
func (w *Worker) Busy() bool { return w.busy.Load() }

// Stop requests the loop exit after its current iteration. It does not
// block; callers wait on Done.
func (w *Worker) Stop() { w.stop.Store(true) }

// Active reports whether the worker has not yet been asked to stop.
func (w *Worker) Active() bool { return !w.stop.Load() }

// Done is closed once Run has returned.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Run polls the queue until ctx is cancelled or Stop is called,
// claiming, executing and reporting one job at a time. Every error
// along the way is logged and the loop continues; a single worker never
// exits because one job blew up.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	log := logger.Get().With(zap.Int("worker_id", w.id))

	for {
		if w.stop.Load() || ctx.Err() != nil {
			return
		}

		job, err := w.manager.NextJob(ctx)
		if err != nil {
			log.Error("failed to claim next job", zap.Error(err))
			w.sleep(ctx)
			continue
		}
		if job == nil {
			w.sleep(ctx)
			continue
		}

		w.busy.Store(true)
		w.metrics.ObserveClaim()
		w.execute(ctx, job, log)
		w.busy.Store(false)
	}
}

func (w *Worker) execute(ctx context.Context, job *models.Job, log *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	result := w.runner.Run(runCtx, job.Command)
	w.metrics.ObserveOutcome(result.Outcome, result.Duration)

	switch result.Outcome {
	case runner.OutcomeSuccess:
		if err := w.manager.MarkCompleted(ctx, job); err != nil {
			log.Error("failed to mark job completed", zap.String("job_id", job.ID), zap.Error(err))
		}

	case runner.OutcomeNonZeroExit:
		msg := fmt.Sprintf("Command exited with code %d", result.ExitCode)
		if stderr := truncateStderr(result.Stderr); stderr != "" {
			msg = fmt.Sprintf("%s: %s", msg, stderr)
		}
		w.fail(ctx, job, msg, log)

	case runner.OutcomeTimeout:
		msg := fmt.Sprintf("Command timed out after %d seconds", int(w.cfg.JobTimeout.Seconds()))
		w.fail(ctx, job, msg, log)

	case runner.OutcomeNotFound:
		w.fail(ctx, job, "Command not found", log)

	default:
		errMsg := "unknown error"
		if result.Err != nil {
			errMsg = result.Err.Error()
		}
		w.fail(ctx, job, fmt.Sprintf("Execution error: %s", errMsg), log)
	}
}

func (w *Worker) fail(ctx context.Context, job *models.Job, msg string, log *zap.Logger) {
	if err := w.manager.MarkFailed(ctx, job, msg); err != nil {
		log.Error("failed to mark job failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if job.State == models.StateDead {
		w.metrics.ObserveDead()
	}
}

// maxStderrPreviewLen bounds the stderr slice folded into a failure
// message, independent of the 200-char error_message truncation in
// models.Job.MarkFailed.
const maxStderrPreviewLen = 200

func truncateStderr(s string) string {
	if len(s) <= maxStderrPreviewLen {
		return s
	}
	return s[:maxStderrPreviewLen]
}

func (w *Worker) sleep(ctx context.Context) {
	interval := w.cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(interval):
	}
}
