// Package queue implements the policy layer on top of the Job Store:
// enqueue validation, next-job selection across pending and retry-ready
// jobs, retry/DLQ decisioning, and pass-through statistics.
package queue

import (
	"context"
	"errors"
	"fmt"

	"queuectl/pkg/clock"
	"queuectl/pkg/models"
	"queuectl/pkg/storage"
)

// Recorder is the narrow audit interface the Manager writes claim and
// terminal-transition events through. Satisfied by *audit.Log; kept as
// an interface here so the queue package doesn't import gorm.
type Recorder interface {
	Record(ctx context.Context, entry models.AuditEntry) error
}

// noopRecorder discards everything; used when no audit log is wired.
type noopRecorder struct{}

func (noopRecorder) Record(context.Context, models.AuditEntry) error { return nil }

// Manager enforces Job lifecycle policy on top of a JobStore.
type Manager struct {
	store       storage.JobStore
	clock       clock.Clock
	audit       Recorder
	backoffBase float64
}

// Options configures a new Manager.
type Options struct {
	Store       storage.JobStore
	Clock       clock.Clock
	Audit       Recorder // optional; defaults to a no-op
	BackoffBase float64
}

// New constructs a Manager and resets any jobs stuck in `processing`
// from a prior crash, exactly once, per spec §4.2's startup hook.
func New(ctx context.Context, opts Options) (*Manager, int, error) {
	c := opts.Clock
	if c == nil {
		c = clock.Real{}
	}
	audit := opts.Audit
	if audit == nil {
		audit = noopRecorder{}
	}
	base := opts.BackoffBase
	if base <= 0 {
		base = 2.0
	}

	m := &Manager{
		store:       opts.Store,
		clock:       c,
		audit:       audit,
		backoffBase: base,
	}

	reset, err := m.store.ResetProcessing(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to reset stuck processing jobs: %w", err)
	}
	return m, reset, nil
}

// Enqueue validates and persists a new pending job.
func (m *Manager) Enqueue(ctx context.Context, id, command string, maxRetries int) (*models.Job, error) {
	if id == "" || command == "" {
		return nil, fmt.Errorf("%w: id and command must be non-empty", ErrInvalidArgument)
	}

	existing, err := m.store.Get(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: job '%s'", ErrAlreadyExists, id)
	}

	job := models.NewJob(id, command, maxRetries, m.clock.Now())
	if err := m.store.Save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// NextJob implements the two-phase selection: first make any retry-ready
// failed job claimable again (failed -> pending), then perform the
// atomic claim. Only the claim step itself is required to be
// serializable; a duplicate reactivation racing another caller is
// harmless because it's a no-op against an already-pending row.
func (m *Manager) NextJob(ctx context.Context) (*models.Job, error) {
	now := m.clock.Now()

	ready, err := m.store.RetryableReady(ctx, now)
	if err != nil {
		return nil, err
	}
	if len(ready) > 0 {
		head := ready[0]
		head.MarkRetryable(now)
		if err := m.store.Save(ctx, &head); err != nil {
			return nil, err
		}
	}

	job, err := m.store.ClaimNextPending(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	_ = m.audit.Record(ctx, models.NewAuditEntry(job.ID, models.AuditEventClaimed, 0, now))
	return job, nil
}

// MarkCompleted records a successful execution.
func (m *Manager) MarkCompleted(ctx context.Context, job *models.Job) error {
	job.MarkCompleted(m.clock.Now())
	if err := m.store.Save(ctx, job); err != nil {
		return err
	}
	return m.audit.Record(ctx, models.NewAuditEntry(job.ID, models.AuditEventCompleted, 0, job.UpdatedAt))
}

// MarkFailed records a failed execution, scheduling a retry or moving
// the job to the Dead Letter Queue per the backoff/retry-budget rule.
func (m *Manager) MarkFailed(ctx context.Context, job *models.Job, errMsg string) error {
	job.MarkFailed(errMsg, m.backoffBase, m.clock.Now())
	if err := m.store.Save(ctx, job); err != nil {
		return err
	}

	event := models.AuditEventFailed
	if job.State == models.StateDead {
		event = models.AuditEventDead
	}
	return m.audit.Record(ctx, models.NewAuditEntry(job.ID, event, 0, job.UpdatedAt))
}

// RetryDLQ resets a dead job to pending. Returns ErrNotFound if the id
// is unknown, ErrNotDead if the row exists but isn't dead.
func (m *Manager) RetryDLQ(ctx context.Context, id string) error {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: '%s'", ErrNotFound, id)
		}
		return err
	}
	if job.State != models.StateDead {
		return fmt.Errorf("%w: '%s' is %s", ErrNotDead, id, job.State)
	}

	job.ResetForRetry(m.clock.Now())
	return m.store.Save(ctx, job)
}

// Get passes through to the Store.
func (m *Manager) Get(ctx context.Context, id string) (*models.Job, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrNotFound, id)
		}
		return nil, err
	}
	return job, nil
}

// List passes through to the Store.
func (m *Manager) List(ctx context.Context, state *models.State, limit int) ([]models.Job, error) {
	return m.store.List(ctx, state, limit)
}

// Stats passes through to the Store.
func (m *Manager) Stats(ctx context.Context) (models.Stats, error) {
	return m.store.Stats(ctx)
}

// Delete passes through to the Store.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	return m.store.Delete(ctx, id)
}

// CleanupOld passes through to the Store. No scheduler calls this
// automatically (spec §9 Open Question); it's an operator tool only.
func (m *Manager) CleanupOld(ctx context.Context, days int) (int, error) {
	return m.store.CleanupOld(ctx, days)
}
