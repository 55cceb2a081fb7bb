// Package storage defines the durable persistence contract for Jobs.
package storage

import (
	"context"
	"errors"
	"time"

	"queuectl/pkg/models"
)

var (
	// ErrNotFound is returned when a lookup finds no matching row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict names a uniqueness violation (a duplicate job id).
	// Save upserts by id, so no JobStore method returns it.
	ErrConflict = errors.New("record already exists")
)

// JobStore is the durable, concurrency-safe persistence layer for Job
// records, including the atomic pending->processing claim.
type JobStore interface {
	// Save upserts a job by id.
	Save(ctx context.Context, job *models.Job) error

	// Get performs a point lookup. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*models.Job, error)

	// ClaimNextPending atomically selects the oldest pending row
	// (ascending created_at, id tiebreaker), transitions it to
	// processing, and returns it. Returns ErrNotFound if no pending row
	// exists or the winning candidate was claimed by a concurrent caller.
	ClaimNextPending(ctx context.Context) (*models.Job, error)

	// RetryableReady returns all failed rows whose next_retry_at <= now,
	// ordered by next_retry_at ascending.
	RetryableReady(ctx context.Context, now time.Time) ([]models.Job, error)

	// List returns the most-recently-updated jobs first, optionally
	// filtered by state, bounded by limit.
	List(ctx context.Context, state *models.State, limit int) ([]models.Job, error)

	// Stats returns a per-state count roll-up.
	Stats(ctx context.Context) (models.Stats, error)

	// Delete removes a job by id; reports whether a row was removed.
	Delete(ctx context.Context, id string) (bool, error)

	// ResetProcessing resets every processing row back to pending,
	// called once at startup. Returns the count reset.
	ResetProcessing(ctx context.Context) (int, error)

	// CleanupOld removes completed rows whose updated_at predates the
	// cutoff implied by days. Returns the count removed.
	CleanupOld(ctx context.Context, days int) (int, error)
}
