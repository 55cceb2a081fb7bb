package models

import (
	"math"
	"time"
)

// State is one of the five positions in a Job's lifecycle.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateDead       State = "dead"
)

// Valid reports whether s is one of the five defined states.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateProcessing, StateCompleted, StateFailed, StateDead:
		return true
	}
	return false
}

// maxErrorMessageLen bounds captured stderr before it is persisted.
const maxErrorMessageLen = 200

// Job is the only persisted entity in the system. Mutation only ever
// happens through the named transitions below; callers must not set
// State, UpdatedAt, NextRetryAt, or ErrorMessage directly.
type Job struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	Command      string     `json:"command" gorm:"not null"`
	State        State      `json:"state" gorm:"type:varchar(16);not null;index:idx_jobs_state"`
	Attempts     int        `json:"attempts" gorm:"not null;default:0"`
	MaxRetries   int        `json:"max_retries" gorm:"not null;default:3"`
	CreatedAt    time.Time  `json:"created_at" gorm:"not null;index:idx_jobs_created_at"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"not null;index:idx_jobs_updated_at"`
	NextRetryAt  *time.Time `json:"next_retry_at" gorm:"index:idx_jobs_next_retry"`
	ErrorMessage *string    `json:"error_message"`
}

// TableName pins the GORM table name to "jobs" so it stays the same
// across renames of the struct.
func (Job) TableName() string {
	return "jobs"
}

// NewJob constructs a fresh pending job. Both now values are equal, per
// invariant 5 (created_at <= updated_at).
func NewJob(id, command string, maxRetries int, now time.Time) *Job {
	return &Job{
		ID:         id,
		Command:    command,
		State:      StatePending,
		Attempts:   0,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// MarkProcessing transitions pending/failed -> processing. The Job
// Store's atomic claim does not call it: the claim performs the same
// transition in its conditional UPDATE and sets State and UpdatedAt on
// the returned copy itself.
func (j *Job) MarkProcessing(now time.Time) {
	j.State = StateProcessing
	j.UpdatedAt = now
}

// MarkCompleted transitions processing -> completed.
func (j *Job) MarkCompleted(now time.Time) {
	j.State = StateCompleted
	j.UpdatedAt = now
	j.NextRetryAt = nil
}

// MarkRetryable transitions failed -> pending (re-activation ahead of a
// claim attempt), clearing the retry timestamp. Attempts and
// error_message are left untouched.
func (j *Job) MarkRetryable(now time.Time) {
	j.State = StatePending
	j.UpdatedAt = now
	j.NextRetryAt = nil
}

// MarkFailed increments attempts and either schedules a retry or moves
// the job to the Dead Letter Queue, per invariant 2: the job dies once
// attempts >= max_retries after the increment.
func (j *Job) MarkFailed(errMsg string, backoffBase float64, now time.Time) {
	j.Attempts++
	j.UpdatedAt = now

	msg := truncate(errMsg, maxErrorMessageLen)
	j.ErrorMessage = &msg

	if j.Attempts < j.MaxRetries {
		j.State = StateFailed
		delay := backoffDelay(backoffBase, j.Attempts)
		next := now.Add(delay)
		j.NextRetryAt = &next
	} else {
		j.State = StateDead
		j.NextRetryAt = nil
	}
}

// ResetForRetry restores a dead job to pending with a clean slate, used
// by the DLQ's retry operation.
func (j *Job) ResetForRetry(now time.Time) {
	j.Attempts = 0
	j.State = StatePending
	j.NextRetryAt = nil
	j.ErrorMessage = nil
	j.UpdatedAt = now
}

// backoffDelay computes backoff_base^attempts seconds, with attempts
// already incremented by the caller. No jitter.
func backoffDelay(base float64, attempts int) time.Duration {
	seconds := math.Pow(base, float64(attempts))
	return time.Duration(seconds * float64(time.Second))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Stats is the per-state job count roll-up returned by Stats().
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Dead       int `json:"dead"`
	Total      int `json:"total"`
}
