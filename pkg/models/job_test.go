package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobStartsPending(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	job := NewJob("a", "echo hi", 3, now)

	assert.Equal(t, StatePending, job.State)
	assert.Equal(t, 0, job.Attempts)
	assert.Equal(t, now, job.CreatedAt)
	assert.True(t, job.CreatedAt.Equal(job.UpdatedAt) || !job.CreatedAt.After(job.UpdatedAt))
	assert.Nil(t, job.NextRetryAt)
}

func TestMarkFailedSchedulesRetryUntilExhausted(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	job := NewJob("a", "false", 3, now)

	job.MarkFailed("boom", 2.0, now)
	require.Equal(t, StateFailed, job.State)
	require.Equal(t, 1, job.Attempts)
	require.NotNil(t, job.NextRetryAt)
	assert.Equal(t, now.Add(2*time.Second), *job.NextRetryAt)

	job.MarkFailed("boom", 2.0, now.Add(time.Minute))
	require.Equal(t, StateFailed, job.State)
	require.Equal(t, 2, job.Attempts)
	assert.Equal(t, now.Add(time.Minute).Add(4*time.Second), *job.NextRetryAt)

	job.MarkFailed("boom", 2.0, now.Add(2*time.Minute))
	require.Equal(t, StateDead, job.State)
	require.Equal(t, 3, job.Attempts)
	assert.Nil(t, job.NextRetryAt)
}

func TestAttemptsNeverExceedMaxRetries(t *testing.T) {
	now := time.Now().UTC()
	job := NewJob("a", "false", 2, now)

	job.MarkFailed("x", 2.0, now)
	job.MarkFailed("x", 2.0, now)

	assert.LessOrEqual(t, job.Attempts, job.MaxRetries)
	assert.Equal(t, StateDead, job.State)
}

func TestFailedStateImpliesNextRetrySet(t *testing.T) {
	now := time.Now().UTC()
	job := NewJob("a", "false", 5, now)
	job.MarkFailed("x", 2.0, now)

	if job.State == StateFailed {
		assert.NotNil(t, job.NextRetryAt)
	}
}

func TestMarkFailedTruncatesErrorMessage(t *testing.T) {
	now := time.Now().UTC()
	job := NewJob("a", "false", 5, now)

	long := strings.Repeat("x", 500)
	job.MarkFailed(long, 2.0, now)

	require.NotNil(t, job.ErrorMessage)
	assert.LessOrEqual(t, len(*job.ErrorMessage), maxErrorMessageLen)
}

func TestResetForRetryClearsState(t *testing.T) {
	now := time.Now().UTC()
	job := NewJob("a", "false", 1, now)
	job.MarkFailed("boom", 2.0, now)
	require.Equal(t, StateDead, job.State)

	job.ResetForRetry(now.Add(time.Hour))
	assert.Equal(t, StatePending, job.State)
	assert.Equal(t, 0, job.Attempts)
	assert.Nil(t, job.NextRetryAt)
	assert.Nil(t, job.ErrorMessage)
}

func TestBackoffIsMonotonicallyIncreasing(t *testing.T) {
	base := 2.0
	now := time.Now().UTC()

	job := NewJob("a", "false", 10, now)
	job.MarkFailed("x", base, now)
	firstDelay := job.NextRetryAt.Sub(now)

	job.MarkFailed("x", base, now.Add(time.Hour))
	secondDelay := job.NextRetryAt.Sub(now.Add(time.Hour))

	assert.Greater(t, secondDelay, firstDelay)
}

func TestStateValid(t *testing.T) {
	assert.True(t, StatePending.Valid())
	assert.True(t, StateDead.Valid())
	assert.False(t, State("bogus").Valid())
}
