package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queuectl/pkg/audit"
	"queuectl/pkg/clock"
	"queuectl/pkg/models"
	"queuectl/pkg/storage/sqlite"
)

func newTestManager(t *testing.T, fake *clock.Fake) (*Manager, *sqlite.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := audit.NewLog(store.DB())

	m, _, err := New(context.Background(), Options{
		Store:       store,
		Clock:       fake,
		Audit:       log,
		BackoffBase: 2.0,
	})
	require.NoError(t, err)
	return m, store
}

func TestEnqueueRejectsDuplicateID(t *testing.T) {
	fake := clock.NewFake(time.Now().UTC())
	m, _ := newTestManager(t, fake)
	ctx := context.Background()

	_, err := m.Enqueue(ctx, "job-1", "echo hi", 3)
	require.NoError(t, err)

	_, err = m.Enqueue(ctx, "job-1", "echo bye", 3)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestEnqueueRejectsEmptyFields(t *testing.T) {
	fake := clock.NewFake(time.Now().UTC())
	m, _ := newTestManager(t, fake)
	ctx := context.Background()

	_, err := m.Enqueue(ctx, "", "echo hi", 3)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = m.Enqueue(ctx, "job-1", "", 3)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNextJobReturnsNilWhenEmpty(t *testing.T) {
	fake := clock.NewFake(time.Now().UTC())
	m, _ := newTestManager(t, fake)

	job, err := m.NextJob(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestNextJobClaimsOldestPending(t *testing.T) {
	fake := clock.NewFake(time.Now().UTC())
	m, _ := newTestManager(t, fake)
	ctx := context.Background()

	_, err := m.Enqueue(ctx, "job-1", "echo hi", 3)
	require.NoError(t, err)

	job, err := m.NextJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, models.StateProcessing, job.State)
}

func TestNextJobReactivatesRetryReadyJobs(t *testing.T) {
	fake := clock.NewFake(time.Now().UTC())
	m, _ := newTestManager(t, fake)
	ctx := context.Background()

	job, err := m.Enqueue(ctx, "job-1", "false", 3)
	require.NoError(t, err)

	claimed, err := m.NextJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, m.MarkFailed(ctx, claimed, "boom"))

	// Not yet due.
	next, err := m.NextJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)

	got, err := m.Get(ctx, job.ID)
	require.NoError(t, err)
	fake.Set(*got.NextRetryAt)

	next, err = m.NextJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, job.ID, next.ID)
}

func TestDLQRoundTrip(t *testing.T) {
	fake := clock.NewFake(time.Now().UTC())
	m, _ := newTestManager(t, fake)
	ctx := context.Background()

	_, err := m.Enqueue(ctx, "job-1", "false", 1)
	require.NoError(t, err)

	job, err := m.NextJob(ctx)
	require.NoError(t, err)
	require.NoError(t, m.MarkFailed(ctx, job, "boom"))

	dead, err := m.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, models.StateDead, dead.State)

	require.NoError(t, m.RetryDLQ(ctx, "job-1"))

	revived, err := m.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, revived.State)
	assert.Equal(t, 0, revived.Attempts)
}

func TestRetryDLQRejectsNonDeadJob(t *testing.T) {
	fake := clock.NewFake(time.Now().UTC())
	m, _ := newTestManager(t, fake)
	ctx := context.Background()

	_, err := m.Enqueue(ctx, "job-1", "echo hi", 3)
	require.NoError(t, err)

	err = m.RetryDLQ(ctx, "job-1")
	assert.ErrorIs(t, err, ErrNotDead)
}

func TestRetryDLQUnknownID(t *testing.T) {
	fake := clock.NewFake(time.Now().UTC())
	m, _ := newTestManager(t, fake)

	err := m.RetryDLQ(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBackoffMonotonicityAcrossSuccessiveFailures(t *testing.T) {
	fake := clock.NewFake(time.Now().UTC())
	m, _ := newTestManager(t, fake)
	ctx := context.Background()

	_, err := m.Enqueue(ctx, "job-1", "false", 10)
	require.NoError(t, err)

	job, err := m.NextJob(ctx)
	require.NoError(t, err)
	require.NoError(t, m.MarkFailed(ctx, job, "boom"))
	first, err := m.Get(ctx, "job-1")
	require.NoError(t, err)
	firstDelay := first.NextRetryAt.Sub(fake.Now())

	fake.Advance(time.Hour)
	fake.Set(*first.NextRetryAt)
	next, err := m.NextJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.NoError(t, m.MarkFailed(ctx, next, "boom again"))
	second, err := m.Get(ctx, "job-1")
	require.NoError(t, err)
	secondDelay := second.NextRetryAt.Sub(fake.Now())

	assert.Greater(t, secondDelay, firstDelay)
}

func TestStartupResetsStuckProcessingJobs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := sqlite.Open(path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	job := models.NewJob("job-1", "echo hi", 3, time.Now().UTC())
	require.NoError(t, store.Save(ctx, job))
	_, err = store.ClaimNextPending(ctx)
	require.NoError(t, err)

	_, reset, err := New(ctx, Options{Store: store})
	require.NoError(t, err)
	assert.Equal(t, 1, reset)

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, got.State)
}
