package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queuectl/pkg/models"
	"queuectl/pkg/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job := models.NewJob("job-1", "echo hi", 3, time.Now().UTC())
	require.NoError(t, store.Save(ctx, job))

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.Command, got.Command)
	assert.Equal(t, models.StatePending, got.State)
}

func TestGetNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClaimNextPendingOrdersByCreatedAt(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	older := models.NewJob("older", "echo 1", 3, base)
	newer := models.NewJob("newer", "echo 2", 3, base.Add(time.Second))
	require.NoError(t, store.Save(ctx, newer))
	require.NoError(t, store.Save(ctx, older))

	claimed, err := store.ClaimNextPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, "older", claimed.ID)
	assert.Equal(t, models.StateProcessing, claimed.State)
}

func TestClaimNextPendingEmptyReturnsNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.ClaimNextPending(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClaimNextPendingIsExclusiveUnderConcurrency(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	const n = 20
	for i := 0; i < n; i++ {
		j := models.NewJob(string(rune('a'+i)), "echo hi", 3, base.Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, store.Save(ctx, j))
	}

	claimedIDs := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := store.ClaimNextPending(ctx)
			if err == nil && job != nil {
				claimedIDs <- job.ID
			}
		}()
	}
	wg.Wait()
	close(claimedIDs)

	seen := map[string]bool{}
	for id := range claimedIDs {
		assert.False(t, seen[id], "job %s claimed more than once", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestResetProcessingOnStartup(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	job := models.NewJob("job-1", "echo hi", 3, time.Now().UTC())
	require.NoError(t, store.Save(ctx, job))

	_, err := store.ClaimNextPending(ctx)
	require.NoError(t, err)

	reset, err := store.ResetProcessing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reset)

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, got.State)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Processing)
}

func TestStatsTotalsMatchSum(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Save(ctx, models.NewJob("p1", "echo", 3, now)))
	job2 := models.NewJob("p2", "echo", 3, now)
	job2.MarkCompleted(now)
	require.NoError(t, store.Save(ctx, job2))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.Pending+stats.Processing+stats.Completed+stats.Failed+stats.Dead, stats.Total)
	assert.Equal(t, 2, stats.Total)
}

func TestRetryableReadyFiltersByTime(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	job := models.NewJob("job-1", "false", 3, now)
	job.MarkFailed("boom", 2.0, now)
	require.NoError(t, store.Save(ctx, job))

	ready, err := store.RetryableReady(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, ready)

	ready, err = store.RetryableReady(ctx, *job.NextRetryAt)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, "job-1", ready[0].ID)
}

func TestDeleteReportsWhetherRowExisted(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, models.NewJob("job-1", "echo", 3, time.Now().UTC())))

	ok, err := store.Delete(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Delete(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCleanupOldRemovesOnlyOldCompleted(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := models.NewJob("old", "echo", 3, now.AddDate(0, 0, -40))
	old.MarkCompleted(now.AddDate(0, 0, -40))
	require.NoError(t, store.Save(ctx, old))

	recent := models.NewJob("recent", "echo", 3, now)
	recent.MarkCompleted(now)
	require.NoError(t, store.Save(ctx, recent))

	removed, err := store.CleanupOld(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(ctx, "old")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.Get(ctx, "recent")
	assert.NoError(t, err)
}
