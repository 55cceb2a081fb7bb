package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queuectl/pkg/models"
	"queuectl/pkg/runner"
)

func TestPoolStartAndStop(t *testing.T) {
	mgr := &fakeManager{}
	pool := NewPool(3, time.Second, func(id int) *Worker {
		return New(id, mgr, scriptedRunner{}, Config{PollInterval: time.Millisecond, JobTimeout: time.Second}, nil)
	})

	pool.Start(context.Background())

	require.Eventually(t, func() bool {
		return pool.Status().Total == 3
	}, time.Second, time.Millisecond)

	pool.Stop()

	st := pool.Status()
	assert.Equal(t, 0, st.Total)
}

func TestPoolStopIsIdempotent(t *testing.T) {
	mgr := &fakeManager{}
	pool := NewPool(1, time.Second, func(id int) *Worker {
		return New(id, mgr, scriptedRunner{}, Config{PollInterval: time.Millisecond, JobTimeout: time.Second}, nil)
	})

	pool.Start(context.Background())
	pool.Stop()
	assert.NotPanics(t, func() { pool.Stop() })
}

func TestPoolStatusReflectsBusyWorker(t *testing.T) {
	mgr := &fakeManager{}
	mgr.enqueue(&models.Job{ID: "job-1", Command: "echo hi", State: models.StatePending})

	blocked := make(chan struct{})
	defer close(blocked)

	pool := NewPool(1, time.Second, func(id int) *Worker {
		return New(id, mgr, blockingRunner{unblock: blocked}, Config{PollInterval: time.Millisecond, JobTimeout: time.Minute}, nil)
	})
	pool.Start(context.Background())

	require.Eventually(t, func() bool {
		return pool.Status().Busy == 1
	}, time.Second, time.Millisecond)

	st := pool.Status()
	assert.Equal(t, 1, st.Active)
	assert.Equal(t, 0, st.Idle)

	pool.Stop()
}

type blockingRunner struct {
	unblock <-chan struct{}
}

func (b blockingRunner) Run(ctx context.Context, command string) runner.Result {
	select {
	case <-b.unblock:
	case <-ctx.Done():
	}
	return runner.Result{Outcome: runner.OutcomeSuccess}
}
