package worker

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"queuectl/pkg/logger"
)

// Pool supervises a fixed number of Workers, owns their shared
// cancellation, and installs its own SIGINT/SIGTERM handler. Signal
// handling is a capability of the Pool instance, not package-global
// state, so more than one Pool can exist in a test process without one
// installation stomping another's.
type Pool struct {
	size           int
	shutdownWindow time.Duration
	newWorker      func(id int) *Worker

	mu      sync.Mutex
	workers []*Worker
	cancel  context.CancelFunc

	signalOnce sync.Once
	sigCh      chan os.Signal
}

// NewPool constructs a Pool of size workers, each built by newWorker.
// shutdownWindow bounds how long Stop waits for in-flight jobs to finish
// before returning anyway.
func NewPool(size int, shutdownWindow time.Duration, newWorker func(id int) *Worker) *Pool {
	return &Pool{
		size:           size,
		shutdownWindow: shutdownWindow,
		newWorker:      newWorker,
	}
}

// Start launches the pool's workers against a context derived from ctx,
// and installs a SIGINT/SIGTERM handler (once per Pool) that calls Stop.
// It returns immediately and returns nothing; callers that want to block
// until shutdown call Stop themselves or poll Status until Total is 0.
func (p *Pool) Start(ctx context.Context) {
	if p.size < 1 {
		panic("worker: pool size must be at least 1")
	}

	runCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.cancel = cancel
	p.workers = make([]*Worker, 0, p.size)
	for i := 1; i <= p.size; i++ {
		w := p.newWorker(i)
		p.workers = append(p.workers, w)
		go w.Run(runCtx)
	}
	p.mu.Unlock()

	p.installSignalHandler()
}

func (p *Pool) installSignalHandler() {
	p.signalOnce.Do(func() {
		p.sigCh = make(chan os.Signal, 1)
		signal.Notify(p.sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig, ok := <-p.sigCh
			if !ok {
				return
			}
			logger.Get().Info("received shutdown signal, stopping workers", zap.String("signal", sig.String()))
			p.Stop()
		}()
	})
}

// Stop requests every worker exit after its current job and waits up to
// shutdownWindow for them to do so. It is safe to call more than once;
// later calls are no-ops once the pool has already stopped.
func (p *Pool) Stop() {
	p.mu.Lock()
	workers := p.workers
	cancel := p.cancel
	p.mu.Unlock()

	if workers == nil {
		return
	}

	for _, w := range workers {
		w.Stop()
	}

	deadline := time.After(p.shutdownWindow)
wait:
	for _, w := range workers {
		select {
		case <-w.Done():
		case <-deadline:
			break wait
		}
	}
	if cancel != nil {
		cancel()
	}

	p.mu.Lock()
	p.workers = nil
	if p.sigCh != nil {
		signal.Stop(p.sigCh)
		close(p.sigCh)
		p.sigCh = nil
	}
	p.mu.Unlock()
}

// Status summarises the pool's current activity, per spec.md §4.4:
// total = len(workers), active = count with stop flag false, busy =
// count with a claimed job, idle = active - busy.
type Status struct {
	Total  int
	Active int
	Busy   int
	Idle   int
}

// Status returns a best-effort snapshot; it takes no per-worker lock, so
// a worker may flip active/busy between the read and the tally.
func (p *Pool) Status() Status {
	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()

	st := Status{Total: len(workers)}
	for _, w := range workers {
		if w.Active() {
			st.Active++
		}
		if w.Busy() {
			st.Busy++
		}
	}
	st.Idle = st.Active - st.Busy
	return st
}
