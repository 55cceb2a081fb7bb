package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"queuectl/pkg/logger"
	"queuectl/pkg/metrics"
	"queuectl/pkg/metricsserver"
	"queuectl/pkg/runner"
	"queuectl/pkg/worker"
)

func cmdWorkerStart(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("worker start", flag.ExitOnError)
	count := fs.Int("c", 4, "number of worker goroutines")
	metricsAddr := fs.String("metrics-addr", "", "if set, serve /healthz and /metrics on this address")
	pidFile := fs.String("pid-file", defaultPIDFile, "file to record this process's pid in, for `worker stop`")
	fs.Parse(args)

	a, err := openApp(ctx)
	if err != nil {
		fail("%v", err)
	}
	defer a.Close()

	if err := writePIDFile(*pidFile); err != nil {
		fail("failed to write pid file: %v", err)
	}
	defer os.Remove(*pidFile)

	shellRunner := runner.NewShellRunner()
	cfg := worker.Config{
		PollInterval: time.Duration(a.cfg.PollIntervalSeconds) * time.Second,
		JobTimeout:   time.Duration(a.cfg.JobTimeoutSeconds) * time.Second,
	}
	rec := metrics.Recorder{}

	pool := worker.NewPool(*count, time.Duration(a.cfg.WorkerShutdownSeconds)*time.Second, func(id int) *worker.Worker {
		return worker.New(id, a.manager, shellRunner, cfg, rec)
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if *metricsAddr != "" {
		srv := metricsserver.New(*metricsAddr)
		go func() {
			if err := srv.Start(runCtx); err != nil {
				logger.Get().Error("metrics server stopped with error", zap.Error(err))
			}
		}()
	}

	logger.Get().Info("starting worker pool", zap.Int("workers", *count))
	pool.Start(runCtx)
	go reportWorkerCounts(runCtx, pool)

	// Block until the pool's own SIGINT/SIGTERM handler (or an external
	// `worker stop`, via the pid file) calls Stop and Stop has finished.
	waitForPoolShutdown(pool)
	fmt.Println("worker pool stopped")
}

func cmdWorkerStop(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("worker stop", flag.ExitOnError)
	pidFile := fs.String("pid-file", defaultPIDFile, "pid file written by `worker start`")
	fs.Parse(args)

	pid, err := readPIDFile(*pidFile)
	if err != nil {
		fail("failed to read pid file %s: %v", *pidFile, err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		fail("failed to find process %d: %v", pid, err)
	}
	if err := proc.Signal(os.Interrupt); err != nil {
		fail("failed to signal process %d: %v", pid, err)
	}
	fmt.Printf("sent stop signal to worker process %d\n", pid)
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(data))
}

// reportWorkerCounts periodically snapshots the pool's busy/idle split
// into the busy/idle gauges, until ctx is cancelled.
func reportWorkerCounts(ctx context.Context, pool *worker.Pool) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := pool.Status()
			metrics.SetWorkerCounts(st.Busy, st.Idle)
		}
	}
}

// waitForPoolShutdown blocks until Stop has run to completion, checking
// the pool's status every 200ms until its worker list has been cleared.
// Stop waits on each worker's Done channel up to the configured shutdown
// window and then cancels any worker still running, so such a worker may
// still be winding down when this returns.
func waitForPoolShutdown(pool *worker.Pool) {
	for {
		st := pool.Status()
		if st.Total == 0 {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}
