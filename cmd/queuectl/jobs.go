package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"queuectl/pkg/audit"
	"queuectl/pkg/metrics"
	"queuectl/pkg/models"
	"queuectl/pkg/sysinfo"
)

func cmdAdd(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	retries := fs.Int("r", 3, "max retries")
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) != 2 {
		fail("usage: queuectl add <id> <command> [-r N]")
	}

	a, err := openApp(ctx)
	if err != nil {
		fail("%v", err)
	}
	defer a.Close()

	job, err := a.manager.Enqueue(ctx, rest[0], rest[1], *retries)
	if err != nil {
		fail("%v", err)
	}
	metrics.RecordEnqueue()
	fmt.Printf("enqueued job %s\n", job.ID)
}

// enqueuePayload mirrors the JSON shape accepted by the literal-argument,
// -f, and -stdin/- forms of enqueue, following
// original_source/queuectl/cli.py's single-object convention rather than
// a bespoke flag-only shape. MaxRetries is a pointer so an explicit
// `"max_retries": 0` can be told apart from the key being absent
// entirely; only the latter falls back to -r's default.
type enqueuePayload struct {
	ID         string `json:"id"`
	Command    string `json:"command"`
	MaxRetries *int   `json:"max_retries"`
}

func cmdEnqueue(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("enqueue", flag.ExitOnError)
	id := fs.String("i", "", "job id")
	command := fs.String("c", "", "command")
	retries := fs.Int("r", 3, "max retries")
	file := fs.String("f", "", "read a JSON payload from this file")
	stdin := fs.Bool("stdin", false, "read a JSON payload from stdin")
	fs.Parse(args)

	var payload enqueuePayload
	rest := fs.Args()
	switch {
	case *stdin || (len(rest) == 1 && rest[0] == "-"):
		if err := json.NewDecoder(os.Stdin).Decode(&payload); err != nil {
			fail("failed to parse JSON from stdin: %v", err)
		}
	case *file != "":
		data, err := os.ReadFile(*file)
		if err != nil {
			fail("failed to read %s: %v", *file, err)
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			fail("failed to parse JSON from %s: %v", *file, err)
		}
	case len(rest) == 1:
		if err := json.Unmarshal([]byte(rest[0]), &payload); err != nil {
			fail("failed to parse JSON literal: %v", err)
		}
	default:
		if *id == "" || *command == "" {
			fail("usage: queuectl enqueue -i <id> -c <command> [-r N] | '<json>' | -f <file> | -")
		}
		payload = enqueuePayload{ID: *id, Command: *command, MaxRetries: retries}
	}
	if payload.MaxRetries == nil {
		payload.MaxRetries = retries
	}

	a, err := openApp(ctx)
	if err != nil {
		fail("%v", err)
	}
	defer a.Close()

	job, err := a.manager.Enqueue(ctx, payload.ID, payload.Command, *payload.MaxRetries)
	if err != nil {
		fail("%v", err)
	}
	metrics.RecordEnqueue()
	fmt.Printf("enqueued job %s\n", job.ID)
}

func cmdList(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	state := fs.String("s", "", "filter by state (pending, processing, completed, failed, dead)")
	limit := fs.Int("l", 50, "max rows")
	fs.Parse(args)

	a, err := openApp(ctx)
	if err != nil {
		fail("%v", err)
	}
	defer a.Close()

	var statePtr *models.State
	if *state != "" {
		s := models.State(*state)
		if !s.Valid() {
			fail("invalid state %q", *state)
		}
		statePtr = &s
	}

	jobs, err := a.manager.List(ctx, statePtr, *limit)
	if err != nil {
		fail("%v", err)
	}
	printJobTable(jobs)
}

func cmdStatus(ctx context.Context, args []string) {
	a, err := openApp(ctx)
	if err != nil {
		fail("%v", err)
	}
	defer a.Close()

	stats, err := a.manager.Stats(ctx)
	if err != nil {
		fail("%v", err)
	}
	fmt.Printf("pending:    %d\n", stats.Pending)
	fmt.Printf("processing: %d\n", stats.Processing)
	fmt.Printf("completed:  %d\n", stats.Completed)
	fmt.Printf("failed:     %d\n", stats.Failed)
	fmt.Printf("dead:       %d\n", stats.Dead)
	fmt.Printf("total:      %d\n", stats.Total)

	// This process has no worker pool of its own unless `worker start`
	// was invoked in it; a fresh `status` invocation always reports
	// zero, matching the teacher CLI's per-process worker_manager.
	fmt.Println()
	fmt.Println("workers:")
	fmt.Printf("  total:      %d\n", 0)
	fmt.Printf("  active:     %d\n", 0)
	fmt.Printf("  busy:       %d\n", 0)
	fmt.Printf("  idle:       %d\n", 0)

	fmt.Println()
	fmt.Println("config:")
	printConfig(a.cfg)

	printHostSnapshot(ctx)
}

func cmdDLQ(ctx context.Context, args []string) {
	if len(args) == 0 {
		fail("usage: queuectl dlq <list|retry> ...")
	}

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("dlq list", flag.ExitOnError)
		limit := fs.Int("l", 50, "max rows")
		fs.Parse(args[1:])

		a, err := openApp(ctx)
		if err != nil {
			fail("%v", err)
		}
		defer a.Close()

		dead := models.StateDead
		jobs, err := a.manager.List(ctx, &dead, *limit)
		if err != nil {
			fail("%v", err)
		}
		printJobTable(jobs)

	case "retry":
		if len(args) != 2 {
			fail("usage: queuectl dlq retry <id>")
		}
		a, err := openApp(ctx)
		if err != nil {
			fail("%v", err)
		}
		defer a.Close()

		if err := a.manager.RetryDLQ(ctx, args[1]); err != nil {
			fail("%v", err)
		}
		metrics.RecordDLQRetry()
		fmt.Printf("job %s requeued\n", args[1])

	default:
		fail("unknown dlq subcommand %q", args[0])
	}
}

func cmdAudit(ctx context.Context, args []string) {
	if len(args) != 1 {
		fail("usage: queuectl audit <id>")
	}

	a, err := openApp(ctx)
	if err != nil {
		fail("%v", err)
	}
	defer a.Close()

	log := audit.NewLog(a.store.DB())
	entries, err := log.ForJob(ctx, args[0])
	if err != nil {
		fail("%v", err)
	}
	if len(entries) == 0 {
		fmt.Println("no audit entries for this job")
		return
	}
	for _, e := range entries {
		fmt.Printf("%s  %-10s worker=%d\n", e.At.Format("2006-01-02T15:04:05Z07:00"), e.Event, e.WorkerID)
	}
}

func cmdJobsCleanup(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("jobs cleanup", flag.ExitOnError)
	days := fs.Int("days", 30, "delete completed jobs older than this many days")
	fs.Parse(args)

	a, err := openApp(ctx)
	if err != nil {
		fail("%v", err)
	}
	defer a.Close()

	removed, err := a.manager.CleanupOld(ctx, *days)
	if err != nil {
		fail("%v", err)
	}
	fmt.Printf("removed %d completed job(s) older than %d day(s)\n", removed, *days)
}

func printJobTable(jobs []models.Job) {
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	fmt.Fprintf(w, "%-24s %-10s %-9s %-6s %s\n", "ID", "STATE", "ATTEMPTS", "MAX", "COMMAND")
	for _, j := range jobs {
		fmt.Fprintf(w, "%-24s %-10s %-9d %-6d %s\n", j.ID, j.State, j.Attempts, j.MaxRetries, j.Command)
	}
}

func printHostSnapshot(ctx context.Context) {
	snap, err := sysinfo.Collect(ctx)
	if err != nil {
		return
	}
	fmt.Printf("host cpu:   %d cores, %.1f%% used\n", snap.CPUCount, snap.CPUPercent)
	fmt.Printf("host mem:   %d/%d MB (%.1f%%)\n", snap.UsedMemoryMB, snap.TotalMemoryMB, snap.MemoryPercent)
}
