// Command queuectl is a durable, single-node background job queue: it
// persists jobs to a local SQLite file, claims and executes them with a
// worker pool, retries failures with exponential backoff, and parks
// exhausted jobs in a dead letter queue for manual inspection.
package main

import (
	"context"
	"fmt"
	"os"

	"queuectl/pkg/logger"
)

func main() {
	logger.Init(logger.DefaultConfig("queuectl"))
	defer logger.Sync()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd, rest := os.Args[1], os.Args[2:]

	switch cmd {
	case "add":
		cmdAdd(ctx, rest)
	case "enqueue":
		cmdEnqueue(ctx, rest)
	case "list":
		cmdList(ctx, rest)
	case "status":
		cmdStatus(ctx, rest)
	case "dlq":
		cmdDLQ(ctx, rest)
	case "audit":
		cmdAudit(ctx, rest)
	case "worker":
		if len(rest) == 0 {
			fail("usage: queuectl worker <start|stop>")
		}
		switch rest[0] {
		case "start":
			cmdWorkerStart(ctx, rest[1:])
		case "stop":
			cmdWorkerStop(ctx, rest[1:])
		default:
			fail("unknown worker subcommand %q", rest[0])
		}
	case "config":
		cmdConfig(rest)
	case "jobs":
		if len(rest) == 0 || rest[0] != "cleanup" {
			fail("usage: queuectl jobs cleanup -days N")
		}
		cmdJobsCleanup(ctx, rest[1:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `queuectl - durable single-node background job queue

Usage:
  queuectl add <id> <command> [-r max_retries]
  queuectl enqueue -i <id> -c <command> [-r N] | '<json>' | -f <file> | -
  queuectl list [-s state] [-l limit]
  queuectl status
  queuectl dlq list [-l limit]
  queuectl dlq retry <id>
  queuectl audit <id>
  queuectl worker start [-c workers] [-metrics-addr addr] [-pid-file path]
  queuectl worker stop [-pid-file path]
  queuectl config show
  queuectl config set <key> <value>
  queuectl config reset
  queuectl jobs cleanup -days N

Environment:
  QUEUECTL_DB      path to the SQLite database file (default queuectl.db)
  QUEUECTL_CONFIG  path to the JSON config file (default queuectl.json)`)
}
