package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"queuectl/pkg/config"
)

func cmdConfig(args []string) {
	if len(args) == 0 {
		fail("usage: queuectl config <set|show|reset> ...")
	}

	path := configPathEnv()

	switch args[0] {
	case "show":
		cfg, err := config.Load(path)
		if err != nil {
			fail("%v", err)
		}
		printConfig(cfg)

	case "set":
		if len(args) != 3 {
			fail("usage: queuectl config set <key> <value>")
		}
		cfg, err := config.Set(path, args[1], args[2])
		if err != nil {
			fail("%v", err)
		}
		printConfig(cfg)

	case "reset":
		if !confirm("Are you sure you want to reset configuration to defaults?") {
			fmt.Println("cancelled")
			return
		}
		cfg, err := config.Reset(path)
		if err != nil {
			fail("%v", err)
		}
		printConfig(cfg)

	default:
		fail("unknown config subcommand %q", args[0])
	}
}

// confirm prompts a yes/no question on stdin, per spec.md §6's
// `config reset` requirement.
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printConfig(cfg config.Config) {
	fmt.Printf("max-retries:             %d\n", cfg.MaxRetries)
	fmt.Printf("backoff-base:            %g\n", cfg.BackoffBase)
	fmt.Printf("job-timeout:             %d\n", cfg.JobTimeoutSeconds)
	fmt.Printf("poll-interval:           %d\n", cfg.PollIntervalSeconds)
	fmt.Printf("worker-shutdown-timeout: %d\n", cfg.WorkerShutdownSeconds)
}
