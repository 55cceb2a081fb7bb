// Package config manages the five operator-tunable parameters as a JSON
// file, filling in defaults for missing keys and preserving any unknown
// keys already present on disk.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config holds every tunable from spec.md §6.
type Config struct {
	MaxRetries            int     `json:"max_retries"`
	BackoffBase           float64 `json:"backoff_base"`
	JobTimeoutSeconds     int     `json:"job_timeout"`
	PollIntervalSeconds   int     `json:"poll_interval"`
	WorkerShutdownSeconds int     `json:"worker_shutdown_timeout"`
}

// Defaults returns the built-in defaults, used both to seed a fresh
// config file and to fill any keys missing from an existing one.
func Defaults() Config {
	return Config{
		MaxRetries:            3,
		BackoffBase:           2.0,
		JobTimeoutSeconds:     300,
		PollIntervalSeconds:   1,
		WorkerShutdownSeconds: 10,
	}
}

// Validate enforces the bounds spec.md places on each tunable.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0")
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("backoff_base must be > 0")
	}
	if c.JobTimeoutSeconds <= 0 {
		return fmt.Errorf("job_timeout must be > 0")
	}
	if c.PollIntervalSeconds < 1 {
		return fmt.Errorf("poll_interval must be >= 1")
	}
	if c.WorkerShutdownSeconds < 0 {
		return fmt.Errorf("worker_shutdown_timeout must be >= 0")
	}
	return nil
}

// Load reads path, filling any key absent from the file (or the whole
// file, if it doesn't exist yet) with its default by merging the file's
// keys over the defaults before decoding. An existing file is never
// rewritten here, so keys this struct doesn't recognize stay on disk;
// they are not part of the returned Config.
func Load(path string) (Config, error) {
	defaults := Defaults()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if werr := Save(path, defaults); werr != nil {
			return Config{}, werr
		}
		return defaults, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var onDisk map[string]json.RawMessage
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	merged := defaultsAsMap(defaults)
	for k, v := range onDisk {
		merged[k] = v
	}

	mergedRaw, err := json.Marshal(merged)
	if err != nil {
		return Config{}, fmt.Errorf("failed to remarshal config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(mergedRaw, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode merged config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config at %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as indented JSON, creating the file if
// necessary.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid config: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Reset overwrites path with the built-in defaults and returns them.
func Reset(path string) (Config, error) {
	defaults := Defaults()
	if err := Save(path, defaults); err != nil {
		return Config{}, err
	}
	return defaults, nil
}

// Set applies a single key/value pair (kebab-case key, as accepted on
// the CLI) to cfg and persists the result. Unknown CLI keys are
// rejected; keys already in the file that this struct doesn't recognize
// are written back unchanged alongside the five known ones.
func Set(path, key, value string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return Config{}, err
	}

	switch key {
	case "max-retries":
		var v int
		if _, err := fmt.Sscanf(value, "%d", &v); err != nil {
			return Config{}, fmt.Errorf("max-retries must be an integer: %w", err)
		}
		cfg.MaxRetries = v
	case "backoff-base":
		var v float64
		if _, err := fmt.Sscanf(value, "%g", &v); err != nil {
			return Config{}, fmt.Errorf("backoff-base must be a number: %w", err)
		}
		cfg.BackoffBase = v
	case "job-timeout":
		var v int
		if _, err := fmt.Sscanf(value, "%d", &v); err != nil {
			return Config{}, fmt.Errorf("job-timeout must be an integer: %w", err)
		}
		cfg.JobTimeoutSeconds = v
	case "poll-interval":
		v, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("poll-interval must be an integer: %w", err)
		}
		cfg.PollIntervalSeconds = v
	case "worker-shutdown-timeout":
		var v int
		if _, err := fmt.Sscanf(value, "%d", &v); err != nil {
			return Config{}, fmt.Errorf("worker-shutdown-timeout must be an integer: %w", err)
		}
		cfg.WorkerShutdownSeconds = v
	default:
		return Config{}, fmt.Errorf("unknown config key %q", key)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	onDisk := map[string]json.RawMessage{}
	if raw, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(raw, &onDisk)
	}
	for k, v := range defaultsAsMap(cfg) {
		onDisk[k] = v
	}
	data, _ := json.MarshalIndent(onDisk, "", "  ")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return Config{}, fmt.Errorf("failed to write config file: %w", err)
	}
	return cfg, nil
}

func defaultsAsMap(cfg Config) map[string]json.RawMessage {
	data, _ := json.Marshal(cfg)
	var m map[string]json.RawMessage
	_ = json.Unmarshal(data, &m)
	return m
}
