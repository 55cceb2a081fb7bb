// Package sysinfo reports a snapshot of host CPU and memory resources,
// shown by `queuectl status` alongside the queue's own counters.
package sysinfo

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is a point-in-time read of host resource usage.
type Snapshot struct {
	CPUCount      int     `json:"cpu_count"`
	CPUPercent    float64 `json:"cpu_percent"`
	TotalMemoryMB uint64  `json:"total_memory_mb"`
	UsedMemoryMB  uint64  `json:"used_memory_mb"`
	MemoryPercent float64 `json:"memory_percent"`
}

// Collect reads the host's current CPU and memory figures.
func Collect(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	count, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return snap, fmt.Errorf("failed to read cpu count: %w", err)
	}
	snap.CPUCount = count

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return snap, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	if len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return snap, fmt.Errorf("failed to read memory usage: %w", err)
	}
	snap.TotalMemoryMB = vm.Total / (1024 * 1024)
	snap.UsedMemoryMB = vm.Used / (1024 * 1024)
	snap.MemoryPercent = vm.UsedPercent

	return snap, nil
}
