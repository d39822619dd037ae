// SPDX-License-Identifier: LGPL-3.0-or-later

package health

import (
	"fmt"
	"runtime"
	"syscall"
)

// resourceThresholds bound when CheckSystem downgrades its verdict from
// healthy to degraded to unhealthy, expressed as percent-used.
type resourceThresholds struct {
	degradedAt  float64
	unhealthyAt float64
}

var (
	memoryThresholds = resourceThresholds{degradedAt: 70.0, unhealthyAt: 85.0}
	diskThresholds   = resourceThresholds{degradedAt: 70.0, unhealthyAt: 85.0}
)

// CheckSystem samples the running process's own memory/goroutine stats and
// the disk backing its working directory, reducing both to a single Status.
func CheckSystem() *SystemHealth {
	sh := &SystemHealth{Status: StatusHealthy}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	sh.MemoryUsedMB = mem.Alloc / 1024 / 1024
	sh.MemoryTotalMB = mem.Sys / 1024 / 1024
	if sh.MemoryTotalMB > 0 {
		sh.MemoryPercent = float64(sh.MemoryUsedMB) / float64(sh.MemoryTotalMB) * 100
	}
	sh.GoRoutines = runtime.NumGoroutine()

	var stat syscall.Statfs_t
	if err := syscall.Statfs(".", &stat); err != nil {
		sh.Error = fmt.Sprintf("disk stat failed: %v", err)
	} else {
		total := stat.Blocks * uint64(stat.Bsize)
		free := stat.Bfree * uint64(stat.Bsize)
		sh.DiskTotalGB = total / 1024 / 1024 / 1024
		sh.DiskUsedGB = (total - free) / 1024 / 1024 / 1024
		if sh.DiskTotalGB > 0 {
			sh.DiskPercent = float64(sh.DiskUsedGB) / float64(sh.DiskTotalGB) * 100
		}
	}

	switch {
	case sh.MemoryPercent >= memoryThresholds.unhealthyAt || sh.DiskPercent >= diskThresholds.unhealthyAt:
		sh.Status = StatusUnhealthy
	case sh.MemoryPercent >= memoryThresholds.degradedAt || sh.DiskPercent >= diskThresholds.degradedAt:
		sh.Status = StatusDegraded
	}

	return sh
}
