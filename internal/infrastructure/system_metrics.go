package infrastructure

import (
	"runtime"
	"time"
)

// RuntimeStats is a point-in-time view of the Go runtime, reported by the
// liveness endpoint. The Prometheus registry exports the same figures as
// time series.
type RuntimeStats struct {
	GoRoutines    int
	MemoryUsage   uint64
	MemorySystem  uint64
	GCCount       uint32
	LastGCPause   time.Duration
	CPUCount      int
	ProcessUptime time.Duration
	GoVersion     string
	Timestamp     time.Time
}

// CollectRuntimeStats reads the runtime counters. startTime anchors the uptime.
func CollectRuntimeStats(startTime time.Time) RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := RuntimeStats{
		GoRoutines:    runtime.NumGoroutine(),
		MemoryUsage:   memStats.Alloc,
		MemorySystem:  memStats.Sys,
		GCCount:       memStats.NumGC,
		CPUCount:      runtime.NumCPU(),
		ProcessUptime: time.Since(startTime),
		GoVersion:     runtime.Version(),
		Timestamp:     time.Now(),
	}
	if memStats.NumGC > 0 {
		stats.LastGCPause = time.Duration(memStats.PauseNs[(memStats.NumGC+255)%256])
	}
	return stats
}

// FormatStats renders the stats for a JSON response.
func (s RuntimeStats) FormatStats() map[string]interface{} {
	return map[string]interface{}{
		"uptime":           s.ProcessUptime.Seconds(),
		"go_version":       s.GoVersion,
		"goroutines":       s.GoRoutines,
		"memory_usage_mb":  float64(s.MemoryUsage) / 1024 / 1024,
		"memory_system_mb": float64(s.MemorySystem) / 1024 / 1024,
		"gc_count":         s.GCCount,
		"last_gc_pause_ms": float64(s.LastGCPause.Microseconds()) / 1000,
		"cpu_count":        s.CPUCount,
	}
}
