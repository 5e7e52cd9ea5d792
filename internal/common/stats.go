package common

import (
	"fmt"
	"runtime"
	"time"
)

// MemoryStats is a snapshot of the allocator counters a benchmark run
// reports.
type MemoryStats struct {
	Alloc         uint64
	TotalAlloc    uint64
	Sys           uint64
	HeapInuse     uint64
	NumGC         uint32
	GCCPUFraction float64
}

// ReadMemoryStats snapshots the current allocator counters.
func ReadMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		Alloc:         m.Alloc,
		TotalAlloc:    m.TotalAlloc,
		Sys:           m.Sys,
		HeapInuse:     m.HeapInuse,
		NumGC:         m.NumGC,
		GCCPUFraction: m.GCCPUFraction,
	}
}

// String formats the snapshot for report output.
func (m MemoryStats) String() string {
	return fmt.Sprintf("alloc=%dKB total=%dKB sys=%dKB gc=%d (%.2f%% cpu)",
		m.Alloc/1024, m.TotalAlloc/1024, m.Sys/1024, m.NumGC, m.GCCPUFraction*100)
}

// RunStats summarizes a timed benchmark loop.
type RunStats struct {
	Name       string
	Iterations int
	Total      time.Duration
	Before     MemoryStats
	After      MemoryStats
}

// PerOp returns the average duration of one iteration.
func (r RunStats) PerOp() time.Duration {
	if r.Iterations <= 0 {
		return 0
	}
	return r.Total / time.Duration(r.Iterations)
}

// AllocDelta returns the bytes allocated across the run.
func (r RunStats) AllocDelta() int64 {
	return int64(r.After.TotalAlloc) - int64(r.Before.TotalAlloc) //nolint:gosec // G115: counters fit in int64
}

// String formats the run summary for report output.
func (r RunStats) String() string {
	return fmt.Sprintf("%s: %d iterations, %v/op, total %v, allocated %d KB",
		r.Name, r.Iterations, r.PerOp(), r.Total, r.AllocDelta()/1024)
}

// Measure runs fn count times and collects timing and allocator deltas.
func Measure(name string, count int, fn func()) RunStats {
	before := ReadMemoryStats()
	timer := NewNamedTimer(name)
	for range count {
		fn()
	}
	total := timer.Stop()
	return RunStats{
		Name:       name,
		Iterations: count,
		Total:      total,
		Before:     before,
		After:      ReadMemoryStats(),
	}
}
