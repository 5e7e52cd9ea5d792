package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMemoryStats(t *testing.T) {
	stats := ReadMemoryStats()
	assert.Positive(t, stats.Alloc)
	assert.Positive(t, stats.TotalAlloc)
	assert.Positive(t, stats.Sys)

	str := stats.String()
	assert.Contains(t, str, "alloc=")
	assert.Contains(t, str, "gc=")
}

func TestMeasure(t *testing.T) {
	calls := 0
	stats := Measure("busy", 5, func() {
		calls++
		time.Sleep(time.Millisecond)
	})

	require.Equal(t, 5, calls)
	assert.Equal(t, "busy", stats.Name)
	assert.Equal(t, 5, stats.Iterations)
	assert.GreaterOrEqual(t, stats.Total, 5*time.Millisecond)
	assert.GreaterOrEqual(t, stats.PerOp(), time.Millisecond)
	assert.GreaterOrEqual(t, stats.After.TotalAlloc, stats.Before.TotalAlloc)

	str := stats.String()
	assert.Contains(t, str, "busy: 5 iterations")
}

func TestMeasureZeroIterations(t *testing.T) {
	stats := Measure("idle", 0, func() {
		t.Fatal("fn must not run")
	})
	assert.Equal(t, 0, stats.Iterations)
	assert.Equal(t, time.Duration(0), stats.PerOp())
}

func TestAllocDelta(t *testing.T) {
	var sink [][]byte
	stats := Measure("alloc", 10, func() {
		sink = append(sink, make([]byte, 64*1024))
	})
	require.Len(t, sink, 10)
	assert.Positive(t, stats.AllocDelta())
}
