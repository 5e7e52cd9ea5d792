// Package common provides small shared helpers for timing and runtime
// statistics.
package common

import (
	"fmt"
	"time"
)

// Timer measures a single span of work.
type Timer struct {
	name    string
	start   time.Time
	elapsed time.Duration
}

// NewTimer starts an unnamed timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// NewNamedTimer starts a timer labeled for log and report output.
func NewNamedTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Stop records the elapsed duration and returns it.
func (t *Timer) Stop() time.Duration {
	t.elapsed = time.Since(t.start)
	return t.elapsed
}

// Elapsed returns the recorded duration; valid after Stop.
func (t *Timer) Elapsed() time.Duration {
	return t.elapsed
}

// Milliseconds returns the recorded duration in whole milliseconds,
// the unit wire payloads report.
func (t *Timer) Milliseconds() int64 {
	return t.elapsed.Milliseconds()
}

// Name returns the timer label.
func (t *Timer) Name() string {
	return t.name
}

// String formats the timer for log output.
func (t *Timer) String() string {
	if t.name == "" {
		return t.elapsed.String()
	}
	return fmt.Sprintf("%s=%s", t.name, t.elapsed)
}
