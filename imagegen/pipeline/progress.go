// progress.go - Fortschritts-Senke
//
// Dieses Modul enthaelt:
// - ProgressSink Interface
// - StepCounter: atomare Standard-Implementierung
package pipeline

import "sync/atomic"

// ProgressSink receives denoising progress. Expect is called exactly once
// before the loop starts with the total number of steps that will run;
// Update is called once per completed step. Implementations must tolerate
// being polled from other goroutines while the loop runs.
type ProgressSink interface {
	Expect(total int)
	Update(n int)
}

// StepCounter is the default ProgressSink: two atomics, safe to poll from
// any goroutine without participating in the loop's own state.
type StepCounter struct {
	total     atomic.Int64
	completed atomic.Int64
}

// NewStepCounter creates an empty counter.
func NewStepCounter() *StepCounter { return &StepCounter{} }

// Expect records the total expected number of updates.
func (c *StepCounter) Expect(total int) {
	c.total.Store(int64(total))
	c.completed.Store(0)
}

// Update adds n completed steps.
func (c *StepCounter) Update(n int) {
	c.completed.Add(int64(n))
}

// Total returns the announced total.
func (c *StepCounter) Total() int { return int(c.total.Load()) }

// Completed returns the number of completed steps so far.
func (c *StepCounter) Completed() int { return int(c.completed.Load()) }
