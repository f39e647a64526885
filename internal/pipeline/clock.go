package pipeline

import "sync/atomic"

// Clock issues run seq numbers. Each Next returns a unique, strictly
// increasing value.
type Clock interface {
	Next() int64
}

// SeqClock is a monotonic logical clock for run ordering.
//
// Runs are stamped with seq from this clock, never with wall time, so the
// run history orders the same way on every replay.
//
// Thread-safety: SeqClock is safe for concurrent use (atomic operations).
type SeqClock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *SeqClock {
	return &SeqClock{}
}

// NewClockAt creates a clock that resumes after start, typically the last
// seq found in the run store.
func NewClockAt(start int64) *SeqClock {
	c := &SeqClock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *SeqClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *SeqClock) Current() int64 {
	return c.seq.Load()
}
