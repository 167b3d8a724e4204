package engine

import "sync/atomic"

// Sequencer hands out the seq stamp of each session.
// Implemented by Clock and by testutil.DeterministicClock.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock for ordering sessions.
//
// Sessions are stamped with a strictly increasing seq from this clock,
// never with wall-clock time, so history reads back in a stable order.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that continues after start. Used to resume
// from the last seq in a store.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
