package engine

import "sync/atomic"

// Sequencer hands out logical sequence numbers. Implemented by Clock and
// testutil.DeterministicClock.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Clock stamps subevents with a strictly increasing logical sequence number.
// Traces order subevents by seq, never by wall-clock time, so a replayed
// scenario produces identical traces.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
