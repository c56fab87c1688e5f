package stage

import "sync/atomic"

// Clock stamps records with a monotonic sequence number, starting at 1.
//
// Sequence numbers identify records in error rows and restore input order
// when several copies process a stream. They are logical, never wall-clock.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
