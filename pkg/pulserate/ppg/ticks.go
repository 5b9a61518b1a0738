package ppg

import "time"

// Ticks is a millisecond counter read from a monotonic clock. It is allowed
// to wrap around; only differences between two readings carry meaning.
type Ticks uint32

// TicksDiff returns end - start in milliseconds, correct across a single
// wraparound of the counter.
func TicksDiff(end, start Ticks) int32 {
	return int32(uint32(end) - uint32(start))
}

// TicksAt converts an offset from the start of a session into Ticks.
func TicksAt(d time.Duration) Ticks {
	return Ticks(uint32(d.Milliseconds()))
}

// Clock hands out Ticks relative to the moment it was created.
type Clock struct {
	start time.Time
}

func NewClock() *Clock {
	return &Clock{start: time.Now()}
}

// Now returns the milliseconds elapsed since the clock was created.
func (c *Clock) Now() Ticks {
	return TicksAt(time.Since(c.start))
}
