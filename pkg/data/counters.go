package data

import "math"

// The kind of circuit outcome a Counters value tracks
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeTimedOut
	OutcomeClosed
)

// Monotonic circuit outcome counters. When any counter is about to overflow
// all three are halved together so their ratios survive.
type Counters struct {
	Succeeded uint32
	TimedOut  uint32
	Closed    uint32
}

func (c *Counters) Record(o Outcome) {
	var v *uint32
	switch o {
	case OutcomeSucceeded:
		v = &c.Succeeded
	case OutcomeTimedOut:
		v = &c.TimedOut
	case OutcomeClosed:
		v = &c.Closed
	default:
		return
	}

	*v++
	if *v >= math.MaxInt32 {
		c.scale()
	}
}

func (c *Counters) scale() {
	c.Succeeded /= 2
	c.TimedOut /= 2
	c.Closed /= 2
}

func (c *Counters) Reset() {
	*c = Counters{}
}
