package data

import (
	"fmt"
	"math"
)

// Largest build time we accept, in milliseconds
const BuildTimeMax = math.MaxInt32

// A single build time observation. The zero value is an empty ring slot;
// otherwise the sample is either a measured duration or an abandoned build.
type Sample struct {
	ms        uint32
	abandoned bool
}

// Abandoned marks a circuit that was closed before it finished building
var Abandoned = Sample{abandoned: true}

// Measured wraps a build time in milliseconds. It does not validate; Ring.Add does.
func Measured(ms uint32) Sample {
	return Sample{ms: ms}
}

// MeasuredMillis validates a signed millisecond count and wraps it
func MeasuredMillis(ms int64) (Sample, error) {
	if ms <= 0 || ms > BuildTimeMax {
		return Sample{}, NewDataError(ErrInvalidSample, "build time %dms is out of range", ms)
	}
	return Measured(uint32(ms)), nil
}

func (s Sample) IsEmpty() bool {
	return !s.abandoned && s.ms == 0
}

func (s Sample) IsAbandoned() bool {
	return s.abandoned
}

// Millis returns the measured duration. ok is false for empty and abandoned samples.
func (s Sample) Millis() (ms uint32, ok bool) {
	if s.abandoned || s.ms == 0 {
		return 0, false
	}
	return s.ms, true
}

// Valid reports whether the sample may be stored
func (s Sample) Valid() bool {
	if s.abandoned {
		return true
	}
	return s.ms > 0 && s.ms <= BuildTimeMax
}

func (s Sample) String() string {
	switch {
	case s.abandoned:
		return "abandoned"
	case s.ms == 0:
		return "empty"
	default:
		return fmt.Sprintf("%dms", s.ms)
	}
}
