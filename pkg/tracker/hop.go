package tracker

import (
	"time"

	"github.com/satmihir/cbt/pkg/circuit"
	"github.com/satmihir/cbt/pkg/logger"
	"github.com/satmihir/cbt/pkg/params"
	"github.com/satmihir/cbt/pkg/utils"
)

// Mark the circuit as timed out but leave it building so its full build
// time can still be measured
func (t *BuildTimeTracker) markMeasurementOnly(c *circuit.Circuit) {
	c.Purpose = circuit.PurposeMeasureTimeout

	// Relaxed circuits were already counted when their timeout was relaxed
	if !c.RelaxedTimeout {
		t.countTimeout(c.FirstHopOpen())
	}
}

// MarkMeasurementOnly switches a timed out circuit to measurement only
func (t *BuildTimeTracker) MarkMeasurementOnly(c *circuit.Circuit) {
	t.mu.Lock()
	defer t.unlock()
	t.markMeasurementOnly(c)
}

// HandleCompletedHop is called every time a hop of c opens. Circuits are
// measured when their third hop opens, whatever length they are going to
// have, so every build time covers the same number of hops. Returns true
// when a build time was recorded.
func (t *BuildTimeTracker) HandleCompletedHop(c *circuit.Circuit) bool {
	t.mu.Lock()
	defer t.unlock()

	if t.disabled() {
		return false
	}
	if !c.WantToCount() {
		return false
	}

	elapsed := utils.MillisBetween(c.StartedAt, t.clock.Now())

	// Leave timeouts before the first opened circuit to whoever expires
	// circuits, which may want to relax them
	if float64(elapsed) > t.timeoutMs && t.lifecycle.AnyOpenedCircuits() {
		if c.Purpose != circuit.PurposeMeasureTimeout {
			logger.Printf("Deciding to timeout circuit %d", c.ID)
			t.markMeasurementOnly(c)
		}
	}

	if c.OpenedHops != circuit.DefaultRouteLen {
		return false
	}

	// Far beyond where we would have cut it off, we probably slept
	if elapsed < 0 || float64(elapsed) > 2*t.closeMs+1000 {
		purpose := c.Purpose
		t.clockJumpLog.Do(func() {
			logger.Printf("Strange value for circuit build time: %dmsec. Assuming clock jump. Purpose %d (%s)",
				elapsed, int(purpose), purpose)
		})
		t.metrics.SampleDiscarded()
		return false
	}

	recorded := false
	if t.liveness.IsLive() {
		if err := t.addMillis(elapsed); err == nil {
			recorded = true
			t.setTimeout()
		}
	}

	if c.Purpose != circuit.PurposeMeasureTimeout {
		t.circSuccess()
	}

	return recorded
}

// NeedsCircuits is true until enough build times are recorded to compute a
// timeout
func (t *BuildTimeTracker) NeedsCircuits() bool {
	t.mu.Lock()
	defer t.unlock()
	return !t.enoughToCompute()
}

// NeedsCircuitsNow is true when a test circuit should be launched now
func (t *BuildTimeTracker) NeedsCircuitsNow() bool {
	t.mu.Lock()
	defer t.unlock()

	if t.enoughToCompute() {
		return false
	}
	freq := int64(t.params.Get(params.TestFrequency))
	return utils.SecondsBetween(t.lastCircAt, t.clock.Now()) > freq
}

// UpdateLastCirc notes that a test circuit was just launched
func (t *BuildTimeTracker) UpdateLastCirc() {
	t.mu.Lock()
	defer t.unlock()
	t.lastCircAt = t.clock.Now()
}

// LastCircAt is when the last test circuit was launched
func (t *BuildTimeTracker) LastCircAt() time.Time {
	t.mu.Lock()
	defer t.unlock()
	return t.lastCircAt
}
