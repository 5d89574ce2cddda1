package tracker

import (
	"errors"
	"math"

	"github.com/satmihir/cbt/pkg/circuit"
	"github.com/satmihir/cbt/pkg/data"
	"github.com/satmihir/cbt/pkg/logger"
	"github.com/satmihir/cbt/pkg/params"
	"github.com/satmihir/cbt/pkg/tuning"
)

// AddTime records a build time in milliseconds. Values outside
// (0, BuildTimeMax] are rejected and leave the history untouched.
func (t *BuildTimeTracker) AddTime(ms int64) error {
	t.mu.Lock()
	defer t.unlock()
	return t.addMillis(ms)
}

func (t *BuildTimeTracker) addMillis(ms int64) error {
	s, err := data.MeasuredMillis(ms)
	if err != nil {
		logger.Warnf("Circuit build time is too large (%d). This is probably a bug.", ms)
		t.metrics.SampleRejected()
		return NewTrackerError(err, "Failed to add a build time")
	}
	return t.addSample(s)
}

func (t *BuildTimeTracker) addSample(s data.Sample) error {
	if err := t.ring.Add(s); err != nil {
		logger.Warnf("Rejected circuit build time %s", s)
		t.metrics.SampleRejected()
		return NewTrackerError(err, "Failed to add a build time")
	}

	logger.Debugf("Adding circuit build time %s", s)
	if ms, ok := s.Millis(); ok {
		t.metrics.BuildTime(ms)
	}

	if t.ring.Total()%t.cfg.SaveStateEvery == 0 && !t.cfg.AvoidDiskWrites {
		t.store.MarkDirty()
	}
	return nil
}

// Timeout quantile as a fraction
func (t *BuildTimeTracker) quantileCutoff() float64 {
	return float64(t.params.Get(params.QuantileCutoff)) / 100.0
}

func (t *BuildTimeTracker) closeQuantile() float64 {
	cutoff := t.params.Get(params.QuantileCutoff)
	closeParam := t.params.Get(params.CloseQuantile)
	if closeParam < cutoff {
		logger.Warnf("Parameter %s is too small, raising to %d", params.CloseQuantile.Name, cutoff)
	}
	return tuning.CloseQuantile(closeParam, cutoff)
}

// The ring can never hold more than its capacity, so a larger minimum is
// cut down to it
func (t *BuildTimeTracker) minCircuitsToObserve() int {
	return min(int(t.params.Get(params.MinCircuitsToObserve)), t.ring.Capacity())
}

func (t *BuildTimeTracker) enoughToCompute() bool {
	return t.ring.Total() >= t.minCircuitsToObserve()
}

// Fit the curve and derive both timeouts from it. Returns false, leaving
// the timeouts alone, when there is not enough data or the fit fails.
func (t *BuildTimeTracker) setTimeoutWorker() bool {
	if !t.enoughToCompute() {
		return false
	}
	if n := int(t.params.Get(params.MinCircuitsToObserve)); n > t.ring.Capacity() {
		logger.Warnf("Parameter %s is %d but we only keep %d circuits, lowering to %d",
			params.MinCircuitsToObserve.Name, n, t.ring.Capacity(), t.ring.Capacity())
	}

	fit, _, err := data.Fit(t.ring, t.binWidth, int(t.params.Get(params.NumXmModes)))
	if err != nil {
		if errors.Is(err, data.ErrNoValidData) {
			logger.Warnf("No valid circuit build time data out of %d times, have_timeout=%t, %fms",
				t.ring.Total(), t.haveComputedTimeout, t.timeoutMs)
		} else {
			logger.Warnf("Failed to fit circuit build times: %v", err)
		}
		return false
	}

	timeout, err := fit.Quantile(t.quantileCutoff())
	if err != nil {
		logger.Warnf("Failed to compute the circuit build timeout: %v", err)
		return false
	}
	closeMs, err := fit.Quantile(t.closeQuantile())
	if err != nil {
		logger.Warnf("Failed to compute the circuit close time: %v", err)
		return false
	}

	t.fit = fit
	maxTime := float64(t.ring.Max())

	if timeout > maxTime {
		logger.Printf("Circuit build timeout of %dms is beyond the maximum build time we have ever observed. Capping it to %dms.",
			int64(timeout), int64(maxTime))
		timeout = maxTime
	}

	if maxTime < math.MaxInt32/2 && closeMs > 2*maxTime {
		logger.Printf("Circuit build measurement period of %dms is more than twice the maximum build time we have ever observed. Capping it to %dms.",
			int64(closeMs), int64(2*maxTime))
		closeMs = 2 * maxTime
	}

	// Very fast guards give a steep curve whose close time is barely above
	// the timeout; keep at least the initial timeout for measurement.
	closeMs = math.Max(closeMs, t.initialTimeoutParam())

	t.timeoutMs = timeout
	t.closeMs = closeMs
	t.haveComputedTimeout = true
	return true
}

// Recompute the timeout from the history and publish it
func (t *BuildTimeTracker) setTimeout() {
	prev := math.Round(t.timeoutMs / 1000)

	if t.disabled() {
		return
	}
	if !t.setTimeoutWorker() {
		return
	}

	if minTimeout := float64(t.params.Get(params.MinTimeout)); t.timeoutMs < minTimeout {
		logger.Printf("Set buildtimeout to low value %fms. Setting to %dms", t.timeoutMs, int64(minTimeout))
		t.timeoutMs = minTimeout
		if t.closeMs < t.timeoutMs {
			t.closeMs = t.initialTimeoutParam()
		}
	}

	t.publishThresholds()
	t.emitBuildTimeout(circuit.BuildTimeoutComputed)

	rate := t.timeoutRate()
	now := math.Round(t.timeoutMs / 1000)
	switch {
	case prev > now:
		logger.Printf("Based on %d circuit times, it looks like we don't need to wait so long for circuits to finish. "+
			"We will now assume a circuit is too slow to use after waiting %d milliseconds.",
			t.ring.Total(), int64(math.Round(t.timeoutMs)))
		logger.Printf("Circuit timeout data: %fms, %fms, Xm: %d, a: %f, r: %f",
			t.timeoutMs, t.closeMs, t.fit.Xm, t.fit.Alpha, rate)
	case prev < now:
		logger.Printf("Based on %d circuit times, it looks like we need to wait longer for circuits to finish. "+
			"We will now assume a circuit is too slow to use after waiting %d milliseconds.",
			t.ring.Total(), int64(math.Round(t.timeoutMs)))
		logger.Printf("Circuit timeout data: %fms, %fms, Xm: %d, a: %f, r: %f",
			t.timeoutMs, t.closeMs, t.fit.Xm, t.fit.Alpha, rate)
	default:
		logger.Printf("Set circuit build timeout to %dms (%fms, %fms, Xm: %d, a: %f, r: %f) based on %d circuit times",
			int64(math.Round(t.timeoutMs)), t.timeoutMs, t.closeMs, t.fit.Xm, t.fit.Alpha, rate, t.ring.Total())
	}
}

// SetTimeout recomputes the timeout from the recorded build times
func (t *BuildTimeTracker) SetTimeout() {
	t.mu.Lock()
	defer t.unlock()
	t.setTimeout()
}

// Queue a build timeout event. Reset events report a quantile of 1; the
// rates are taken from the outcome counters.
func (t *BuildTimeTracker) emitBuildTimeout(kind circuit.BuildTimeoutKind) {
	quantile := 1.0
	if kind == circuit.BuildTimeoutComputed {
		quantile = t.quantileCutoff()
	}

	var timeoutRate, closeRate float64
	c := t.counters
	if c.TimedOut+c.Succeeded > 0 {
		timeoutRate = float64(c.TimedOut) / float64(uint64(c.TimedOut)+uint64(c.Succeeded))
	}
	if c.Closed+c.Succeeded > 0 {
		closeRate = float64(c.Closed) / float64(uint64(c.Closed)+uint64(c.Succeeded))
	}

	ev := circuit.BuildTimeoutEvent{
		Kind:            kind,
		TotalBuildTimes: t.ring.Total(),
		TimeoutMs:       t.timeoutMs,
		Xm:              t.fit.Xm,
		Alpha:           t.fit.Alpha,
		Quantile:        quantile,
		TimeoutRate:     timeoutRate,
		CloseMs:         t.closeMs,
		CloseRate:       closeRate,
	}
	sink := t.sink
	t.later(func() { sink.BuildTimeoutSet(ev) })
}

// Fraction of stored build times at or above the timeout. Abandoned
// circuits count as above it.
func (t *BuildTimeTracker) timeoutRate() float64 {
	if t.ring.Total() == 0 {
		return 0
	}

	timeouts := 0
	t.ring.Each(func(s data.Sample) {
		if ms, ok := s.Millis(); !ok || float64(ms) >= t.timeoutMs {
			timeouts++
		}
	})
	return float64(timeouts) / float64(t.ring.Total())
}

func (t *BuildTimeTracker) closeRate() float64 {
	if t.ring.Total() == 0 {
		return 0
	}
	return float64(t.ring.AbandonedCount()) / float64(t.ring.Total())
}

func (t *BuildTimeTracker) TimeoutRate() float64 {
	t.mu.Lock()
	defer t.unlock()
	return t.timeoutRate()
}

// CloseRate is the fraction of stored build times that were abandoned
func (t *BuildTimeTracker) CloseRate() float64 {
	t.mu.Lock()
	defer t.unlock()
	return t.closeRate()
}

// TimeoutMs is how long to wait for a circuit before using another one
func (t *BuildTimeTracker) TimeoutMs() float64 {
	t.mu.Lock()
	defer t.unlock()
	return t.timeoutMs
}

// CloseMs is how long to keep a timed out circuit around to measure it
func (t *BuildTimeTracker) CloseMs() float64 {
	t.mu.Lock()
	defer t.unlock()
	return t.closeMs
}

// Fit returns the last fitted curve
func (t *BuildTimeTracker) Fit() data.Pareto {
	t.mu.Lock()
	defer t.unlock()
	return t.fit
}

func (t *BuildTimeTracker) HaveComputedTimeout() bool {
	t.mu.Lock()
	defer t.unlock()
	return t.haveComputedTimeout
}

// TotalBuildTimes is the number of build times in the history
func (t *BuildTimeTracker) TotalBuildTimes() int {
	t.mu.Lock()
	defer t.unlock()
	return t.ring.Total()
}

// Counters returns the circuit outcome counters
func (t *BuildTimeTracker) Counters() data.Counters {
	t.mu.Lock()
	defer t.unlock()
	return t.counters
}
