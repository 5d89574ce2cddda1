package tracker

import (
	"math"
	"time"

	"github.com/satmihir/cbt/pkg/circuit"
	"github.com/satmihir/cbt/pkg/data"
	"github.com/satmihir/cbt/pkg/logger"
	"github.com/satmihir/cbt/pkg/params"
	"github.com/satmihir/cbt/pkg/tuning"
)

// How long the network may be quiet before we ask for reachability to be
// rechecked once it comes back
const recheckReachabilityAfter = 3 * time.Minute

// Timeouts this large are not doubled again on a network change
const maxDoubledTimeoutMs = math.MaxInt32 / 2

// A circuit reached the route length, so it is not a timeout after the
// first hop
func (t *BuildTimeTracker) circSuccess() {
	t.counters.Record(data.OutcomeSucceeded)
	t.metrics.CircuitSucceeded()
	t.liveness.RecordSuccess()
}

func (t *BuildTimeTracker) networkTimeout(didOneHop bool) {
	t.counters.Record(data.OutcomeTimedOut)
	t.metrics.CircuitTimedOut()
	t.liveness.RecordTimeout(didOneHop)
}

func (t *BuildTimeTracker) networkClose(didOneHop bool, startedAt time.Time) {
	now := t.clock.Now()

	t.counters.Record(data.OutcomeClosed)
	t.metrics.CircuitClosed()

	res := t.liveness.RecordClose(didOneHop, startedAt, now)
	if !res.Nonlive {
		return
	}

	if res.HopWhileNotLive {
		logger.Printf("A circuit somehow completed a hop while the network was not live. The network was last live at %s, "+
			"but the circuit launched at %s. It's now %s. This could mean your clock changed.",
			t.liveness.LastLive().Format(time.DateTime), startedAt.Format(time.DateTime), now.Format(time.DateTime))
	}

	if res.WentNonlive {
		logger.Printf("Not observed any network activity for the past %d seconds. Disabling circuit build timeout recording.",
			int64(res.Idle/time.Second))
		t.metrics.NetworkLive(false)
		sink := t.sink
		t.later(func() { sink.NetworkLivenessChanged(false) })
	} else {
		logger.Debugf("Got non-live timeout. Current count is: %d", res.NonliveCount)
	}
}

// When enough of the recent circuits timed out after their first hop the
// network has probably changed under us. Throw the history away and go back
// to a generous timeout, doubling it if we had already fallen back to it.
func (t *BuildTimeTracker) checkNetworkChanged() bool {
	numRecent := t.liveness.NumRecent()
	if numRecent == 0 {
		return false
	}

	timeoutCount := t.liveness.TimeoutCount()
	threshold := tuning.ClampMaxTimeouts(int(t.params.Get(params.MaxRecentTimeouts)), numRecent)
	if timeoutCount < threshold {
		return false
	}

	totalBuildTimes := t.ring.Total()
	t.reset()
	t.liveness.ClearHistory()

	if t.timeoutMs >= t.initialTimeout() {
		if t.timeoutMs > maxDoubledTimeoutMs || t.closeMs > maxDoubledTimeoutMs {
			logger.Warnf("Insanely large circuit build timeout value. (timeout = %fmsec, close = %fmsec)",
				t.timeoutMs, t.closeMs)
		} else {
			t.timeoutMs *= 2
			t.closeMs *= 2
		}
	} else {
		t.timeoutMs = t.initialTimeout()
		t.closeMs = t.timeoutMs
	}

	t.metrics.NetworkReset()
	t.publishThresholds()
	t.emitBuildTimeout(circuit.BuildTimeoutReset)

	logger.Printf("Your network connection speed appears to have changed. Resetting timeout to %dms after %d timeouts and %d buildtimes.",
		int64(math.Round(t.timeoutMs)), timeoutCount, totalBuildTimes)
	return true
}

func (t *BuildTimeTracker) countTimeout(didOneHop bool) {
	if t.disabled() {
		t.pinToInitial()
		return
	}

	t.networkTimeout(didOneHop)
	t.checkNetworkChanged()
}

// CountTimeout notes that a circuit timed out. No build time is recorded
// yet; that happens when the circuit is closed or completes.
func (t *BuildTimeTracker) CountTimeout(didOneHop bool) {
	t.mu.Lock()
	defer t.unlock()
	t.countTimeout(didOneHop)
}

// CountClose records a circuit that was closed before completing as an
// abandoned build time. Returns true when it was recorded, which only
// happens while the network is live.
func (t *BuildTimeTracker) CountClose(didOneHop bool, startedAt time.Time) bool {
	t.mu.Lock()
	defer t.unlock()

	if t.disabled() {
		t.pinToInitial()
		return false
	}

	t.networkClose(didOneHop, startedAt)
	if !t.liveness.IsLive() {
		return false
	}

	return t.addSample(data.Abandoned) == nil
}

// NetworkIsLive is called whenever we hear from the network
func (t *BuildTimeTracker) NetworkIsLive() {
	t.mu.Lock()
	defer t.unlock()

	now := t.clock.Now()
	neverLive := t.liveness.LastLive().IsZero()
	res := t.liveness.MarkLive(now)
	if res.WasNonlive {
		logger.Printf("Network activity observed. Restoring circuit build timeout recording. "+
			"Network was down for %d seconds during %d circuit attempts.",
			int64(res.DownFor/time.Second), res.NonliveCount)
		if res.DownFor > recheckReachabilityAfter {
			lifecycle := t.lifecycle
			t.later(lifecycle.RecheckReachability)
		}
	}

	if neverLive || res.WasNonlive {
		t.metrics.NetworkLive(true)
		sink := t.sink
		t.later(func() { sink.NetworkLivenessChanged(true) })
	}
}

// NetworkCheckLive is false while circuits keep getting closed with no
// network activity
func (t *BuildTimeTracker) NetworkCheckLive() bool {
	t.mu.Lock()
	defer t.unlock()
	return t.liveness.IsLive()
}

// NewNetworkParams re-reads the network parameters that size our state.
// Called whenever the network parameters change.
func (t *BuildTimeTracker) NewNetworkParams() {
	t.mu.Lock()
	defer t.unlock()

	if t.disabled() {
		t.liveness.Resize(0)
		return
	}

	num := int(t.params.Get(params.RecentCircuits))
	if num <= 0 {
		logger.Warnf("Parameter %s came back zero. This disables adaptive timeouts since we can't keep track of any recent circuits.",
			params.RecentCircuits.Name)
		t.liveness.Resize(0)
		return
	}

	if old := t.liveness.NumRecent(); num != old {
		if old > 0 {
			logger.Printf("The network has changed how many circuits we must track to detect network failures from %d to %d.", old, num)
		} else {
			logger.Printf("Re-enabling circuit-based network failure detection.")
		}
		t.liveness.Resize(num)
	}
}

// NumRecentCircuits is the size of the recent timeout history
func (t *BuildTimeTracker) NumRecentCircuits() int {
	t.mu.Lock()
	defer t.unlock()
	return t.liveness.NumRecent()
}

// RecentTimeouts counts recent circuits that timed out after the first hop
func (t *BuildTimeTracker) RecentTimeouts() int {
	t.mu.Lock()
	defer t.unlock()
	return t.liveness.TimeoutCount()
}
