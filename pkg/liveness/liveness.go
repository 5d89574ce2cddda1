package liveness

import (
	"time"

	"github.com/satmihir/cbt/pkg/utils"
)

// Tracker follows whether the network is live and whether recent circuits
// have been timing out after their first hop. Not safe for concurrent use;
// the build time tracker serializes access.
type Tracker struct {
	// One slot per recent circuit, true when it timed out after the first hop
	timeoutsAfterFirstHop []bool
	// Next slot to write
	idx int

	// Last time we saw network activity
	lastLive time.Time
	// Circuits that began and were closed with no network activity since
	nonliveTimeouts int
}

// Outcome of recording a forced close
type CloseResult struct {
	// The circuit spent its whole life while the network was quiet
	Nonlive bool
	// This close is the one that flipped the network to not live
	WentNonlive bool
	// The circuit got a hop completed while the network was not live, which
	// usually means the clock moved
	HopWhileNotLive bool
	// Time since the network was last live
	Idle time.Duration
	// Nonlive closes seen so far
	NonliveCount int
}

// Outcome of marking the network live
type LiveResult struct {
	// The network had been marked not live before this call
	WasNonlive bool
	// How long the network was quiet
	DownFor time.Duration
	// Nonlive closes that happened while it was quiet
	NonliveCount int
}

// New returns a tracker watching the last numRecent circuits. A numRecent
// of zero or less disables timeout history. The network has never been seen
// live until MarkLive is called.
func New(numRecent int) *Tracker {
	t := &Tracker{}
	t.Resize(numRecent)
	return t
}

func (t *Tracker) NumRecent() int {
	return len(t.timeoutsAfterFirstHop)
}

// Index is the next history slot to be written
func (t *Tracker) Index() int {
	return t.idx
}

// Resize reallocates the history to n slots. Existing entries are copied
// over up to the smaller size; order need not be preserved since only the
// count of timeouts matters. n <= 0 drops the history.
func (t *Tracker) Resize(n int) {
	if n <= 0 {
		t.timeoutsAfterFirstHop = nil
		t.idx = 0
		return
	}

	old := len(t.timeoutsAfterFirstHop)
	if n == old {
		return
	}

	history := make([]bool, n)
	copy(history, t.timeoutsAfterFirstHop)

	if n < old {
		t.idx = min(n-1, t.idx)
	}
	t.timeoutsAfterFirstHop = history
}

func (t *Tracker) advance(timedOut bool) {
	if len(t.timeoutsAfterFirstHop) == 0 {
		return
	}
	t.timeoutsAfterFirstHop[t.idx] = timedOut
	t.idx = (t.idx + 1) % len(t.timeoutsAfterFirstHop)
}

// RecordSuccess notes a circuit that reached the full route length
func (t *Tracker) RecordSuccess() {
	t.advance(false)
}

// RecordTimeout notes a timed out circuit. Only circuits that completed a
// first hop are written to the history.
func (t *Tracker) RecordTimeout(didOneHop bool) {
	if didOneHop {
		t.advance(true)
	}
}

// RecordClose notes a circuit that was forcibly closed. If the circuit was
// launched after the network was last seen live, it counts towards the
// network being not live.
func (t *Tracker) RecordClose(didOneHop bool, startedAt, now time.Time) CloseResult {
	res := CloseResult{Idle: now.Sub(t.lastLive)}

	// Compared at second granularity
	if utils.SecondsBetween(startedAt, t.lastLive) >= 0 {
		res.NonliveCount = t.nonliveTimeouts
		return res
	}

	res.Nonlive = true
	res.HopWhileNotLive = didOneHop
	t.nonliveTimeouts++
	res.WentNonlive = t.nonliveTimeouts == 1
	res.NonliveCount = t.nonliveTimeouts
	return res
}

// MarkLive records network activity at now
func (t *Tracker) MarkLive(now time.Time) LiveResult {
	res := LiveResult{}
	if t.nonliveTimeouts > 0 {
		res.WasNonlive = true
		res.DownFor = now.Sub(t.lastLive)
		res.NonliveCount = t.nonliveTimeouts
	}

	t.lastLive = now
	t.nonliveTimeouts = 0
	return res
}

// IsLive is false once any circuit began and was closed since the last
// network activity
func (t *Tracker) IsLive() bool {
	return t.nonliveTimeouts == 0
}

func (t *Tracker) LastLive() time.Time {
	return t.lastLive
}

// TimeoutCount is the number of recent circuits that timed out after the
// first hop
func (t *Tracker) TimeoutCount() int {
	n := 0
	for _, timedOut := range t.timeoutsAfterFirstHop {
		if timedOut {
			n++
		}
	}
	return n
}

// ClearHistory zeroes the timeout history and rewinds the cursor
func (t *Tracker) ClearHistory() {
	clear(t.timeoutsAfterFirstHop)
	t.idx = 0
}
