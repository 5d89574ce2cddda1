// Package circuit is the view of a circuit the build time estimator needs,
// along with the callbacks it makes into the rest of the client.
package circuit

import (
	"fmt"
	"time"
)

// Circuits at least this long are measured when their third hop opens
const DefaultRouteLen = 3

// Why a circuit was built
type Purpose int

const (
	// A general client circuit
	PurposeGeneral Purpose = iota
	// A test circuit launched to learn the timeout
	PurposeTesting
	// Timed out, but left building so its full build time can be measured
	PurposeMeasureTimeout
	// A circuit built for an onion service
	PurposeOnionService
)

func (p Purpose) String() string {
	switch p {
	case PurposeGeneral:
		return "general"
	case PurposeTesting:
		return "testing"
	case PurposeMeasureTimeout:
		return "measure_timeout"
	case PurposeOnionService:
		return "onion_service"
	default:
		return fmt.Sprintf("purpose(%d)", int(p))
	}
}

// The circuit state the estimator reads. The estimator only writes Purpose,
// when it decides a circuit is to be kept for measurement only.
type Circuit struct {
	ID      uint32
	Purpose Purpose
	// When the first hop was launched
	StartedAt time.Time
	// Number of hops the circuit is meant to have
	PlannedPathLen int
	// Hops that are open so far
	OpenedHops int
	// The circuit was already used once it opened
	HasOpened bool
	// Single hop directory tunnels are never measured
	OneHopTunnel bool
	// The timeout was relaxed for this circuit and counted elsewhere
	RelaxedTimeout bool
}

// FirstHopOpen reports whether the circuit got past its first hop
func (c *Circuit) FirstHopOpen() bool {
	return c.OpenedHops > 0
}

// WantToCount reports whether the timeout applies to this circuit in a
// straightforward way
func (c *Circuit) WantToCount() bool {
	return !c.HasOpened && !c.OneHopTunnel && c.PlannedPathLen >= DefaultRouteLen
}

// Callbacks into the circuit subsystem
type Lifecycle interface {
	// AnyOpenedCircuits is true once any circuit has ever opened
	AnyOpenedCircuits() bool
	// RecheckReachability asks for our addresses and descriptors to be
	// rechecked after a long network outage
	RecheckReachability()
}

// Kinds of build timeout control events
type BuildTimeoutKind int

const (
	// The timeout went back to its initial value
	BuildTimeoutReset BuildTimeoutKind = iota
	// A new timeout was fitted from observations
	BuildTimeoutComputed
)

func (k BuildTimeoutKind) String() string {
	switch k {
	case BuildTimeoutReset:
		return "RESET"
	case BuildTimeoutComputed:
		return "COMPUTED"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Published whenever the build timeout is reset or recomputed
type BuildTimeoutEvent struct {
	Kind            BuildTimeoutKind
	TotalBuildTimes int
	TimeoutMs       float64
	Xm              uint32
	Alpha           float64
	// Timeout quantile as a fraction
	Quantile    float64
	TimeoutRate float64
	CloseMs     float64
	CloseRate   float64
}

// Receives control events
type EventSink interface {
	BuildTimeoutSet(ev BuildTimeoutEvent)
	// NetworkLivenessChanged reports the network going live or quiet
	NetworkLivenessChanged(live bool)
}

// What the rest of the client calls when circuits progress
type TimeoutEstimator interface {
	HandleCompletedHop(c *Circuit) bool
	CountTimeout(didOneHop bool)
	CountClose(didOneHop bool, startedAt time.Time) bool
	NetworkIsLive()
	NetworkCheckLive() bool
	NeedsCircuits() bool
	NeedsCircuitsNow() bool
	UpdateLastCirc()
	TimeoutMs() float64
	CloseMs() float64
}

// A Lifecycle that reports the fixed answer it was built with
type StaticLifecycle struct {
	Opened bool
}

func (l StaticLifecycle) AnyOpenedCircuits() bool { return l.Opened }

func (l StaticLifecycle) RecheckReachability() {}

// An EventSink that drops every event
type NoOpSink struct{}

func (NoOpSink) BuildTimeoutSet(BuildTimeoutEvent) {}

func (NoOpSink) NetworkLivenessChanged(bool) {}
