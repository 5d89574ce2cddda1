// Package params holds the bounds-checked tunables that steer the build time
// estimator. Each parameter may be distributed by the network, overridden
// locally, or left at its default.
package params

import "math"

// A named integer parameter with its default and inclusive bounds
type Param struct {
	Name    string
	Default int32
	Min     int32
	Max     int32
}

// Clamp bounds v to [Min, Max]
func (p Param) Clamp(v int32) int32 {
	if v < p.Min {
		return p.Min
	}
	if v > p.Max {
		return p.Max
	}
	return v
}

// Maximum number of build times we keep in the ring buffer when the local
// configuration does not say otherwise. Bounds cbtmincircs.
const MaxCircuitsToObserve = 1000

var (
	// Set to 1 to turn off adaptive timeouts entirely
	Disabled = Param{Name: "cbtdisabled", Default: 0, Min: 0, Max: 1}

	// Number of histogram modes averaged into Xm
	NumXmModes = Param{Name: "cbtnummodes", Default: 10, Min: 1, Max: 20}

	// Size of the recent circuit window used for network-change detection
	RecentCircuits = Param{Name: "cbtrecentcount", Default: 20, Min: 3, Max: 1000}

	// Timeouts within the recent window that trigger a full reset. The
	// default is nine tenths of the default window.
	MaxRecentTimeouts = Param{Name: "cbtmaxtimeouts", Default: 18, Min: 3, Max: 10000}

	// Build times to observe before computing a timeout
	MinCircuitsToObserve = Param{Name: "cbtmincircs", Default: 100, Min: 1, Max: MaxCircuitsToObserve}

	// Percentile of the fitted curve used as the timeout
	QuantileCutoff = Param{Name: "cbtquantile", Default: 80, Min: 10, Max: 99}

	// Percentile of the fitted curve used to abandon measurement circuits
	CloseQuantile = Param{Name: "cbtclosequantile", Default: 99, Min: 0, Max: 99}

	// Seconds between test circuits while we still need observations
	TestFrequency = Param{Name: "cbttestfreq", Default: 10, Min: 1, Max: math.MaxInt32}

	// Smallest timeout we will ever set, in milliseconds
	MinTimeout = Param{Name: "cbtmintimeout", Default: 1500, Min: 500, Max: math.MaxInt32}

	// Timeout used before we have computed one, in milliseconds
	InitialTimeout = Param{Name: "cbtinitialtimeout", Default: 60 * 1000, Min: 500, Max: math.MaxInt32}
)

// All lists every parameter the estimator reads
func All() []Param {
	return []Param{
		Disabled,
		NumXmModes,
		RecentCircuits,
		MaxRecentTimeouts,
		MinCircuitsToObserve,
		QuantileCutoff,
		CloseQuantile,
		TestFrequency,
		MinTimeout,
		InitialTimeout,
	}
}

// Lookup finds a parameter definition by its network name
func Lookup(name string) (Param, bool) {
	for _, p := range All() {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}
