package config

import "time"

// The local configuration of the build time estimator. Network distributed
// tunables live in the params package; these are the knobs owned by the
// operator.
type EstimatorConfig struct {
	// Learn the timeout from observed build times. When false the estimator
	// stays pinned to the initial timeout.
	LearnCircuitBuildTimeout bool `yaml:"learn_circuit_build_timeout"`
	// Static timeout in seconds. Zero means use the learned initial value.
	CircuitBuildTimeoutSec int `yaml:"circuit_build_timeout_sec"`
	// Directory authorities never learn timeouts
	AuthorityMode bool `yaml:"authority_mode"`
	// Non-anonymous single onion services build one-hop circuits, which the
	// estimator cannot measure
	SingleOnionMode bool `yaml:"single_onion_mode"`
	// Never mark the state store dirty
	AvoidDiskWrites bool `yaml:"avoid_disk_writes"`
	// Learn regardless of every other switch and ignore the static timeout.
	// Meant for simulations and tests.
	ForceLearning bool `yaml:"force_learning"`
	// Capacity of the build time ring buffer
	CircuitsToObserve int `yaml:"circuits_to_observe"`
	// Histogram bin width in milliseconds
	BinWidthMs int `yaml:"bin_width_ms"`
	// Mark the state store dirty every this many recorded build times
	SaveStateEvery int `yaml:"save_state_every"`
	// How often the housekeeping loop flushes the state store
	HousekeepingInterval time.Duration `yaml:"housekeeping_interval"`
	// Static parameter overrides keyed by network parameter name
	Params map[string]int32 `yaml:"params"`
}
