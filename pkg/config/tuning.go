package config

import (
	"fmt"
	"time"

	"github.com/satmihir/cbt/pkg/params"
)

const (
	// Number of build times kept in the ring buffer
	defaultCircuitsToObserve = params.MaxCircuitsToObserve
	// Width of a histogram bin in milliseconds
	defaultBinWidthMs = 50
	// Save the state every this many circuit builds
	defaultSaveStateEvery = 10
	// The housekeeping tick
	defaultHousekeepingInterval = time.Second
)

// The default config that's supposed to work in most cases
func DefaultEstimatorConfig() *EstimatorConfig {
	return &EstimatorConfig{
		LearnCircuitBuildTimeout: true,
		CircuitsToObserve:        defaultCircuitsToObserve,
		BinWidthMs:               defaultBinWidthMs,
		SaveStateEvery:           defaultSaveStateEvery,
		HousekeepingInterval:     defaultHousekeepingInterval,
		Params:                   map[string]int32{},
	}
}

// TestingEstimatorConfig returns the defaults with learning forced on, the
// way simulations want it
func TestingEstimatorConfig() *EstimatorConfig {
	c := DefaultEstimatorConfig()
	c.ForceLearning = true
	c.AvoidDiskWrites = true
	return c
}

// Validate the config against invariants
func ValidateEstimatorConfig(c *EstimatorConfig) error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if c.CircuitsToObserve <= 0 {
		return fmt.Errorf("circuits_to_observe must be at least 1, found %d", c.CircuitsToObserve)
	}

	if c.BinWidthMs <= 0 {
		return fmt.Errorf("bin_width_ms must be at least 1, found %d", c.BinWidthMs)
	}

	if c.SaveStateEvery <= 0 {
		return fmt.Errorf("save_state_every must be at least 1, found %d", c.SaveStateEvery)
	}

	if c.CircuitBuildTimeoutSec < 0 {
		return fmt.Errorf("circuit_build_timeout_sec cannot be negative, found %d", c.CircuitBuildTimeoutSec)
	}

	if c.HousekeepingInterval <= 0 {
		return fmt.Errorf("housekeeping_interval must be positive, found %v", c.HousekeepingInterval)
	}

	for name := range c.Params {
		if _, ok := params.Lookup(name); !ok {
			return fmt.Errorf("unknown parameter %q", name)
		}
	}

	return nil
}
