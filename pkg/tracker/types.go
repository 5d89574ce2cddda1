package tracker

import (
	"errors"

	"github.com/satmihir/cbt/pkg/circuit"
	"github.com/satmihir/cbt/pkg/config"
	"github.com/satmihir/cbt/pkg/params"
	"github.com/satmihir/cbt/pkg/store"
	"github.com/satmihir/cbt/pkg/utils"
)

// The persisted build time history could not be trusted and was discarded
var ErrCorruptState = errors.New("corrupt build time state")

// BuildTimeTrackerBuilder helps configure and construct a BuildTimeTracker.
type BuildTimeTrackerBuilder struct {
	configuration *config.EstimatorConfig

	params    params.Provider
	clock     utils.IClock
	ticker    utils.ITicker
	store     store.StateStore
	sink      circuit.EventSink
	lifecycle circuit.Lifecycle
}

// NewBuildTimeTrackerBuilder returns a new builder pre-populated with the
// default configuration.
func NewBuildTimeTrackerBuilder() *BuildTimeTrackerBuilder {
	return &BuildTimeTrackerBuilder{
		configuration: config.DefaultEstimatorConfig(),
	}
}

// BuildWithDefaultConfig builds a tracker using DefaultEstimatorConfig.
func (bl *BuildTimeTrackerBuilder) BuildWithDefaultConfig() (*BuildTimeTracker, error) {
	bl.configuration = config.DefaultEstimatorConfig()
	return bl.Build()
}

// BuildWithConfig builds a tracker using the supplied configuration.
func (bl *BuildTimeTrackerBuilder) BuildWithConfig(configuration *config.EstimatorConfig) (*BuildTimeTracker, error) {
	if configuration == nil {
		return nil, NewTrackerError(nil, "Configuration cannot be nil")
	}
	bl.configuration = configuration
	return bl.Build()
}

// Build constructs a tracker using the configuration accumulated on the builder.
func (bl *BuildTimeTrackerBuilder) Build() (*BuildTimeTracker, error) {
	if err := config.ValidateEstimatorConfig(bl.configuration); err != nil {
		return nil, NewTrackerError(err, "Invalid configuration")
	}

	deps := dependencies{
		params:    bl.params,
		clock:     bl.clock,
		ticker:    bl.ticker,
		store:     bl.store,
		sink:      bl.sink,
		lifecycle: bl.lifecycle,
	}
	if deps.params == nil {
		deps.params = params.NewStatic(bl.configuration.Params)
	}
	if deps.clock == nil {
		deps.clock = utils.NewRealClock()
	}
	if deps.ticker == nil {
		deps.ticker = utils.NewRealTicker(bl.configuration.HousekeepingInterval)
	}
	if deps.store == nil {
		deps.store = store.NewMemoryStore()
	}
	if deps.sink == nil {
		deps.sink = circuit.NoOpSink{}
	}
	if deps.lifecycle == nil {
		deps.lifecycle = circuit.StaticLifecycle{Opened: true}
	}

	return newBuildTimeTracker(bl.configuration, deps)
}

// SetParams sets the source of network parameters. Without one the
// configuration's static overrides are used.
func (bl *BuildTimeTrackerBuilder) SetParams(p params.Provider) {
	bl.params = p
}

// SetClock replaces the wall clock, for simulations.
func (bl *BuildTimeTrackerBuilder) SetClock(c utils.IClock) {
	bl.clock = c
}

// SetTicker replaces the housekeeping ticker.
func (bl *BuildTimeTrackerBuilder) SetTicker(t utils.ITicker) {
	bl.ticker = t
}

// SetStore sets the state store the history is persisted to.
func (bl *BuildTimeTrackerBuilder) SetStore(s store.StateStore) {
	bl.store = s
}

// SetEventSink sets the receiver of control events.
func (bl *BuildTimeTrackerBuilder) SetEventSink(s circuit.EventSink) {
	bl.sink = s
}

// SetLifecycle sets the callbacks into the circuit subsystem.
func (bl *BuildTimeTrackerBuilder) SetLifecycle(l circuit.Lifecycle) {
	bl.lifecycle = l
}

// SetLearnCircuitBuildTimeout turns adaptive timeouts on or off.
func (bl *BuildTimeTrackerBuilder) SetLearnCircuitBuildTimeout(learn bool) {
	bl.configuration.LearnCircuitBuildTimeout = learn
}

// SetCircuitBuildTimeoutSec sets a static timeout, zero to learn one.
func (bl *BuildTimeTrackerBuilder) SetCircuitBuildTimeoutSec(sec int) {
	bl.configuration.CircuitBuildTimeoutSec = sec
}

// SetForceLearning learns regardless of every other switch.
func (bl *BuildTimeTrackerBuilder) SetForceLearning(force bool) {
	bl.configuration.ForceLearning = force
}

// SetAvoidDiskWrites stops the tracker from marking its store dirty.
func (bl *BuildTimeTrackerBuilder) SetAvoidDiskWrites(avoid bool) {
	bl.configuration.AvoidDiskWrites = avoid
}

// SetCircuitsToObserve sets the capacity of the build time ring.
func (bl *BuildTimeTrackerBuilder) SetCircuitsToObserve(n int) {
	bl.configuration.CircuitsToObserve = n
}

// TrackerError is returned when the tracker encounters a recoverable
// error that should be surfaced to the caller.
type TrackerError struct {
	*utils.BaseError
}

// NewTrackerError creates a new TrackerError that wraps another
// error with additional context.
func NewTrackerError(wrapped error, msg string, args ...any) *TrackerError {
	return &TrackerError{
		BaseError: utils.NewBaseError(wrapped, msg, args...),
	}
}
