package tracker

import (
	"sync"
	"time"

	"github.com/algorand/go-deadlock"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/satmihir/cbt/pkg/circuit"
	"github.com/satmihir/cbt/pkg/config"
	"github.com/satmihir/cbt/pkg/data"
	"github.com/satmihir/cbt/pkg/liveness"
	"github.com/satmihir/cbt/pkg/logger"
	"github.com/satmihir/cbt/pkg/metrics"
	"github.com/satmihir/cbt/pkg/params"
	"github.com/satmihir/cbt/pkg/serialization"
	"github.com/satmihir/cbt/pkg/store"
	"github.com/satmihir/cbt/pkg/utils"
)

var _ circuit.TimeoutEstimator = (*BuildTimeTracker)(nil)

type dependencies struct {
	params    params.Provider
	clock     utils.IClock
	ticker    utils.ITicker
	store     store.StateStore
	sink      circuit.EventSink
	lifecycle circuit.Lifecycle
}

// The main public facing object from this library
// Learns how long circuits take to build and turns that into the timeout
// after which a circuit is given up on.
type BuildTimeTracker struct {
	id  uuid.UUID
	cfg *config.EstimatorConfig

	params    params.Provider
	clock     utils.IClock
	store     store.StateStore
	sink      circuit.EventSink
	lifecycle circuit.Lifecycle
	metrics   *metrics.Recorder

	// Guards everything below
	mu deadlock.Mutex

	ring     *data.Ring
	binWidth uint32
	fit      data.Pareto

	timeoutMs           float64
	closeMs             float64
	haveComputedTimeout bool

	counters   data.Counters
	liveness   *liveness.Tracker
	lastCircAt time.Time

	clockJumpLog rate.Sometimes

	// Callbacks queued while holding mu, run after it is released
	pending []func()

	tikr      utils.ITicker
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newBuildTimeTracker(cfg *config.EstimatorConfig, deps dependencies) (*BuildTimeTracker, error) {
	ring, err := data.NewRing(cfg.CircuitsToObserve)
	if err != nil {
		return nil, NewTrackerError(err, "Failed to create the build time ring")
	}

	t := &BuildTimeTracker{
		id:  uuid.New(),
		cfg: cfg,

		params:    deps.params,
		clock:     deps.clock,
		store:     deps.store,
		sink:      deps.sink,
		lifecycle: deps.lifecycle,
		metrics:   metrics.NewRecorder(),

		ring:     ring,
		binWidth: uint32(cfg.BinWidthMs),

		clockJumpLog: rate.Sometimes{First: 1, Interval: time.Minute},

		tikr: deps.ticker,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	t.mu.Lock()
	t.initialize()
	t.unlock()

	// Periodically write the histogram into the store and save it so a
	// restart does not lose more than a few build times.
	go func() {
		defer close(t.done)
		for {
			select {
			case <-t.stop:
				return
			case <-t.tikr.C():
				if err := t.flush(); err != nil {
					logger.Warnf("Failed to save circuit build time state: %v", err)
				}
			}
		}
	}()

	return t, nil
}

func NewBuildTimeTracker(cfg *config.EstimatorConfig) (*BuildTimeTracker, error) {
	return NewBuildTimeTrackerBuilder().BuildWithConfig(cfg)
}

// unlock releases mu and then runs the queued callbacks, so sinks and
// lifecycle hooks may call back into the tracker
func (t *BuildTimeTracker) unlock() {
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

func (t *BuildTimeTracker) later(fn func()) {
	t.pending = append(t.pending, fn)
}

// Set the tracker to its first use state: empty history, fresh liveness and
// the initial timeout.
func (t *BuildTimeTracker) initialize() {
	t.ring.Reset()
	t.counters.Reset()
	t.fit = data.Pareto{}
	t.haveComputedTimeout = false
	t.lastCircAt = time.Time{}

	numRecent := 0
	if !t.disabled() {
		numRecent = int(t.params.Get(params.RecentCircuits))
	}
	t.liveness = liveness.New(numRecent)

	t.timeoutMs = t.initialTimeout()
	t.closeMs = t.timeoutMs
	t.publishThresholds()
	t.emitBuildTimeout(circuit.BuildTimeoutReset)
}

// Forget the history but keep the fitted curve, the timeouts and liveness
func (t *BuildTimeTracker) reset() {
	t.ring.Reset()
	t.haveComputedTimeout = false
	t.counters.Reset()
	t.publishThresholds()
}

// Reset discards the recorded build times and outcome counts. The current
// timeouts stay in force until a new one is computed.
func (t *BuildTimeTracker) Reset() {
	t.mu.Lock()
	defer t.unlock()
	t.reset()
}

// Learning is off when the network turns it off, the operator does, we are
// an authority or a single onion service, or the last state write failed.
// ForceLearning wins over all of them.
func (t *BuildTimeTracker) disabled() bool {
	if t.cfg.ForceLearning {
		return false
	}

	return t.params.Get(params.Disabled) != 0 ||
		!t.cfg.LearnCircuitBuildTimeout ||
		t.cfg.AuthorityMode ||
		t.store.LastWriteFailed() ||
		t.cfg.SingleOnionMode
}

// Disabled reports whether adaptive timeouts are turned off
func (t *BuildTimeTracker) Disabled() bool {
	t.mu.Lock()
	defer t.unlock()
	return t.disabled()
}

// The network cbtinitialtimeout, never below cbtmintimeout
func (t *BuildTimeTracker) initialTimeoutParam() float64 {
	minTimeout := t.params.Get(params.MinTimeout)
	v := t.params.Get(params.InitialTimeout)
	if v < minTimeout {
		logger.Warnf("Parameter %s is too small, raising to %d", params.InitialTimeout.Name, minTimeout)
		v = minTimeout
	}
	return float64(v)
}

// The configured static timeout when there is one, otherwise the network
// initial timeout
func (t *BuildTimeTracker) initialTimeout() float64 {
	if t.cfg.ForceLearning || t.cfg.CircuitBuildTimeoutSec <= 0 {
		return t.initialTimeoutParam()
	}

	timeout := float64(t.cfg.CircuitBuildTimeoutSec) * 1000
	minTimeout := float64(t.params.Get(params.MinTimeout))
	if !t.disabled() && timeout < minTimeout {
		logger.Warnf("Config circuit_build_timeout_sec too low. Setting to %ds", int(minTimeout/1000))
		timeout = minTimeout
	}
	return timeout
}

// Pin both timeouts to the initial value, used whenever learning is off
func (t *BuildTimeTracker) pinToInitial() {
	t.timeoutMs = t.initialTimeout()
	t.closeMs = t.timeoutMs
	t.publishThresholds()
}

func (t *BuildTimeTracker) publishThresholds() {
	t.metrics.Thresholds(t.timeoutMs, t.closeMs, t.fit.Xm, t.fit.Alpha, t.ring.Total())
}

// flush writes the histogram into the store and saves it if anything asked
// for a save
func (t *BuildTimeTracker) flush() error {
	t.mu.Lock()
	defer t.unlock()

	if !t.store.Dirty() {
		return nil
	}

	serialization.WriteRecord(t.store, t.record())
	if err := t.store.Save(); err != nil {
		logger.Warnf("Circuit build time state write failed, adaptive timeouts are disabled until it succeeds")
		return NewTrackerError(err, "Failed to save the state store")
	}
	return nil
}

// ID identifies this tracker instance in exports and logs
func (t *BuildTimeTracker) ID() uuid.UUID {
	return t.id
}

// Metrics exposes the tracker's recorder
func (t *BuildTimeTracker) Metrics() *metrics.Recorder {
	return t.metrics
}

// Close stops housekeeping and makes a last attempt at saving the state
func (t *BuildTimeTracker) Close() error {
	t.closeOnce.Do(func() {
		close(t.stop)
		t.tikr.Stop()
		<-t.done
		t.closeErr = t.flush()
	})
	return t.closeErr
}
