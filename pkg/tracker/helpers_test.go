package tracker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/satmihir/cbt/pkg/circuit"
	"github.com/satmihir/cbt/pkg/config"
	"github.com/satmihir/cbt/pkg/params"
	"github.com/satmihir/cbt/pkg/store"
	"github.com/satmihir/cbt/pkg/testutils"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1_700_000_000, 0)

type recordingSink struct {
	mu       sync.Mutex
	events   []circuit.BuildTimeoutEvent
	liveness []bool
}

func (s *recordingSink) BuildTimeoutSet(ev circuit.BuildTimeoutEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) NetworkLivenessChanged(live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveness = append(s.liveness, live)
}

func (s *recordingSink) Events() []circuit.BuildTimeoutEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]circuit.BuildTimeoutEvent(nil), s.events...)
}

func (s *recordingSink) Count(kind circuit.BuildTimeoutKind) int {
	n := 0
	for _, ev := range s.Events() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (s *recordingSink) Liveness() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.liveness...)
}

type fakeLifecycle struct {
	opened   atomic.Bool
	rechecks atomic.Int32
}

func (l *fakeLifecycle) AnyOpenedCircuits() bool { return l.opened.Load() }

func (l *fakeLifecycle) RecheckReachability() { l.rechecks.Add(1) }

type harness struct {
	tracker   *BuildTimeTracker
	cfg       *config.EstimatorConfig
	clock     *testutils.FakeClock
	ticker    *testutils.FakeTicker
	store     *store.MemoryStore
	sink      *recordingSink
	lifecycle *fakeLifecycle
	params    *params.Network
}

type harnessOption func(*config.EstimatorConfig, *harness)

func withConfig(fn func(*config.EstimatorConfig)) harnessOption {
	return func(c *config.EstimatorConfig, _ *harness) { fn(c) }
}

func withParams(values map[string]int32) harnessOption {
	return func(_ *config.EstimatorConfig, h *harness) { h.params.Update(values) }
}

func withStore(s *store.MemoryStore) harnessOption {
	return func(_ *config.EstimatorConfig, h *harness) { h.store = s }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		cfg:       config.TestingEstimatorConfig(),
		clock:     testutils.NewFakeClock(epoch),
		ticker:    testutils.NewFakeTicker(),
		store:     store.NewMemoryStore(),
		sink:      &recordingSink{},
		lifecycle: &fakeLifecycle{},
		params:    params.NewNetwork(nil),
	}
	h.lifecycle.opened.Store(true)
	for _, opt := range opts {
		opt(h.cfg, h)
	}

	b := NewBuildTimeTrackerBuilder()
	b.SetClock(h.clock)
	b.SetTicker(h.ticker)
	b.SetStore(h.store)
	b.SetEventSink(h.sink)
	b.SetLifecycle(h.lifecycle)
	b.SetParams(h.params)

	trk, err := b.BuildWithConfig(h.cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = trk.Close() })

	h.tracker = trk
	return h
}

// A three hop circuit that just opened its last hop after taking ms
func (h *harness) builtCircuit(ms int64) *circuit.Circuit {
	return &circuit.Circuit{
		Purpose:        circuit.PurposeGeneral,
		StartedAt:      h.clock.Now().Add(-time.Duration(ms) * time.Millisecond),
		PlannedPathLen: circuit.DefaultRouteLen,
		OpenedHops:     circuit.DefaultRouteLen,
	}
}

func (h *harness) addTimes(t *testing.T, times ...int64) {
	t.Helper()
	for _, ms := range times {
		require.NoError(t, h.tracker.AddTime(ms))
	}
}
