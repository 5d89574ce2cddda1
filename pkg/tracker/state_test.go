package tracker

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/satmihir/cbt/pkg/circuit"
	"github.com/satmihir/cbt/pkg/config"
	"github.com/satmihir/cbt/pkg/params"
	"github.com/satmihir/cbt/pkg/serialization"
	"github.com/satmihir/cbt/pkg/store"
	"github.com/satmihir/cbt/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var threeCircuits = withParams(map[string]int32{params.MinCircuitsToObserve.Name: 3})

func TestStateRoundTrip(t *testing.T) {
	st := store.NewMemoryStore()
	h := newHarness(t, withStore(st), threeCircuits)
	h.tracker.NetworkIsLive()

	h.addTimes(t, 200, 250, 300)
	require.True(t, h.tracker.CountClose(false, epoch.Add(-time.Second)))
	h.tracker.UpdateState()

	assert.Equal(t, []string{"4"}, st.Values(serialization.KeyTotalBuildTimes))
	assert.Equal(t, []string{"1"}, st.Values(serialization.KeyAbandonedCount))
	assert.Equal(t, []string{"225 1", "275 1", "325 1"}, st.Values(serialization.KeyBuildTimeBin))
	// disk writes are avoided in tests
	assert.False(t, st.Dirty())

	loaded := newHarness(t, withStore(st), threeCircuits)
	require.NoError(t, loaded.tracker.LoadState())

	assert.Equal(t, 4, loaded.tracker.TotalBuildTimes())
	assert.Equal(t, 0.25, loaded.tracker.CloseRate())
	assert.True(t, loaded.tracker.HaveComputedTimeout())

	// the bins come back at their midpoints
	fit := loaded.tracker.Fit()
	assert.Equal(t, uint32(275), fit.Xm)
	assert.InDelta(t, 3/(math.Log(325)-math.Log(275)), fit.Alpha, 1e-9)
	assert.Equal(t, 1500.0, loaded.tracker.TimeoutMs())
	assert.Equal(t, 1, loaded.sink.Count(circuit.BuildTimeoutComputed))
}

func TestLoadEmptyState(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.tracker.LoadState())
	assert.Equal(t, 0, h.tracker.TotalBuildTimes())
	assert.Equal(t, 60000.0, h.tracker.TimeoutMs())
	assert.Equal(t, 2, h.sink.Count(circuit.BuildTimeoutReset))
}

func TestLoadCorruptState(t *testing.T) {
	tests := []struct {
		name      string
		total     string
		abandoned string
		bins      []string
	}{
		{"too few", "5", "0", []string{"225 1"}},
		{"too many", "2", "0", []string{"225 1", "275 2"}},
		{"abandoned overflow", "2", "3", []string{"225 1"}},
		{"bad total", "lots", "0", []string{"225 1"}},
		{"bad abandoned", "1", "-1", []string{"225 1"}},
		{"bad bin", "1", "0", []string{"225"}},
		{"zero bin", "1", "0", []string{"0 1"}},
		{"absurd total", "1048577", "1048577", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			st.SetValues(serialization.KeyTotalBuildTimes, tt.total)
			st.SetValues(serialization.KeyAbandonedCount, tt.abandoned)
			st.SetValues(serialization.KeyBuildTimeBin, tt.bins...)

			h := newHarness(t, withStore(st))
			err := h.tracker.LoadState()

			testutils.TestErrorIs(t, &TrackerError{}, err, ErrCorruptState)
			assert.Equal(t, 0, h.tracker.TotalBuildTimes())
			assert.False(t, h.tracker.HaveComputedTimeout())
			assert.Equal(t, 60000.0, h.tracker.TimeoutMs())
			assert.Equal(t, 60000.0, h.tracker.CloseMs())
		})
	}
}

func TestLoadStateTruncatesToCapacity(t *testing.T) {
	st := store.NewMemoryStore()
	st.SetValues(serialization.KeyTotalBuildTimes, "35")
	st.SetValues(serialization.KeyAbandonedCount, "5")
	st.SetValues(serialization.KeyBuildTimeBin, "225 20", "275 10")

	h := newHarness(t, withStore(st), withConfig(func(c *config.EstimatorConfig) {
		c.CircuitsToObserve = 10
	}))

	require.NoError(t, h.tracker.LoadState())
	assert.Equal(t, 10, h.tracker.TotalBuildTimes())
}

func TestLoadStateFromLargerHistory(t *testing.T) {
	st := store.NewMemoryStore()
	st.SetValues(serialization.KeyTotalBuildTimes, "1500")
	st.SetValues(serialization.KeyAbandonedCount, "0")
	st.SetValues(serialization.KeyBuildTimeBin, "225 1000", "275 500")

	h := newHarness(t, withStore(st))

	require.NoError(t, h.tracker.LoadState())
	assert.Equal(t, params.MaxCircuitsToObserve, h.tracker.TotalBuildTimes())
	assert.True(t, h.tracker.HaveComputedTimeout())
}

func TestLoadStateWhileDisabled(t *testing.T) {
	st := store.NewMemoryStore()
	st.SetValues(serialization.KeyTotalBuildTimes, "1")
	st.SetValues(serialization.KeyBuildTimeBin, "225 1")

	h := newHarness(t, withStore(st), withConfig(func(c *config.EstimatorConfig) {
		c.ForceLearning = false
		c.LearnCircuitBuildTimeout = false
	}))

	require.NoError(t, h.tracker.LoadState())
	assert.Equal(t, 0, h.tracker.TotalBuildTimes())
}

func TestHousekeepingSavesDirtyState(t *testing.T) {
	h := newHarness(t, withConfig(func(c *config.EstimatorConfig) {
		c.AvoidDiskWrites = false
	}))

	// nothing to save yet
	require.True(t, h.ticker.Tick(epoch))
	h.addTimes(t, 100, 200, 300, 400, 500, 600, 700, 800, 900)
	assert.False(t, h.store.Dirty())

	// every tenth build time asks for a save
	h.addTimes(t, 1000)
	assert.True(t, h.store.Dirty())

	require.True(t, h.ticker.Tick(epoch))
	assert.Eventually(t, func() bool { return h.store.Saves() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"10"}, h.store.Values(serialization.KeyTotalBuildTimes))
	assert.Equal(t, []string{"0"}, h.store.Values(serialization.KeyAbandonedCount))
	assert.Len(t, h.store.Values(serialization.KeyBuildTimeBin), 10)
}

func TestWriteFailureDisablesLearning(t *testing.T) {
	st := store.NewMemoryStore()
	st.FailWrites = true
	h := newHarness(t, withStore(st), withConfig(func(c *config.EstimatorConfig) {
		c.ForceLearning = false
		c.AvoidDiskWrites = false
	}))

	h.tracker.UpdateState()
	require.True(t, h.ticker.Tick(epoch))
	assert.Eventually(t, st.LastWriteFailed, time.Second, 5*time.Millisecond)

	assert.True(t, h.tracker.Disabled())
	assert.False(t, h.tracker.HandleCompletedHop(h.builtCircuit(250)))

	st.FailWrites = false
	require.True(t, h.ticker.Tick(epoch))
	assert.Eventually(t, func() bool { return !st.LastWriteFailed() }, time.Second, 5*time.Millisecond)
	assert.False(t, h.tracker.Disabled())
}

func TestCloseReportsFailedSave(t *testing.T) {
	st := store.NewMemoryStore()
	st.FailWrites = true
	h := newHarness(t, withStore(st), withConfig(func(c *config.EstimatorConfig) {
		c.AvoidDiskWrites = false
	}))

	h.tracker.UpdateState()
	err := h.tracker.Close()
	require.Error(t, err)
	assert.IsType(t, &TrackerError{}, err)
	assert.Equal(t, err, h.tracker.Close())
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	build := func() *BuildTimeTracker {
		st, err := store.OpenFileStore(path)
		require.NoError(t, err)

		cfg := config.TestingEstimatorConfig()
		cfg.AvoidDiskWrites = false
		cfg.Params[params.MinCircuitsToObserve.Name] = 3

		b := NewBuildTimeTrackerBuilder()
		b.SetStore(st)
		b.SetTicker(testutils.NewFakeTicker())
		b.SetClock(testutils.NewFakeClock(epoch))
		trk, err := b.BuildWithConfig(cfg)
		require.NoError(t, err)
		return trk
	}

	trk := build()
	for _, ms := range []int64{200, 250, 300} {
		require.NoError(t, trk.AddTime(ms))
	}
	trk.UpdateState()
	require.NoError(t, trk.Close())

	trk = build()
	defer trk.Close()
	require.NoError(t, trk.LoadState())
	assert.Equal(t, 3, trk.TotalBuildTimes())
	assert.Equal(t, uint32(275), trk.Fit().Xm)
}

func TestSnapshot(t *testing.T) {
	h := newHarness(t)
	h.addTimes(t, 200, 250)

	snap := h.tracker.Snapshot()
	assert.Equal(t, h.tracker.ID().String(), snap.TrackerID)
	assert.Equal(t, epoch.UnixMilli(), snap.SavedAtMs)
	assert.Equal(t, uint32(2), snap.Record.TotalBuildTimes)
	assert.Equal(t, []serialization.Bin{{Ms: 225, Count: 1}, {Ms: 275, Count: 1}}, snap.Record.Bins)

	s := serialization.NewSerializer()
	raw, err := s.Serialize(snap)
	require.NoError(t, err)
	back, err := s.Deserialize(raw)
	require.NoError(t, err)
	assert.Equal(t, snap, back)
}

func TestRestoreFromExport(t *testing.T) {
	src := newHarness(t, threeCircuits)
	src.addTimes(t, 200, 250, 300)

	s := serialization.NewSerializer()
	raw, err := s.SerializeToJSON(src.tracker.Snapshot())
	require.NoError(t, err)
	snap, err := s.DeserializeFromJSON(raw)
	require.NoError(t, err)

	dst := newHarness(t, threeCircuits, withConfig(func(c *config.EstimatorConfig) {
		c.AvoidDiskWrites = false
	}))
	require.NoError(t, dst.tracker.Restore(snap.Record))

	assert.Equal(t, 3, dst.tracker.TotalBuildTimes())
	assert.True(t, dst.tracker.HaveComputedTimeout())
	assert.Equal(t, uint32(275), dst.tracker.Fit().Xm)
	assert.Equal(t, []string{"225 1", "275 1", "325 1"}, dst.store.Values(serialization.KeyBuildTimeBin))
	assert.True(t, dst.store.Dirty())
}

func TestRestoreRejectsBadRecord(t *testing.T) {
	h := newHarness(t)

	err := h.tracker.Restore(nil)
	testutils.TestErrorIs(t, &TrackerError{}, err, ErrCorruptState)

	err = h.tracker.Restore(&serialization.StateRecord{TotalBuildTimes: 3, Bins: []serialization.Bin{{Ms: 225, Count: 1}}})
	testutils.TestErrorIs(t, &TrackerError{}, err, ErrCorruptState)
	assert.Equal(t, 0, h.tracker.TotalBuildTimes())
}
