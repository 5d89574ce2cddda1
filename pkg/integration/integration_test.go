package integration

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satmihir/cbt/pkg/circuit"
	"github.com/satmihir/cbt/pkg/config"
	"github.com/satmihir/cbt/pkg/data"
	"github.com/satmihir/cbt/pkg/params"
	"github.com/satmihir/cbt/pkg/testutils"
	"github.com/satmihir/cbt/pkg/tracker"
	"github.com/satmihir/cbt/pkg/tuning"
)

const (
	builders          = 8
	circuitsPerClient = 100
)

type countingSink struct {
	circuit.NoOpSink
	computed atomic.Int32
	resets   atomic.Int32
}

func (s *countingSink) BuildTimeoutSet(ev circuit.BuildTimeoutEvent) {
	if ev.Kind == circuit.BuildTimeoutComputed {
		s.computed.Add(1)
	} else {
		s.resets.Add(1)
	}
}

type network struct {
	trk    *tracker.BuildTimeTracker
	clock  *testutils.FakeClock
	ticker *testutils.FakeTicker
	sink   *countingSink
	curve  data.Pareto
}

func newNetwork(t *testing.T) *network {
	alpha, err := tuning.InitialAlpha(1800, 0.8, 5000)
	require.NoError(t, err)

	n := &network{
		clock:  testutils.NewFakeClock(time.Unix(1_700_000_000, 0)),
		ticker: testutils.NewFakeTicker(),
		sink:   &countingSink{},
		curve:  data.Pareto{Xm: 1800, Alpha: alpha},
	}

	b := tracker.NewBuildTimeTrackerBuilder()
	b.SetClock(n.clock)
	b.SetTicker(n.ticker)
	b.SetEventSink(n.sink)
	b.SetParams(params.NewNetwork(nil))

	n.trk, err = b.BuildWithConfig(config.TestingEstimatorConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.trk.Close() })

	n.trk.NetworkIsLive()
	return n
}

// Build circuits from several goroutines, each drawing its build times
// from the network's curve
func (n *network) build(t *testing.T, perClient int) {
	wg := &sync.WaitGroup{}
	for i := 0; i < builders; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			rnd := rand.New(rand.NewPCG(uint64(i), 42))
			times, err := tuning.GenerateSamples(n.curve, perClient, 0, tuning.DefaultSampleQuantileHigh, rnd.Float64)
			assert.NoError(t, err)

			for j, ms := range times {
				c := &circuit.Circuit{
					ID:             uint32(i*perClient + j),
					Purpose:        circuit.PurposeGeneral,
					StartedAt:      n.clock.Now().Add(-time.Duration(ms) * time.Millisecond),
					PlannedPathLen: circuit.DefaultRouteLen,
					OpenedHops:     circuit.DefaultRouteLen,
				}
				n.trk.HandleCompletedHop(c)
			}
		}()
	}

	// Readers and housekeeping run alongside the builders
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			n.trk.NeedsCircuitsNow()
			_ = n.trk.Snapshot()
			n.ticker.Tick(n.clock.Now())
		}
	}()

	wg.Wait()
	close(stop)
	<-done
}

func TestIntegration(t *testing.T) {
	n := newNetwork(t)
	require.True(t, n.trk.NeedsCircuits())

	n.build(t, circuitsPerClient)

	require.Equal(t, uint64(0), n.trk.Metrics().NetworkResets())
	assert.Equal(t, builders*circuitsPerClient, n.trk.TotalBuildTimes())
	assert.True(t, n.trk.HaveComputedTimeout())
	assert.False(t, n.trk.NeedsCircuits())

	// one computation per circuit once there were enough of them
	minCircs := int(params.MinCircuitsToObserve.Default)
	assert.Equal(t, int32(builders*circuitsPerClient-minCircs+1), n.sink.computed.Load())

	timeout := n.trk.TimeoutMs()
	assert.Greater(t, timeout, 2500.0)
	assert.Less(t, timeout, 10000.0)
	assert.GreaterOrEqual(t, n.trk.CloseMs(), 60000.0)

	// every circuit ends up as exactly one success or timeout
	c := n.trk.Counters()
	assert.Equal(t, uint32(builders*circuitsPerClient), c.Succeeded+c.TimedOut)
	assert.Greater(t, c.TimedOut, uint32(0))
	assert.InDelta(t, 0.2, n.trk.TimeoutRate(), 0.1)
}

func TestIntegrationNetworkChange(t *testing.T) {
	n := newNetwork(t)
	n.build(t, circuitsPerClient)
	require.True(t, n.trk.HaveComputedTimeout())

	// the network goes bad: every circuit got a hop and then timed out
	for i := 0; i < int(params.MaxRecentTimeouts.Default); i++ {
		n.trk.CountTimeout(true)
	}

	assert.Equal(t, uint64(1), n.trk.Metrics().NetworkResets())
	assert.Equal(t, 0, n.trk.TotalBuildTimes())
	assert.Equal(t, float64(params.InitialTimeout.Default), n.trk.TimeoutMs())
	assert.True(t, n.trk.NeedsCircuits())

	// and learns again from scratch
	n.build(t, circuitsPerClient)
	assert.True(t, n.trk.HaveComputedTimeout())
	assert.Less(t, n.trk.TimeoutMs(), float64(params.InitialTimeout.Default))
}
