package main

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satmihir/cbt/pkg/config"
	"github.com/satmihir/cbt/pkg/data"
	"github.com/satmihir/cbt/pkg/testutils"
	"github.com/satmihir/cbt/pkg/tracker"
	"github.com/satmihir/cbt/pkg/tuning"
)

func TestSimulate(t *testing.T) {
	alpha, err := tuning.InitialAlpha(1800, 0.8, 5000)
	require.NoError(t, err)

	rnd := rand.New(rand.NewPCG(1, 2))
	times, err := tuning.GenerateSamples(data.Pareto{Xm: 1800, Alpha: alpha}, 200, 0, tuning.DefaultSampleQuantileHigh, rnd.Float64)
	require.NoError(t, err)

	b := tracker.NewBuildTimeTrackerBuilder()
	b.SetTicker(testutils.NewFakeTicker())
	trk, err := b.BuildWithConfig(config.TestingEstimatorConfig())
	require.NoError(t, err)
	defer trk.Close()

	assert.Equal(t, 200, simulate(trk, times))
	assert.Equal(t, 200, trk.TotalBuildTimes())
	assert.True(t, trk.HaveComputedTimeout())
	assert.Less(t, trk.TimeoutMs(), 60000.0)
}
