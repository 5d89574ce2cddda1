package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/satmihir/cbt/pkg/circuit"
	"github.com/satmihir/cbt/pkg/data"
	"github.com/satmihir/cbt/pkg/tuning"
)

var (
	simXm        uint32
	simQuantile  float64
	simTimeoutMs float64
	simCount     int
	simSeed      uint64
	simSave      bool
)

func init() {
	simulateCmd.Flags().Uint32Var(&simXm, "xm", 1800, "Scale of the simulated network's build times in ms")
	simulateCmd.Flags().Float64Var(&simQuantile, "quantile", 0.8, "Quantile at which the simulated network reaches --timeout")
	simulateCmd.Flags().Float64Var(&simTimeoutMs, "timeout", 5000, "Build time in ms at --quantile")
	simulateCmd.Flags().IntVarP(&simCount, "count", "n", 1000, "Number of circuits to build")
	simulateCmd.Flags().Uint64Var(&simSeed, "seed", uint64(time.Now().UnixNano()), "Random seed")
	simulateCmd.Flags().BoolVar(&simSave, "save", false, "Write the resulting history to the state file")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Build circuits against a simulated network and print the learned timeout",
	Long: "Draws build times from a Pareto curve through (--xm) and (--timeout at --quantile) and feeds them " +
		"to a fresh estimator as completed circuits. With --save the history replaces the state file.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		alpha, err := tuning.InitialAlpha(simXm, simQuantile, simTimeoutMs)
		if err != nil {
			reportErrorf("Cannot simulate that network: %v", err)
		}
		curve := data.Pareto{Xm: simXm, Alpha: alpha}

		rnd := rand.New(rand.NewPCG(simSeed, simSeed>>32))
		times, err := tuning.GenerateSamples(curve, simCount, 0, tuning.DefaultSampleQuantileHigh, rnd.Float64)
		if err != nil {
			reportErrorf("Cannot draw build times: %v", err)
		}

		cfg := loadConfig()
		cfg.ForceLearning = true
		trk := openTracker(cfg, simSave)
		defer trk.Close()

		recorded := simulate(trk, times)

		fmt.Printf("Network: Xm %dms, alpha %f\n", curve.Xm, curve.Alpha)
		fmt.Printf("Circuits: %d built, %d measured\n", len(times), recorded)
		printTracker(trk)

		if simSave {
			trk.UpdateState()
			if err := trk.Close(); err != nil {
				reportErrorf("Unable to write state file '%s': %v", stateFile, err)
			}
		}
	},
}

// Replays build times through the tracker as three hop circuits that were
// launched that long ago. Returns how many were recorded.
func simulate(est circuit.TimeoutEstimator, times []uint32) int {
	est.NetworkIsLive()

	recorded := 0
	for i, ms := range times {
		c := &circuit.Circuit{
			ID:             uint32(i),
			Purpose:        circuit.PurposeGeneral,
			StartedAt:      time.Now().Add(-time.Duration(ms) * time.Millisecond),
			PlannedPathLen: circuit.DefaultRouteLen,
			OpenedHops:     circuit.DefaultRouteLen,
		}
		if est.HandleCompletedHop(c) {
			recorded++
		}
	}
	return recorded
}
