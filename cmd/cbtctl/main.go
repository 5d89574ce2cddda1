package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/satmihir/cbt/pkg/config"
	"github.com/satmihir/cbt/pkg/logger"
	"github.com/satmihir/cbt/pkg/store"
	"github.com/satmihir/cbt/pkg/tracker"
)

var (
	configFile string
	stateFile  string
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML estimator configuration, defaults are used when empty")
	rootCmd.PersistentFlags().StringVarP(&stateFile, "state", "s", "cbt-state", "Circuit build time state file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log what the estimator is doing to stderr")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

var rootCmd = &cobra.Command{
	Use:   "cbtctl",
	Short: "Inspect and exercise circuit build time state",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetLogger(logger.NewStdLogger())
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.HelpFunc()(cmd, args)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func reportErrorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func loadConfig() *config.EstimatorConfig {
	if configFile == "" {
		return config.DefaultEstimatorConfig()
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		reportErrorf("Unable to load config '%s': %v", configFile, err)
	}
	return cfg
}

// openTracker builds a tracker over the state file. Unless writable is set
// the state file is never written.
func openTracker(cfg *config.EstimatorConfig, writable bool) *tracker.BuildTimeTracker {
	st, err := store.OpenFileStore(stateFile)
	if err != nil {
		reportErrorf("Unable to open state file '%s': %v", stateFile, err)
	}

	cfg.AvoidDiskWrites = !writable

	b := tracker.NewBuildTimeTrackerBuilder()
	b.SetStore(st)
	trk, err := b.BuildWithConfig(cfg)
	if err != nil {
		reportErrorf("Unable to create the estimator: %v", err)
	}
	return trk
}

func printTracker(trk *tracker.BuildTimeTracker) {
	fit := trk.Fit()
	c := trk.Counters()

	fmt.Printf("Tracker: %s\n", trk.ID())
	fmt.Printf("Build times: %d\n", trk.TotalBuildTimes())
	fmt.Printf("Computed: %t\n", trk.HaveComputedTimeout())
	fmt.Printf("Xm: %dms\n", fit.Xm)
	fmt.Printf("Alpha: %f\n", fit.Alpha)
	fmt.Printf("Timeout: %.0fms\n", trk.TimeoutMs())
	fmt.Printf("Close: %.0fms\n", trk.CloseMs())
	fmt.Printf("Timeout rate: %.3f\n", trk.TimeoutRate())
	fmt.Printf("Close rate: %.3f\n", trk.CloseRate())
	fmt.Printf("Outcomes: %d succeeded, %d timed out, %d closed\n", c.Succeeded, c.TimedOut, c.Closed)
}
