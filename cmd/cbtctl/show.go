package main

import (
	"os"

	"github.com/spf13/cobra"
)

var showPrometheus bool

func init() {
	showCmd.Flags().BoolVarP(&showPrometheus, "prometheus", "p", false, "Also print the estimator metrics in Prometheus text format")
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Load the state file and print the timeout it yields",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		trk := openTracker(loadConfig(), false)
		defer trk.Close()

		if err := trk.LoadState(); err != nil {
			reportErrorf("Unable to load state file '%s': %v", stateFile, err)
		}

		printTracker(trk)
		if showPrometheus {
			trk.Metrics().WritePrometheus(os.Stdout)
		}
	},
}
