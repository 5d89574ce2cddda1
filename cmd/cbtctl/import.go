package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/satmihir/cbt/pkg/serialization"
)

var importFormat string

func init() {
	importCmd.Flags().StringVarP(&importFormat, "format", "f", "json", "Input format, json or binary")
}

var importCmd = &cobra.Command{
	Use:   "import <snapshot>",
	Short: "Replace the state file's history with an exported snapshot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			reportErrorf("Unable to read snapshot '%s': %v", args[0], err)
		}

		snap, err := decodeSnapshot(raw, importFormat)
		if err != nil {
			reportErrorf("Unable to decode snapshot '%s': %v", args[0], err)
		}

		trk := openTracker(loadConfig(), true)
		defer trk.Close()

		if err := trk.Restore(snap.Record); err != nil {
			reportErrorf("Snapshot '%s' does not hold a usable history: %v", args[0], err)
		}
		if err := trk.Close(); err != nil {
			reportErrorf("Unable to write state file '%s': %v", stateFile, err)
		}

		fmt.Printf("Imported snapshot of tracker %s\n", snap.TrackerID)
		printTracker(trk)
	},
}

func decodeSnapshot(raw []byte, format string) (*serialization.Snapshot, error) {
	s := serialization.NewSerializer()
	switch format {
	case "json":
		return s.DeserializeFromJSON(raw)
	case "binary":
		return s.Deserialize(raw)
	default:
		return nil, fmt.Errorf("unknown format '%s', expected json or binary", format)
	}
}
