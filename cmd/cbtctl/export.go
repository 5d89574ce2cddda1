package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/satmihir/cbt/pkg/serialization"
)

var (
	exportFormat string
	exportOut    string
)

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format, json or binary")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to this file instead of stdout")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the state file's histogram as a checksummed snapshot",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		trk := openTracker(loadConfig(), false)
		defer trk.Close()

		if err := trk.LoadState(); err != nil {
			reportErrorf("Unable to load state file '%s': %v", stateFile, err)
		}

		s := serialization.NewSerializer()
		snap := trk.Snapshot()

		var out []byte
		var err error
		switch exportFormat {
		case "json":
			out, err = s.SerializeToJSON(snap)
		case "binary":
			out, err = s.Serialize(snap)
		default:
			reportErrorf("Unknown format '%s', expected json or binary", exportFormat)
		}
		if err != nil {
			reportErrorf("Unable to encode the snapshot: %v", err)
		}

		if exportOut == "" {
			_, err = os.Stdout.Write(out)
		} else {
			err = os.WriteFile(exportOut, out, 0o644)
		}
		if err != nil {
			reportErrorf("Unable to write the snapshot: %v", err)
		}
	},
}
