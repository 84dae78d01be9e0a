package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/bsort"
)

// globalFlags are shared by all subcommands.
type globalFlags struct {
	verbose bool
	maxWG   int
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:          "bsort",
		Short:        "Bitonic sort on GPU and CPU compute devices",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if g.verbose {
				level = slog.LevelDebug
			}
			bsort.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log device selection and every launch")
	root.PersistentFlags().IntVar(&g.maxWG, "max-wg", 0, "cap the work-group size (0 uses the device limit)")

	root.AddCommand(
		newSortCmd(&g),
		newPlanCmd(&g),
		newNetworkCmd(&g),
		newDevicesCmd(),
	)
	return root
}
