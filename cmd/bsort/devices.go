package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gogpu/bsort/backend"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List registered devices in priority order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tMAX WG\tSTATUS\tDESCRIPTION")
			for _, st := range backend.Probe() {
				status, maxWG := "ok", fmt.Sprint(st.Capability.MaxWorkGroupSize)
				if !st.Available() {
					status, maxWG = st.Err.Error(), "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", st.Name, maxWG, status, st.Description)
			}
			return tw.Flush()
		},
	}
}
