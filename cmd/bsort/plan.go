package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/bsort"
	"github.com/gogpu/bsort/internal/cpu"
)

func planFor(n int, g *globalFlags) (bsort.WorkSizePlan, error) {
	c := bsort.Capability{MaxWorkGroupSize: cpu.DefaultMaxWorkGroupSize}
	if g.maxWG > 0 {
		c.MaxWorkGroupSize = g.maxWG
	}
	return bsort.Plan(n, c)
}

func newPlanCmd(g *globalFlags) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the work-size plan for n elements",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := planFor(n, g)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "elements:    %d\n", p.Len())
			fmt.Fprintf(w, "global size: %d\n", p.GlobalSize)
			fmt.Fprintf(w, "local size:  %d\n", p.LocalSize)
			fmt.Fprintf(w, "stages:      %d\n", p.NumStages)
			fmt.Fprintf(w, "scratch:     %d floats\n", p.ScratchSize())
			if !p.Complete() {
				fmt.Fprintln(w, "warning:     work-group count is not a power of two; the network does not fully sort")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 1<<20, "number of elements (multiple of 8)")
	return cmd
}

func newNetworkCmd(g *globalFlags) *cobra.Command {
	var (
		n   int
		dir string
	)
	cmd := &cobra.Command{
		Use:   "network",
		Short: "Print the kernel launches of the sorting network",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := bsort.ParseDirection(dir)
			if err != nil {
				return err
			}
			p, err := planFor(n, g)
			if err != nil {
				return err
			}
			net := bsort.BuildNetwork(p, d)
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s, %s, %d launches\n", p, d, net.Len())
			for i, desc := range net.Stages {
				args := bsort.LaunchArgs(desc, nil, p, d)
				fmt.Fprintf(w, "%3d  %-16s %v\n", i, desc.Kernel(), args[1:])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 1<<20, "number of elements (multiple of 8)")
	cmd.Flags().StringVar(&dir, "dir", "asc", "sort direction: asc or desc")
	return cmd
}
