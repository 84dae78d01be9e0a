package main

import (
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/gogpu/bsort"
	"github.com/gogpu/bsort/backend"
)

// printCount is how many values are shown from each end of the result.
const printCount = 16

type sortFlags struct {
	n      int
	dir    string
	device string
	seed   uint64
	scale  float32
}

func newSortCmd(g *globalFlags) *cobra.Command {
	var f sortFlags
	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Sort random data and verify the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSort(cmd.OutOrStdout(), g, &f)
		},
	}
	cmd.Flags().IntVar(&f.n, "n", 1<<20, "number of elements (multiple of 8)")
	cmd.Flags().StringVar(&f.dir, "dir", "asc", "sort direction: asc or desc")
	cmd.Flags().StringVar(&f.device, "device", "", "device name (empty picks the best available)")
	cmd.Flags().Uint64Var(&f.seed, "seed", 1, "random seed")
	cmd.Flags().Float32Var(&f.scale, "scale", 1e6, "values are drawn from [0, scale)")
	return cmd
}

func openDevice(name string) (bsort.Device, error) {
	if name == "" {
		return backend.InitDefault()
	}
	return backend.Open(name)
}

func sorterOptions(g *globalFlags) []bsort.Option {
	var opts []bsort.Option
	if g.maxWG > 0 {
		opts = append(opts, bsort.WithMaxWorkGroupSize(g.maxWG))
	}
	return opts
}

func runSort(w io.Writer, g *globalFlags, f *sortFlags) error {
	dir, err := bsort.ParseDirection(f.dir)
	if err != nil {
		return err
	}
	dev, err := openDevice(f.device)
	if err != nil {
		return err
	}
	defer dev.Close()

	s, err := bsort.NewSorter(dev, sorterOptions(g)...)
	if err != nil {
		return err
	}

	// Plan first so a bad length is a planning error, not a bad allocation.
	if _, err := s.Plan(f.n); err != nil {
		return err
	}
	data := randomData(f.n, f.seed, f.scale)
	rep, err := s.Sort(data, dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "device:   %s\n", rep.Device)
	fmt.Fprintf(w, "plan:     %s (%d launches)\n", rep.Plan, rep.Launches)
	printEnds(w, data)
	fmt.Fprintf(w, "upload:   %v\n", rep.Upload)
	fmt.Fprintf(w, "sort:     %v\n", rep.Sort)
	fmt.Fprintf(w, "download: %v\n", rep.Download)

	verr := bsort.Verify(data, dir)
	if verr != nil {
		fmt.Fprintf(w, "FAILED: %v\n", verr)
		return verr
	}
	fmt.Fprintln(w, "SUCCEEDED")
	return nil
}

func randomData(n int, seed uint64, scale float32) []float32 {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	data := make([]float32, n)
	for i := range data {
		data[i] = r.Float32() * scale
	}
	return data
}

func printEnds(w io.Writer, data []float32) {
	k := min(printCount, len(data))
	fmt.Fprintf(w, "first:    %v\n", data[:k])
	fmt.Fprintf(w, "last:     %v\n", data[len(data)-k:])
}
