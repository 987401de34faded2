package main

import (
	"io"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/fastasd/dataset"
)

func newSynthCmd() *cobra.Command {
	cfg := dataset.DefaultSyntheticConfig()
	var (
		seed uint64
		out  string
	)
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic dataset as CSV",
		Long: `Draw a design X ~ N(0, 1), smooth sparse true weights on the grid and
noisy responses, and write rows x_1,...,x_p,y.

Examples:
  fastasd synth --n 50 --dims 8,8 > data.csv
  fastasd synth --nsevar 0.1 --out data.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, _, err := dataset.Synthetic(cfg, rand.New(rand.NewPCG(seed, seed+1)))
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return dataset.WriteCSV(w, ds)
		},
	}
	f := cmd.Flags()
	f.IntVar(&cfg.N, "n", cfg.N, "number of samples")
	f.IntSliceVar(&cfg.Dims, "dims", cfg.Dims, "feature grid, one or two axis lengths")
	f.Float64Var(&cfg.Nsevar, "nsevar", cfg.Nsevar, "noise variance")
	f.IntVar(&cfg.Bumps, "bumps", cfg.Bumps, "number of Gaussian bumps in the true weights")
	f.Float64Var(&cfg.Width, "width", cfg.Width, "bump width in grid units")
	f.Uint64Var(&seed, "seed", 1, "random seed")
	f.StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
