package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/fastasd/dataset"
	"github.com/YuminosukeSato/fastasd/evidence"
	"github.com/YuminosukeSato/fastasd/inference"
	"github.com/YuminosukeSato/fastasd/linear"
	"github.com/YuminosukeSato/fastasd/metrics"
	"github.com/YuminosukeSato/fastasd/optim"
	"github.com/YuminosukeSato/fastasd/plotter"
)

type runFlags struct {
	config   string
	data     string
	dims     []int
	mode     string
	iters    int
	seed     uint64
	plot     string
	noCenter bool
	baseline bool
	synth    dataset.SyntheticConfig
}

func newRunCmd() *cobra.Command {
	fl := &runFlags{synth: dataset.DefaultSyntheticConfig()}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fit a receptive field to a CSV or synthetic dataset",
		Long: `Run the alternating inference loop and print a summary of the final
hyperparameters and diagnostics.

Without --data a synthetic dataset is drawn and the estimate is compared with
the true weights.

Examples:
  fastasd run --data data.csv --dims 8,8
  fastasd run --mode sample --iters 200 --plot trace.png
  fastasd run --config run.yaml --data data.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt)
			defer stop()
			return runFit(ctx, cmd, fl)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&fl.config, "config", "c", "", "YAML run configuration")
	f.StringVarP(&fl.data, "data", "d", "", "CSV file with rows x_1,...,x_p,y (- for stdin)")
	f.IntSliceVar(&fl.dims, "dims", nil, "feature grid, one or two axis lengths")
	f.StringVar(&fl.mode, "mode", "", "optimize or sample (overrides the config)")
	f.IntVar(&fl.iters, "iters", 0, "iterations including the seed state (overrides the config)")
	f.Uint64Var(&fl.seed, "seed", 1, "random seed")
	f.StringVar(&fl.plot, "plot", "", "write trace plots to this file (png, svg or pdf)")
	f.BoolVar(&fl.baseline, "baseline", false, "also fit a ridge baseline with its evidence-optimal penalty")
	f.BoolVar(&fl.noCenter, "no-center", false, "do not remove the means of X and y")
	f.IntVar(&fl.synth.N, "n", fl.synth.N, "synthetic samples")
	f.Float64Var(&fl.synth.Nsevar, "nsevar", fl.synth.Nsevar, "synthetic noise variance")
	return cmd
}

func (fl *runFlags) buildConfig(cmd *cobra.Command) (inference.Config, error) {
	cfg := inference.DefaultConfig()
	if fl.config != "" {
		var err error
		if cfg, err = inference.LoadConfig(fl.config); err != nil {
			return cfg, err
		}
	}
	if fl.mode != "" {
		cfg.Mode = inference.Mode(fl.mode)
	}
	if fl.iters > 0 {
		cfg.Iters = fl.iters
	}
	if cmd.Flags().Changed("seed") || fl.config == "" {
		cfg.Seed = fl.seed
	}
	if len(fl.dims) > 0 {
		cfg.Dims = fl.dims
	}
	return cfg, cfg.Validate()
}

func (fl *runFlags) loadData(cmd *cobra.Command, cfg inference.Config) (*dataset.Dataset, []float64, error) {
	if fl.data == "" {
		sc := fl.synth
		if len(cfg.Dims) > 0 {
			sc.Dims = cfg.Dims
		}
		return dataset.Synthetic(sc, rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1)))
	}
	var r io.Reader = cmd.InOrStdin()
	if fl.data != "-" {
		f, err := os.Open(fl.data)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		r = f
	}
	ds, err := dataset.LoadCSV(r, cfg.Dims)
	return ds, nil, err
}

func runFit(ctx context.Context, cmd *cobra.Command, fl *runFlags) error {
	cfg, err := fl.buildConfig(cmd)
	if err != nil {
		return err
	}
	ds, wTrue, err := fl.loadData(cmd, cfg)
	if err != nil {
		return err
	}
	if cfg.Dims == nil {
		cfg.Dims = ds.Dims
	}
	if !fl.noCenter {
		if ds, _, err = ds.Center(); err != nil {
			return err
		}
	}

	var opts []inference.Option
	var trace *plotter.TraceObserver
	if fl.plot != "" {
		trace = plotter.NewTraceObserver()
		opts = append(opts, inference.WithObserver(trace))
	}
	d, err := inference.NewDriver(cfg, opts...)
	if err != nil {
		return err
	}
	res, err := d.Run(ctx, ds)
	if err != nil && res == nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), ds, res, wTrue)
	if fl.baseline {
		if berr := printBaseline(cmd.OutOrStdout(), ds, wTrue); berr != nil {
			return berr
		}
	}
	if trace != nil && trace.Len() > 0 {
		if perr := trace.Save(fl.plot); perr != nil {
			return perr
		}
	}
	return err
}

func printSummary(out io.Writer, ds *dataset.Dataset, res *inference.Result, wTrue []float64) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	p := res.Params
	fmt.Fprintf(tw, "run id\t%s\n", res.RunID)
	fmt.Fprintf(tw, "mode\t%s\n", res.Mode)
	fmt.Fprintf(tw, "data\t%d samples x %d features, grid %v\n", ds.N, ds.P, ds.Dims)
	fmt.Fprintf(tw, "iterations\t%d\n", res.Iterations)
	fmt.Fprintf(tw, "converged\t%t\n", res.Converged)
	fmt.Fprintf(tw, "sq_er\t%.6g\n", res.SqErr[len(res.SqErr)-1])
	fmt.Fprintf(tw, "w_dif\t%.6g\n", res.WDif[len(res.WDif)-1])
	fmt.Fprintf(tw, "rho\t%.6g\n", p.Rho)
	fmt.Fprintf(tw, "delta\t%.6g\n", p.Delta)
	fmt.Fprintf(tw, "b\t%.6g\n", p.B)
	fmt.Fprintf(tw, "nsevar\t%.6g\n", p.Nsevar())
	fmt.Fprintf(tw, "len\t%.6g\n", p.Len)
	if wTrue != nil {
		if r, err := metrics.CorrCoef(res.WMean, wTrue); err == nil {
			fmt.Fprintf(tw, "corr(w, w_true)\t%.4f\n", r)
		}
	}
}

// ridgeBaseline fits ridge regression with the penalty nsevar/rho that
// maximises the ridge evidence, i.e. without the ASD prior.
func ridgeBaseline(ds *dataset.Dataset) (*linear.Regression, evidence.Theta, error) {
	data, err := evidence.NewData(ds.X, ds.Y)
	if err != nil {
		return nil, evidence.Theta{}, err
	}
	s := optim.DefaultSettings()
	s.Method = optim.MethodNewton
	th, err := evidence.FitRidge(data, evidence.RidgeStart(ds.Y, ds.P), s)
	if err != nil {
		return nil, evidence.Theta{}, err
	}
	ridge := linear.NewRidge(th.Nsevar/th.Rho, linear.WithFitIntercept(false))
	if err := ridge.Fit(ds.X, ds.Y); err != nil {
		return nil, evidence.Theta{}, err
	}
	return ridge, th, nil
}

func printBaseline(out io.Writer, ds *dataset.Dataset, wTrue []float64) error {
	ridge, th, err := ridgeBaseline(ds)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintf(tw, "ridge alpha\t%.6g\n", th.Nsevar/th.Rho)
	fmt.Fprintf(tw, "ridge rank\t%d\n", ridge.Rank)
	if r2, err := ridge.Score(ds.X, ds.Y); err == nil {
		fmt.Fprintf(tw, "ridge r2\t%.4f\n", r2)
	}
	if wTrue != nil {
		if r, err := metrics.CorrCoef(ridge.Weights(), wTrue); err == nil {
			fmt.Fprintf(tw, "ridge corr(w, w_true)\t%.4f\n", r)
		}
	}
	return nil
}
