package inference

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/viterin/vek"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/fastasd/dataset"
	"github.com/YuminosukeSato/fastasd/dual"
	"github.com/YuminosukeSato/fastasd/evidence"
	"github.com/YuminosukeSato/fastasd/fourier"
	"github.com/YuminosukeSato/fastasd/hyper"
	"github.com/YuminosukeSato/fastasd/latent"
	"github.com/YuminosukeSato/fastasd/metrics"
	"github.com/YuminosukeSato/fastasd/optim"
	"github.com/YuminosukeSato/fastasd/pkg/errors"
	"github.com/YuminosukeSato/fastasd/pkg/log"
)

// Driver owns the state of the alternating loop. A Driver may be reused for
// several runs but not concurrently.
type Driver struct {
	cfg       Config
	logger    log.Logger
	observers []Observer
	rng       *rand.Rand
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger. The default is the process-wide logger.
func WithLogger(l log.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}

// WithObserver adds an observer. Observers are called in the order added.
func WithObserver(o Observer) Option {
	return func(d *Driver) {
		d.observers = append(d.observers, o)
	}
}

// WithRand sets the random source used for starts, auxiliary draws and slice
// sampling.
func WithRand(rng *rand.Rand) Option {
	return func(d *Driver) {
		d.rng = rng
	}
}

// WithSeed seeds a fresh PCG source, overriding Config.Seed.
func WithSeed(seed uint64) Option {
	return func(d *Driver) {
		d.rng = newRand(seed)
	}
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewDriver validates cfg and applies opts.
func NewDriver(cfg Config, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = log.GetLoggerWithName("inference.Driver")
	}
	if d.rng == nil {
		d.rng = newRand(cfg.Seed)
	}
	d.observers = append([]Observer{logObserver{logger: d.logger}}, d.observers...)
	return d, nil
}

// Config returns the driver's configuration.
func (d *Driver) Config() Config { return d.cfg }

// Result is the outcome of one run. Index k of the histories is iteration
// k+1; iteration 1 is the seed state.
type Result struct {
	RunID string
	Mode  Mode
	// Params are the final hyperparameters.
	Params  hyper.Params
	History []hyper.Params
	// SqErr is |y - X w| / |y| per iteration; the seed state has 1.
	SqErr []float64
	// WDif is |w - w_prev| per iteration; the seed state has NaN.
	WDif []float64
	// W is the last weight estimate.
	W []float64
	// WMean averages W over the iterations after BurnIn.
	WMean []float64
	// V is the final whitened latent field and CDiag the variance multiplier
	// it induces.
	V     []float64
	CDiag []float64
	// Iterations is the number of completed iterations, the seed included.
	Iterations int
	// Converged reports an early stop on WDifTol (optimisation mode only).
	Converged bool
}

// run is the per-Run state. Nothing in it outlives Run.
type run struct {
	*Driver
	id     string
	logger log.Logger
	ds     *dataset.Dataset
	dims   []int
	keep   []bool
	nl     dual.Nonlinearity
	bounds hyper.Bounds
	priors hyper.Priors
	pad    []fourier.BuildOption

	solver  *latent.Solver
	updater *hyper.Updater
}

// Run executes the loop on ds. Configuration problems are reported before
// the first iteration; numerical trouble inside an iteration is absorbed into
// the diagnostics. Cancellation is checked between iterations, and the
// partial result is returned along with the context error.
func (d *Driver) Run(ctx context.Context, ds *dataset.Dataset) (res *Result, err error) {
	defer errors.Recover(&err, "Driver.Run")
	r, err := d.prepare(ds)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	r.logger.Info("run started",
		log.SamplesKey, ds.N,
		log.FeaturesKey, ds.P,
		log.KeptKey, countKept(r.keep, ds.P),
	)

	res, err = r.loop(ctx)
	if err != nil {
		return res, err
	}
	r.logger.Info("run finished",
		log.IterationKey, res.Iterations,
		log.SqErrKey, res.SqErr[len(res.SqErr)-1],
		"converged", res.Converged,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (d *Driver) prepare(ds *dataset.Dataset) (*run, error) {
	const op = "inference.Run"
	if ds == nil {
		return nil, errors.NewValueError(op, "nil dataset")
	}
	if !(ds.YY > 0) {
		return nil, errors.NewValueError(op, "response has zero norm")
	}
	cfg := d.cfg

	dims := ds.Dims
	if len(cfg.Dims) > 0 {
		prod := 1
		for _, n := range cfg.Dims {
			prod *= n
		}
		if prod != ds.P {
			return nil, errors.NewConfigurationError(op, "dims", "grid does not match the number of features")
		}
		dims = cfg.Dims
	}
	maxDim := 0
	for _, n := range dims {
		maxDim = max(maxDim, n)
	}

	var keep []bool
	if len(cfg.Keep) > 0 {
		if len(cfg.Keep) != ds.P {
			return nil, errors.NewConfigurationError(op, "keep", "keep-mask length must equal the number of features")
		}
		if countKept(cfg.Keep, ds.P) == 0 {
			return nil, errors.NewConfigurationError(op, "keep", "keep-mask selects no features")
		}
		keep = cfg.Keep
	}

	nl, err := dual.NonlinearityByName(cfg.Nonlinearity)
	if err != nil {
		return nil, err
	}
	bounds := cfg.bounds(maxDim)
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	priors, err := cfg.priors(bounds)
	if err != nil {
		return nil, err
	}

	pad := []fourier.BuildOption{}
	if len(cfg.Pad) > 0 {
		pad = append(pad, fourier.WithPad(cfg.Pad...))
	}

	id := uuid.NewString()
	logger := d.logger.With(log.RunIDKey, id, log.ModeKey, string(cfg.Mode))

	solver := latent.NewSolver(cfg.LatentOptim)
	solver.Logger = logger.With(log.PhaseKey, log.PhaseLatent)

	updater := hyper.NewUpdater(cfg.Estimate, bounds)
	updater.Frac = cfg.Frac
	updater.MinWidth = cfg.MinWidth
	updater.Settings = cfg.HyperOptim
	updater.SliceWidth = cfg.SliceWidth
	updater.MaxSteps = cfg.MaxSteps
	updater.Logger = logger.With(log.PhaseKey, log.PhaseHyper)
	if cfg.PriorStart {
		updater.StartPriors = priors
	}

	return &run{
		Driver:  d,
		id:      id,
		logger:  logger,
		ds:      ds,
		dims:    dims,
		keep:    keep,
		nl:      nl,
		bounds:  bounds,
		priors:  priors,
		pad:     pad,
		solver:  solver,
		updater: updater,
	}, nil
}

func countKept(keep []bool, p int) int {
	if keep == nil {
		return p
	}
	n := 0
	for _, k := range keep {
		if k {
			n++
		}
	}
	return n
}

// initialParams returns Config.Init, optionally reseeded from a ridge fit,
// clipped to the bounds.
func (r *run) initialParams() hyper.Params {
	params := r.cfg.Init
	if r.cfg.RidgeInit {
		if theta, err := r.ridge(); err != nil {
			r.logger.Warn("ridge initialisation failed; using configured start", "error", err.Error())
		} else {
			params.LogNsevar = math.Log(theta.Nsevar)
			params.B = invertGain(r.nl, theta.Rho)
			r.logger.Info("ridge initialisation",
				log.PhaseKey, log.PhaseInit,
				log.NsevarKey, theta.Nsevar,
				log.OffsetKey, params.B,
			)
		}
	}
	clipped := r.bounds.Clip(params)
	if clipped != params {
		r.logger.Warn("initial hyperparameters clipped to bounds", log.PhaseKey, log.PhaseInit)
	}
	return clipped
}

// ridge fits the ridge evidence on the kept features.
func (r *run) ridge() (evidence.Theta, error) {
	x := r.ds.X
	if r.keep != nil {
		xk := mat.DenseCopyOf(x)
		for j, k := range r.keep {
			if !k {
				xk.SetCol(j, make([]float64, r.ds.N))
			}
		}
		x = xk
	}
	data, err := evidence.NewData(x, r.ds.Y)
	if err != nil {
		return evidence.Theta{}, err
	}
	s := optim.DefaultSettings()
	s.Method = optim.MethodNewton
	return evidence.FitRidge(data, evidence.RidgeStart(r.ds.Y, r.ds.P), s)
}

// invertGain returns the latent offset at which the nonlinearity gives a
// prior variance multiplier of gain.
func invertGain(nl dual.Nonlinearity, gain float64) float64 {
	switch nl.(type) {
	case dual.Exp:
		return math.Log(gain)
	case dual.SoftPlus:
		if gain > 30 {
			return gain
		}
		return math.Log(math.Expm1(gain))
	case dual.Square:
		return math.Sqrt(gain)
	default:
		return gain
	}
}

func (r *run) loop(ctx context.Context) (*Result, error) {
	cfg := r.cfg
	p := r.ds.P
	params := r.initialParams()

	res := &Result{
		RunID:   r.id,
		Mode:    cfg.Mode,
		History: []hyper.Params{params},
		SqErr:   []float64{1},
		WDif:    []float64{math.NaN()},
		W:       make([]float64, p),
	}
	wSum := make([]float64, p)
	nSum := 0
	var v []float64
	var prevCov *fourier.Covariance
	wPrev := make([]float64, p)

	for it := 2; it <= cfg.Iters; it++ {
		if err := ctx.Err(); err != nil {
			r.finish(res, params, wSum, nSum)
			return res, errors.Wrapf(err, "inference.Run: cancelled before iteration %d", it)
		}

		covU, err := fourier.Build(params.Rho, params.Delta, r.dims, cfg.MinScale, cfg.CondThreshold, r.pad...)
		if err != nil {
			return nil, err
		}
		covF, err := fourier.Build(1, params.Len, r.dims, cfg.MinScale, cfg.CondThreshold, r.pad...)
		if err != nil {
			return nil, err
		}
		v = fourier.Transfer(v, prevCov, covU)
		prevCov = covU

		prob, err := latent.NewProblem(r.ds.X, r.ds.Y, r.keep, covU, params.B, covF, r.nl, params.Nsevar())
		if err != nil {
			return nil, err
		}
		var sol *latent.Solution
		if cfg.Mode == ModeSample {
			sol, err = r.solver.Sample(prob, v, r.rng)
		} else {
			sol, err = r.solver.Optimize(prob, v)
		}
		if err != nil {
			r.finish(res, params, wSum, nSum)
			return res, errors.Wrapf(err, "inference.Run: iteration %d", it)
		}
		v = sol.V

		est, err := prob.Estimate(v)
		if err != nil {
			r.finish(res, params, wSum, nSum)
			return res, errors.Wrapf(err, "inference.Run: iteration %d", it)
		}
		w := est.W
		sqErr, _ := metrics.RelativeResidual(r.ds.Y, dual.Predict(r.ds.X, w))
		wDif, _ := metrics.WeightChange(w, wPrev)

		obj := &hyper.Objective{
			X:            r.ds.X,
			Y:            r.ds.Y,
			Keep:         r.keep,
			V:            v,
			Cov:          covU,
			Smooth:       covF,
			Nonlinearity: r.nl,
			MinScale:     cfg.MinScale,
		}
		if cfg.Mode == ModeSample {
			params, err = r.updater.Sample(obj.Func(), params, r.priors, r.rng)
		} else {
			params, err = r.updater.Optimize(obj.Func(), params, r.rng, it)
		}
		if err != nil {
			return nil, err
		}

		res.History = append(res.History, params)
		res.SqErr = append(res.SqErr, sqErr)
		res.WDif = append(res.WDif, wDif)
		res.W = w
		res.V = v
		res.CDiag = est.CDiag
		res.Iterations = it
		if it > cfg.BurnIn {
			vek.Add_Inplace(wSum, w)
			nSum++
		}

		rep := Report{
			RunID:     r.id,
			Mode:      cfg.Mode,
			Iteration: it,
			Params:    params,
			SqErr:     sqErr,
			WDif:      wDif,
			W:         append([]float64(nil), w...),
			Retained:  len(v),
			NegLogLik: sol.NegLogLik,
		}
		for _, o := range r.observers {
			o.Observe(rep)
		}

		if cfg.Mode == ModeOptimize && wDif < cfg.WDifTol {
			res.Converged = true
			break
		}
		copy(wPrev, w)
	}

	r.finish(res, params, wSum, nSum)
	return res, nil
}

func (r *run) finish(res *Result, params hyper.Params, wSum []float64, nSum int) {
	res.Params = params
	if res.Iterations == 0 {
		res.Iterations = 1
	}
	if nSum == 0 {
		res.WMean = append([]float64(nil), res.W...)
		return
	}
	res.WMean = vek.DivNumber(wSum, float64(nSum))
}
