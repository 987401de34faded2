package hyper

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/fastasd/optim"
	"github.com/YuminosukeSato/fastasd/pkg/errors"
	"github.com/YuminosukeSato/fastasd/pkg/log"
	"github.com/YuminosukeSato/fastasd/prior"
)

// Defaults for Updater.
const (
	DefaultFrac       = 0.5
	DefaultMinWidth   = 0.1
	DefaultSliceWidth = 1.0
	DefaultMaxSteps   = 10
)

// Priors holds one log-prior per hyperparameter in Params.Vec order. A nil
// entry is flat on the bounds.
type Priors [NumParams]prior.Density

// Updater performs one hyperparameter update per call.
type Updater struct {
	Mask   Mask
	Bounds Bounds
	// Frac sets the trust region [prev*Frac, prev/Frac] around the previous value.
	Frac float64
	// MinWidth widens trust regions narrower than this.
	MinWidth float64
	// Settings configures the bounded optimiser.
	Settings optim.Settings
	// SliceWidth is the initial slice width W.
	SliceWidth float64
	// MaxSteps caps the stepping-out expansions per side.
	MaxSteps int
	// StartPriors, when an entry implements prior.Sampler, replaces the
	// uniform random start of Optimize by a prior draw clipped to the trust
	// region.
	StartPriors Priors
	Logger      log.Logger
}

// NewUpdater returns an Updater with default trust region, optimiser and
// slice settings.
func NewUpdater(mask Mask, bounds Bounds) *Updater {
	s := optim.DefaultSettings()
	s.Method = optim.MethodNelderMead
	return &Updater{
		Mask:       mask,
		Bounds:     bounds,
		Frac:       DefaultFrac,
		MinWidth:   DefaultMinWidth,
		Settings:   s,
		SliceWidth: DefaultSliceWidth,
		MaxSteps:   DefaultMaxSteps,
		Logger:     log.GetLoggerWithName("hyper.Updater"),
	}
}

// TrustRegion returns the per-parameter box for an update from prev: the
// interval between prev*Frac and prev/Frac, widened to MinWidth around prev
// when narrower and intersected with the global bounds. An empty intersection
// falls back to the global bounds.
func (u *Updater) TrustRegion(prev Params) (lo, hi Params) {
	pv := prev.Vec()
	glb, gub := u.Bounds.LB.Vec(), u.Bounds.UB.Vec()
	lv, hv := make([]float64, NumParams), make([]float64, NumParams)
	for i, x := range pv {
		a, b := math.Min(x*u.Frac, x/u.Frac), math.Max(x*u.Frac, x/u.Frac)
		if b-a < u.MinWidth {
			a, b = x-u.MinWidth/2, x+u.MinWidth/2
		}
		a, b = math.Max(a, glb[i]), math.Min(b, gub[i])
		if a > b {
			a, b = glb[i], gub[i]
		}
		lv[i], hv[i] = a, b
	}
	return ParamsFromVec(lv), ParamsFromVec(hv)
}

func (u *Updater) start(i int, lo, hi float64, rng *rand.Rand) float64 {
	if s, ok := u.StartPriors[i].(prior.Sampler); ok {
		return errors.ClipValue(s.Rand(rng), lo, hi)
	}
	return lo + rng.Float64()*(hi-lo)
}

func infeasible(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 1)
}

// Optimize minimises f jointly over the masked hyperparameters inside the
// trust region around prev, starting from a uniform random point. A start at
// which f is infeasible is replaced once by prev. Running out of optimiser
// budget is not an error. The result replaces prev only when f is strictly
// lower there.
func (u *Updater) Optimize(f Func, prev Params, rng *rand.Rand, iteration int) (Params, error) {
	const op = "hyper.Optimize"
	if err := u.Bounds.Validate(); err != nil {
		return prev, err
	}
	idx := u.Mask.Indices()
	if len(idx) == 0 {
		return prev, nil
	}
	lo, hi := u.TrustRegion(prev)
	lv, hv, pv := lo.Vec(), hi.Vec(), prev.Vec()

	lb := make([]float64, len(idx))
	ub := make([]float64, len(idx))
	x0 := make([]float64, len(idx))
	for k, i := range idx {
		lb[k], ub[k] = lv[i], hv[i]
		x0[k] = u.start(i, lv[i], hv[i], rng)
	}

	full := func(x []float64) Params {
		v := append([]float64(nil), pv...)
		for k, i := range idx {
			v[i] = x[k]
		}
		return ParamsFromVec(v)
	}
	obj := func(x []float64) float64 { return f(full(x)) }

	if infeasible(obj(x0)) {
		errors.Warn(errors.NewDegenerateStartWarning(op, iteration, x0))
		for k, i := range idx {
			x0[k] = errors.ClipValue(pv[i], lv[i], hv[i])
		}
		if infeasible(obj(x0)) {
			u.Logger.Warn("previous hyperparameters are infeasible; keeping them", log.IterationKey, iteration)
			return prev, nil
		}
	}

	res, err := optim.Minimize(optim.Problem{Func: obj}, x0, lb, ub, u.Settings)
	if err != nil {
		return prev, err
	}
	cand := u.Bounds.Clip(full(res.X))
	fCand, fPrev := f(cand), f(prev)
	if infeasible(fCand) || (!infeasible(fPrev) && fCand >= fPrev) {
		u.Logger.Debug("update does not improve on previous hyperparameters; keeping them",
			log.IterationKey, iteration,
		)
		return prev, nil
	}
	return cand, nil
}

// Sample performs one slice-sampling sweep over the masked hyperparameters.
// Each parameter is updated in turn from its prior times exp(-f).
func (u *Updater) Sample(f Func, prev Params, priors Priors, rng *rand.Rand) (Params, error) {
	if err := u.Bounds.Validate(); err != nil {
		return prev, err
	}
	cur := prev.Vec()
	glb, gub := u.Bounds.LB.Vec(), u.Bounds.UB.Vec()
	for _, i := range u.Mask.Indices() {
		var pr prior.Density = prior.Flat{LB: glb[i], UB: gub[i]}
		if priors[i] != nil {
			pr = priors[i]
		}
		logp := func(x float64) float64 {
			if x < glb[i] || x > gub[i] {
				return math.Inf(-1)
			}
			lp := pr.LogDensity(x)
			if math.IsInf(lp, -1) {
				return lp
			}
			v := append([]float64(nil), cur...)
			v[i] = x
			nll := f(ParamsFromVec(v))
			if infeasible(nll) {
				return math.Inf(-1)
			}
			return lp - nll
		}
		cur[i] = SliceStep(logp, cur[i], u.SliceWidth, u.MaxSteps, glb[i], gub[i], rng)
	}
	return ParamsFromVec(cur), nil
}
